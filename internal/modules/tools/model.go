// README: Typed tool calls recognised by the dispatcher.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"travelfinder/internal/ai"
)

var ErrUnknownTool = errors.New("unknown tool")

const (
	QueryFeatureName = "QueryFeature"

	DefaultRecordCount = 50
	MaxRecordCount     = 2000
)

// Call is one recognised tool invocation. The set of implementations is closed.
type Call interface {
	ToolName() string
	isCall()
}

// QueryFeature asks for features of a category around the user.
type QueryFeature struct {
	RecordCount int
	// CategoryType is empty to match every record.
	CategoryType string
}

func (QueryFeature) ToolName() string { return QueryFeatureName }
func (QueryFeature) isCall()          {}

// Where builds the layer filter: a substring match on Category, or "1=1" without a category.
func (q QueryFeature) Where() string {
	if q.CategoryType == "" {
		return "1=1"
	}
	return fmt.Sprintf("Category LIKE '%%%s%%'", strings.ReplaceAll(q.CategoryType, "'", "''"))
}

// Parse maps a model tool call onto its typed form. Unrecognised names return ErrUnknownTool.
func Parse(tc ai.ToolCall) (Call, error) {
	switch tc.Function.Name {
	case QueryFeatureName:
		return parseQueryFeature(tc.Function)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, tc.Function.Name)
	}
}

func parseQueryFeature(fc ai.FunctionCall) (QueryFeature, error) {
	args, err := fc.ArgumentMap()
	if err != nil {
		return QueryFeature{}, err
	}
	q := QueryFeature{RecordCount: DefaultRecordCount}

	if v, ok := args["record_count"]; ok && v != nil {
		n, err := toInt(v)
		if err != nil {
			return QueryFeature{}, fmt.Errorf("%s: record_count: %w", fc.Name, err)
		}
		if n > 0 {
			q.RecordCount = min(n, MaxRecordCount)
		}
	}
	if v, ok := args["category_type"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return QueryFeature{}, fmt.Errorf("%s: category_type must be a string, got %T", fc.Name, v)
		}
		q.CategoryType = strings.TrimSpace(s)
	}
	return q, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
