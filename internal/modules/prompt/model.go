// README: Prompt templates are loaded once from TOML and are read-only afterwards.
package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/samber/lo"

	"travelfinder/internal/ai"
)

var ErrTemplateNotFound = errors.New("prompt template not found")

// Placeholders substituted into template bodies.
const (
	PlaceholderArea            = "__AREA__"
	PlaceholderLocations       = "__LOCATIONS__"
	PlaceholderTravelLocations = "__TRAVEL_LOCATIONS__"
)

// Template is an immutable system prompt plus the tools offered alongside it.
type Template struct {
	id    string
	body  string
	tools []ai.ToolSchema
}

func (t Template) ID() string   { return t.id }
func (t Template) Body() string { return t.body }

// Tools returns a copy of the template's tool schemas.
func (t Template) Tools() []ai.ToolSchema {
	if len(t.tools) == 0 {
		return nil
	}
	out := make([]ai.ToolSchema, len(t.tools))
	copy(out, t.tools)
	return out
}

// Render substitutes every key of vars in the body and returns the result. The template is unchanged.
func (t Template) Render(vars map[string]string) string {
	if len(vars) == 0 {
		return t.body
	}
	// Longer placeholders first so one never shadows another that it prefixes.
	keys := lo.Keys(vars)
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, len(vars)*2)
	for _, k := range keys {
		pairs = append(pairs, k, vars[k])
	}
	return strings.NewReplacer(pairs...).Replace(t.body)
}

// Registry holds templates by id.
type Registry struct {
	templates map[string]Template
}

func NewRegistry(templates ...Template) *Registry {
	r := &Registry{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		r.templates[t.id] = t
	}
	return r
}

// NewTemplate builds a template in code; mainly for tests and defaults.
func NewTemplate(id, body string, tools ...ai.ToolSchema) Template {
	return Template{id: id, body: body, tools: tools}
}

func (r *Registry) Get(id string) (Template, error) {
	t, ok := r.templates[id]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return t, nil
}

func (r *Registry) Len() int { return len(r.templates) }

type templateFile struct {
	Templates []struct {
		ID     string `toml:"id"`
		Prompt string `toml:"prompt"`
		Tools  []struct {
			Type     string `toml:"type"`
			Function struct {
				Name        string `toml:"name"`
				Description string `toml:"description"`
				// Parameters is a JSON schema document.
				Parameters string `toml:"parameters"`
			} `toml:"function"`
		} `toml:"tools"`
	} `toml:"template"`
}

// LoadFile reads a TOML template file.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("prompt: open templates: %w", err)
	}
	defer f.Close()
	return Load(f)
}

func Load(r io.Reader) (*Registry, error) {
	var file templateFile
	if _, err := toml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("prompt: failed to decode TOML: %w", err)
	}

	reg := &Registry{templates: make(map[string]Template, len(file.Templates))}
	for i, ft := range file.Templates {
		if ft.ID == "" {
			return nil, fmt.Errorf("prompt: template #%d has no id", i+1)
		}
		if _, dup := reg.templates[ft.ID]; dup {
			return nil, fmt.Errorf("prompt: duplicate template id %s", ft.ID)
		}
		t := Template{id: ft.ID, body: ft.Prompt}
		for _, tool := range ft.Tools {
			schema := ai.ToolSchema{
				Type: tool.Type,
				Function: ai.FunctionSchema{
					Name:        tool.Function.Name,
					Description: tool.Function.Description,
				},
			}
			if schema.Type == "" {
				schema.Type = "function"
			}
			if schema.Function.Name == "" {
				return nil, fmt.Errorf("prompt: template %s: tool without a function name", ft.ID)
			}
			if p := strings.TrimSpace(tool.Function.Parameters); p != "" {
				if !json.Valid([]byte(p)) {
					return nil, fmt.Errorf("prompt: template %s: tool %s: parameters are not valid JSON", ft.ID, schema.Function.Name)
				}
				schema.Function.Parameters = json.RawMessage(p)
			}
			t.tools = append(t.tools, schema)
		}
		reg.templates[ft.ID] = t
	}
	return reg, nil
}
