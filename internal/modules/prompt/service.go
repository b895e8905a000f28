// README: Assembler builds the ordered message list sent upstream.
package prompt

import (
	"encoding/json"
	"fmt"

	"travelfinder/internal/ai"
	"travelfinder/internal/types"
)

// DefaultSystemPrompt is used whenever the requested template id is unknown.
const DefaultSystemPrompt = "You are ChatGPT, a large language model trained by OpenAI. Follow the user's instructions carefully. Respond using markdown format."

const (
	locationsPrefix = "These are alternative locations: "
	acknowledgement = "Sure, please provide further description."
)

type Assembler struct {
	registry *Registry
}

func NewAssembler(registry *Registry) *Assembler {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Assembler{registry: registry}
}

// Registry exposes the underlying templates.
func (a *Assembler) Registry() *Registry { return a.registry }

// System renders template id with vars, falling back to DefaultSystemPrompt when id is unknown.
// The tools of the template are returned alongside.
func (a *Assembler) System(id string, vars map[string]string) (string, []ai.ToolSchema) {
	t, err := a.registry.Get(id)
	if err != nil {
		return DefaultSystemPrompt, nil
	}
	return t.Render(vars), t.Tools()
}

// Assemble returns system, location context, acknowledgement, then the conversation in its original
// order. The serialized places are also available to the template as __LOCATIONS__.
func (a *Assembler) Assemble(id string, places types.PlaceResult, conversation []ai.Message, vars map[string]string) ([]ai.Message, []ai.ToolSchema, error) {
	if places.Places == nil {
		places.Places = []types.Place{}
	}
	encoded, err := json.Marshal(places)
	if err != nil {
		return nil, nil, fmt.Errorf("prompt: encode places: %w", err)
	}

	merged := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		merged[k] = v
	}
	merged[PlaceholderLocations] = string(encoded)

	system, tools := a.System(id, merged)
	out := make([]ai.Message, 0, len(conversation)+3)
	out = append(out,
		ai.Message{Role: ai.RoleSystem, Content: system},
		ai.Message{Role: ai.RoleUser, Content: locationsPrefix + string(encoded)},
		ai.Message{Role: ai.RoleAssistant, Content: acknowledgement},
	)
	out = append(out, conversation...)
	return out, tools, nil
}

// Prepend places the rendered system prompt in front of the conversation.
func (a *Assembler) Prepend(id string, vars map[string]string, conversation []ai.Message) ([]ai.Message, []ai.ToolSchema) {
	system, tools := a.System(id, vars)
	out := make([]ai.Message, 0, len(conversation)+1)
	out = append(out, ai.Message{Role: ai.RoleSystem, Content: system})
	return append(out, conversation...), tools
}
