package tools

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/infohub/llmutils"
)

// Registry maps tool names to tools. It is populated at startup and read-only
// afterwards, so lookups need no locking.
type Registry struct {
	tools map[string]ITool
	order []string
}

// NewRegistry creates a registry with the given tools.
// A duplicate name is a configuration defect and fails registration.
func NewRegistry(list ...ITool) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]ITool),
	}
	for _, tool := range list {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool; it fails if the name is already taken.
func (r *Registry) Register(tool ITool) error {
	name := tool.Name()
	if name == "" {
		return errors.New("tool name must not be empty")
	}
	if _, ok := r.tools[name]; ok {
		return errors.Errorf("tool already registered: %s", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the tool with the given name.
func (r *Registry) Lookup(name string) (ITool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all tools in registration order.
func (r *Registry) List() []ITool {
	list := make([]ITool, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.tools[name])
	}
	return list
}

type toolDescription struct {
	Name        string `json:"Name" yaml:"Name"`
	Description string `json:"Description" yaml:"Description"`
}

type toolsDescription struct {
	Tools []toolDescription `json:"Tools" yaml:"Tools"`
}

// GetDescriptions returns a JSON block describing the tools, suitable for
// inclusion in an LLM prompt.
func GetDescriptions(list ...ITool) string {
	var d toolsDescription
	for _, tool := range list {
		d.Tools = append(d.Tools, toolDescription{
			Name:        tool.Name(),
			Description: tool.Description(),
		})
	}
	return llmutils.BackticksJSON(llmutils.ToJSONIndent(d))
}
