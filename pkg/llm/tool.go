package llm

// Parameter describes one argument of a tool.
type Parameter struct {
	Name        string
	Type        string // JSON schema type: "string", "integer", ...
	Description string
	Required    bool
}

// ToolDefinition is the backend-neutral description of a callable tool.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  []Parameter
}

// Properties renders the parameters as a JSON schema "properties" object.
func (d ToolDefinition) Properties() map[string]any {
	props := make(map[string]any, len(d.Parameters))
	for _, p := range d.Parameters {
		typ := p.Type
		if typ == "" {
			typ = "string"
		}
		props[p.Name] = map[string]any{
			"type":        typ,
			"description": p.Description,
		}
	}
	return props
}

// RequiredNames lists the parameters flagged as required.
func (d ToolDefinition) RequiredNames() []string {
	required := []string{}
	for _, p := range d.Parameters {
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return required
}

// Schema returns the full JSON schema object for the tool input.
func (d ToolDefinition) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": d.Properties(),
		"required":   d.RequiredNames(),
	}
}
