package contract

import (
	"github.com/cloudwego/eino/schema"
	"github.com/getkin/kin-openapi/openapi3"
)

const ParamTypeString = "string"

// ToolSpec is the machine-readable description of a capability handed to the
// model. Parameters keep declaration order.
type ToolSpec struct {
	Name        string
	Description string
	Params      []ParamSpec
}

type ParamSpec struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

func (t ToolSpec) RequiredParams() []string {
	out := make([]string, 0, len(t.Params))
	for _, p := range t.Params {
		if p.Required {
			out = append(out, p.Name)
		}
	}
	return out
}

// JSONSchema renders the parameters as a strict JSON schema object.
func (t ToolSpec) JSONSchema() map[string]any {
	properties := make(map[string]any, len(t.Params))
	for _, p := range t.Params {
		typ := p.Type
		if typ == "" {
			typ = ParamTypeString
		}
		properties[p.Name] = map[string]any{
			"type":        typ,
			"description": p.Description,
		}
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             t.RequiredParams(),
		"additionalProperties": false,
	}
}

// ToolInfo builds the eino tool description from an OpenAPI object schema so
// that the required list keeps declaration order on every backend.
func (t ToolSpec) ToolInfo() *schema.ToolInfo {
	params := openapi3.NewObjectSchema().WithoutAdditionalProperties()
	for _, p := range t.Params {
		typ := p.Type
		if typ == "" {
			typ = ParamTypeString
		}
		params.WithProperty(p.Name, &openapi3.Schema{Type: typ, Description: p.Description})
	}
	params.Required = t.RequiredParams()
	return &schema.ToolInfo{
		Name:        t.Name,
		Desc:        t.Description,
		ParamsOneOf: schema.NewParamsOneOfByOpenAPIV3(params),
	}
}

func ToolInfos(specs []ToolSpec) []*schema.ToolInfo {
	if len(specs) == 0 {
		return nil
	}
	out := make([]*schema.ToolInfo, 0, len(specs))
	for _, s := range specs {
		out = append(out, s.ToolInfo())
	}
	return out
}
