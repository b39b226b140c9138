package tool

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/chative-shop-assistant/agent/contract"
)

const defaultFunctionDescription = "No description available"

var toolNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// BuildForScope derives the tool schema of every capability visible to scope.
// Malformed descriptors are skipped with a warning.
func BuildForScope(reg *Registry, scope contractx.Scope) []contractx.ToolSpec {
	if reg == nil {
		return nil
	}
	descs := reg.ListForScope(scope)
	specs := make([]contractx.ToolSpec, 0, len(descs))
	for _, d := range descs {
		spec, err := BuildSpec(d)
		if err != nil {
			log.Warn().Err(err).Str("capability", d.Name).Str("scope", string(scope)).Msg("skip capability with malformed schema")
			continue
		}
		specs = append(specs, spec)
	}
	return specs
}

func BuildSpec(d Descriptor) (contractx.ToolSpec, error) {
	name := strings.TrimSpace(d.Name)
	if !toolNamePattern.MatchString(name) {
		return contractx.ToolSpec{}, fmt.Errorf("%w: invalid capability name %q", contractx.ErrValidation, d.Name)
	}

	desc := strings.TrimSpace(d.Description)
	if desc == "" {
		desc = defaultFunctionDescription
	}

	seen := make(map[string]struct{}, len(d.Params))
	params := make([]contractx.ParamSpec, 0, len(d.Params))
	for i, p := range d.Params {
		pname := strings.TrimSpace(p.Name)
		if !toolNamePattern.MatchString(pname) {
			return contractx.ToolSpec{}, fmt.Errorf("%w: invalid parameter #%d name %q", contractx.ErrValidation, i, p.Name)
		}
		if _, dup := seen[pname]; dup {
			return contractx.ToolSpec{}, fmt.Errorf("%w: duplicate parameter %q", contractx.ErrValidation, pname)
		}
		seen[pname] = struct{}{}

		pdesc := strings.TrimSpace(p.Description)
		if pdesc == "" {
			pdesc = fmt.Sprintf("%s parameter of %s", pname, name)
		}
		params = append(params, contractx.ParamSpec{
			Name:        pname,
			Type:        contractx.ParamTypeString,
			Description: pdesc,
			Required:    true,
		})
	}

	return contractx.ToolSpec{
		Name:        name,
		Description: desc,
		Params:      params,
	}, nil
}
