package validator

import (
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Rules is the allowed chart grammar. A YAML file may override any field.
type Rules struct {
	AllowedMarks      []string `yaml:"allowed_marks"`
	RequiredTopLevel  []string `yaml:"required_top_level"`
	RequiredEncodings []string `yaml:"encoding_required_fields"`
	ForbiddenKeys     []string `yaml:"forbidden_keys"`
	MaxPreviewRows    int      `yaml:"max_preview_rows"`
	MaxRenderRows     int      `yaml:"max_render_rows"`
}

func DefaultRules() Rules {
	return Rules{
		AllowedMarks:      []string{"line", "bar", "area", "point"},
		RequiredTopLevel:  []string{"$schema", "data"},
		RequiredEncodings: []string{"x", "y"},
		ForbiddenKeys:     []string{"usermeta", "signals"},
		MaxPreviewRows:    50,
		MaxRenderRows:     5000,
	}
}

// LoadRules reads a YAML rules file and fills unset fields from DefaultRules.
func LoadRules(fs afero.Fs, path string) (Rules, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return Rules{}, fmt.Errorf("read validator rules: %w", err)
	}
	var rules Rules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse validator rules: %w", err)
	}
	return rules.withDefaults(), nil
}

func (r Rules) withDefaults() Rules {
	def := DefaultRules()
	if len(r.AllowedMarks) == 0 {
		r.AllowedMarks = def.AllowedMarks
	}
	if r.RequiredTopLevel == nil {
		r.RequiredTopLevel = def.RequiredTopLevel
	}
	if len(r.RequiredEncodings) == 0 {
		r.RequiredEncodings = def.RequiredEncodings
	}
	if r.ForbiddenKeys == nil {
		r.ForbiddenKeys = def.ForbiddenKeys
	}
	if r.MaxPreviewRows <= 0 {
		r.MaxPreviewRows = def.MaxPreviewRows
	}
	if r.MaxRenderRows <= 0 {
		r.MaxRenderRows = def.MaxRenderRows
	}
	return r
}

func (r Rules) markAllowed(mark string) bool {
	for _, m := range r.AllowedMarks {
		if m == mark {
			return true
		}
	}
	return false
}
