package validator

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestLoadRules_OverridesAndDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/vizpilot/rules.yaml", []byte(`
allowed_marks: [line, bar, rule]
forbidden_keys: [usermeta, signals, params]
max_preview_rows: 20
`), 0o644))

	rules, err := LoadRules(fs, "/etc/vizpilot/rules.yaml")
	require.NoError(t, err)
	require.Equal(t, []string{"line", "bar", "rule"}, rules.AllowedMarks)
	require.Equal(t, []string{"usermeta", "signals", "params"}, rules.ForbiddenKeys)
	require.Equal(t, 20, rules.MaxPreviewRows)
	require.Equal(t, 5000, rules.MaxRenderRows)
	require.Equal(t, []string{"$schema", "data"}, rules.RequiredTopLevel)
}

func TestLoadRules_Missing(t *testing.T) {
	_, err := LoadRules(afero.NewMemMapFs(), "/nope.yaml")
	require.Error(t, err)
}
