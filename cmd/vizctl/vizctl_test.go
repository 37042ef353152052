package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"vizpilot/internal/config"
	"vizpilot/internal/domain"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func offlineLoader() (config.Config, error) {
	cfg := config.FromEnv()
	cfg.LLMProvider = "offline"
	cfg.ConnectorProvider = "fixture"
	cfg.StoreBackend = "memory"
	cfg.ValidatorRulesPath = ""
	cfg.PolicyBundlePath = ""
	return cfg, nil
}

func execute(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(fs, offlineLoader)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunWritesResponseFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := execute(t, fs, "run", "--prompt", "Show AAPL adjusted close since 2024-01-01", "--out", "/tmp/resp.json")
	require.NoError(t, err)

	raw, err := afero.ReadFile(fs, "/tmp/resp.json")
	require.NoError(t, err)
	var resp domain.Response
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Equal(t, domain.StatusSuccess, resp.Status)
	require.NotEmpty(t, resp.DataPreview)
	require.Contains(t, resp.DataPreview[0], "Adj_Close")
}

func TestRunClarifyFails(t *testing.T) {
	out, err := execute(t, afero.NewMemMapFs(), "run", "--prompt", "show growth of apple")
	require.Error(t, err)
	require.Contains(t, out, `"clarify_needed"`)
}

func TestRunRequiresPrompt(t *testing.T) {
	_, err := execute(t, afero.NewMemMapFs(), "run")
	require.ErrorContains(t, err, "--prompt")
	_, err = execute(t, afero.NewMemMapFs(), "run", "-p", "Plot TSLA", "--autofix", "smooth")
	require.ErrorContains(t, err, "--autofix")
}

func TestValidateCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	good := `{"$schema":"https://vega.github.io/schema/vega-lite/v5.json","data":{"values":[]},"mark":"line",
	  "encoding":{"x":{"field":"date","type":"temporal"},"y":{"field":"Close","type":"quantitative"}}}`
	require.NoError(t, afero.WriteFile(fs, "good.json", []byte(good), 0o644))
	out, err := execute(t, fs, "validate", "--spec", "good.json", "--columns", "date,Close")
	require.NoError(t, err)
	require.Contains(t, out, `"ok": true`)

	bad := strings.Replace(good, `"field":"Close"`, `"field":"close_price"`, 1)
	require.NoError(t, afero.WriteFile(fs, "bad.json", []byte(bad), 0o644))
	out, err = execute(t, fs, "validate", "--spec", "bad.json", "--columns", "date,Close")
	require.Error(t, err)
	require.Contains(t, out, domain.ValidationFieldMissing)
}

func TestQualityCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	var b strings.Builder
	b.WriteString("date,Close\n")
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		fmt.Fprintf(&b, "%s,%d\n", start.AddDate(0, 0, i).Format(domain.DateLayout), 100+i)
	}
	require.NoError(t, afero.WriteFile(fs, "/data/prices.csv", []byte(b.String()), 0o644))

	out, err := execute(t, fs, "quality", "--csv", "/data/prices.csv", "--max-rows", "50", "--autofix", "aggregate_monthly")
	require.NoError(t, err)
	var parsed struct {
		Report domain.QualityReport `json:"report"`
		After  domain.QualityReport `json:"after"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	require.True(t, parsed.Report.ExceedsRenderCap)
	require.Equal(t, 120, parsed.Report.RowCount)
	require.Equal(t, 4, parsed.After.RowCount)
	require.NotEmpty(t, parsed.Report.AppliedAction)
}

func TestRunExitCode(t *testing.T) {
	require.Equal(t, 1, run(context.Background(), []string{"validate"}, afero.NewMemMapFs()))
}
