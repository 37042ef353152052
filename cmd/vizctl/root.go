package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"vizpilot/internal/app"
	"vizpilot/internal/config"
	"vizpilot/internal/domain"
	"vizpilot/internal/infra/logging"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type cli struct {
	fs      afero.Fs
	out     string
	logMode string

	loadConfig func() (config.Config, error)
}

func newRootCmd(fs afero.Fs, load func() (config.Config, error)) *cobra.Command {
	c := &cli{fs: fs, loadConfig: load}
	root := &cobra.Command{
		Use:          "vizctl",
		Short:        "Operate the vizpilot chart pipeline from the command line",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&c.out, "out", "o", "-", "output file, - for stdout")
	root.PersistentFlags().StringVar(&c.logMode, "log-level", "warn", "log level for pipeline logs on stderr")

	root.AddCommand(
		c.newRunCmd(),
		c.newReplayCmd(),
		c.newValidateCmd(),
		c.newQualityCmd(),
	)
	return root
}

func (c *cli) buildApp(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.New(c.logMode, cfg.LogFormat, cmd.ErrOrStderr())
	return app.Build(ctx, cfg, c.fs, logger)
}

// writeJSON writes v as indented JSON to --out.
func (c *cli) writeJSON(cmd *cobra.Command, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	raw = append(raw, '\n')
	if c.out == "" || c.out == "-" {
		_, err = cmd.OutOrStdout().Write(raw)
		return err
	}
	return afero.WriteFile(c.fs, c.out, raw, 0o644)
}

func (c *cli) readJSON(path string, v any) error {
	raw, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func parseAutofixFlag(s string) (domain.RemediationAction, error) {
	method, ok := domain.ParseRemediation(strings.TrimSpace(s))
	if !ok {
		return "", fmt.Errorf("--autofix must be decimate or aggregate_monthly, got %q", s)
	}
	if method == domain.RemediationNone {
		return "", nil
	}
	return method, nil
}

// exitError reports a pipeline outcome that should fail the command after its
// output has been written.
type exitError struct{ msg string }

func (e exitError) Error() string { return e.msg }

func responseErr(resp domain.Response) error {
	switch resp.Status {
	case domain.StatusSuccess:
		return nil
	case domain.StatusClarifyNeeded:
		return exitError{msg: "clarification needed: " + resp.ClarifyQuestion}
	}
	return exitError{msg: fmt.Sprintf("%s: %s", resp.ErrorCode, resp.Message)}
}
