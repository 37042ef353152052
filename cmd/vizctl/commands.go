package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"vizpilot/internal/domain"
	"vizpilot/internal/infra/connector"
	"vizpilot/internal/quality"
	"vizpilot/internal/usecase"
	"vizpilot/internal/validator"

	"github.com/spf13/cobra"
)

func (c *cli) newRunCmd() *cobra.Command {
	var (
		prompt         string
		autofix        string
		transformsPath string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Render a chart for a prompt",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(prompt) == "" {
				return fmt.Errorf("--prompt is required")
			}
			method, err := parseAutofixFlag(autofix)
			if err != nil {
				return err
			}
			opts := domain.RequestOptions{Prompt: prompt, AutofixMethod: method}
			if transformsPath != "" {
				if err := c.readJSON(transformsPath, &opts.Transforms); err != nil {
					return err
				}
			}
			a, err := c.buildApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			resp := a.Orchestrator.Render(cmd.Context(), usecase.RenderRequest{Options: opts})
			if err := c.writeJSON(cmd, resp); err != nil {
				return err
			}
			return responseErr(resp)
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "natural language chart request")
	cmd.Flags().StringVar(&autofix, "autofix", "", "remediation when the row cap is exceeded: decimate or aggregate_monthly")
	cmd.Flags().StringVar(&transformsPath, "transforms", "", "JSON file with an array of transforms")
	return cmd
}

func (c *cli) newReplayCmd() *cobra.Command {
	var (
		requestID string
		prompt    string
		autofix   string
		model     string
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run a stored request, optionally with overrides",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(requestID) == "" {
				return fmt.Errorf("--request-id is required")
			}
			method, err := parseAutofixFlag(autofix)
			if err != nil {
				return err
			}
			a, err := c.buildApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			resp := a.Orchestrator.Replay(cmd.Context(), usecase.ReplayRequest{
				RequestID: requestID,
				Overrides: usecase.ReplayOverrides{Prompt: prompt, AutofixMethod: method, Model: model},
			})
			if err := c.writeJSON(cmd, resp); err != nil {
				return err
			}
			return responseErr(resp)
		},
	}
	cmd.Flags().StringVar(&requestID, "request-id", "", "request to replay")
	cmd.Flags().StringVar(&prompt, "prompt", "", "replacement prompt")
	cmd.Flags().StringVar(&autofix, "autofix", "", "replacement autofix method")
	cmd.Flags().StringVar(&model, "model", "", "model override for the language model calls")
	return cmd
}

func (c *cli) newValidateCmd() *cobra.Command {
	var (
		specPath  string
		columns   []string
		rulesPath string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a Vega-Lite spec against table columns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if specPath == "" {
				return fmt.Errorf("--spec is required")
			}
			var spec domain.ChartSpec
			if err := c.readJSON(specPath, &spec); err != nil {
				return err
			}
			rules := validator.DefaultRules()
			if rulesPath != "" {
				var err error
				if rules, err = validator.LoadRules(c.fs, rulesPath); err != nil {
					return err
				}
			}
			clean, res := validator.New(rules).Validate(cmd.Context(), spec, columns)
			if err := c.writeJSON(cmd, map[string]any{"validation": res, "spec": clean}); err != nil {
				return err
			}
			if !res.OK {
				return exitError{msg: fmt.Sprintf("spec has %d validation errors", len(res.Errors))}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&specPath, "spec", "", "spec JSON file")
	cmd.Flags().StringSliceVar(&columns, "columns", []string{domain.DateColumn}, "available table columns")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "YAML grammar rules file")
	return cmd
}

func (c *cli) newQualityCmd() *cobra.Command {
	var (
		csvPath string
		metrics []string
		maxRows int
		autofix string
	)
	cmd := &cobra.Command{
		Use:   "quality",
		Short: "Run the quality checks on a CSV table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if csvPath == "" {
				return fmt.Errorf("--csv is required")
			}
			method, err := parseAutofixFlag(autofix)
			if err != nil {
				return err
			}
			f, err := c.fs.Open(csvPath)
			if err != nil {
				return fmt.Errorf("open %s: %w", csvPath, err)
			}
			table, err := connector.ReadCSV(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(csvPath), err)
			}

			limits := domain.DefaultQualityLimits()
			if maxRows > 0 {
				limits.MaxRenderRows = maxRows
			}
			engine := quality.NewEngine(limits)
			report := engine.Evaluate(table, metrics)
			out := map[string]any{"report": report}
			if method != "" && report.ExceedsRenderCap {
				fixed, action, err := engine.Autofix(table, method)
				if err != nil {
					return err
				}
				report.AppliedAction = action
				out["report"] = report
				out["after"] = engine.Evaluate(fixed, metrics)
			}
			if err := c.writeJSON(cmd, out); err != nil {
				return err
			}
			if report.Verdict == domain.VerdictFail {
				return exitError{msg: "quality check failed"}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV file with a date column")
	cmd.Flags().StringSliceVar(&metrics, "metrics", nil, "metric columns to check (default all)")
	cmd.Flags().IntVar(&maxRows, "max-rows", 0, "render cap override")
	cmd.Flags().StringVar(&autofix, "autofix", "", "apply decimate or aggregate_monthly when over the cap")
	return cmd
}
