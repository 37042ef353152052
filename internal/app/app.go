// Package app assembles the pipeline and its collaborators from configuration.
package app

import (
	"context"
	"fmt"
	"strings"

	"vizpilot/internal/config"
	"vizpilot/internal/domain"
	"vizpilot/internal/infra/archive"
	"vizpilot/internal/infra/connector"
	"vizpilot/internal/infra/db"
	"vizpilot/internal/infra/intent"
	"vizpilot/internal/infra/llm"
	"vizpilot/internal/infra/memstore"
	"vizpilot/internal/infra/metrics"
	"vizpilot/internal/infra/policyopa"
	"vizpilot/internal/infra/specgen"
	"vizpilot/internal/infra/sqlitestore"
	"vizpilot/internal/quality"
	"vizpilot/internal/usecase"
	"vizpilot/internal/validator"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	memoryStoreCapacity = 1000
	policyBundleID      = "charts"
)

type App struct {
	Orchestrator *usecase.Orchestrator
	Metrics      *metrics.Recorder
	Validator    *validator.Validator
	Quality      *quality.Engine
	StoreMode    string

	closers []func() error
}

// Build wires the orchestrator for cfg. Callers must Close the result.
func Build(ctx context.Context, cfg config.Config, fs afero.Fs, log logrus.FieldLogger) (*App, error) {
	a := &App{Metrics: metrics.NewRecorder()}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	client, err := llm.New(ctx, llm.Config{
		Provider:      cfg.LLMProvider,
		Model:         cfg.LLMModel,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	var (
		parser    usecase.IntentParser  = intent.RuleParser{}
		generator usecase.SpecGenerator = &specgen.TemplateGenerator{}
	)
	if client != nil {
		a.closers = append(a.closers, client.Close)
		intentModel := cfg.IntentLLMModel
		if intentModel == "" {
			intentModel = cfg.LLMModel
		}
		parser = &intent.LLMParser{Client: client, Model: intentModel}
		generator = &specgen.LLMGenerator{Client: client, Model: cfg.LLMModel}
		log.WithField("provider", client.Name()).Info("language model provider selected")
	} else {
		log.Info("offline mode: rule-based intent parser and template spec generator")
	}

	conn, err := connector.New(connector.Config{
		Provider:     cfg.ConnectorProvider,
		YahooBaseURL: cfg.YahooBaseURL,
		CSVDir:       cfg.CSVDataDir,
		CacheSize:    cfg.ConnectorCacheSize,
		CacheTTL:     cfg.ConnectorCacheTTL(),
	}, fs, nil)
	if err != nil {
		return nil, fmt.Errorf("init connector: %w", err)
	}

	records, mode, err := a.openRecords(cfg, log)
	if err != nil {
		return nil, err
	}
	a.StoreMode = mode

	rules := validator.DefaultRules()
	if cfg.ValidatorRulesPath != "" {
		rules, err = validator.LoadRules(fs, cfg.ValidatorRulesPath)
		if err != nil {
			return nil, err
		}
	}
	rules.MaxRenderRows = cfg.MaxRenderRows
	rules.MaxPreviewRows = cfg.PreviewRows
	var opts []validator.Option
	if cfg.PolicyBundlePath != "" {
		engine, err := policyopa.NewEngine(ctx, cfg.PolicyBundlePath, policyBundleID)
		if err != nil {
			return nil, fmt.Errorf("load chart policy: %w", err)
		}
		log.WithField("bundle_hash", engine.BundleHash()).Info("chart policy loaded")
		opts = append(opts, validator.WithPolicy(engine))
	}
	a.Validator = validator.New(rules, opts...)

	a.Quality = quality.NewEngine(domain.QualityLimits{
		MaxRenderRows:        cfg.MaxRenderRows,
		MaxNullRatio:         cfg.MaxNaNRatio,
		OutlierIQRMultiplier: cfg.OutlierIQRMultiplier,
	})

	a.Orchestrator = &usecase.Orchestrator{
		Intent:    parser,
		Generator: generator,
		Connector: conn,
		Records:   records,
		Quality:   a.Quality,
		Validator: a.Validator,
		Metrics:   a.Metrics,
		Logger:    log,
		Config: usecase.PipelineConfig{
			PreviewRows:       cfg.PreviewRows,
			FetchTimeout:      cfg.FetchTimeout(),
			GenerationTimeout: cfg.GenerationTimeout(),
			RequestTimeout:    cfg.RequestTimeout(),
			Connectors:        []string{conn.Name()},
		},
	}
	ok = true
	return a, nil
}

func (a *App) openRecords(cfg config.Config, log logrus.FieldLogger) (usecase.RecordRepository, string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	switch mode {
	case "", "memory":
		store, err := memstore.New(memoryStoreCapacity)
		return store, "memory", err
	case "postgres":
		store, err := db.NewStore(cfg.PostgresDSN, log)
		if err != nil {
			return nil, "", fmt.Errorf("init postgres store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if store.DB == nil {
			return nil, "no-db", nil
		}
		return store.Requests, "postgres", nil
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, "", fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
		store, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, "", err
		}
		a.closers = append(a.closers, store.Close)
		return store, "sqlite", nil
	case "s3":
		store, err := archive.NewS3Store(archive.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			return nil, "", fmt.Errorf("init s3 store: %w", err)
		}
		return store, "s3", nil
	default:
		return nil, "", fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

// Close releases stores and clients in reverse order of creation.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
