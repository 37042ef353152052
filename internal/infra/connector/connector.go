package connector

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"vizpilot/internal/usecase"

	"github.com/spf13/afero"
)

type Config struct {
	Provider     string
	YahooBaseURL string
	CSVDir       string
	CacheSize    int
	CacheTTL     time.Duration
}

// New builds the configured connector wrapped in the fetch cache. A zero
// CacheTTL disables caching.
func New(cfg Config, fs afero.Fs, client *http.Client) (usecase.Connector, error) {
	var base usecase.Connector
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "fixture":
		base = NewFixture()
	case "yahoo":
		base = NewYahoo(cfg.YahooBaseURL, client)
	case "csv":
		if cfg.CSVDir == "" {
			return nil, fmt.Errorf("CSV_DATA_DIR is required for the csv connector")
		}
		base = NewCSV(fs, cfg.CSVDir)
	default:
		return nil, fmt.Errorf("unknown CONNECTOR_PROVIDER %q", cfg.Provider)
	}
	if cfg.CacheTTL <= 0 {
		return base, nil
	}
	return NewCached(base, cfg.CacheSize, cfg.CacheTTL)
}
