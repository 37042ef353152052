package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	LLMProvider    string
	LLMModel       string
	IntentLLMModel string
	GeminiAPIKey   string
	OpenAIAPIKey   string
	OpenAIBaseURL  string

	MaxRenderRows        int
	PreviewRows          int
	MaxNaNRatio          float64
	OutlierIQRMultiplier float64

	FetchTimeoutSeconds      int
	GenerationTimeoutSeconds int
	RequestTimeoutSeconds    int

	ConnectorProvider        string
	YahooBaseURL             string
	CSVDataDir               string
	ConnectorCacheSize       int
	ConnectorCacheTTLSeconds int

	StoreBackend string
	PostgresDSN  string
	SQLitePath   string
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3Bucket     string
	S3Region     string
	S3UseSSL     bool

	APIKeys  []string
	MockAuth bool

	RateLimitPerMinute  int
	RateLimitFailClosed bool
	RateLimitMaxKeys    int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ValidatorRulesPath string
	PolicyBundlePath   string
}

// Load reads an optional .env file and then the environment. Variables already
// set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}
	return FromEnv(), nil
}

func FromEnv() Config {
	return Config{
		HTTPAddr:                 envDefault("HTTP_ADDR", ":8080"),
		LogLevel:                 envDefault("LOG_LEVEL", "info"),
		LogFormat:                envDefault("LOG_FORMAT", "json"),
		LLMProvider:              envDefault("LLM_PROVIDER", "offline"),
		LLMModel:                 os.Getenv("LLM_MODEL"),
		IntentLLMModel:           os.Getenv("INTENT_LLM_MODEL"),
		GeminiAPIKey:             os.Getenv("GEMINI_API_KEY"),
		OpenAIAPIKey:             os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:            os.Getenv("OPENAI_BASE_URL"),
		MaxRenderRows:            envIntDefault("MAX_RENDER_ROWS", 5000),
		PreviewRows:              envIntDefault("PREVIEW_ROWS", 50),
		MaxNaNRatio:              envFloatDefault("MAX_NAN_RATIO", 0.2),
		OutlierIQRMultiplier:     envFloatDefault("OUTLIER_IQR_MULTIPLIER", 3.0),
		FetchTimeoutSeconds:      envIntDefault("FETCH_TIMEOUT_SECONDS", 10),
		GenerationTimeoutSeconds: envIntDefault("GENERATION_TIMEOUT_SECONDS", 30),
		RequestTimeoutSeconds:    envIntDefault("REQUEST_TIMEOUT_SECONDS", 90),
		ConnectorProvider:        envDefault("CONNECTOR_PROVIDER", "fixture"),
		YahooBaseURL:             os.Getenv("YAHOO_BASE_URL"),
		CSVDataDir:               os.Getenv("CSV_DATA_DIR"),
		ConnectorCacheSize:       envIntDefault("CONNECTOR_CACHE_SIZE", 256),
		ConnectorCacheTTLSeconds: envIntDefault("CONNECTOR_CACHE_TTL_SECONDS", 300),
		StoreBackend:             envDefault("STORE_BACKEND", "memory"),
		PostgresDSN:              os.Getenv("POSTGRES_DSN"),
		SQLitePath:               os.Getenv("SQLITE_PATH"),
		S3Endpoint:               os.Getenv("S3_ENDPOINT"),
		S3AccessKey:              os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:              os.Getenv("S3_SECRET_KEY"),
		S3Bucket:                 os.Getenv("S3_BUCKET"),
		S3Region:                 os.Getenv("S3_REGION"),
		S3UseSSL:                 envBoolDefault("S3_USE_SSL", false),
		APIKeys:                  envList("API_KEYS"),
		MockAuth:                 envBoolDefault("MOCK_AUTH", true),
		RateLimitPerMinute:       envIntDefault("RATE_LIMIT_PER_MINUTE", 60),
		RateLimitFailClosed:      envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RateLimitMaxKeys:         envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  envNonNegative("REDIS_DB", 0),
		ValidatorRulesPath:       os.Getenv("VALIDATOR_RULES_PATH"),
		PolicyBundlePath:         os.Getenv("POLICY_BUNDLE_PATH"),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envNonNegative(key string, def int) int {
	parsed, err := strconv.Atoi(os.Getenv(key))
	if err != nil || parsed < 0 {
		return def
	}
	return parsed
}

func envFloatDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c Config) FetchTimeout() time.Duration      { return seconds(c.FetchTimeoutSeconds) }
func (c Config) GenerationTimeout() time.Duration { return seconds(c.GenerationTimeoutSeconds) }
func (c Config) RequestTimeout() time.Duration    { return seconds(c.RequestTimeoutSeconds) }
func (c Config) ConnectorCacheTTL() time.Duration { return seconds(c.ConnectorCacheTTLSeconds) }
