package http

import (
	"context"
	"net/http"
	"time"

	"vizpilot/internal/config"
	"vizpilot/internal/domain"
	"vizpilot/internal/infra/ratelimit"
	"vizpilot/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// VizService is the request pipeline as seen by the handlers.
type VizService interface {
	Render(ctx context.Context, req usecase.RenderRequest) domain.Response
	Replay(ctx context.Context, req usecase.ReplayRequest) domain.Response
	History(ctx context.Context, requestID string) (domain.RequestRecord, error)
}

type Server struct {
	cfg     config.Config
	r       *gin.Engine
	viz     VizService
	metrics http.Handler
	log     logrus.FieldLogger
	mode    string
	newID   func() string

	apiKeys map[string]struct{}

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

type ServerDeps struct {
	Viz         VizService
	Metrics     http.Handler
	Logger      logrus.FieldLogger
	RateLimiter domain.RateLimiter
	// StoreMode is reported by /health, e.g. "memory" or "postgres".
	StoreMode string
	// NewID generates correlation ids; defaults to uuid.NewString.
	NewID func() string
}

func NewServer(cfg config.Config, viz VizService, metrics http.Handler) *Server {
	return NewServerWithDeps(cfg, ServerDeps{Viz: viz, Metrics: metrics})
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	s := &Server{
		cfg:     cfg,
		r:       gin.New(),
		viz:     deps.Viz,
		metrics: deps.Metrics,
		log:     deps.Logger,
		mode:    deps.StoreMode,
		newID:   deps.NewID,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	s.r.Use(s.assignRequestID, gin.CustomRecovery(s.recoverPanic))

	if s.mode == "" {
		s.mode = cfg.StoreBackend
	}
	s.initAuth()
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initAuth() {
	s.apiKeys = make(map[string]struct{}, len(s.cfg.APIKeys))
	for _, k := range s.cfg.APIKeys {
		s.apiKeys[k] = struct{}{}
	}
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitPerMinute > 0 {
		if s.cfg.RedisAddr != "" {
			limiter, err := ratelimit.NewRedisLimiter(ratelimit.RedisConfig{
				Addr:     s.cfg.RedisAddr,
				Password: s.cfg.RedisPassword,
				DB:       s.cfg.RedisDB,
			})
			if err == nil {
				s.rateLimiter = limiter
			} else {
				s.log.WithError(err).Warn("redis rate limiter unavailable, using memory limiter")
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitPerMinute
	s.rateLimitWindow = time.Minute
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "store": s.mode})
	})
	if s.metrics != nil {
		s.r.GET("/metrics", gin.WrapH(s.metrics))
	}

	api := s.r.Group("/api/viz", s.requireAPIKey, s.enforceRateLimit)
	{
		api.POST("", s.handleViz)
		api.POST("/autofix", s.handleAutofix)
		api.POST("/replay", s.handleReplay)
		api.GET("/history/:request_id", s.handleHistory)
	}

	s.r.NoRoute(s.handleNoRoute)
}

// Handler exposes the engine for tests and for embedding in another server.
func (s *Server) Handler() http.Handler { return s.r }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if s.rateLimiter != nil {
		_ = s.rateLimiter.Close()
	}
	return nil
}
