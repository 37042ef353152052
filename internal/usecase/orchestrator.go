package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vizpilot/internal/domain"
	"vizpilot/internal/quality"
	"vizpilot/internal/validator"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type PipelineConfig struct {
	PreviewRows       int
	FetchTimeout      time.Duration
	GenerationTimeout time.Duration
	RequestTimeout    time.Duration
	SaveTimeout       time.Duration
	// Connectors is advertised to the generator as the available data sources.
	Connectors []string
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		PreviewRows:       50,
		FetchTimeout:      10 * time.Second,
		GenerationTimeout: 30 * time.Second,
		RequestTimeout:    90 * time.Second,
		SaveTimeout:       5 * time.Second,
	}
}

// Orchestrator sequences fetch, quality, normalization, generation and
// validation for one request and owns that request's provenance.
type Orchestrator struct {
	Intent    IntentParser
	Generator SpecGenerator
	Connector Connector
	Records   RecordRepository
	Quality   *quality.Engine
	Validator *validator.Validator
	Metrics   Metrics
	Logger    logrus.FieldLogger
	Config    PipelineConfig

	Now   func() time.Time
	NewID func() string

	once sync.Once
}

type RenderRequest struct {
	// RequestID is used as the pipeline request id when set, so a transport
	// correlation id and the stored record share one identifier.
	RequestID       string
	Options         domain.RequestOptions
	ParentRequestID string
}

type ReplayOverrides struct {
	Prompt        string
	Transforms    []domain.TransformRequest
	AutofixMethod domain.RemediationAction
	Model         string
}

type ReplayRequest struct {
	RequestID string
	// NewRequestID names the replayed run; empty means generate one.
	NewRequestID string
	Overrides    ReplayOverrides
}

// Render runs the pipeline for one prompt. It always returns a response; failures
// are reported in its error shape.
func (o *Orchestrator) Render(ctx context.Context, req RenderRequest) (resp domain.Response) {
	o.once.Do(o.defaults)
	started := o.Now()
	requestID := req.RequestID
	if requestID == "" {
		requestID = o.NewID()
	}
	log := o.Logger.WithField("request_id", requestID)

	r := newRun(o, requestID, req, log)
	defer func() {
		if p := recover(); p != nil {
			log.WithField("panic", p).Error("pipeline panicked")
			resp = r.fail(domain.NewPipelineError(domain.CodeInternal,
				fmt.Sprintf("internal error, correlation id %s", requestID), nil, nil))
		}
		o.Metrics.ObserveRequest(string(resp.Status), o.Now().Sub(started))
		o.persist(ctx, req, resp, log)
	}()

	reqCtx, cancel := context.WithTimeout(ctx, o.Config.RequestTimeout)
	defer cancel()
	return r.execute(reqCtx)
}

// Replay re-runs a stored request with optional overrides. The new provenance
// points back at the original request.
func (o *Orchestrator) Replay(ctx context.Context, req ReplayRequest) domain.Response {
	o.once.Do(o.defaults)
	rec, err := o.History(ctx, req.RequestID)
	if err != nil {
		code, msg := domain.CodeInternal, "failed to load request record"
		if errors.Is(err, domain.ErrNotFound) {
			code, msg = domain.CodeNotFound, fmt.Sprintf("request_id %s not found", req.RequestID)
		}
		o.Logger.WithFields(logrus.Fields{"request_id": req.RequestID, "error_code": code}).WithError(err).Warn("replay lookup failed")
		return domain.Response{
			RequestID: req.RequestID,
			Status:    domain.StatusError,
			ErrorCode: code,
			Message:   msg,
		}
	}

	opts := rec.Options
	if req.Overrides.Prompt != "" {
		opts.Prompt = req.Overrides.Prompt
	}
	if req.Overrides.Transforms != nil {
		opts.Transforms = req.Overrides.Transforms
	}
	if req.Overrides.AutofixMethod != "" {
		opts.AutofixMethod = req.Overrides.AutofixMethod
	}
	if req.Overrides.Model != "" {
		opts.Model = req.Overrides.Model
	}
	return o.Render(ctx, RenderRequest{RequestID: req.NewRequestID, Options: opts, ParentRequestID: rec.RequestID})
}

func (o *Orchestrator) History(ctx context.Context, requestID string) (domain.RequestRecord, error) {
	if o.Records == nil {
		return domain.RequestRecord{}, domain.ErrNotFound
	}
	return o.Records.Load(ctx, requestID)
}

// persist writes the record best-effort; failures are logged and never returned.
func (o *Orchestrator) persist(ctx context.Context, req RenderRequest, resp domain.Response, log logrus.FieldLogger) {
	if o.Records == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.Config.SaveTimeout)
	defer cancel()
	rec := domain.RequestRecord{
		RequestID:       resp.RequestID,
		ParentRequestID: req.ParentRequestID,
		Options:         req.Options,
		Status:          resp.Status,
		ErrorCode:       resp.ErrorCode,
		Response:        resp,
		CreatedAt:       o.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := o.Records.Save(saveCtx, rec); err != nil {
		log.WithError(err).Warn("persist request record failed")
	}
}

func (o *Orchestrator) defaults() {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	if o.Metrics == nil {
		o.Metrics = noopMetrics{}
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.Quality == nil {
		o.Quality = quality.NewEngine(domain.DefaultQualityLimits())
	}
	if o.Validator == nil {
		o.Validator = validator.New(validator.DefaultRules())
	}
	def := DefaultPipelineConfig()
	if o.Config.PreviewRows <= 0 {
		o.Config.PreviewRows = def.PreviewRows
	}
	if o.Config.FetchTimeout <= 0 {
		o.Config.FetchTimeout = def.FetchTimeout
	}
	if o.Config.GenerationTimeout <= 0 {
		o.Config.GenerationTimeout = def.GenerationTimeout
	}
	if o.Config.RequestTimeout <= 0 {
		o.Config.RequestTimeout = def.RequestTimeout
	}
	if o.Config.SaveTimeout <= 0 {
		o.Config.SaveTimeout = def.SaveTimeout
	}
}
