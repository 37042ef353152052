package usecase

import (
	"context"
	"errors"
	"fmt"

	"vizpilot/internal/domain"
	"vizpilot/internal/normalizer"

	"github.com/sirupsen/logrus"
)

// run is the state of one request moving through the pipeline.
type run struct {
	o     *Orchestrator
	req   RenderRequest
	log   logrus.FieldLogger
	state domain.Stage
	prov  *domain.ProvenanceRecord

	task    domain.Task
	table   domain.Table
	report  *domain.QualityReport
	derived []string
	budget  retryBudget
}

func newRun(o *Orchestrator, requestID string, req RenderRequest, log logrus.FieldLogger) *run {
	return &run{
		o:     o,
		req:   req,
		log:   log,
		state: domain.StageStart,
		prov: &domain.ProvenanceRecord{
			RequestID:       requestID,
			ParentRequestID: req.ParentRequestID,
			Sources:         []domain.SourceRecord{},
			Transforms:      []domain.TransformRecord{},
			GenerationCalls: []domain.GenerationCall{},
			Stages:          []domain.StageTransition{},
			StartedAt:       o.Now().UTC(),
		},
	}
}

func (r *run) transition(to domain.Stage, note string) {
	r.prov.Stages = append(r.prov.Stages, domain.StageTransition{
		From: r.state,
		To:   to,
		At:   r.o.Now().UTC(),
		Note: note,
	})
	r.log.WithFields(logrus.Fields{"stage": to, "from": r.state}).Debug("stage transition")
	r.state = to
}

func (r *run) execute(ctx context.Context) domain.Response {
	if perr := r.parse(ctx); perr != nil {
		return r.fail(perr)
	}
	if r.task.NeedsClarification() {
		r.transition(domain.StageClarify, "intent ambiguous")
		r.o.Metrics.IntentParse("clarify")
		return r.finish(domain.Response{
			Status:          domain.StatusClarifyNeeded,
			ClarifyQuestion: r.task.Clarify,
		})
	}
	if perr := r.fetch(ctx); perr != nil {
		return r.fail(perr)
	}
	if perr := r.checkQuality(); perr != nil {
		return r.fail(perr)
	}
	if perr := r.normalize(); perr != nil {
		return r.fail(perr)
	}
	return r.generateAndValidate(ctx)
}

// parse asks the intent capability for a task, retrying once with the parse
// failure as corrective context.
func (r *run) parse(ctx context.Context) *domain.PipelineError {
	r.transition(domain.StageParsing, "")
	req := IntentRequest{Prompt: r.req.Options.Prompt, Model: r.req.Options.Model}
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		stageCtx, cancel := context.WithTimeout(ctx, r.o.Config.GenerationTimeout)
		res, err := callWithContext(stageCtx, func(c context.Context) (IntentResult, error) {
			return r.o.Intent.Parse(c, req)
		})
		cancel()
		r.recordCall("intent_parser", attempt, res.Call, err)
		if err == nil {
			if verr := res.Task.Validate(); verr != nil {
				err = fmt.Errorf("%w: %v", domain.ErrIntentParse, verr)
			}
		}
		if err == nil {
			r.task = res.Task
			if len(r.req.Options.Transforms) > 0 {
				r.task.Transforms = append([]domain.TransformRequest(nil), r.req.Options.Transforms...)
			}
			if !r.task.NeedsClarification() {
				r.o.Metrics.IntentParse("success")
			}
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || !errors.Is(err, domain.ErrIntentParse) {
			break
		}
		req.PriorError = err.Error()
		r.log.WithFields(logrus.Fields{"stage": domain.StageParsing, "attempt": attempt}).WithError(err).Info("intent parse retry")
	}
	r.o.Metrics.IntentParse("fail")
	if perr := r.timeout(ctx); perr != nil {
		return perr
	}
	var details map[string]any
	if errors.Is(lastErr, context.DeadlineExceeded) {
		details = map[string]any{"timeout": r.o.Config.GenerationTimeout.String()}
	}
	return domain.NewPipelineError(domain.CodeIntentParseFail, "could not parse the request into a chart task", details, lastErr)
}

func (r *run) fetch(ctx context.Context) *domain.PipelineError {
	r.transition(domain.StageFetching, "")
	ids := r.task.Identifiers()
	if len(ids) == 0 {
		return domain.NewPipelineError(domain.CodeNoData, "no symbol or dataset_key found in parsed intent", nil, domain.ErrNoData)
	}

	tables := make([]domain.Table, 0, len(ids))
	for _, id := range ids {
		stageCtx, cancel := context.WithTimeout(ctx, r.o.Config.FetchTimeout)
		res, err := callWithContext(stageCtx, func(c context.Context) (FetchResult, error) {
			return r.o.Connector.Fetch(c, FetchRequest{Identifier: id, Range: r.task.TimeRange, Interval: r.task.Interval})
		})
		cancel()
		if err != nil {
			r.prov.Sources = append(r.prov.Sources, domain.SourceRecord{
				Connector:  r.o.Connector.Name(),
				Identifier: id,
				FetchedAt:  r.o.Now().UTC(),
				Status:     "error",
			})
			if perr := r.timeout(ctx); perr != nil {
				return perr
			}
			details := map[string]any{"identifier": id}
			if errors.Is(err, context.DeadlineExceeded) {
				details["timeout"] = r.o.Config.FetchTimeout.String()
			}
			return domain.NewPipelineError(domain.CodeNoData, fmt.Sprintf("no data for %s: %v", id, err), details, err)
		}
		src := res.Source
		src.RowCount = res.Table.Len()
		r.prov.Sources = append(r.prov.Sources, src)
		if res.Table.Empty() {
			r.o.Metrics.DataQualityError("empty_data")
			return domain.NewPipelineError(domain.CodeNoData, fmt.Sprintf("connector returned no rows for %s", id), map[string]any{"identifier": id}, domain.ErrNoData)
		}
		tables = append(tables, res.Table)
	}

	table, err := normalizer.JoinSeries(ids, tables)
	if err != nil {
		return domain.NewPipelineError(domain.CodeBadData, err.Error(), nil, err)
	}
	if table.Empty() {
		return domain.NewPipelineError(domain.CodeNoData, fmt.Sprintf("series %v share no dates", ids), nil, domain.ErrNoData)
	}
	r.table = table
	return nil
}

// checkQuality applies the quality precedence: a failing report is terminal even
// when autofix was requested, then the render cap is enforced or repaired by the
// requested autofix method.
func (r *run) checkQuality() *domain.PipelineError {
	r.transition(domain.StageQualityCheck, "")
	metrics := metricColumns(r.task, r.table)
	report := r.o.Quality.Evaluate(r.table, metrics)
	r.report = &report
	r.o.Metrics.DataRows(r.table.Len())

	if !report.OK() {
		r.o.Metrics.DataQualityError("bad_data")
		return domain.NewPipelineError(domain.CodeBadData, qualityMessage(report), map[string]any{"quality": report}, domain.ErrBadData)
	}

	method := r.req.Options.AutofixMethod
	if method == "" || method == domain.RemediationNone {
		if report.ExceedsRenderCap {
			r.o.Metrics.DataQualityError("too_many_points")
			return domain.NewPipelineError(domain.CodeTooManyPoints,
				fmt.Sprintf("table has %d rows which exceeds the render cap %d; request autofix with one of %v", report.RowCount, r.o.Quality.Limits().MaxRenderRows, report.SuggestedActions),
				map[string]any{"quality": report}, nil)
		}
		return nil
	}

	fixed, action, err := r.o.Quality.Autofix(r.table, method)
	if err != nil {
		return domain.NewPipelineError(domain.CodeBadData, fmt.Sprintf("autofix %s failed: %v", method, err), nil, err)
	}
	r.prov.Transforms = append(r.prov.Transforms, domain.TransformRecord{
		Name:   "autofix",
		Params: map[string]any{"method": string(method)},
		Output: action,
	})
	r.o.Metrics.TransformApplied("autofix_" + string(method))
	r.table = fixed

	after := r.o.Quality.Evaluate(r.table, metrics)
	after.AppliedAction = action
	r.report = &after
	r.o.Metrics.DataRows(r.table.Len())
	if !after.OK() {
		return domain.NewPipelineError(domain.CodeBadData, qualityMessage(after), map[string]any{"quality": after}, domain.ErrBadData)
	}
	if after.ExceedsRenderCap {
		return domain.NewPipelineError(domain.CodeTooManyPoints,
			fmt.Sprintf("table still has %d rows after %s", after.RowCount, action),
			map[string]any{"quality": after}, nil)
	}
	return nil
}

func (r *run) normalize() *domain.PipelineError {
	r.transition(domain.StageNormalizing, "")
	reqs := expandTransforms(r.task, r.table)
	out, records, err := normalizer.ApplyAll(r.table, reqs)
	if err != nil {
		code := domain.CodeBadData
		if errors.Is(err, domain.ErrInvalidTransform) {
			code = domain.CodeInvalidTransform
		}
		return domain.NewPipelineError(code, fmt.Sprintf("applying transforms failed: %v", err), nil, err)
	}
	for _, rec := range records {
		r.prov.Transforms = append(r.prov.Transforms, rec)
		r.o.Metrics.TransformApplied(rec.Name)
		if rec.Output != "" {
			r.derived = append(r.derived, rec.Output)
		}
	}
	r.table = out
	return nil
}

func (r *run) generateAndValidate(ctx context.Context) domain.Response {
	preview := r.table.Records(r.o.Config.PreviewRows)
	genReq := GenerationRequest{
		Task:          r.task,
		Columns:       append([]string(nil), r.table.Columns...),
		Preview:       preview,
		DerivedFields: r.derived,
		Connectors:    r.o.Config.Connectors,
		Model:         r.req.Options.Model,
	}

	for attempt := 1; ; attempt++ {
		r.transition(domain.StageGenerating, fmt.Sprintf("attempt %d", attempt))
		started := r.o.Now()
		stageCtx, cancel := context.WithTimeout(ctx, r.o.Config.GenerationTimeout)
		gen, err := callWithContext(stageCtx, func(c context.Context) (Generation, error) {
			return r.o.Generator.Generate(c, genReq)
		})
		cancel()
		r.recordCall("spec_generator", attempt, gen.Call, err)
		if err != nil {
			r.o.Metrics.SpecGeneration("fail", r.o.Now().Sub(started))
			if perr := r.timeout(ctx); perr != nil {
				return r.fail(perr)
			}
			return r.fail(domain.NewPipelineError(domain.CodeVegaInvalid, fmt.Sprintf("spec generation failed: %v", err), nil, err))
		}
		r.o.Metrics.SpecGeneration("success", r.o.Now().Sub(started))
		r.absorbGeneration(gen)

		spec := gen.Spec.Clone()
		if spec == nil {
			spec = domain.ChartSpec{}
		}
		spec["data"] = map[string]any{"values": previewValues(preview)}

		r.transition(domain.StageValidating, "")
		clean, res := r.o.Validator.Validate(ctx, spec, r.table.Columns)
		validation := res.Clone()
		r.prov.Validation = &validation

		if res.OK {
			r.transition(domain.StageDone, "")
			caption := gen.Explanation
			if caption == "" {
				caption = r.task.Goal
			}
			return r.finish(domain.Response{
				Status:      domain.StatusSuccess,
				Spec:        clean,
				DataPreview: preview,
				Caption:     caption,
				Explanation: gen.Explanation,
				Notes:       gen.Notes,
				Quality:     r.report,
			})
		}

		for _, e := range res.Errors {
			r.o.Metrics.ValidationFailure(e.Code)
		}
		if !r.budget.take() {
			return r.fail(domain.NewPipelineError(domain.CodeVegaInvalid, "chart spec failed validation after corrective retry",
				map[string]any{"validator_errors": res.Errors, "attempts": attempt}, nil))
		}
		r.transition(domain.StageRetrying, fmt.Sprintf("%d validation errors", len(res.Errors)))
		r.log.WithFields(logrus.Fields{"stage": domain.StageRetrying, "attempt": attempt}).Info("corrective retry")
		genReq.PriorErrors = res.ErrorMessages()
	}
}

func (r *run) absorbGeneration(gen Generation) {
	if len(gen.ConnectorsRequired) > 0 {
		r.prov.ConnectorsRequired = gen.ConnectorsRequired
	}
	if len(gen.APIKeysRequired) > 0 {
		r.prov.APIKeysRequired = gen.APIKeysRequired
	}
	if gen.Notes != "" {
		r.prov.Notes = gen.Notes
	}
}

func (r *run) recordCall(role string, attempt int, meta CallMeta, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.prov.GenerationCalls = append(r.prov.GenerationCalls, domain.GenerationCall{
		Role:        role,
		Model:       meta.Model,
		ContentHash: meta.ContentHash,
		ResponseID:  meta.ResponseID,
		Attempt:     attempt,
		Outcome:     outcome,
		At:          r.o.Now().UTC(),
	})
}

// timeout reports the aggregate deadline as its own failure.
func (r *run) timeout(ctx context.Context) *domain.PipelineError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewPipelineError(domain.CodeTimeout,
			fmt.Sprintf("request exceeded %s during %s", r.o.Config.RequestTimeout, r.state),
			map[string]any{"stage": string(r.state)}, ctx.Err())
	}
	if ctx.Err() != nil {
		return domain.NewPipelineError(domain.CodeInternal, "request cancelled", map[string]any{"stage": string(r.state)}, ctx.Err())
	}
	return nil
}

func (r *run) fail(perr *domain.PipelineError) domain.Response {
	if r.state != domain.StageFailed {
		r.transition(domain.StageFailed, string(perr.Code))
	}
	r.log.WithFields(logrus.Fields{"stage": domain.StageFailed, "error_code": perr.Code}).WithError(perr).Warn("request failed")
	return r.finish(domain.Response{
		Status:    domain.StatusError,
		ErrorCode: perr.Code,
		Message:   perr.Message,
		Details:   perr.Details,
		Quality:   r.report,
	})
}

func (r *run) finish(resp domain.Response) domain.Response {
	r.prov.CompletedAt = r.o.Now().UTC()
	resp.RequestID = r.prov.RequestID
	prov := *r.prov
	resp.Provenance = &prov
	return resp
}

func qualityMessage(report domain.QualityReport) string {
	if len(report.Errors) == 0 {
		return "data quality check failed"
	}
	return "data quality check failed: " + report.Errors[0].Message
}

func previewValues(preview []map[string]any) []any {
	out := make([]any, len(preview))
	for i, row := range preview {
		out[i] = row
	}
	return out
}

// callWithContext runs fn and returns when it finishes or ctx is done, whichever
// comes first. A late result is discarded. A panic in fn is re-raised on the
// calling goroutine.
func callWithContext[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v     T
		err   error
		panic any
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- result{panic: p}
			}
		}()
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()
	select {
	case res := <-ch:
		if res.panic != nil {
			panic(res.panic)
		}
		return res.v, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
