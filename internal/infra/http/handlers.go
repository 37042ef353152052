package http

import (
	"errors"
	"net/http"
	"strings"

	"vizpilot/internal/domain"
	"vizpilot/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxPromptLength = 4000

type errorResponse struct {
	RequestID string           `json:"request_id,omitempty"`
	Status    string           `json:"status"`
	Code      domain.ErrorCode `json:"error_code"`
	Message   string           `json:"message"`
	Details   map[string]any   `json:"details,omitempty"`
}

type vizRequest struct {
	Prompt string `json:"prompt"`
}

type autofixOption struct {
	Method string `json:"method"`
}

type autofixRequest struct {
	Prompt     string                    `json:"prompt"`
	Autofix    *autofixOption            `json:"autofix,omitempty"`
	Transforms []domain.TransformRequest `json:"transforms,omitempty"`
}

type replayRequest struct {
	RequestID      string                    `json:"request_id"`
	OverridePrompt string                    `json:"override_prompt,omitempty"`
	Autofix        *autofixOption            `json:"autofix,omitempty"`
	Transforms     []domain.TransformRequest `json:"transforms,omitempty"`
	ModelOverride  string                    `json:"model_override,omitempty"`
}

type historyResponse struct {
	RequestID string               `json:"request_id"`
	Status    string               `json:"status"`
	Record    domain.RequestRecord `json:"record"`
}

func (s *Server) handleViz(c *gin.Context) {
	var req vizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, domain.CodeBadRequest, "invalid json")
		return
	}
	prompt, err := checkPrompt(req.Prompt, true)
	if err != nil {
		writeError(c, err)
		return
	}
	s.log.WithFields(logrus.Fields{"request_id": requestIDFrom(c), "prompt_preview": preview(prompt)}).Info("received viz request")
	resp := s.viz.Render(c.Request.Context(), usecase.RenderRequest{
		RequestID: requestIDFrom(c),
		Options:   domain.RequestOptions{Prompt: prompt},
	})
	writeResponse(c, resp)
}

func (s *Server) handleAutofix(c *gin.Context) {
	var req autofixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, domain.CodeBadRequest, "invalid json")
		return
	}
	prompt, err := checkPrompt(req.Prompt, true)
	if err != nil {
		writeError(c, err)
		return
	}
	method, err := parseAutofix(req.Autofix)
	if err != nil {
		writeError(c, err)
		return
	}
	s.log.WithFields(logrus.Fields{"prompt_preview": preview(prompt), "autofix": method}).Info("received autofix request")
	resp := s.viz.Render(c.Request.Context(), usecase.RenderRequest{
		RequestID: requestIDFrom(c),
		Options: domain.RequestOptions{
			Prompt:        prompt,
			Transforms:    req.Transforms,
			AutofixMethod: method,
		},
	})
	writeResponse(c, resp)
}

func (s *Server) handleReplay(c *gin.Context) {
	var req replayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, domain.CodeBadRequest, "invalid json")
		return
	}
	requestID := strings.TrimSpace(req.RequestID)
	if requestID == "" {
		writeErrorCode(c, http.StatusBadRequest, domain.CodeBadRequest, "request_id is required")
		return
	}
	prompt, err := checkPrompt(req.OverridePrompt, false)
	if err != nil {
		writeError(c, err)
		return
	}
	method, err := parseAutofix(req.Autofix)
	if err != nil {
		writeError(c, err)
		return
	}
	s.log.WithField("request_id", requestID).Info("received replay request")
	resp := s.viz.Replay(c.Request.Context(), usecase.ReplayRequest{
		RequestID:    requestID,
		NewRequestID: requestIDFrom(c),
		Overrides: usecase.ReplayOverrides{
			Prompt:        prompt,
			Transforms:    req.Transforms,
			AutofixMethod: method,
			Model:         strings.TrimSpace(req.ModelOverride),
		},
	})
	writeResponse(c, resp)
}

func (s *Server) handleHistory(c *gin.Context) {
	requestID := c.Param("request_id")
	rec, err := s.viz.History(c.Request.Context(), requestID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{
				RequestID: requestID,
				Status:    string(domain.StatusError),
				Code:      domain.CodeNotFound,
				Message:   "request not found",
			})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, historyResponse{RequestID: requestID, Status: string(domain.StatusSuccess), Record: rec})
}

func (s *Server) handleNoRoute(c *gin.Context) {
	writeErrorCode(c, http.StatusNotFound, domain.CodeNotFound, "route not found")
}

func checkPrompt(raw string, required bool) (string, error) {
	prompt := strings.TrimSpace(raw)
	if prompt == "" && required {
		return "", invalid("prompt is required")
	}
	if len(prompt) > maxPromptLength {
		return "", invalid("prompt is too long")
	}
	return prompt, nil
}

func parseAutofix(opt *autofixOption) (domain.RemediationAction, error) {
	if opt == nil {
		return "", nil
	}
	method, ok := domain.ParseRemediation(strings.TrimSpace(opt.Method))
	if !ok {
		return "", invalid("autofix.method must be decimate or aggregate_monthly")
	}
	if method == domain.RemediationNone {
		return "", nil
	}
	return method, nil
}

func invalid(msg string) error {
	return domain.NewPipelineError(domain.CodeBadRequest, msg, nil, domain.ErrInvalidRequest)
}

func preview(prompt string) string {
	if len(prompt) > 200 {
		return prompt[:200]
	}
	return prompt
}

// statusFor maps a pipeline outcome to an HTTP status. Data and generation
// failures are normal outcomes of the contract and are served with 200.
func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeInternal:
		return http.StatusInternalServerError
	case domain.CodeRateLimit:
		return http.StatusTooManyRequests
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeBadRequest:
		return http.StatusBadRequest
	}
	return http.StatusOK
}

func writeResponse(c *gin.Context, resp domain.Response) {
	if resp.RequestID == "" {
		resp.RequestID = requestIDFrom(c)
	}
	c.JSON(statusFor(resp.ErrorCode), resp)
}

func writeError(c *gin.Context, err error) {
	status, code, message := http.StatusInternalServerError, domain.CodeInternal, "internal server error"
	var perr *domain.PipelineError
	switch {
	case errors.As(err, &perr):
		status, code, message = statusFor(perr.Code), perr.Code, perr.Message
	case errors.Is(err, domain.ErrInvalidRequest):
		status, code, message = http.StatusBadRequest, domain.CodeBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status, code, message = http.StatusNotFound, domain.CodeNotFound, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		status, code, message = http.StatusUnauthorized, domain.CodeUnauthorized, err.Error()
	}
	writeErrorCode(c, status, code, message)
}

func writeErrorCode(c *gin.Context, status int, code domain.ErrorCode, message string) {
	c.JSON(status, errorResponse{
		RequestID: requestIDFrom(c),
		Status:    string(domain.StatusError),
		Code:      code,
		Message:   message,
	})
}
