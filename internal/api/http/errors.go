package http

import (
	"errors"
	"net/http"

	"github.com/aistack/controlpanel/internal/domain/directory"
	"github.com/aistack/controlpanel/internal/domain/lifecycle"
	"github.com/aistack/controlpanel/internal/domain/tools"
	"github.com/aistack/controlpanel/internal/infrastructure/tracing"
	"github.com/aistack/controlpanel/internal/providers/docker"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, directory.ErrNotFound),
		errors.Is(err, docker.ErrNotFound),
		errors.Is(err, tools.ErrUnknownTool):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrUnknownAction),
		errors.Is(err, tools.ErrInvalidArguments):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error body and records the error on the request.
func (h *Handlers) fail(c *gin.Context, code int, err error) {
	_ = c.Error(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("trace_id", string(tracing.TraceIDFrom(c.Request.Context()))),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}

func (h *Handlers) failFor(c *gin.Context, err error) {
	h.fail(c, statusFor(err), err)
}

// failBody answers a body that could not be read or decoded: 413 when the
// size cap cut it off, 400 otherwise.
func (h *Handlers) failBody(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.fail(c, http.StatusRequestEntityTooLarge, errors.New("request body too large"))
		return
	}
	h.fail(c, http.StatusBadRequest, errors.New("invalid request body"))
}
