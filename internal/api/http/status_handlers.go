package http

import (
	"net/http"

	"github.com/aistack/controlpanel/internal/domain/status"
	"github.com/aistack/controlpanel/internal/domain/telemetry"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// StatusResponse is the console's dashboard payload.
type StatusResponse struct {
	Services status.Aggregated `json:"services"`
	GPU      telemetry.GPU     `json:"gpu"`
	Host     telemetry.Host    `json:"host"`
}

// Status probes every backend and reads telemetry in parallel. None of the
// sources fail; degraded readings are part of the payload.
func (h *Handlers) Status(c *gin.Context) {
	ctx := c.Request.Context()

	var resp StatusResponse
	var g errgroup.Group
	g.Go(func() error {
		resp.Services = h.status.Aggregate(ctx)
		return nil
	})
	g.Go(func() error {
		resp.GPU = h.telemetry.GPU(ctx)
		return nil
	})
	g.Go(func() error {
		resp.Host = h.telemetry.Host(ctx)
		return nil
	})
	_ = g.Wait()

	c.JSON(http.StatusOK, resp)
}

// GPU returns the accelerator reading alone.
func (h *Handlers) GPU(c *gin.Context) {
	c.JSON(http.StatusOK, h.telemetry.GPU(c.Request.Context()))
}
