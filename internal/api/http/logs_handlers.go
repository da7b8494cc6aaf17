package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aistack/controlpanel/internal/providers/docker"
	"github.com/gin-gonic/gin"
)

const (
	defaultLogLines = 100
	maxLogLines     = 10000
)

// Logs returns the tail of a service's container log, with timestamps
func (h *Handlers) Logs(c *gin.Context) {
	id := c.Param("id")

	lines := defaultLogLines
	if raw := c.Query("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.fail(c, http.StatusBadRequest, fmt.Errorf("invalid lines %q", raw))
			return
		}
		lines = min(n, maxLogLines)
	}

	svc, err := h.dir.Service(id)
	if err != nil {
		h.fail(c, http.StatusNotFound, fmt.Errorf("service %s not found", id))
		return
	}

	logs, err := h.logs.Logs(c.Request.Context(), svc.Backend, lines)
	switch {
	case errors.Is(err, docker.ErrNotFound):
		h.fail(c, http.StatusNotFound, fmt.Errorf("container %s not found", svc.Backend))
		return
	case err != nil:
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
