package http

import (
	"net/http"

	"github.com/aistack/controlpanel/internal/domain/lifecycle"
	"github.com/gin-gonic/gin"
)

// ActionRequest is the body of a lifecycle call.
type ActionRequest struct {
	Action string `json:"action"`
}

func (h *Handlers) bindAction(c *gin.Context) (lifecycle.Action, bool) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.failBody(c, err)
		return "", false
	}
	action, err := lifecycle.ParseAction(req.Action)
	if err != nil {
		h.fail(c, http.StatusBadRequest, err)
		return "", false
	}
	return action, true
}

// ServiceAction applies start, stop or restart to one service
func (h *Handlers) ServiceAction(c *gin.Context) {
	action, ok := h.bindAction(c)
	if !ok {
		return
	}

	result, err := h.lifecycle.ApplyService(c.Request.Context(), action, c.Param("id"))
	if err != nil {
		h.failFor(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// StackAction applies an action to every service in a stack
func (h *Handlers) StackAction(c *gin.Context) {
	action, ok := h.bindAction(c)
	if !ok {
		return
	}

	results, err := h.lifecycle.ApplyStack(c.Request.Context(), action, c.Param("id"))
	if err != nil {
		h.failFor(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
