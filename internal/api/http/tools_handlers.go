package http

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/aistack/controlpanel/internal/domain/tools"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
)

// MCPSettings describes how a tool-call client launches the stdio server
// exposing the same tools.
type MCPSettings struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
}

// ListTools returns every tool definition
func (h *Handlers) ListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": tools.Definitions()})
}

// CallTool runs one tool with the request body as its arguments. A tool that
// ran but failed still answers 200 with isError set.
func (h *Handlers) CallTool(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.failBody(c, err)
		return
	}

	out, err := h.tools.Call(c.Request.Context(), c.Param("name"), body)
	if err != nil {
		h.failFor(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type toolSummary struct {
	Name        tools.Name `json:"name"`
	Description string     `json:"description"`
}

type mcpServer struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

// MCP returns client configuration snippets for the tool server
func (h *Handlers) MCP(c *gin.Context) {
	defs := tools.Definitions()
	summaries := make([]toolSummary, len(defs))
	for i, d := range defs {
		summaries[i] = toolSummary{Name: d.Name, Description: d.Description}
	}

	desktop, err := h.desktopConfig()
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":  h.mcp.Name,
		"tools": summaries,
		"env":   h.mcp.Env,
		"configs": gin.H{
			"claude_desktop": desktop,
			"mcpm_command":   h.mcpmCommand(),
		},
	})
}

func (h *Handlers) desktopConfig() (string, error) {
	cfg := map[string]map[string]mcpServer{
		"mcpServers": {
			h.mcp.Name: {Command: h.mcp.Command, Args: h.mcp.Args, Env: h.mcp.Env},
		},
	}
	data, err := sonic.ConfigStd.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("render desktop config: %w", err)
	}
	return string(data), nil
}

func (h *Handlers) mcpmCommand() string {
	env := make([]string, 0, len(h.mcp.Env))
	for _, k := range slices.Sorted(maps.Keys(h.mcp.Env)) {
		env = append(env, k+"="+h.mcp.Env[k])
	}
	return fmt.Sprintf("mcpm new %s --type stdio --command %q --args %q --env %q --force",
		h.mcp.Name, h.mcp.Command, strings.Join(h.mcp.Args, " "), strings.Join(env, ","))
}
