package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aistack/controlpanel/internal/domain/directory"
	"github.com/aistack/controlpanel/internal/infrastructure/monitoring"
	"github.com/aistack/controlpanel/internal/shared/process"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotFound      = directory.ErrNotFound
	ErrUnknownAction = errors.New("unknown action")
)

// Action is a lifecycle command.
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionStart, ActionStop, ActionRestart:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// composeArgs maps an action onto docker compose's verbs. start is "up -d" so
// it succeeds on a service that is already running.
func (a Action) composeArgs() []string {
	switch a {
	case ActionStart:
		return []string{"up", "-d"}
	case ActionStop:
		return []string{"stop"}
	case ActionRestart:
		return []string{"restart"}
	}
	panic("lifecycle: unhandled action " + string(a))
}

// Result is the outcome of one compose invocation. A failed command is a
// Result with Success false, never an error.
type Result struct {
	Success  bool   `json:"success"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"returncode"`
}

// Controller runs compose commands against directory services.
type Controller struct {
	dir         *directory.Directory
	runner      process.Runner
	composeFile string
	logger      *zap.Logger
	metrics     *monitoring.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewController creates a lifecycle controller.
func NewController(dir *directory.Directory, runner process.Runner, composeFile string, logger *zap.Logger) *Controller {
	return &Controller{
		dir:         dir,
		runner:      runner,
		composeFile: composeFile,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
	}
}

// WithMetrics attaches lifecycle counters.
func (c *Controller) WithMetrics(metrics *monitoring.Metrics) *Controller {
	c.metrics = metrics
	return c
}

// ApplyService runs action against one service. Unknown ids return
// ErrNotFound without running anything.
func (c *Controller) ApplyService(ctx context.Context, action Action, serviceID string) (Result, error) {
	svc, err := c.dir.Service(serviceID)
	if err != nil {
		return Result{}, err
	}
	return c.apply(ctx, action, svc), nil
}

// ApplyStack runs action against every service of a stack, concurrently and
// independently. The map holds one Result per member.
func (c *Controller) ApplyStack(ctx context.Context, action Action, stackID string) (map[string]Result, error) {
	stack, err := c.dir.Stack(stackID)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(stack.Services))
	var g errgroup.Group
	for i, svc := range stack.Services {
		g.Go(func() error {
			results[i] = c.apply(ctx, action, svc)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]Result, len(stack.Services))
	for i, svc := range stack.Services {
		out[svc.ID] = results[i]
	}
	return out, nil
}

func (c *Controller) apply(ctx context.Context, action Action, svc directory.Service) Result {
	// A half-finished compose command can leave containers recreated but not
	// started, so a caller hanging up never kills one.
	ctx = context.WithoutCancel(ctx)

	lock := c.lockFor(svc.ID)
	lock.Lock()
	defer lock.Unlock()

	args := append([]string{"compose", "-f", c.composeFile}, action.composeArgs()...)
	args = append(args, svc.ComposeService)

	out, err := c.runner.Run(ctx, "docker", args...)
	result := Result{
		Success:  err == nil && out.ExitCode == 0,
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		ExitCode: out.ExitCode,
	}
	if err != nil && !process.IsExitError(err) {
		// docker missing or not startable: report it like a failed command.
		result.ExitCode = -1
		if result.Stderr == "" {
			result.Stderr = err.Error()
		} else {
			result.Stderr += "\n" + err.Error()
		}
	}

	fields := []zap.Field{
		zap.String("service", svc.ID),
		zap.String("action", string(action)),
		zap.Int("exit_code", result.ExitCode),
	}
	if result.Success {
		c.logger.Info("lifecycle command succeeded", fields...)
	} else {
		c.logger.Warn("lifecycle command failed", append(fields, zap.String("stderr", strings.TrimSpace(result.Stderr)))...)
	}
	c.metrics.RecordLifecycle(svc.ID, string(action), result.Success)

	return result
}

// lockFor returns the mutex serializing commands on one service.
func (c *Controller) lockFor(serviceID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[serviceID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[serviceID] = lock
	}
	return lock
}
