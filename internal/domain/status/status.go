package status

import (
	"context"
	"errors"
	"time"

	"github.com/aistack/controlpanel/internal/domain/directory"
	"github.com/aistack/controlpanel/internal/infrastructure/monitoring"
	"github.com/aistack/controlpanel/internal/providers/docker"
	"github.com/aistack/controlpanel/internal/shared/upstream"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RuntimeState is the normalized state of a backend.
type RuntimeState string

const (
	StateRunning  RuntimeState = "running"
	StateStopped  RuntimeState = "stopped"
	StateNotFound RuntimeState = "not_found"
	StateError    RuntimeState = "error"
)

// ServiceStatus is a point-in-time reading of one backend.
type ServiceStatus struct {
	State   RuntimeState `json:"status"`
	Running bool         `json:"running"`
	// ContainerStatus is the engine's own word for the state, e.g. "exited".
	ContainerStatus string     `json:"container_status,omitempty"`
	Health          *string    `json:"health"`
	StartedAt       *time.Time `json:"started_at"`
	Error           string     `json:"error,omitempty"`
}

// ServiceView merges a descriptor with its status.
type ServiceView struct {
	directory.Service
	ServiceStatus
}

// StackStatus is the status of every service in one stack.
type StackStatus struct {
	Name     string                 `json:"name"`
	Icon     string                 `json:"icon"`
	Services map[string]ServiceView `json:"services"`
}

// Aggregated maps stack ids to their status.
type Aggregated map[string]StackStatus

// Prober reads a container's runtime state.
type Prober interface {
	Inspect(ctx context.Context, container string) (docker.ContainerState, error)
}

const maxConcurrentProbes = 8

// Aggregator probes every service in the directory.
type Aggregator struct {
	dir     *directory.Directory
	prober  Prober
	logger  *zap.Logger
	metrics *monitoring.Metrics
	timeout time.Duration
}

// NewAggregator creates a status aggregator.
func NewAggregator(dir *directory.Directory, prober Prober, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		dir:     dir,
		prober:  prober,
		logger:  logger,
		timeout: 10 * time.Second,
	}
}

// WithMetrics attaches probe counters.
func (a *Aggregator) WithMetrics(metrics *monitoring.Metrics) *Aggregator {
	a.metrics = metrics
	return a
}

// WithTimeout bounds each probe.
func (a *Aggregator) WithTimeout(timeout time.Duration) *Aggregator {
	a.timeout = timeout
	return a
}

// Aggregate probes all services concurrently. It always returns an entry for
// every configured stack and service; probe failures degrade only the
// service they belong to.
func (a *Aggregator) Aggregate(ctx context.Context) Aggregated {
	stacks := a.dir.Stacks()

	type slot struct {
		stack string
		view  ServiceView
	}
	var slots []slot
	for _, stack := range stacks {
		for _, svc := range stack.Services {
			slots = append(slots, slot{stack: stack.ID, view: ServiceView{Service: svc}})
		}
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentProbes)
	for i := range slots {
		g.Go(func() error {
			slots[i].view.ServiceStatus = a.Probe(ctx, slots[i].view.Service)
			return nil
		})
	}
	_ = g.Wait()

	out := make(Aggregated, len(stacks))
	for _, stack := range stacks {
		out[stack.ID] = StackStatus{
			Name:     stack.Name,
			Icon:     stack.Icon,
			Services: make(map[string]ServiceView, len(stack.Services)),
		}
	}
	for _, s := range slots {
		out[s.stack].Services[s.view.ID] = s.view
	}
	return out
}

// Probe reads one service's status. It never fails: a missing container is
// not_found and any other fault is error with the fault message.
func (a *Aggregator) Probe(ctx context.Context, svc directory.Service) ServiceStatus {
	// An engine slower than the probe timeout is at fault; a caller that
	// hangs up is not.
	ctx, cancel := upstream.Bound(ctx, a.timeout)
	defer cancel()

	state, err := a.prober.Inspect(ctx, svc.Backend)
	status := normalize(state, err)
	if err != nil && status.State == StateError && !errors.Is(err, upstream.ErrAbandoned) {
		a.logger.Warn("probe failed",
			zap.String("service", svc.ID),
			zap.String("container", svc.Backend),
			zap.Error(err),
		)
	}
	a.metrics.RecordProbe(svc.ID, string(status.State))
	return status
}

func normalize(state docker.ContainerState, err error) ServiceStatus {
	switch {
	case errors.Is(err, docker.ErrNotFound):
		return ServiceStatus{State: StateNotFound}
	case err != nil:
		return ServiceStatus{State: StateError, Error: err.Error()}
	}

	status := ServiceStatus{
		State:           StateStopped,
		Running:         state.Running,
		ContainerStatus: state.Status,
	}
	if state.Running {
		status.State = StateRunning
	}
	if state.Health != "" {
		health := state.Health
		status.Health = &health
	}
	if !state.StartedAt.IsZero() {
		started := state.StartedAt
		status.StartedAt = &started
	}
	return status
}
