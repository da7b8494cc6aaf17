package docker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aistack/controlpanel/internal/infrastructure/resilience"
	"github.com/aistack/controlpanel/internal/providers/httpclient"
	"github.com/aistack/controlpanel/internal/shared/upstream"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

// ErrNotFound is returned when the engine has no container by that name.
var ErrNotFound = errors.New("container not found")

// baseURL is ignored by the unix dialer but resty needs a host.
const baseURL = "http://docker"

// The engine is polled on every status refresh, so a stopped daemon is
// retried sooner than the model backends.
const engineCoolDown = 5 * time.Second

// ContainerState is the slice of an inspect reply the control plane reports.
type ContainerState struct {
	Status    string
	Running   bool
	Health    string
	StartedAt time.Time
}

type inspectReply struct {
	State struct {
		Status    string    `json:"Status"`
		Running   bool      `json:"Running"`
		StartedAt time.Time `json:"StartedAt"`
		Health    *struct {
			Status string `json:"Status"`
		} `json:"Health"`
	} `json:"State"`
}

// Client queries the Docker Engine API.
type Client struct {
	http *httpclient.Client
}

// New connects to the engine through its unix socket.
func New(socket string, timeout time.Duration) *Client {
	return NewFromHTTP(httpclient.New(httpclient.Options{
		Name:       "Docker",
		BaseURL:    baseURL,
		Timeout:    timeout,
		UnixSocket: socket,
		Breaker:    &resilience.Settings{CoolDown: engineCoolDown},
	}))
}

// NewFromHTTP wraps an already configured backend client.
func NewFromHTTP(client *httpclient.Client) *Client {
	return &Client{http: client}
}

// HTTP exposes the underlying backend client.
func (c *Client) HTTP() *httpclient.Client {
	return c.http
}

// Inspect returns the runtime state of a container.
func (c *Client) Inspect(ctx context.Context, container string) (ContainerState, error) {
	var reply inspectReply
	_, err := c.http.Do(ctx, "inspect", func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&reply).Get("/containers/" + url.PathEscape(container) + "/json")
	})
	if err != nil {
		return ContainerState{}, c.classify(container, err)
	}

	state := ContainerState{
		Status:  reply.State.Status,
		Running: reply.State.Running,
	}
	if reply.State.Health != nil {
		state.Health = reply.State.Health.Status
	}
	// The engine reports 0001-01-01T00:00:00Z for containers that never ran.
	if !reply.State.StartedAt.IsZero() {
		state.StartedAt = reply.State.StartedAt
	}
	return state, nil
}

// Logs returns the last lines of a container's combined stdout and stderr,
// each prefixed with its timestamp.
func (c *Client) Logs(ctx context.Context, container string, lines int) (string, error) {
	resp, err := c.http.Do(ctx, "logs", func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParams(map[string]string{
			"stdout":     "1",
			"stderr":     "1",
			"timestamps": "1",
			"tail":       strconv.Itoa(lines),
		}).Get("/containers/" + url.PathEscape(container) + "/logs")
	})
	if err != nil {
		return "", c.classify(container, err)
	}
	return strings.ToValidUTF8(string(Demux(resp.Body())), "\uFFFD"), nil
}

func (c *Client) classify(container string, err error) error {
	if upErr, ok := upstream.AsError(err); ok {
		if upErr.Status == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, container)
		}
		if msg := engineMessage(upErr.Body); msg != "" {
			upErr.Body = msg
		}
	}
	return err
}

// engineMessage pulls "message" out of an engine error body.
func engineMessage(body string) string {
	var reply struct {
		Message string `json:"message"`
	}
	if err := sonic.UnmarshalString(body, &reply); err != nil {
		return ""
	}
	return reply.Message
}
