package docker

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aistack/controlpanel/internal/providers/httpclient"
	"github.com/aistack/controlpanel/internal/shared/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewFromHTTP(httpclient.New(httpclient.Options{Name: "Docker", BaseURL: srv.URL, Timeout: time.Second}))
}

func frame(stream byte, payload string) []byte {
	header := make([]byte, headerLen)
	header[0] = stream
	binary.BigEndian.PutUint32(header[4:], uint32(len(payload)))
	return append(header, payload...)
}

func TestInspectRunning(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/containers/whisper-rocm/json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"State":{"Status":"running","Running":true,
			"StartedAt":"2026-10-18T09:30:00.123456789Z","Health":{"Status":"healthy"}}}`))
	})

	state, err := client.Inspect(context.Background(), "whisper-rocm")
	require.NoError(t, err)
	assert.True(t, state.Running)
	assert.Equal(t, "running", state.Status)
	assert.Equal(t, "healthy", state.Health)
	assert.Equal(t, 2026, state.StartedAt.Year())
}

func TestInspectNeverStarted(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"State":{"Status":"created","Running":false,"StartedAt":"0001-01-01T00:00:00Z"}}`))
	})

	state, err := client.Inspect(context.Background(), "comfyui")
	require.NoError(t, err)
	assert.False(t, state.Running)
	assert.Empty(t, state.Health)
	assert.True(t, state.StartedAt.IsZero())
}

func TestInspectNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"No such container: ghost"}`))
	})

	_, err := client.Inspect(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "ghost")
}

func TestInspectEngineError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"layer does not exist"}`))
	})

	_, err := client.Inspect(context.Background(), "ollama-rocm")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	upErr, ok := upstream.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "layer does not exist", upErr.Body)
}

func TestEngineMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"plain", `{"message":"layer does not exist"}`, "layer does not exist"},
		{"escaped quotes", `{"message":"invalid reference format: \"ollama:\""}`, `invalid reference format: "ollama:"`},
		{"message not first", `{"code":1,"message":"conflict"}`, "conflict"},
		{"not json", "Internal Server Error", ""},
		{"no message", `{"error":"x"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engineMessage(tt.body))
		})
	}
}

func TestInspectEngineUnreachable(t *testing.T) {
	client := New("/nonexistent/docker.sock", time.Second)

	_, err := client.Inspect(context.Background(), "ollama-rocm")
	assert.True(t, upstream.IsUnavailable(err))
}

func TestLogsDemuxed(t *testing.T) {
	var body bytes.Buffer
	body.Write(frame(1, "2026-10-18T09:30:00Z loading model\n"))
	body.Write(frame(2, "2026-10-18T09:30:01Z warning: slow disk\n"))

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/containers/ollama-rocm/logs", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("tail"))
		assert.Equal(t, "1", r.URL.Query().Get("timestamps"))
		assert.Equal(t, "1", r.URL.Query().Get("stderr"))
		_, _ = w.Write(body.Bytes())
	})

	logs, err := client.Logs(context.Background(), "ollama-rocm", 25)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-18T09:30:00Z loading model\n2026-10-18T09:30:01Z warning: slow disk\n", logs)
}

func TestLogsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := client.Logs(context.Background(), "ghost", 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDemuxRawStream(t *testing.T) {
	raw := []byte("2026-10-18T09:30:00Z tty output\n")
	assert.Equal(t, raw, Demux(raw))
	assert.Empty(t, Demux(nil))
}

func TestDemuxTruncatedFrame(t *testing.T) {
	stream := frame(1, "complete\n")
	stream = append(stream, frame(1, "partial line")[:headerLen+4]...)

	assert.Equal(t, "complete\npart", string(Demux(stream)))
}
