package upstream

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnavailableKeepsCause(t *testing.T) {
	err := Unavailable("Whisper", errors.New("dial tcp 127.0.0.1:9000: connect: connection refused"))

	assert.True(t, IsUnavailable(err))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, err.Error(), "Whisper")
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "Whisper API error: 500 - boom", (&Error{Service: "Whisper", Status: 500, Body: "boom"}).Error())
	assert.Equal(t, "Ollama API error: 404", (&Error{Service: "Ollama", Status: 404}).Error())
}

func TestAsErrorThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("transcribe: %w", &Error{Service: "Whisper", Status: 422, Body: "bad file"})

	upErr, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, 422, upErr.Status)
	assert.False(t, IsUnavailable(wrapped))

	_, ok = AsError(errors.New("plain"))
	assert.False(t, ok)
}

func TestBoundExpiryIsNotAbandoned(t *testing.T) {
	ctx, cancel := Bound(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	assert.False(t, IsAbandoned(ctx))
}

func TestCallerCancellationIsAbandoned(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := Bound(parent, time.Hour)
	defer cancel()

	assert.False(t, IsAbandoned(ctx))
	cancelParent()
	assert.True(t, IsAbandoned(ctx))

	err := Abandoned(ctx, "Whisper")
	assert.ErrorIs(t, err, ErrAbandoned)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsUnavailable(err))
	assert.Contains(t, err.Error(), "Whisper")
}

func TestCallerDeadlineIsAbandoned(t *testing.T) {
	parent, cancelParent := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancelParent()
	ctx, cancel := Bound(parent, time.Hour)
	defer cancel()
	<-ctx.Done()

	assert.True(t, IsAbandoned(ctx))
}

func TestUnboundedBound(t *testing.T) {
	ctx, cancel := Bound(context.Background(), 0)
	_, hasDeadline := ctx.Deadline()
	assert.False(t, hasDeadline)
	cancel()
	assert.True(t, IsAbandoned(ctx))
}
