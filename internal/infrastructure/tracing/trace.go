package tracing

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aistack/controlpanel/internal/shared/id"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TraceID correlates every span of one inbound request
type TraceID string

type ctxKey struct{}

// position is what a context carries: the trace and the innermost open span.
type position struct {
	trace TraceID
	span  string
}

// Span times one operation. A span is owned by one goroutine until End.
type Span struct {
	tracer    *Tracer
	trace     TraceID
	id        string
	parent    string
	operation string
	start     time.Time
	fields    []zap.Field
	ended     atomic.Bool
}

type record struct {
	span     *Span
	status   int
	err      error
	duration time.Duration
}

// Tracer hands finished spans to a single writer goroutine so request
// handlers never block on log output.
type Tracer struct {
	logger  *zap.Logger
	queue   chan record
	dropped atomic.Uint64
	drained chan struct{}

	mu     sync.RWMutex
	closed bool
}

const queueSize = 1024

// New starts a tracer writing spans to logger.
func New(logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		logger:  logger.Named("trace"),
		queue:   make(chan record, queueSize),
		drained: make(chan struct{}),
	}
	go t.write()
	return t
}

// Start opens a span under whatever trace ctx carries, minting a trace when
// there is none, and returns a context positioned inside the new span.
func (t *Tracer) Start(ctx context.Context, operation string) (context.Context, *Span) {
	pos, _ := ctx.Value(ctxKey{}).(position)
	if pos.trace == "" {
		pos.trace = TraceID(id.NewTraceID())
	}

	span := &Span{
		tracer:    t,
		trace:     pos.trace,
		id:        id.NewSpanID(),
		parent:    pos.span,
		operation: operation,
		start:     time.Now(),
	}
	return context.WithValue(ctx, ctxKey{}, position{trace: pos.trace, span: span.id}), span
}

// Dropped counts spans discarded because the writer fell behind.
func (t *Tracer) Dropped() uint64 {
	return t.dropped.Load()
}

// Close flushes queued spans and stops the writer. Spans ended afterwards
// are dropped.
func (t *Tracer) Close() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.queue)
	}
	t.mu.Unlock()
	<-t.drained
}

func (t *Tracer) write() {
	defer close(t.drained)
	for rec := range t.queue {
		t.emit(rec)
	}
}

func (t *Tracer) emit(rec record) {
	s := rec.span
	fields := make([]zap.Field, 0, 8+len(s.fields))
	fields = append(fields,
		zap.String("trace_id", string(s.trace)),
		zap.String("span_id", s.id),
		zap.String("operation", s.operation),
		zap.Duration("duration", rec.duration),
	)
	if s.parent != "" {
		fields = append(fields, zap.String("parent_id", s.parent))
	}
	if rec.status != 0 {
		fields = append(fields, zap.Int("status", rec.status))
	}
	fields = append(fields, s.fields...)

	level := zapcore.DebugLevel
	switch {
	case rec.err != nil || rec.status >= 500:
		level = zapcore.ErrorLevel
		if rec.err != nil {
			fields = append(fields, zap.Error(rec.err))
		}
	case rec.status >= 400:
		level = zapcore.WarnLevel
	}
	if ce := t.logger.Check(level, "span"); ce != nil {
		ce.Write(fields...)
	}
}

// Trace returns the trace the span belongs to.
func (s *Span) Trace() TraceID { return s.trace }

// ID returns the span's own identifier.
func (s *Span) ID() string { return s.id }

// Parent returns the enclosing span's ID, empty for a root span.
func (s *Span) Parent() string { return s.parent }

// Annotate attaches a key/value pair written with the span.
func (s *Span) Annotate(key, value string) {
	s.fields = append(s.fields, zap.String(key, value))
}

// End stops the clock and queues the span. status is an HTTP code or 0;
// err marks the span failed. Only the first End counts.
func (s *Span) End(status int, err error) {
	if !s.ended.CompareAndSwap(false, true) {
		return
	}
	rec := record{span: s, status: status, err: err, duration: time.Since(s.start)}

	t := s.tracer
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		t.dropped.Add(1)
		return
	}
	select {
	case t.queue <- rec:
	default:
		t.dropped.Add(1)
	}
}

// TraceIDFrom returns the trace ctx is positioned in, or "".
func TraceIDFrom(ctx context.Context) TraceID {
	pos, _ := ctx.Value(ctxKey{}).(position)
	return pos.trace
}

// ContinueTrace returns a context that joins an existing trace, typically one
// named by a caller's header. Spans started from it share that trace.
func ContinueTrace(ctx context.Context, trace TraceID) context.Context {
	return context.WithValue(ctx, ctxKey{}, position{trace: trace})
}
