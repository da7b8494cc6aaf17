// Package id mints the identifiers the control plane stamps on requests and
// scratch files.
//
// Trace and span IDs are prefixed ULIDs drawn from a monotonic source, so IDs
// minted in the same millisecond still sort in creation order when logs are
// grepped. Scratch names only need to be unique and use random UUIDs.
package id

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	tracePrefix = "trc_"
	spanPrefix  = "spn_"
)

// Source hands out ULIDs. It is safe for concurrent use.
type Source struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewSource returns a Source reading randomness from r.
func NewSource(r io.Reader) *Source {
	return &Source{entropy: ulid.Monotonic(r, 0), now: time.Now}
}

var std = NewSource(rand.Reader)

// Next returns the next ULID.
func (s *Source) Next() ulid.ULID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy)
}

// NewTraceID returns an ID for a request's trace.
func NewTraceID() string {
	return tracePrefix + std.Next().String()
}

// NewSpanID returns an ID for one traced operation.
func NewSpanID() string {
	return spanPrefix + std.Next().String()
}

// NewScratchName returns prefix plus a random suffix, for temporary files.
func NewScratchName(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// Minted reports when a trace or span ID was created.
func Minted(s string) (time.Time, error) {
	if i := strings.IndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	parsed, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
