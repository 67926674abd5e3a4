package review

import (
	"fmt"
	"sync"
	"time"

	"github.com/lamp-blog/lamp/internal/content"
)

// DefaultSinkCapacity is the number of failures an ErrorSink keeps when no
// capacity is given.
const DefaultSinkCapacity = 256

// MarkerFailure records a status marker that could not apply a decision.
type MarkerFailure struct {
	EventID   string
	JobID     int64
	Marker    string
	Type      content.Type
	ContentID string
	Attempts  int
	Err       error
	At        time.Time
}

// Error implements error.
func (f MarkerFailure) Error() string {
	return fmt.Sprintf("marker %s failed on %s:%s (job %d, %d attempts): %v",
		f.Marker, f.Type, f.ContentID, f.JobID, f.Attempts, f.Err)
}

// Unwrap returns the marker's error.
func (f MarkerFailure) Unwrap() error {
	return f.Err
}

// ErrorSink keeps the most recent marker failures in a ring buffer.
type ErrorSink struct {
	mu    sync.Mutex
	buf   []MarkerFailure
	next  int
	size  int
	total uint64
}

// NewErrorSink creates a sink holding up to capacity failures.
func NewErrorSink(capacity int) *ErrorSink {
	if capacity <= 0 {
		capacity = DefaultSinkCapacity
	}

	return &ErrorSink{
		buf: make([]MarkerFailure, capacity),
	}
}

// Add records f, evicting the oldest entry when full.
func (s *ErrorSink) Add(f MarkerFailure) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf[s.next] = f
	s.next = (s.next + 1) % len(s.buf)
	if s.size < len(s.buf) {
		s.size++
	}
	s.total++
}

// Recent returns up to n failures, newest first. n <= 0 returns all kept
// failures.
func (s *ErrorSink) Recent(n int) []MarkerFailure {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 || n > s.size {
		n = s.size
	}

	out := make([]MarkerFailure, 0, n)
	for i := 1; i <= n; i++ {
		idx := (s.next - i + len(s.buf)) % len(s.buf)
		out = append(out, s.buf[idx])
	}

	return out
}

// Len returns the number of failures currently kept.
func (s *ErrorSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.size
}

// Total returns the number of failures ever added.
func (s *ErrorSink) Total() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.total
}
