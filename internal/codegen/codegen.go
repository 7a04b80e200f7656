// Package codegen produces the human-readable business identifiers used across
// the portal: request codes, quotation numbers and invoice numbers.
package codegen

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const dayLayout = "20060102"

// Sequence allocates monotonically increasing numbers scoped to a calendar
// day. Implementations must be safe for concurrent use; the database-backed
// implementation survives restarts.
type Sequence interface {
	// NextForDay returns the next number for the given UTC day, starting at 1.
	NextForDay(ctx context.Context, day string) (int, error)
}

// MemorySequence is an in-process Sequence used in tests and single-node
// development setups. Counters reset when the process restarts.
type MemorySequence struct {
	mu       sync.Mutex
	counters map[string]int
}

// NewMemorySequence creates an empty in-memory sequence.
func NewMemorySequence() *MemorySequence {
	return &MemorySequence{counters: make(map[string]int)}
}

// NextForDay returns the next counter value for the day.
func (s *MemorySequence) NextForDay(_ context.Context, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[day]++
	return s.counters[day], nil
}

// RequestCodeGenerator issues request codes of the form SVC-YYYYMMDD-NNNN,
// where NNNN is a zero-padded per-day counter.
type RequestCodeGenerator struct {
	seq Sequence
	now func() time.Time
}

// NewRequestCodeGenerator creates a generator backed by the given sequence.
func NewRequestCodeGenerator(seq Sequence) *RequestCodeGenerator {
	return &RequestCodeGenerator{seq: seq, now: time.Now}
}

// WithClock overrides the time source. Used in tests.
func (g *RequestCodeGenerator) WithClock(now func() time.Time) *RequestCodeGenerator {
	g.now = now
	return g
}

// Next allocates the next request code for the current UTC day.
func (g *RequestCodeGenerator) Next(ctx context.Context) (string, error) {
	day := g.now().UTC().Format(dayLayout)
	n, err := g.seq.NextForDay(ctx, day)
	if err != nil {
		return "", fmt.Errorf("allocate request code: %w", err)
	}
	return fmt.Sprintf("SVC-%s-%04d", day, n), nil
}

// QuotationNumber derives a quotation number from the parent request ID:
// QT-YYYYMMDD-XXXXXXXX, where XXXXXXXX is the uppercased first ID segment.
func QuotationNumber(requestID uuid.UUID, at time.Time) string {
	return refNumber("QT", requestID, at)
}

// InvoiceNumber derives an invoice number from the billed entity's ID:
// INV-YYYYMMDD-XXXXXXXX.
func InvoiceNumber(refID uuid.UUID, at time.Time) string {
	return refNumber("INV", refID, at)
}

func refNumber(prefix string, id uuid.UUID, at time.Time) string {
	short := strings.ToUpper(strings.SplitN(id.String(), "-", 2)[0])
	return fmt.Sprintf("%s-%s-%s", prefix, at.UTC().Format(dayLayout), short)
}
