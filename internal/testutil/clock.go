package testutil

import (
	"fmt"
	"sync"
	"time"
)

// StubClock returns a fixed time. Safe for concurrent use.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStubClock creates a StubClock set to the given time.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock set to 2026-03-02 10:30:00 UTC.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StubIDGenerator returns sequential IDs: "id-1", "id-2", etc.
type StubIDGenerator struct {
	mu      sync.Mutex
	counter int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("id-%d", g.counter)
}

// StubCodeGenerator hands out queued codes in order, then falls back to
// "<prefix><n>" codes built from the company name.
type StubCodeGenerator struct {
	mu      sync.Mutex
	queued  []string
	counter int
	calls   int
}

// NewStubCodeGenerator creates a generator that first returns codes.
func NewStubCodeGenerator(codes ...string) *StubCodeGenerator {
	return &StubCodeGenerator{queued: codes}
}

func (g *StubCodeGenerator) New(companyName string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if len(g.queued) > 0 {
		code := g.queued[0]
		g.queued = g.queued[1:]
		return code
	}
	g.counter++
	return fmt.Sprintf("%s%03d", prefixOf(companyName), g.counter)
}

// Calls returns how many codes have been requested.
func (g *StubCodeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func prefixOf(name string) string {
	r := []rune(name)
	if len(r) > 4 {
		r = r[:4]
	}
	return string(r)
}
