package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNextIDIsUniqueAndNonZero(t *testing.T) {
	seen := map[uint32]bool{}
	for i := 0; i < 100; i++ {
		id := NextID()
		if id == 0 {
			t.Fatalf("NextID returned 0")
		}
		if seen[id] {
			t.Fatalf("NextID returned %d twice", id)
		}
		seen[id] = true
	}
}

func TestNewInstanceID(t *testing.T) {
	a, b := NewInstanceID(), NewInstanceID()
	if a == uuid.Nil || b == uuid.Nil || a == b {
		t.Fatalf("unexpected instance ids %s %s", a, b)
	}
}

func TestSetLogLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", "warn", "error"} {
		if err := SetLogLevel(lvl); err != nil {
			t.Errorf("SetLogLevel(%q): %v", lvl, err)
		}
	}
	if err := SetLogLevel("chatty"); err == nil {
		t.Errorf("expected an error for an unknown level")
	}
	_ = SetLogLevel("info")
}

func TestErrorsWrap(t *testing.T) {
	err := fmt.Errorf("subpass 4 of %q: %w", "deferred", ErrConfiguration)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("wrapped error lost its kind")
	}
	if errors.Is(err, ErrUsage) {
		t.Fatalf("wrapped error matched the wrong kind")
	}
}

func TestClock(t *testing.T) {
	c := NewClock()
	c.Update()
	if c.Elapsed() != 0 {
		t.Fatalf("unstarted clock advanced")
	}
	c.Start()
	time.Sleep(2 * time.Millisecond)
	c.Stop()
	if c.Running() {
		t.Fatalf("clock still running after Stop")
	}
	if c.Elapsed() < 2*time.Millisecond {
		t.Fatalf("elapsed %s too small", c.Elapsed())
	}
}

func TestFrameMetricsAverage(t *testing.T) {
	m := NewFrameMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(4 * time.Millisecond)
	}
	if got := m.FrameTime(); got < 3.99 || got > 4.01 {
		t.Fatalf("FrameTime = %f, want 4", got)
	}
}
