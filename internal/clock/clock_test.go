package clock

import (
	"testing"
	"time"
)

func TestRemainingClampsToZero(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	deadline := m.Now().Add(5 * time.Second)

	if got := Remaining(m, deadline); got != 5*time.Second {
		t.Fatalf("Remaining = %v, want 5s", got)
	}

	m.Advance(6 * time.Second)
	if got := Remaining(m, deadline); got != 0 {
		t.Fatalf("Remaining after deadline = %v, want 0", got)
	}
}

func TestManualAdvance(t *testing.T) {
	m := NewManual(time.Unix(100, 0))
	got := m.Advance(10 * time.Second)
	want := time.Unix(110, 0)
	if !got.Equal(want) {
		t.Fatalf("Advance = %v, want %v", got, want)
	}
}
