package traffic

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// TestRequestCount_Empty verifies that RequestCount returns 0 when no
// requests have been recorded within the time window.
func TestRequestCount_Empty(t *testing.T) {
	Reset()
	if n := RequestCount(1 * time.Minute); n != 0 {
		t.Errorf("RequestCount() = %d, want 0", n)
	}
}

// TestRecordSuccess_AndRequestCount verifies that RecordSuccess correctly
// increments request count tracked by RequestCount.
func TestRecordSuccess_AndRequestCount(t *testing.T) {
	Reset()
	RecordSuccess()
	RecordSuccess()
	if n := RequestCount(1 * time.Minute); n != 2 {
		t.Errorf("RequestCount() = %d, want 2", n)
	}
}

// TestRecordDenied_AndCounts verifies that RecordDenied increments both
// DenialCount and RequestCount.
func TestRecordDenied_AndCounts(t *testing.T) {
	Reset()
	RecordDenied()
	RecordDenied()
	if n := DenialCount(1 * time.Minute); n != 2 {
		t.Errorf("DenialCount() = %d, want 2", n)
	}
	if n := RequestCount(1 * time.Minute); n != 2 {
		t.Errorf("RequestCount() = %d, want 2", n)
	}
}

// TestErrorRate_DeniedExcluded verifies that denials do not count toward the
// error-rate denominator.
func TestErrorRate_DeniedExcluded(t *testing.T) {
	Reset()
	RecordSuccess()
	RecordSuccess()
	RecordError()
	RecordDenied()
	errors, total := ErrorRate(1 * time.Minute)
	if errors != 1 || total != 3 {
		t.Errorf("ErrorRate() = (%d, %d), want (1, 3)", errors, total)
	}
}

// TestTracker_Window verifies that only events inside the window are counted.
func TestTracker_Window(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	tr := NewTracker(5*time.Minute, clock.now)

	tr.Record(Failure)
	clock.advance(90 * time.Second)
	tr.Record(Success)

	if n := tr.RequestCount(time.Minute); n != 1 {
		t.Errorf("RequestCount(1m) = %d, want 1", n)
	}
	if n := tr.RequestCount(2 * time.Minute); n != 2 {
		t.Errorf("RequestCount(2m) = %d, want 2", n)
	}
}

// TestTracker_Prunes verifies that events past retention are dropped on Record.
func TestTracker_Prunes(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	tr := NewTracker(time.Minute, clock.now)

	tr.Record(Success)
	tr.Record(Success)
	clock.advance(2 * time.Minute)
	tr.Record(Denied)

	tr.mu.Lock()
	n := len(tr.events)
	tr.mu.Unlock()
	if n != 1 {
		t.Errorf("retained events = %d, want 1", n)
	}
}

// TestTracker_Reset verifies Reset clears all outcomes.
func TestTracker_Reset(t *testing.T) {
	tr := NewTracker(time.Minute, time.Now)
	tr.Record(Failure)
	tr.Reset()
	if e, total := tr.ErrorRate(time.Minute); e != 0 || total != 0 {
		t.Errorf("ErrorRate() after Reset = (%d, %d)", e, total)
	}
}
