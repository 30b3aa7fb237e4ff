package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestSuccessFail(t *testing.T) {
	m := New()
	m.RecordSuccess("llm/a", "request")
	m.RecordFailure("llm/a", "request", "rate_limit")
	m.RecordFailure("llm/a", "request", "rate_limit")
	m.RecordFailure("llm/a", "request", "")

	snap, ok := m.SuccessFail("llm/a", "request")
	if !ok {
		t.Fatal("metric not found")
	}
	if snap.Success != 1 || snap.Failures != 3 {
		t.Errorf("got %d/%d, want 1/3", snap.Success, snap.Failures)
	}
	if snap.SuccessRate != 25 {
		t.Errorf("SuccessRate = %v, want 25", snap.SuccessRate)
	}
	if snap.FailureReasons["rate_limit"] != 2 || len(snap.FailureReasons) != 1 {
		t.Errorf("FailureReasons = %v", snap.FailureReasons)
	}

	if _, ok := m.SuccessFail("llm/b", "request"); ok {
		t.Error("unknown metric reported as present")
	}
}

func TestOutcomeAndCounter(t *testing.T) {
	m := New()
	m.RecordOutcome("responder", "outcome", "succeeded")
	m.RecordOutcome("responder", "outcome", "exhausted")
	m.RecordOutcome("responder", "outcome", "succeeded")
	m.AddCounter("llm/a", "output_tokens", 1)
	m.AddCounter("llm/a", "output_tokens", 4)

	o, ok := m.Outcome("responder", "outcome")
	if !ok || o.Total != 3 || o.Outcomes["succeeded"] != 2 || o.LastOutcome != "succeeded" {
		t.Errorf("Outcome = %+v, %v", o, ok)
	}
	if got := m.Counter("llm/a", "output_tokens"); got != 5 {
		t.Errorf("Counter = %d, want 5", got)
	}
	if got := m.Counter("responder", "nope"); got != 0 {
		t.Errorf("unknown counter = %d, want 0", got)
	}
}

func TestTiming(t *testing.T) {
	m := New()
	for _, d := range []time.Duration{10, 30, 20} {
		m.RecordDuration("llm/a", "request", d*time.Millisecond)
	}
	snap, ok := m.Timing("llm/a", "request")
	if !ok {
		t.Fatal("timing not found")
	}
	if snap.Count != 3 || snap.MinMs != 10 || snap.MaxMs != 30 || snap.AvgMs != 20 || snap.LastMs != 20 {
		t.Errorf("Timing = %+v", snap)
	}
	if got := snap.String(); got != "avg 20ms p95 20ms" {
		t.Errorf("String() = %q", got)
	}
	if got := (TimingSnapshot{}).String(); got != "no timings" {
		t.Errorf("empty String() = %q", got)
	}
}

func TestNilManagerIsNoop(t *testing.T) {
	var m *Manager
	m.RecordSuccess("a", "b")
	m.RecordFailure("a", "b", "x")
	m.RecordOutcome("a", "b", "c")
	m.RecordDuration("a", "b", time.Second)
	m.AddCounter("a", "b", 1)
	if _, ok := m.Timing("a", "b"); ok {
		t.Error("nil manager reported a timing")
	}
	if _, ok := m.SuccessFail("a", "b"); ok {
		t.Error("nil manager reported a success/fail metric")
	}
	if got := m.Counter("a", "b"); got != 0 {
		t.Errorf("nil manager Counter = %d", got)
	}
}

func TestConcurrentRecording(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordSuccess("llm/a", "request")
			m.RecordDuration("llm/a", "request", time.Millisecond)
		}()
	}
	wg.Wait()
	snap, _ := m.SuccessFail("llm/a", "request")
	if snap.Success != 50 {
		t.Errorf("Success = %d, want 50", snap.Success)
	}
}
