package telemetry

import (
	"testing"
	"time"
)

// fakeClock advances only when told to.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCollector(window int) (*PerfCollector, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	pc := NewPerfCollector(window)
	pc.now = clk.now
	return pc, clk
}

func TestPerfCollector_TracksPhases(t *testing.T) {
	pc, clk := newTestCollector(10)

	for range 5 {
		pc.StartTick()
		pc.StartPhase(PhaseSpatialGrid)
		clk.advance(100 * time.Microsecond)
		pc.StartPhase(PhaseFlocking)
		clk.advance(300 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()
	if stats.AvgTickDuration != 400*time.Microsecond {
		t.Errorf("avg tick = %v, want 400µs", stats.AvgTickDuration)
	}
	for _, ph := range []Phase{PhaseSpatialGrid, PhaseFlocking} {
		if !stats.Ran(ph) || stats.PhaseTicks[ph] != 5 {
			t.Errorf("%s: ran in %d ticks, want 5", ph, stats.PhaseTicks[ph])
		}
	}
	if stats.Ran(PhaseGPUReadback) {
		t.Error("gpu_readback never ran")
	}
	if stats.PhaseAvg[PhaseFlocking] != 300*time.Microsecond {
		t.Errorf("flocking avg = %v, want 300µs", stats.PhaseAvg[PhaseFlocking])
	}
	if stats.PhasePct[PhaseSpatialGrid] != 25 || stats.PhasePct[PhaseFlocking] != 75 {
		t.Errorf("phase shares = %v%% / %v%%, want 25 / 75",
			stats.PhasePct[PhaseSpatialGrid], stats.PhasePct[PhaseFlocking])
	}
	if stats.TicksPerSecond != 2500 {
		t.Errorf("ticks per second = %v, want 2500", stats.TicksPerSecond)
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc, clk := newTestCollector(5)

	for i := range 10 {
		pc.StartTick()
		pc.StartPhase(PhaseApply)
		clk.advance(time.Duration(i+1) * time.Millisecond)
		pc.EndTick()
	}

	stats := pc.Stats()
	if stats.PhaseTicks[PhaseApply] != 5 {
		t.Errorf("window holds %d ticks, want 5", stats.PhaseTicks[PhaseApply])
	}
	// Only ticks 6..10 ms remain in the window
	if stats.MinTickDuration != 6*time.Millisecond || stats.MaxTickDuration != 10*time.Millisecond {
		t.Errorf("min=%v max=%v, want 6ms and 10ms", stats.MinTickDuration, stats.MaxTickDuration)
	}
	if stats.AvgTickDuration != 8*time.Millisecond {
		t.Errorf("avg = %v, want 8ms", stats.AvgTickDuration)
	}
	if stats.MinTickDuration > stats.P95TickDuration || stats.P95TickDuration > stats.MaxTickDuration {
		t.Errorf("tick order broken: min=%v p95=%v max=%v",
			stats.MinTickDuration, stats.P95TickDuration, stats.MaxTickDuration)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	stats := NewPerfCollector(10).Stats()
	if stats.AvgTickDuration != 0 || stats.TicksPerSecond != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
	for _, ph := range Phases() {
		if stats.Ran(ph) {
			t.Errorf("%s reported as run", ph)
		}
	}
}

func TestPerfCollector_FrameTiming(t *testing.T) {
	pc, clk := newTestCollector(10)

	pc.RecordFrame()
	if pc.Stats().FPS != 0 {
		t.Error("a single frame has no duration")
	}
	clk.advance(20 * time.Millisecond)
	pc.RecordFrame()

	stats := pc.Stats()
	if stats.FrameDuration != 20*time.Millisecond || stats.FPS != 50 {
		t.Errorf("frame = %v at %v fps, want 20ms at 50", stats.FrameDuration, stats.FPS)
	}
}

func TestPhaseNames(t *testing.T) {
	seen := map[string]bool{}
	for _, ph := range Phases() {
		name := ph.String()
		if name == "" || name == "unknown" || seen[name] {
			t.Errorf("phase %d has bad or duplicate name %q", ph, name)
		}
		seen[name] = true
	}
	if got := Phase(200).String(); got != "unknown" {
		t.Errorf("out-of-range phase = %q", got)
	}
}
