package telemetry

import (
	"log/slog"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Phase identifies one timed section of a simulation step.
type Phase uint8

// Step phases in execution order.
const (
	PhaseSnapshot Phase = iota
	PhaseSpatialGrid
	PhaseFlocking
	PhaseApply
	PhaseGPUUpload
	PhaseGPUDispatch
	PhaseGPUReadback
	PhaseTelemetry

	numPhases
)

var phaseNames = [numPhases]string{
	PhaseSnapshot:    "snapshot",
	PhaseSpatialGrid: "spatial_grid",
	PhaseFlocking:    "flocking",
	PhaseApply:       "apply",
	PhaseGPUUpload:   "gpu_upload",
	PhaseGPUDispatch: "gpu_dispatch",
	PhaseGPUReadback: "gpu_readback",
	PhaseTelemetry:   "telemetry",
}

func (p Phase) String() string {
	if p < numPhases {
		return phaseNames[p]
	}
	return "unknown"
}

// Phases returns every phase in execution order.
func Phases() []Phase {
	out := make([]Phase, numPhases)
	for i := range out {
		out[i] = Phase(i)
	}
	return out
}

// tickSample is the timing of one step. ran has bit p set when phase p
// was entered during the step.
type tickSample struct {
	total  time.Duration
	phases [numPhases]time.Duration
	ran    uint16
}

// PerfCollector keeps a ring of recent step timings.
type PerfCollector struct {
	samples []tickSample
	next    int
	filled  int

	cur        tickSample
	tickStart  time.Time
	phaseStart time.Time
	inPhase    bool
	phase      Phase

	lastFrame     time.Time
	frameDuration time.Duration

	scratch []float64

	now func() time.Time
}

// NewPerfCollector creates a collector averaging over windowSize steps
// (60 when windowSize < 1).
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		samples: make([]tickSample, windowSize),
		scratch: make([]float64, 0, windowSize),
		now:     time.Now,
	}
}

// StartTick begins timing a new step.
func (p *PerfCollector) StartTick() {
	p.tickStart = p.now()
	p.cur = tickSample{}
	p.inPhase = false
}

// StartPhase closes the running phase, if any, and opens phase.
func (p *PerfCollector) StartPhase(phase Phase) {
	now := p.now()
	p.closePhase(now)
	p.phase = phase
	p.phaseStart = now
	p.inPhase = true
}

func (p *PerfCollector) closePhase(now time.Time) {
	if !p.inPhase || p.phase >= numPhases {
		return
	}
	p.cur.phases[p.phase] += now.Sub(p.phaseStart)
	p.cur.ran |= 1 << p.phase
}

// EndTick closes the step and stores its sample.
func (p *PerfCollector) EndTick() {
	now := p.now()
	p.closePhase(now)
	p.inPhase = false
	p.cur.total = now.Sub(p.tickStart)

	p.samples[p.next] = p.cur
	p.next = (p.next + 1) % len(p.samples)
	p.filled = min(p.filled+1, len(p.samples))
}

// RecordFrame marks a rendered frame; the gap to the previous call is the
// frame duration.
func (p *PerfCollector) RecordFrame() {
	now := p.now()
	if !p.lastFrame.IsZero() {
		p.frameDuration = now.Sub(p.lastFrame)
	}
	p.lastFrame = now
}

// PerfStats aggregates the samples in the window.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration
	P95TickDuration time.Duration

	PhaseAvg   [numPhases]time.Duration // mean per step over the window
	PhasePct   [numPhases]float64       // share of the mean step, 0-100
	PhaseTicks [numPhases]int           // steps in the window that entered the phase

	TicksPerSecond float64

	FrameDuration time.Duration
	FPS           float64
}

// Ran reports whether phase was entered at least once in the window.
func (s PerfStats) Ran(phase Phase) bool {
	return phase < numPhases && s.PhaseTicks[phase] > 0
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	var s PerfStats
	s.FrameDuration = p.frameDuration
	if p.frameDuration > 0 {
		s.FPS = float64(time.Second) / float64(p.frameDuration)
	}
	if p.filled == 0 {
		return s
	}

	var total time.Duration
	var phaseSum [numPhases]time.Duration
	p.scratch = p.scratch[:0]
	for i, smp := range p.samples[:p.filled] {
		total += smp.total
		if i == 0 || smp.total < s.MinTickDuration {
			s.MinTickDuration = smp.total
		}
		s.MaxTickDuration = max(s.MaxTickDuration, smp.total)
		p.scratch = append(p.scratch, float64(smp.total))

		for ph := range numPhases {
			phaseSum[ph] += smp.phases[ph]
			if smp.ran&(1<<ph) != 0 {
				s.PhaseTicks[ph]++
			}
		}
	}

	n := time.Duration(p.filled)
	s.AvgTickDuration = total / n
	slices.Sort(p.scratch)
	s.P95TickDuration = time.Duration(stat.Quantile(0.95, stat.Empirical, p.scratch, nil))

	for ph := range numPhases {
		s.PhaseAvg[ph] = phaseSum[ph] / n
		if s.AvgTickDuration > 0 {
			s.PhasePct[ph] = float64(s.PhaseAvg[ph]) / float64(s.AvgTickDuration) * 100
		}
	}
	if s.AvgTickDuration > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.AvgTickDuration)
	}
	return s
}

// LogStats logs the window at info level. Phases under 0.1% are omitted.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"p95_tick_us", s.P95TickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"ticks_per_sec", int(s.TicksPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, "fps", int(s.FPS))
	}
	for _, ph := range Phases() {
		if s.Ran(ph) && s.PhasePct[ph] > 0.1 {
			attrs = append(attrs, ph.String()+"_pct", float64(int(s.PhasePct[ph]*10))/10)
		}
	}
	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_tick_us", s.MinTickDuration.Microseconds()),
		slog.Int64("p95_tick_us", s.P95TickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for _, ph := range Phases() {
		if s.Ran(ph) {
			attrs = append(attrs, slog.Float64(ph.String()+"_pct", s.PhasePct[ph]))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one row of perf.csv.
type PerfStatsCSV struct {
	WindowEnd      int32   `csv:"window_end"`
	AvgTickUS      int64   `csv:"avg_tick_us"`
	MinTickUS      int64   `csv:"min_tick_us"`
	P95TickUS      int64   `csv:"p95_tick_us"`
	MaxTickUS      int64   `csv:"max_tick_us"`
	TicksPerSec    float64 `csv:"ticks_per_sec"`
	FPS            float64 `csv:"fps"`
	SnapshotPct    float64 `csv:"snapshot_pct"`
	SpatialGridPct float64 `csv:"spatial_grid_pct"`
	FlockingPct    float64 `csv:"flocking_pct"`
	ApplyPct       float64 `csv:"apply_pct"`
	GPUUploadPct   float64 `csv:"gpu_upload_pct"`
	GPUDispatchPct float64 `csv:"gpu_dispatch_pct"`
	GPUReadbackPct float64 `csv:"gpu_readback_pct"`
	TelemetryPct   float64 `csv:"telemetry_pct"`
}

// ToCSV flattens the stats for perf.csv.
func (s PerfStats) ToCSV(windowEnd int32) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:      windowEnd,
		AvgTickUS:      s.AvgTickDuration.Microseconds(),
		MinTickUS:      s.MinTickDuration.Microseconds(),
		P95TickUS:      s.P95TickDuration.Microseconds(),
		MaxTickUS:      s.MaxTickDuration.Microseconds(),
		TicksPerSec:    s.TicksPerSecond,
		FPS:            s.FPS,
		SnapshotPct:    s.PhasePct[PhaseSnapshot],
		SpatialGridPct: s.PhasePct[PhaseSpatialGrid],
		FlockingPct:    s.PhasePct[PhaseFlocking],
		ApplyPct:       s.PhasePct[PhaseApply],
		GPUUploadPct:   s.PhasePct[PhaseGPUUpload],
		GPUDispatchPct: s.PhasePct[PhaseGPUDispatch],
		GPUReadbackPct: s.PhasePct[PhaseGPUReadback],
		TelemetryPct:   s.PhasePct[PhaseTelemetry],
	}
}
