package game

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/systems"
	"github.com/pthm-cable/flock/telemetry"
)

func testConfig(t *testing.T, count int) *config.Config {
	t.Helper()
	cfg, err := config.Defaults()
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	cfg.Boids.Count = count
	cfg.Physics.FixedDT = 1
	// Tests compare boids by value and NaN never equals itself
	cfg.Flocking.ZeroSpeed = config.ZeroSpeedHold
	cfg.Refresh()
	return cfg
}

// captureLogs routes slog to a buffer for the rest of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func newHeadless(t *testing.T, cfg *config.Config, opts Options) *Game {
	t.Helper()
	opts.Config = cfg
	opts.Headless = true
	g := NewGameWithOptions(opts)
	t.Cleanup(g.Unload)
	return g
}

func TestParallelMatchesSerialStep(t *testing.T) {
	cfg := testConfig(t, 400)
	p := systems.ParamsFromConfig(cfg.Flocking)
	src := systems.GenerateGrid(400, 10)
	// Give the lattice some motion so every rule term is exercised
	for i := range src {
		src[i].VX = float32(i%7) - 3
		src[i].VY = float32(i%5) - 2
	}

	want := make([]systems.Boid, len(src))
	wantTally := systems.Step(want, src, 1, &p)

	tests := []struct {
		name string
		grid bool
	}{
		{"brute", false},
		{"grid", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := newParallelState(4, 16)
			defer ps.stopWorkers()

			var grid *systems.SpatialGrid
			if tt.grid {
				grid = systems.NewSpatialGrid(2*p.Edge, p.VisualRange)
				grid.Rebuild(src)
			}

			got := make([]systems.Boid, len(src))
			tally := ps.step(got, src, 1, &p, grid)

			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("boid %d: got %+v, want %+v", i, got[i], want[i])
				}
			}
			if tally != wantTally {
				t.Errorf("tally = %+v, want %+v", tally, wantTally)
			}
		})
	}
}

func TestParallelBelowThreshold(t *testing.T) {
	cfg := testConfig(t, 10)
	p := systems.ParamsFromConfig(cfg.Flocking)
	src := systems.GenerateGrid(10, 10)

	ps := newParallelState(4, 64)
	got := make([]systems.Boid, len(src))
	ps.step(got, src, 1, &p, nil)

	if ps.running {
		t.Error("worker pool should not start below the threshold")
	}
	want := make([]systems.Boid, len(src))
	systems.Step(want, src, 1, &p)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("boid %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestGame_SpawnsGrid(t *testing.T) {
	cfg := testConfig(t, 50)
	g := newHeadless(t, cfg, Options{})

	want := systems.GenerateGrid(50, float32(cfg.Boids.Spacing))
	got := g.Boids()
	if len(got) != len(want) {
		t.Fatalf("got %d boids, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("boid %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestGame_StepMatchesSystemsStep(t *testing.T) {
	cfg := testConfig(t, 100)
	g := newHeadless(t, cfg, Options{})
	p := systems.ParamsFromConfig(cfg.Flocking)

	src := systems.GenerateGrid(100, float32(cfg.Boids.Spacing))
	want := make([]systems.Boid, len(src))
	for range 3 {
		systems.Step(want, src, 1, &p)
		src, want = want, src
		g.Step(1)
	}

	got := g.Boids()
	for i := range src {
		if got[i] != src[i] {
			t.Fatalf("boid %d after 3 steps: got %+v, want %+v", i, got[i], src[i])
		}
	}
	if g.Tick() != 3 || g.SimTime() != 3 {
		t.Errorf("tick=%d simTime=%v, want 3 and 3", g.Tick(), g.SimTime())
	}
}

func TestGame_GridSearchMatchesBrute(t *testing.T) {
	brute := testConfig(t, 144)
	grid := testConfig(t, 144)
	grid.Flocking.NeighborSearch = config.NeighborGrid

	gb := newHeadless(t, brute, Options{})
	gg := newHeadless(t, grid, Options{})
	for range 20 {
		gb.Step(1)
		gg.Step(1)
	}

	a, b := gb.Boids(), gg.Boids()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("boid %d diverged: brute %+v, grid %+v", i, a[i], b[i])
		}
	}
}

func TestGame_UpdateHeadless(t *testing.T) {
	cfg := testConfig(t, 16)
	g := newHeadless(t, cfg, Options{StepsPerUpdate: 4})

	g.UpdateHeadless()
	g.UpdateHeadless()
	if g.Tick() != 8 {
		t.Errorf("tick = %d, want 8", g.Tick())
	}
}

func TestGame_Reset(t *testing.T) {
	cfg := testConfig(t, 25)
	g := newHeadless(t, cfg, Options{})
	for range 10 {
		g.Step(1)
	}

	g.Reset()
	if g.Tick() != 0 || g.SimTime() != 0 {
		t.Errorf("clock not reset: tick=%d simTime=%v", g.Tick(), g.SimTime())
	}

	want := systems.GenerateGrid(25, float32(cfg.Boids.Spacing))
	got := g.Boids()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("boid %d after reset: got %+v, want %+v", i, got[i], want[i])
		}
	}

	// The ECS must hold the reset state too, not just the snapshot
	g.snapshot()
	for i := range want {
		if g.frame[i] != want[i] {
			t.Fatalf("world boid %d after reset: got %+v, want %+v", i, g.frame[i], want[i])
		}
	}
}

func TestGame_HeadlessComputeFallsBack(t *testing.T) {
	cfg := testConfig(t, 4)
	g := newHeadless(t, cfg, Options{Mode: config.ModeCompute})
	if g.Mode() != config.ModeCPU {
		t.Errorf("mode = %s, want %s", g.Mode(), config.ModeCPU)
	}
	if g.SetMode(config.ModePoints) {
		t.Error("headless game should refuse GPU modes")
	}
}

func TestGame_TelemetryWindow(t *testing.T) {
	cfg := testConfig(t, 36)
	cfg.Telemetry.StatsWindow = 10.0 / cfg.Physics.TimeScale // 10 ticks
	dir := t.TempDir()

	var windows []telemetry.WindowStats
	g := newHeadless(t, cfg, Options{
		OutputDir:     dir,
		StatsCallback: func(s telemetry.WindowStats) { windows = append(windows, s) },
	})
	for range 25 {
		g.Step(1)
	}

	if len(windows) != 2 {
		t.Fatalf("got %d windows, want 2", len(windows))
	}
	if windows[1].WindowEndTick != 20 || windows[1].Boids != 36 {
		t.Errorf("unexpected second window: %+v", windows[1])
	}
	if g.LastStats() != windows[1] {
		t.Error("LastStats should return the latest window")
	}

	g.Unload()
	f, err := os.Open(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		t.Fatalf("opening telemetry.csv: %v", err)
	}
	defer f.Close()

	rows, err := telemetry.ReadTelemetry(f)
	if err != nil {
		t.Fatalf("reading telemetry: %v", err)
	}
	if len(rows) != 2 || rows[0].WindowEndTick != 10 {
		t.Errorf("unexpected telemetry rows: %+v", rows)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config snapshot missing: %v", err)
	}
}

func TestGame_ZeroSpeedFlagged(t *testing.T) {
	tests := []struct {
		policy        string
		wantNonFinite int
	}{
		{"", 1}, // embedded default
		{config.ZeroSpeedNaN, 1},
		{config.ZeroSpeedHold, 0},
	}
	for _, tt := range tests {
		name := tt.policy
		if name == "" {
			name = "default"
		}
		t.Run(name, func(t *testing.T) {
			cfg, err := config.Defaults()
			if err != nil {
				t.Fatal(err)
			}
			cfg.Boids.Count = 9
			cfg.Physics.FixedDT = 1
			if tt.policy != "" {
				cfg.Flocking.ZeroSpeed = tt.policy
			}
			cfg.Refresh()
			logs := captureLogs(t)
			g := newHeadless(t, cfg, Options{})

			// The center of a symmetric 3x3 lattice feels no net force
			g.Step(1)
			if g.zeroSpeed != 1 || g.zeroSpeedTotal != 1 {
				t.Errorf("zeroSpeed = %d (total %d), want 1", g.zeroSpeed, g.zeroSpeedTotal)
			}
			if g.nonFinite != tt.wantNonFinite {
				t.Errorf("nonFinite = %d, want %d", g.nonFinite, tt.wantNonFinite)
			}
			if !strings.Contains(logs.String(), `"msg":"zero-speed boids"`) {
				t.Errorf("no zero-speed warning logged:\n%s", logs)
			}
		})
	}
}

func TestGame_ZeroSpeedQuietWhenMoving(t *testing.T) {
	cfg := testConfig(t, 4)
	logs := captureLogs(t)
	g := newHeadless(t, cfg, Options{})

	// A 2x2 lattice has no boid at its center of symmetry
	g.Step(1)
	if g.zeroSpeed != 0 {
		t.Errorf("zeroSpeed = %d, want 0", g.zeroSpeed)
	}
	if strings.Contains(logs.String(), "zero-speed boids") {
		t.Errorf("unexpected zero-speed warning:\n%s", logs)
	}
}

func TestFrameDT(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.Physics.FixedDT = 0
	cfg.Physics.MaxDT = 4
	cfg.Refresh()
	g := newHeadless(t, cfg, Options{})

	tests := []struct {
		frameSec float32
		want     float32
	}{
		{0, 1},
		{1.0 / 60, 1},
		{1.0 / 30, 2},
		{1, 4},
	}
	for _, tt := range tests {
		got := g.frameDT(tt.frameSec)
		if d := got - tt.want; d > 1e-5 || d < -1e-5 {
			t.Errorf("frameDT(%v) = %v, want %v", tt.frameSec, got, tt.want)
		}
	}

	cfg.Physics.FixedDT = 0.5
	cfg.Refresh()
	if got := g.frameDT(1); got != 0.5 {
		t.Errorf("fixed dt = %v, want 0.5", got)
	}
}
