package game

import (
	"fmt"
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/systems"
	"github.com/pthm-cable/flock/telemetry"
)

// Update handles input and advances the simulation by one frame.
func (g *Game) Update() {
	g.handleInput()
	g.perfCollector.RecordFrame()

	if g.paused && !g.stepOnce {
		g.updateInspector()
		return
	}

	steps := g.stepsPerUpdate
	if g.stepOnce {
		steps = 1
		g.stepOnce = false
	}

	dt := g.frameDT(rl.GetFrameTime())
	for range steps {
		g.Step(dt)
	}
	g.updateInspector()
}

// UpdateHeadless runs stepsPerUpdate steps at the fixed step size, with no
// graphics calls.
func (g *Game) UpdateHeadless() {
	dt := g.frameDT(0)
	for range g.stepsPerUpdate {
		g.Step(dt)
	}
}

// frameDT converts a frame duration in seconds into a step size in
// simulation time units. A configured fixed_dt wins; otherwise the measured
// time is scaled and capped at max_dt. A zero frame time (headless, or the
// first frame) counts as one nominal tick.
func (g *Game) frameDT(frameSec float32) float32 {
	if g.cfg.Physics.FixedDT > 0 {
		return g.cfg.Derived.FixedDT32
	}
	if frameSec <= 0 {
		return 1
	}
	dt := frameSec * g.cfg.Derived.TimeScale32
	if maxDT := float32(g.cfg.Physics.MaxDT); maxDT > 0 && dt > maxDT {
		dt = maxDT
	}
	return dt
}

// Step advances the flock by one update of size dt.
func (g *Game) Step(dt float32) {
	g.perfCollector.StartTick()

	g.perfCollector.StartPhase(telemetry.PhaseSnapshot)
	g.snapshot()

	var tally systems.Tally
	if g.mode == config.ModeCompute && g.compute != nil {
		var err error
		tally, err = g.stepCompute(dt)
		if err != nil {
			slog.Error("compute step failed, switching to points", "error", err, "tick", g.tick)
			g.compute.Unload()
			g.compute = nil
			g.mode = config.ModePoints
			tally = g.stepCPU(dt)
		}
	} else {
		tally = g.stepCPU(dt)
	}

	g.perfCollector.StartPhase(telemetry.PhaseApply)
	g.apply()

	g.tick++
	g.simTime += float64(dt)
	g.collector.RecordStep(tally, dt)

	g.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	g.checkZeroSpeed(tally.ZeroSpeed)
	g.checkNonFinite()
	g.flushTelemetry()
	g.broadcastFrame()

	g.perfCollector.EndTick()
}

// snapshot copies the ECS state into frame, indexed by Boid.Index.
func (g *Game) snapshot() {
	query := g.boidFilter.Query()
	for query.Next() {
		pos, vel, tag := query.Get()
		g.frame[tag.Index] = systems.Boid{X: pos.X, Y: pos.Y, VX: vel.X, VY: vel.Y}
	}
}

// apply writes next back to the ECS and makes it the current frame.
func (g *Game) apply() {
	query := g.boidFilter.Query()
	for query.Next() {
		pos, vel, tag := query.Get()
		b := g.next[tag.Index]
		pos.X, pos.Y = b.X, b.Y
		vel.X, vel.Y = b.VX, b.VY
	}
	g.frame, g.next = g.next, g.frame
}

// stepCPU runs the flocking rule on the worker pool.
func (g *Game) stepCPU(dt float32) systems.Tally {
	if g.spatialGrid != nil {
		g.perfCollector.StartPhase(telemetry.PhaseSpatialGrid)
		g.spatialGrid.Rebuild(g.frame)
	}

	g.perfCollector.StartPhase(telemetry.PhaseFlocking)
	return g.parallel.step(g.next, g.frame, dt, &g.params, g.spatialGrid)
}

// stepCompute runs the flocking rule on the GPU and blocks on the readback.
// The kernel does not report per-boid outcomes, so the tally stays empty.
func (g *Game) stepCompute(dt float32) (systems.Tally, error) {
	g.perfCollector.StartPhase(telemetry.PhaseGPUUpload)
	if err := g.compute.Upload(g.frame, dt, &g.params); err != nil {
		return systems.Tally{}, err
	}

	g.perfCollector.StartPhase(telemetry.PhaseGPUDispatch)
	g.compute.Dispatch()

	g.perfCollector.StartPhase(telemetry.PhaseGPUReadback)
	out, err := g.compute.Readback(g.next)
	if err != nil {
		return systems.Tally{}, err
	}
	if len(out) != len(g.frame) {
		return systems.Tally{}, fmt.Errorf("compute readback returned %d boids, want %d", len(out), len(g.frame))
	}
	g.next = out
	return systems.Tally{}, nil
}

// checkZeroSpeed warns about every step in which some boid reached the speed
// clamp with exactly zero velocity, whichever zero_speed policy is active.
func (g *Game) checkZeroSpeed(n int) {
	g.zeroSpeed = n
	if n == 0 {
		return
	}
	g.zeroSpeedTotal += n
	slog.Warn("zero-speed boids",
		"tick", g.tick,
		"count", n,
		"total", g.zeroSpeedTotal,
		"zero_speed", g.cfg.Flocking.ZeroSpeed,
	)
}

// checkNonFinite logs whenever the number of NaN/Inf boids changes.
func (g *Game) checkNonFinite() {
	n := systems.CountNonFinite(g.frame)
	if n == g.nonFinite {
		return
	}
	if n > g.nonFinite {
		slog.Warn("non-finite boids",
			"tick", g.tick,
			"count", n,
			"zero_speed", g.cfg.Flocking.ZeroSpeed,
		)
	}
	g.nonFinite = n
}

// updateInspector refreshes the selected boid's panel data.
func (g *Game) updateInspector() {
	if g.inspector != nil {
		g.inspector.Update(g.frame, &g.params)
	}
}
