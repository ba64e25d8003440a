// Package telemetry provides flock statistics, perf timing, event bookmarks
// and CSV output.
package telemetry

import (
	"math"

	"github.com/pthm-cable/flock/systems"
)

// Collector accumulates per-step rule activity within windows and produces
// WindowStats.
type Collector struct {
	windowDurationTicks int32

	// Current window tracking
	windowStartTick int32
	windowTicks     int

	simTime float64

	// Counters for current window
	tally systems.Tally
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in wall seconds
// tickSec: nominal seconds per tick (1 / target FPS)
func NewCollector(windowDurationSec float64, tickSec float64) *Collector {
	ticksPerWindow := int32(math.Round(windowDurationSec / tickSec))
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationTicks: ticksPerWindow,
	}
}

// RecordStep folds one simulation step into the current window.
// dt is the step size in simulation time units.
func (c *Collector) RecordStep(t systems.Tally, dt float32) {
	c.tally.Merge(t)
	c.windowTicks++
	c.simTime += float64(dt)
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats from the window counters and the current
// snapshot, then resets counters for the next window.
func (c *Collector) Flush(currentTick int32, boids []systems.Boid) WindowStats {
	fs := ComputeFlockStats(boids)

	var meanNeighbors float64
	if c.windowTicks > 0 && len(boids) > 0 {
		meanNeighbors = float64(c.tally.Neighbors) / float64(c.windowTicks*len(boids))
	}

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTime:         c.simTime,

		Boids:     fs.Count,
		NonFinite: fs.NonFinite,

		SpeedMean: fs.SpeedMean,
		SpeedStd:  fs.SpeedStd,
		SpeedP10:  fs.SpeedP10,
		SpeedP50:  fs.SpeedP50,
		SpeedP90:  fs.SpeedP90,

		Polarization: fs.Polarization,
		CentroidX:    fs.CentroidX,
		CentroidY:    fs.CentroidY,
		Spread:       fs.Spread,

		MeanNeighbors: meanNeighbors,
		EdgeTurns:     c.tally.EdgeTurns,
		ClampedUp:     c.tally.ClampedUp,
		ClampedDown:   c.tally.ClampedDn,
		ZeroSpeed:     c.tally.ZeroSpeed,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.windowTicks = 0
	c.tally = systems.Tally{}

	return stats
}

// Reset discards the current window and the accumulated simulation time.
func (c *Collector) Reset(currentTick int32) {
	c.windowStartTick = currentTick
	c.windowTicks = 0
	c.simTime = 0
	c.tally = systems.Tally{}
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}
