package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/flock/systems"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTime         float64 `csv:"sim_time"` // simulation time units elapsed since start

	// Population at window end
	Boids     int `csv:"boids"`
	NonFinite int `csv:"non_finite"`

	// Speed distribution (sampled at window end)
	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`

	// Flock shape (sampled at window end)
	Polarization float64 `csv:"polarization"` // |mean unit heading|, 1 = fully aligned
	CentroidX    float64 `csv:"centroid_x"`
	CentroidY    float64 `csv:"centroid_y"`
	Spread       float64 `csv:"spread"` // mean distance to centroid

	// Rule activity accumulated over the window
	MeanNeighbors float64 `csv:"mean_neighbors"` // per boid per tick
	EdgeTurns     int     `csv:"edge_turns"`
	ClampedUp     int     `csv:"clamped_up"`
	ClampedDown   int     `csv:"clamped_down"`
	ZeroSpeed     int     `csv:"zero_speed"`
}

// FlockStats is an instantaneous summary of a flock snapshot.
// Only finite boids contribute to the distributions.
type FlockStats struct {
	Count     int
	NonFinite int

	SpeedMean, SpeedStd          float64
	SpeedP10, SpeedP50, SpeedP90 float64

	Polarization         float64
	CentroidX, CentroidY float64
	Spread               float64
}

// ComputeFlockStats summarizes a snapshot.
func ComputeFlockStats(boids []systems.Boid) FlockStats {
	fs := FlockStats{Count: len(boids)}

	speeds := make([]float64, 0, len(boids))
	var sumX, sumY, headX, headY float64
	var moving int
	for _, b := range boids {
		if !b.Finite() {
			fs.NonFinite++
			continue
		}
		s := float64(b.Speed())
		speeds = append(speeds, s)
		sumX += float64(b.X)
		sumY += float64(b.Y)
		if s > 0 {
			headX += float64(b.VX) / s
			headY += float64(b.VY) / s
			moving++
		}
	}

	n := len(speeds)
	if n == 0 {
		return fs
	}

	fs.SpeedMean, fs.SpeedStd = stat.MeanStdDev(speeds, nil)
	if n == 1 {
		fs.SpeedStd = 0
	}
	sort.Float64s(speeds)
	fs.SpeedP10 = stat.Quantile(0.10, stat.Empirical, speeds, nil)
	fs.SpeedP50 = stat.Quantile(0.50, stat.Empirical, speeds, nil)
	fs.SpeedP90 = stat.Quantile(0.90, stat.Empirical, speeds, nil)

	if moving > 0 {
		fs.Polarization = math.Hypot(headX/float64(moving), headY/float64(moving))
	}

	fs.CentroidX = sumX / float64(n)
	fs.CentroidY = sumY / float64(n)
	var spread float64
	for _, b := range boids {
		if !b.Finite() {
			continue
		}
		spread += math.Hypot(float64(b.X)-fs.CentroidX, float64(b.Y)-fs.CentroidY)
	}
	fs.Spread = spread / float64(n)

	return fs
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTime),
		slog.Int("boids", s.Boids),
		slog.Int("non_finite", s.NonFinite),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_std", s.SpeedStd),
		slog.Float64("speed_p10", s.SpeedP10),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Float64("speed_p90", s.SpeedP90),
		slog.Float64("polarization", s.Polarization),
		slog.Float64("centroid_x", s.CentroidX),
		slog.Float64("centroid_y", s.CentroidY),
		slog.Float64("spread", s.Spread),
		slog.Float64("mean_neighbors", s.MeanNeighbors),
		slog.Int("edge_turns", s.EdgeTurns),
		slog.Int("clamped_up", s.ClampedUp),
		slog.Int("clamped_down", s.ClampedDown),
		slog.Int("zero_speed", s.ZeroSpeed),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTime,
		"boids", s.Boids,
		"non_finite", s.NonFinite,
		"speed_mean", s.SpeedMean,
		"speed_p50", s.SpeedP50,
		"polarization", s.Polarization,
		"spread", s.Spread,
		"mean_neighbors", s.MeanNeighbors,
		"edge_turns", s.EdgeTurns,
		"clamped_up", s.ClampedUp,
		"clamped_down", s.ClampedDown,
		"zero_speed", s.ZeroSpeed,
	)
}
