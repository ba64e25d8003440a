package main

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/game"
	"github.com/pthm-cable/flock/telemetry"
)

// Targets describes the flock the tuner is steering towards.
type Targets struct {
	Polarization float64 // desired mean heading alignment in [0,1]
	Spread       float64 // desired mean distance to centroid, world units
}

// Penalty weights.
const (
	weightPolarization = 1.0
	weightSpread       = 1.0
	weightEdgeTurns    = 0.5
	weightNonFinite    = 10.0

	warmupWindows = 2 // skip the first N windows while the lattice breaks up
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	maxTicks   int32
	spacings   []float64 // initial lattice spacings, one run each
	baseConfig *config.Config
	targets    Targets

	mu          sync.Mutex
	bestFitness float64
	lastScore   runScore // averaged score from the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator. Each evaluation runs once per
// entry in spacings; the lattice is deterministic, so the spacing is the only
// thing that varies between runs.
func NewFitnessEvaluator(params *ParamVector, maxTicks int32, spacings []float64, baseCfg *config.Config, targets Targets) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		spacings:    spacings,
		baseConfig:  baseCfg,
		targets:     targets,
		bestFitness: math.Inf(1),
	}
}

// LastScore returns the averaged score from the most recent evaluation.
func (fe *FitnessEvaluator) LastScore() runScore {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastScore
}

// runScore summarizes one run's telemetry windows.
type runScore struct {
	Polarization float64 // mean over scored windows
	Spread       float64 // mean over scored windows
	EdgeTurns    float64 // edge turns per boid per tick
	NonFinite    float64 // fraction of boids non-finite at the end
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	scores := make([]runScore, len(fe.spacings))
	var wg sync.WaitGroup

	for i, spacing := range fe.spacings {
		wg.Add(1)
		go func(idx int, sp float64) {
			defer wg.Done()
			scores[idx] = fe.score(fe.runSimulation(x, sp))
		}(i, spacing)
	}
	wg.Wait()

	var avg runScore
	var total float64
	for _, s := range scores {
		total += fe.computeFitness(s)
		avg.Polarization += s.Polarization
		avg.Spread += s.Spread
		avg.EdgeTurns += s.EdgeTurns
		avg.NonFinite += s.NonFinite
	}
	n := float64(len(scores))
	avg.Polarization /= n
	avg.Spread /= n
	avg.EdgeTurns /= n
	avg.NonFinite /= n
	fitness := total / n

	fe.mu.Lock()
	if fitness < fe.bestFitness {
		fe.bestFitness = fitness
	}
	fe.lastScore = avg
	fe.mu.Unlock()

	return fitness
}

// runSimulation executes a single headless run and returns its windows.
func (fe *FitnessEvaluator) runSimulation(x []float64, spacing float64) []telemetry.WindowStats {
	cfg := fe.baseConfig.Clone()
	fe.params.ApplyToConfig(cfg, x)
	cfg.Boids.Spacing = spacing
	cfg.Refresh()

	var windows []telemetry.WindowStats
	g := game.NewGameWithOptions(game.Options{
		Config:         cfg,
		Headless:       true,
		StepsPerUpdate: 1,
		StatsCallback: func(stats telemetry.WindowStats) {
			windows = append(windows, stats)
		},
	})
	defer g.Unload()

	for g.Tick() < fe.maxTicks {
		g.UpdateHeadless()
	}
	return windows
}

// score reduces a run's windows to a runScore. Runs too short to pass the
// warmup score as fully non-finite so they never win.
func (fe *FitnessEvaluator) score(windows []telemetry.WindowStats) runScore {
	if len(windows) <= warmupWindows {
		return runScore{NonFinite: 1}
	}
	scored := windows[warmupWindows:]

	pol := make([]float64, len(scored))
	spread := make([]float64, len(scored))
	var edgeTurns, boidTicks float64
	for i, w := range scored {
		pol[i] = w.Polarization
		spread[i] = w.Spread
		edgeTurns += float64(w.EdgeTurns)
		boidTicks += float64(w.Boids) * float64(w.WindowEndTick-w.WindowStartTick)
	}

	last := scored[len(scored)-1]
	s := runScore{
		Polarization: stat.Mean(pol, nil),
		Spread:       stat.Mean(spread, nil),
	}
	if boidTicks > 0 {
		s.EdgeTurns = edgeTurns / boidTicks
	}
	if last.Boids > 0 {
		s.NonFinite = float64(last.NonFinite) / float64(last.Boids)
	}
	return s
}

// computeFitness combines the distance from the targets with the penalties.
// Spread error is relative to the target so both terms are dimensionless.
func (fe *FitnessEvaluator) computeFitness(s runScore) float64 {
	dp := s.Polarization - fe.targets.Polarization
	var ds float64
	if fe.targets.Spread > 0 {
		ds = (s.Spread - fe.targets.Spread) / fe.targets.Spread
	}
	return weightPolarization*dp*dp +
		weightSpread*ds*ds +
		weightEdgeTurns*s.EdgeTurns +
		weightNonFinite*s.NonFinite
}
