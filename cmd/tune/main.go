// Package main tunes the flocking weights with CMA-ES so that headless runs
// settle into a flock with a target alignment and size.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/flock/config"
)

// formatDuration formats a duration as HhMMmSSs or MmSSs for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// logRow is one line of tune_log.csv.
type logRow struct {
	Eval            int     `csv:"eval"`
	Fitness         float64 `csv:"fitness"`
	Polarization    float64 `csv:"polarization"`
	Spread          float64 `csv:"spread"`
	EdgeTurns       float64 `csv:"edge_turns"`
	NonFinite       float64 `csv:"non_finite"`
	CenteringFactor float64 `csv:"centering_factor"`
	MatchingFactor  float64 `csv:"matching_factor"`
	AvoidFactor     float64 `csv:"avoid_factor"`
	TurnFactor      float64 `csv:"turn_factor"`
}

// parseSpacings parses a comma-separated list of lattice spacings.
func parseSpacings(s string) ([]float64, error) {
	var out []float64
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing spacing %q: %w", field, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("spacing must be positive, got %v", v)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no spacings given")
	}
	return out, nil
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	maxTicks := flag.Int("max-ticks", 3000, "Simulation ticks per run")
	spacingList := flag.String("spacings", "8,10,14", "Comma-separated initial lattice spacings, one run each per evaluation")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	targetPol := flag.Float64("target-polarization", 0.9, "Desired mean heading alignment in [0,1]")
	targetSpread := flag.Float64("target-spread", 80, "Desired mean distance to the flock centroid")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if *outputDir == "" {
		fatal("--output is required")
	}
	spacings, err := parseSpacings(*spacingList)
	if err != nil {
		fatal("invalid --spacings", "error", err)
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fatal("failed to create output directory", "error", err)
	}

	if err := config.Init(*configPath); err != nil {
		fatal("failed to load config", "error", err)
	}
	baseCfg := config.Cfg().Clone()
	// Runs must be reproducible, so the wall clock never drives dt.
	if baseCfg.Physics.FixedDT <= 0 {
		baseCfg.Physics.FixedDT = 1
	}
	baseCfg.Refresh()

	params := NewParamVector(baseCfg.Flocking)
	evaluator := NewFitnessEvaluator(params, int32(*maxTicks), spacings, baseCfg, Targets{
		Polarization: *targetPol,
		Spread:       *targetSpread,
	})

	dim := params.Dim()
	initX := params.Normalize(params.DefaultVector())

	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}
	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // each evaluation already runs its spacings in parallel
	}

	logPath := filepath.Join(*outputDir, "tune_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		fatal("failed to create log file", "error", err)
	}
	defer logFile.Close()

	evalCount := 0
	bestFitness := 1e9
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			clamped := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(clamped)
			evalCount++

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = clamped
			}

			score := evaluator.LastScore()
			row := logRow{
				Eval:            evalCount,
				Fitness:         fitness,
				Polarization:    score.Polarization,
				Spread:          score.Spread,
				EdgeTurns:       score.EdgeTurns,
				NonFinite:       score.NonFinite,
				CenteringFactor: clamped[0],
				MatchingFactor:  clamped[1],
				AvoidFactor:     clamped[2],
				TurnFactor:      clamped[3],
			}
			if err := writeLogRow(logFile, row, evalCount == 1); err != nil {
				slog.Error("failed to write log row", "error", err)
			}

			elapsed := time.Since(startTime)
			avgPerEval := elapsed / time.Duration(evalCount)
			remaining := time.Duration(*maxEvals-evalCount) * avgPerEval

			fmt.Printf("Eval %d/%d: fitness=%.4f polarization=%.3f spread=%.1f (best=%.4f) | elapsed: %s, ETA: %s\n",
				evalCount, *maxEvals, fitness, score.Polarization, score.Spread, bestFitness,
				formatDuration(elapsed), formatDuration(remaining))

			return fitness
		},
	}

	fmt.Printf("Starting CMA-ES tuning with %d parameters, population=%d, max_evals=%d\n",
		dim, popSize, *maxEvals)
	fmt.Printf("Runs per evaluation: %d, ticks per run: %d, boids: %d\n",
		len(spacings), *maxTicks, baseCfg.Boids.Count)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}

	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		fatal("no evaluations completed")
	}

	fmt.Printf("\nTuning complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(startTime)))
	fmt.Printf("Best fitness: %.4f\n", bestFitness)
	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Path, bestParams[i])
	}

	bestCfg := baseCfg.Clone()
	params.ApplyToConfig(bestCfg, bestParams)
	bestCfg.Refresh()

	configOutPath := filepath.Join(*outputDir, "best.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		slog.Error("failed to write best config", "error", err)
		os.Exit(1)
	}
	fmt.Printf("\nBest config saved to: %s\n", configOutPath)
}

// writeLogRow appends row to the log, writing the header on the first row.
func writeLogRow(f *os.File, row logRow, header bool) error {
	rows := []logRow{row}
	if header {
		return gocsv.Marshal(rows, f)
	}
	return gocsv.MarshalWithoutHeaders(rows, f)
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
