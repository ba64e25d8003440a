// Package game owns the flock: the ECS world holding the boids, the update
// loop for each execution mode, input, drawing and telemetry hooks.
package game

import (
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/flock/camera"
	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/inspector"
	"github.com/pthm-cable/flock/renderer"
	"github.com/pthm-cable/flock/stream"
	"github.com/pthm-cable/flock/systems"
	"github.com/pthm-cable/flock/telemetry"
	"github.com/pthm-cable/flock/ui"
)

// Options configures a game instance.
type Options struct {
	Config         *config.Config // nil uses config.Cfg()
	Mode           string         // overrides render.mode when set
	Headless       bool
	LogStats       bool
	OutputDir      string
	StepsPerUpdate int
	StatsCallback  func(telemetry.WindowStats)
	Hub            *stream.Hub // receives encoded frames when set
}

// Game holds the complete simulation state.
type Game struct {
	cfg    *config.Config
	params systems.Params

	world      *ecs.World
	boidMapper *ecs.Map3[components.Position, components.Velocity, components.Boid]
	boidFilter *ecs.Filter3[components.Position, components.Velocity, components.Boid]

	// frame is the current state in Boid.Index order; next receives the
	// update before it is written back to the world.
	frame []systems.Boid
	next  []systems.Boid

	spatialGrid *systems.SpatialGrid
	parallel    *parallelState

	// Rendering (nil in headless mode)
	camera     *camera.Camera
	background *renderer.BackgroundRenderer
	circles    *renderer.CircleRenderer
	points     *renderer.PointRenderer
	compute    *renderer.ComputeFlock
	inspector  *inspector.Inspector
	hud        *ui.HUD
	controls   *ui.ControlsPanel
	perfPanel  *ui.PerfPanel
	boidColor  rl.Color
	bgColor    rl.Color

	// Telemetry
	collector        *telemetry.Collector
	perfCollector    *telemetry.PerfCollector
	bookmarkDetector *telemetry.BookmarkDetector
	outputManager    *telemetry.OutputManager
	statsCallback    func(telemetry.WindowStats)
	logStats         bool
	lastStats        telemetry.WindowStats

	// Streaming
	hub       *stream.Hub
	streamBuf []byte

	// State
	mode           string
	tick           int32
	simTime        float64
	paused         bool
	stepOnce       bool
	stepsPerUpdate int
	headless       bool
	nonFinite      int
	zeroSpeed      int // boids with exactly zero speed in the last step
	zeroSpeedTotal int
	showPerf       bool

	screenWidth, screenHeight float32
}

// NewGameWithOptions creates a game. Outside headless mode the raylib window
// must already be open.
func NewGameWithOptions(opts Options) *Game {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}

	mode := cfg.Render.Mode
	if opts.Mode != "" {
		mode = opts.Mode
	}
	steps := opts.StepsPerUpdate
	if steps < 1 {
		steps = 1
	}

	world := ecs.NewWorld()
	g := &Game{
		cfg:            cfg,
		params:         systems.ParamsFromConfig(cfg.Flocking),
		world:          world,
		boidMapper:     ecs.NewMap3[components.Position, components.Velocity, components.Boid](world),
		boidFilter:     ecs.NewFilter3[components.Position, components.Velocity, components.Boid](world),
		parallel:       newParallelState(cfg.Parallel.Workers, cfg.Parallel.Threshold),
		mode:           mode,
		stepsPerUpdate: steps,
		headless:       opts.Headless,
		logStats:       opts.LogStats,
		statsCallback:  opts.StatsCallback,
		hub:            opts.Hub,
		screenWidth:    cfg.Derived.ScreenW32,
		screenHeight:   cfg.Derived.ScreenH32,
	}

	if cfg.Flocking.NeighborSearch == config.NeighborGrid {
		g.spatialGrid = systems.NewSpatialGrid(2*g.params.Edge, g.params.VisualRange)
	}

	g.initTelemetry(opts.OutputDir)
	g.spawnGrid()

	if !g.headless {
		g.initGraphics()
	} else if g.mode == config.ModeCompute {
		slog.Warn("compute mode needs a GPU context, using the CPU update", "mode", g.mode)
		g.mode = config.ModeCPU
	}

	return g
}

// initTelemetry sets up the stats collector, perf collector and output files.
func (g *Game) initTelemetry(outputDir string) {
	tickSec := 1 / g.cfg.Physics.TimeScale
	g.collector = telemetry.NewCollector(g.cfg.Telemetry.StatsWindow, tickSec)
	g.perfCollector = telemetry.NewPerfCollector(g.cfg.Telemetry.PerfCollectorWindow)
	g.bookmarkDetector = telemetry.NewBookmarkDetector(10)

	om, err := telemetry.NewOutputManager(outputDir)
	if err != nil {
		slog.Error("failed to create output manager", "error", err)
		return
	}
	g.outputManager = om
	if err := om.WriteConfig(g.cfg); err != nil {
		slog.Error("failed to write config", "error", err)
	}
}

// initGraphics loads the renderers. Failures degrade the available modes
// instead of aborting.
func (g *Game) initGraphics() {
	cfg := g.cfg
	n := len(g.frame)

	g.boidColor = rgba(cfg.Render.Color)
	g.bgColor = rgba(cfg.Render.Background)

	g.camera = camera.New(g.screenWidth, g.screenHeight, 2*g.params.Edge)
	g.background = renderer.NewBackgroundRenderer(cfg.GPU.BackgroundShader, int32(g.screenWidth), int32(g.screenHeight), g.bgColor)
	g.background.Init()
	g.circles = renderer.NewCircleRenderer(g.camera)

	points, err := renderer.NewPointRenderer(cfg.GPU.VertexShader, cfg.GPU.FragmentShader, n)
	if err != nil {
		slog.Error("points renderer unavailable", "error", err)
	}
	g.points = points

	cf, err := renderer.NewComputeFlock(cfg.GPU.ComputeShader, cfg.GPU.WorkgroupSize, n)
	if err != nil {
		slog.Error("compute flock unavailable", "error", err)
	}
	g.compute = cf

	if !g.modeAvailable(g.mode) {
		fallback := config.ModePoints
		if !g.modeAvailable(fallback) {
			fallback = config.ModeCPU
		}
		slog.Warn("render mode unavailable, falling back", "mode", g.mode, "fallback", fallback)
		g.mode = fallback
	}

	w, h := int32(g.screenWidth), int32(g.screenHeight)
	g.inspector = inspector.NewInspector(w, h)
	g.hud = ui.NewHUD()
	g.controls = ui.NewControlsPanel(10, 125, 260, cfg.Render.ShowPanel)
	g.perfPanel = ui.NewPerfPanel(10, 125+g.controls.Height()+10, 260)
}

// spawnGrid creates one entity per boid on the initial lattice.
func (g *Game) spawnGrid() {
	boids := systems.GenerateGrid(g.cfg.Boids.Count, float32(g.cfg.Boids.Spacing))
	for i, b := range boids {
		pos := components.Position{X: b.X, Y: b.Y}
		vel := components.Velocity{X: b.VX, Y: b.VY}
		tag := components.Boid{Index: uint32(i)}
		g.boidMapper.NewEntity(&pos, &vel, &tag)
	}
	g.frame = boids
	g.next = make([]systems.Boid, len(boids))
}

// Reset puts every boid back on the initial lattice and restarts the clock.
// Entities are reused; the flock size never changes.
func (g *Game) Reset() {
	boids := systems.GenerateGrid(g.cfg.Boids.Count, float32(g.cfg.Boids.Spacing))

	query := g.boidFilter.Query()
	for query.Next() {
		pos, vel, tag := query.Get()
		b := boids[tag.Index]
		pos.X, pos.Y = b.X, b.Y
		vel.X, vel.Y = b.VX, b.VY
	}

	copy(g.frame, boids)
	g.tick = 0
	g.simTime = 0
	g.nonFinite = 0
	g.zeroSpeed, g.zeroSpeedTotal = 0, 0
	g.lastStats = telemetry.WindowStats{}
	g.collector.Reset(0)
	g.bookmarkDetector.Reset()
	if g.inspector != nil {
		g.inspector.Deselect()
	}
	slog.Info("flock reset", "boids", len(boids))
}

// modeAvailable reports whether the renderers for mode loaded.
func (g *Game) modeAvailable(mode string) bool {
	switch mode {
	case config.ModeCPU:
		return true
	case config.ModePoints:
		return g.points != nil
	case config.ModeCompute:
		return g.compute != nil && g.points != nil
	}
	return false
}

// SetMode switches the execution mode if it is available.
func (g *Game) SetMode(mode string) bool {
	if mode == g.mode {
		return true
	}
	if g.headless || !g.modeAvailable(mode) {
		slog.Warn("mode unavailable", "mode", mode)
		return false
	}
	slog.Info("mode changed", "from", g.mode, "to", mode)
	g.mode = mode
	return true
}

// Unload releases GPU resources, stops the worker pool and closes output files.
func (g *Game) Unload() {
	g.parallel.stopWorkers()

	if g.background != nil {
		g.background.Unload()
	}
	if g.points != nil {
		g.points.Unload()
	}
	if g.compute != nil {
		g.compute.Unload()
	}

	if err := g.outputManager.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
}

// Tick returns the number of simulation steps taken since the last reset.
func (g *Game) Tick() int32 {
	return g.tick
}

// SimTime returns the elapsed simulation time in time units.
func (g *Game) SimTime() float64 {
	return g.simTime
}

// Mode returns the active execution mode.
func (g *Game) Mode() string {
	return g.mode
}

// Boids returns the current flock state in index order. The slice is owned
// by the game and is overwritten by the next step.
func (g *Game) Boids() []systems.Boid {
	return g.frame
}

// LastStats returns the most recently flushed telemetry window.
func (g *Game) LastStats() telemetry.WindowStats {
	return g.lastStats
}

// Camera returns the view camera, nil in headless mode.
func (g *Game) Camera() *camera.Camera {
	return g.camera
}

func rgba(c [4]uint8) rl.Color {
	return rl.Color{R: c[0], G: c[1], B: c[2], A: c[3]}
}
