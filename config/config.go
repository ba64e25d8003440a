// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Render modes.
const (
	ModeCPU     = "cpu"     // CPU update, one circle per boid drawn by raylib
	ModePoints  = "points"  // CPU update, GPU vertex buffer + shader
	ModeCompute = "compute" // GPU compute update, GPU vertex buffer + shader
)

// Zero-speed policies for the speed clamp.
const (
	ZeroSpeedNaN  = "nan"  // divide anyway; non-finite values propagate
	ZeroSpeedHold = "hold" // leave a stationary boid stationary
)

// Neighbor search strategies.
const (
	NeighborBrute = "brute"
	NeighborGrid  = "grid"
)

// Config holds all simulation configuration parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	Boids     BoidsConfig     `yaml:"boids"`
	Flocking  FlockingConfig  `yaml:"flocking"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Parallel  ParallelConfig  `yaml:"parallel"`
	Render    RenderConfig    `yaml:"render"`
	GPU       GPUConfig       `yaml:"gpu"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Stream    StreamConfig    `yaml:"stream"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	TargetFPS int `yaml:"target_fps"`
}

// BoidsConfig holds the initial grid layout.
type BoidsConfig struct {
	Count   int     `yaml:"count"`
	Spacing float64 `yaml:"spacing"` // lattice spacing in world units
}

// FlockingConfig holds the flocking rule parameters.
type FlockingConfig struct {
	TurnFactor      float64 `yaml:"turn_factor"`
	VisualRange     float64 `yaml:"visual_range"`
	ProtectedRange  float64 `yaml:"protected_range"`
	CenteringFactor float64 `yaml:"centering_factor"`
	AvoidFactor     float64 `yaml:"avoid_factor"`
	MatchingFactor  float64 `yaml:"matching_factor"`
	SpeedMin        float64 `yaml:"speed_min"`
	SpeedMax        float64 `yaml:"speed_max"`
	Edge            float64 `yaml:"edge"`            // |x| or |y| beyond this turns the boid back
	ZeroSpeed       string  `yaml:"zero_speed"`      // nan | hold
	NeighborSearch  string  `yaml:"neighbor_search"` // brute | grid
}

// PhysicsConfig holds integration parameters.
type PhysicsConfig struct {
	// TimeScale converts frame seconds into simulation time units.
	// Velocities are expressed per 1/TimeScale seconds.
	TimeScale float64 `yaml:"time_scale"`
	// FixedDT, when positive, replaces the measured frame time (in simulation units).
	FixedDT float64 `yaml:"fixed_dt"`
	// MaxDT caps the measured frame time (in simulation units) after stalls.
	MaxDT float64 `yaml:"max_dt"`
}

// ParallelConfig holds worker pool parameters.
type ParallelConfig struct {
	Workers   int `yaml:"workers"`   // 0 = GOMAXPROCS
	Threshold int `yaml:"threshold"` // below this count the step runs single-threaded
}

// RenderConfig holds drawing parameters.
type RenderConfig struct {
	Mode        string   `yaml:"mode"`
	BoidSize    float64  `yaml:"boid_size"` // circle radius in world units, triangle radius in pixels
	Color       [4]uint8 `yaml:"color,flow"`
	Background  [4]uint8 `yaml:"background,flow"`
	GridSpacing float64  `yaml:"grid_spacing"` // background grid, world units
	ShowPanel   bool     `yaml:"show_panel"`
}

// GPUConfig holds GPU pipeline parameters.
type GPUConfig struct {
	WorkgroupSize    int    `yaml:"workgroup_size"`
	ComputeShader    string `yaml:"compute_shader"`
	VertexShader     string `yaml:"vertex_shader"`
	FragmentShader   string `yaml:"fragment_shader"`
	BackgroundShader string `yaml:"background_shader"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"` // seconds of simulation time
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
}

// StreamConfig holds websocket frame streaming parameters.
type StreamConfig struct {
	Addr       string `yaml:"addr"`        // empty = disabled
	EveryTicks int    `yaml:"every_ticks"` // broadcast every N ticks
	ClientBuf  int    `yaml:"client_buf"`  // frames queued per client before dropping
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	ScreenW32   float32 // Screen.Width as float32
	ScreenH32   float32 // Screen.Height as float32
	FixedDT32   float32 // Physics.FixedDT as float32
	TimeScale32 float32 // Physics.TimeScale as float32
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.computeDerived()

	return cfg, nil
}

// Defaults returns a fresh copy of the embedded defaults.
func Defaults() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	cfg.computeDerived()
	return cfg, nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Validate checks the configuration for values the simulation cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Boids.Count < 0 {
		errs = append(errs, fmt.Errorf("boids.count must be >= 0, got %d", c.Boids.Count))
	}
	if c.Boids.Spacing <= 0 {
		errs = append(errs, fmt.Errorf("boids.spacing must be > 0, got %g", c.Boids.Spacing))
	}

	f := c.Flocking
	if f.VisualRange < 0 || f.ProtectedRange < 0 {
		errs = append(errs, errors.New("flocking ranges must be >= 0"))
	}
	if f.ProtectedRange > f.VisualRange {
		errs = append(errs, fmt.Errorf("flocking.protected_range (%g) exceeds visual_range (%g)", f.ProtectedRange, f.VisualRange))
	}
	if f.SpeedMin < 0 || f.SpeedMin > f.SpeedMax {
		errs = append(errs, fmt.Errorf("flocking speed bounds invalid: min=%g max=%g", f.SpeedMin, f.SpeedMax))
	}
	if f.Edge <= 0 {
		errs = append(errs, fmt.Errorf("flocking.edge must be > 0, got %g", f.Edge))
	}
	switch f.ZeroSpeed {
	case ZeroSpeedNaN, ZeroSpeedHold:
	default:
		errs = append(errs, fmt.Errorf("flocking.zero_speed: unknown policy %q", f.ZeroSpeed))
	}
	switch f.NeighborSearch {
	case NeighborBrute:
	case NeighborGrid:
		if f.VisualRange <= 0 {
			errs = append(errs, fmt.Errorf("flocking.visual_range must be > 0 for grid search, got %g", f.VisualRange))
		}
	default:
		errs = append(errs, fmt.Errorf("flocking.neighbor_search: unknown strategy %q", f.NeighborSearch))
	}

	if c.Physics.TimeScale <= 0 {
		errs = append(errs, fmt.Errorf("physics.time_scale must be > 0, got %g", c.Physics.TimeScale))
	}
	if !ValidMode(c.Render.Mode) {
		errs = append(errs, fmt.Errorf("render.mode: unknown mode %q", c.Render.Mode))
	}
	if c.GPU.WorkgroupSize <= 0 {
		errs = append(errs, fmt.Errorf("gpu.workgroup_size must be > 0, got %d", c.GPU.WorkgroupSize))
	}
	if c.Parallel.Workers < 0 {
		errs = append(errs, fmt.Errorf("parallel.workers must be >= 0, got %d", c.Parallel.Workers))
	}

	return errors.Join(errs...)
}

// ValidMode reports whether mode names a known render mode.
func ValidMode(mode string) bool {
	switch mode {
	case ModeCPU, ModePoints, ModeCompute:
		return true
	}
	return false
}

// Refresh recomputes derived values after fields were changed in code.
func (c *Config) Refresh() {
	c.computeDerived()
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.ScreenW32 = float32(c.Screen.Width)
	c.Derived.ScreenH32 = float32(c.Screen.Height)
	c.Derived.FixedDT32 = float32(c.Physics.FixedDT)
	c.Derived.TimeScale32 = float32(c.Physics.TimeScale)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
