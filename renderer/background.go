// Package renderer draws the flock and its surroundings with raylib.
package renderer

import (
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// BackgroundRenderer fills the screen with a world-space grid and shades the
// region beyond the edge bound, where boids start turning back.
type BackgroundRenderer struct {
	shader        rl.Shader
	resolutionLoc int32
	cameraPosLoc  int32
	cameraZoomLoc int32
	edgeLoc       int32
	spacingLoc    int32
	baseColorLoc  int32

	fragPath         string
	screenW, screenH float32
	base             rl.Color
	baseColor        [3]float32
	initialized      bool
	valid            bool // shader compiled; otherwise Draw fills with base
}

// NewBackgroundRenderer creates a new background renderer.
func NewBackgroundRenderer(fragPath string, screenW, screenH int32, base rl.Color) *BackgroundRenderer {
	return &BackgroundRenderer{
		fragPath: fragPath,
		screenW:  float32(screenW),
		screenH:  float32(screenH),
		base:     base,
		baseColor: [3]float32{
			float32(base.R) / 255.0,
			float32(base.G) / 255.0,
			float32(base.B) / 255.0,
		},
	}
}

// Init initializes the renderer (must be called after raylib window is created).
func (b *BackgroundRenderer) Init() {
	if b.initialized {
		return
	}

	b.initialized = true
	b.shader = rl.LoadShader("", b.fragPath)
	b.valid = rl.IsShaderValid(b.shader)
	if !b.valid {
		slog.Warn("background shader unavailable, using a flat fill", "path", b.fragPath)
		return
	}

	b.resolutionLoc = rl.GetShaderLocation(b.shader, "resolution")
	b.cameraPosLoc = rl.GetShaderLocation(b.shader, "cameraPos")
	b.cameraZoomLoc = rl.GetShaderLocation(b.shader, "cameraZoom")
	b.edgeLoc = rl.GetShaderLocation(b.shader, "edge")
	b.spacingLoc = rl.GetShaderLocation(b.shader, "gridSpacing")
	b.baseColorLoc = rl.GetShaderLocation(b.shader, "baseColor")

	b.setResolution()
	rl.SetShaderValue(b.shader, b.baseColorLoc, b.baseColor[:], rl.ShaderUniformVec3)
}

func (b *BackgroundRenderer) setResolution() {
	resolution := []float32{b.screenW, b.screenH}
	rl.SetShaderValue(b.shader, b.resolutionLoc, resolution, rl.ShaderUniformVec2)
}

// Resize updates the screen size uniform.
func (b *BackgroundRenderer) Resize(screenW, screenH float32) {
	b.screenW, b.screenH = screenW, screenH
	if b.valid {
		b.setResolution()
	}
}

// Draw renders the background for the given camera and edge bound.
func (b *BackgroundRenderer) Draw(cameraX, cameraY, cameraZoom, edge, gridSpacing float32) {
	if !b.initialized {
		b.Init()
	}
	if !b.valid {
		rl.DrawRectangle(0, 0, int32(b.screenW), int32(b.screenH), b.base)
		return
	}

	rl.BeginShaderMode(b.shader)

	rl.SetShaderValue(b.shader, b.cameraPosLoc, []float32{cameraX, cameraY}, rl.ShaderUniformVec2)
	rl.SetShaderValue(b.shader, b.cameraZoomLoc, []float32{cameraZoom}, rl.ShaderUniformFloat)
	rl.SetShaderValue(b.shader, b.edgeLoc, []float32{edge}, rl.ShaderUniformFloat)
	rl.SetShaderValue(b.shader, b.spacingLoc, []float32{gridSpacing}, rl.ShaderUniformFloat)

	// Draw fullscreen quad
	rl.DrawRectangle(0, 0, int32(b.screenW), int32(b.screenH), rl.White)

	rl.EndShaderMode()
}

// Unload frees resources.
func (b *BackgroundRenderer) Unload() {
	if b.valid {
		rl.UnloadShader(b.shader)
	}
	b.initialized = false
	b.valid = false
}
