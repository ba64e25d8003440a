package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/ui"
)

const controlsLegend = "SPACE pause | N step | R reset | 1/2/3 mode | ,/. speed | wheel zoom | right-drag pan | H panel | P perf"

// Draw renders the current frame.
func (g *Game) Draw() {
	rl.BeginDrawing()
	rl.ClearBackground(g.bgColor)

	g.DrawWorld()

	g.inspector.DrawSelectionHighlight(g.camera, g.frame, &g.params)
	g.drawUI()

	rl.EndDrawing()
}

// DrawWorld draws the background and the flock without any UI. Callers
// outside Draw must wrap it in their own BeginDrawing or texture mode.
func (g *Game) DrawWorld() {
	g.background.Draw(g.camera.X, g.camera.Y, g.camera.Zoom, g.params.Edge, float32(g.cfg.Render.GridSpacing))

	size := float32(g.cfg.Render.BoidSize)
	switch {
	case g.mode == config.ModeCPU || g.points == nil:
		g.circles.Draw(g.frame, g.boidRadius(), g.boidColor)
	default:
		// points and compute share the vertex buffer path
		g.points.Draw(g.frame, g.camera.View(), size, g.boidColor)
	}
}

// boidRadius is the circle radius in world units.
func (g *Game) boidRadius() float32 {
	return float32(g.cfg.Render.BoidSize)
}

// drawUI draws the HUD, the control panel and the inspector.
func (g *Game) drawUI() {
	clients := 0
	if g.hub != nil {
		clients = g.hub.Clients()
	}

	g.hud.Draw(ui.HUDData{
		Title:          "Flock",
		Mode:           g.mode,
		Search:         g.cfg.Flocking.NeighborSearch,
		Boids:          len(g.frame),
		NonFinite:      g.nonFinite,
		Tick:           g.tick,
		SimTime:        g.simTime,
		StepsPerUpdate: g.stepsPerUpdate,
		FPS:            rl.GetFPS(),
		Polarization:   g.lastStats.Polarization,
		Clients:        clients,
		Paused:         g.paused,
	})
	g.hud.DrawControls(int32(g.screenWidth), int32(g.screenHeight), controlsLegend)

	actions := g.controls.Draw(ui.ControlState{
		Mode:           g.mode,
		ComputeOK:      g.modeAvailable(config.ModeCompute),
		Paused:         g.paused,
		StepsPerUpdate: g.stepsPerUpdate,
	})
	g.applyControlActions(actions)

	if g.showPerf {
		y := int32(125)
		if g.controls.IsVisible() {
			y += g.controls.Height() + 10
		}
		g.perfPanel.SetPosition(10, y)
		g.perfPanel.Draw(g.perfCollector.Stats())
	}

	g.inspector.Draw(&g.params)
}

// applyControlActions applies the panel's button and slider results. They
// take effect on the next Update.
func (g *Game) applyControlActions(a ui.ControlActions) {
	if a.Mode != "" {
		g.SetMode(a.Mode)
	}
	if a.TogglePause {
		g.paused = !g.paused
	}
	if a.Step {
		g.paused = true
		g.stepOnce = true
	}
	if a.Reset {
		g.Reset()
	}
	g.stepsPerUpdate = max(1, min(maxStepsPerUpdate, a.StepsPerUpdate))
}
