package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flock/telemetry"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title          string
	Mode           string
	Search         string
	Boids          int
	NonFinite      int
	Tick           int32
	SimTime        float64
	StepsPerUpdate int
	FPS            int32
	Polarization   float64
	Clients        int
	Paused         bool
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{renderer: NewRenderer()}
}

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	theme := h.renderer.Theme

	rl.DrawText(data.Title, 10, 10, 20, rl.White)
	rl.DrawText(
		fmt.Sprintf("Mode: %s | Boids: %d | Search: %s", data.Mode, data.Boids, data.Search),
		10, 35, 16, rl.LightGray,
	)
	rl.DrawText(
		fmt.Sprintf("Tick: %d | Time: %.0f | Speed: %dx | FPS: %d", data.Tick, data.SimTime, data.StepsPerUpdate, data.FPS),
		10, 55, 16, rl.LightGray,
	)

	y := int32(75)
	line := fmt.Sprintf("Polarization: %.2f", data.Polarization)
	if data.Clients > 0 {
		line += fmt.Sprintf(" | Viewers: %d", data.Clients)
	}
	rl.DrawText(line, 10, y, 16, rl.LightGray)
	y += 20

	if data.NonFinite > 0 {
		rl.DrawText(fmt.Sprintf("Non-finite boids: %d", data.NonFinite), 10, y, 16, theme.WarnColor)
		y += 20
	}

	status := "Running"
	if data.Paused {
		status = "PAUSED"
	}
	rl.DrawText(status, 10, y, 16, rl.Yellow)
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenWidth, screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// PerfPanel renders the per-phase timing breakdown.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y, width int32) *PerfPanel {
	return &PerfPanel{renderer: NewRenderer(), x: x, y: y, width: width}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the panel. Phases that did not run in the window are skipped.
func (p *PerfPanel) Draw(stats telemetry.PerfStats) {
	r := p.renderer
	pad := r.Theme.Padding

	rows := PhaseRows(stats)
	height := r.Theme.LineHeight*int32(len(rows)+3) + pad*2
	r.DrawPanel(p.x, p.y, p.width, height)

	x := p.x + pad
	y := r.DrawSectionHeader(x, p.y+pad, "Step timing")
	y = r.DrawLabelValue(x, y, "tick", fmt.Sprintf("%dus (%.0f/s)", stats.AvgTickDuration.Microseconds(), stats.TicksPerSecond))
	y = r.DrawLabelValue(x, y, "p95", fmt.Sprintf("%dus", stats.P95TickDuration.Microseconds()))
	for _, row := range rows {
		y = r.DrawBar(x, y, row.Phase.String(), row.Pct/100, p.width-pad*2)
	}
}

// PhaseRow is one line of the perf panel.
type PhaseRow struct {
	Phase telemetry.Phase
	Pct   float64
}

// PhaseRows lists the phases present in stats in step order.
func PhaseRows(stats telemetry.PerfStats) []PhaseRow {
	var rows []PhaseRow
	for _, phase := range telemetry.Phases() {
		if stats.Ran(phase) {
			rows = append(rows, PhaseRow{Phase: phase, Pct: stats.PhasePct[phase]})
		}
	}
	return rows
}
