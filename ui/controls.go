package ui

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flock/config"
)

// ControlState is the simulation state the panel reflects.
type ControlState struct {
	Mode           string
	ComputeOK      bool // compute mode available on this GPU
	Paused         bool
	StepsPerUpdate int
}

// ControlActions reports what the user changed this frame.
type ControlActions struct {
	Mode           string // empty when unchanged
	TogglePause    bool
	Step           bool
	Reset          bool
	StepsPerUpdate int
}

// ControlsPanel renders the raygui control panel on the left of the screen.
type ControlsPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
	visible  bool
}

// NewControlsPanel creates a new controls panel.
func NewControlsPanel(x, y, width int32, visible bool) *ControlsPanel {
	return &ControlsPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
		visible:  visible,
	}
}

// IsVisible returns whether the panel is shown.
func (c *ControlsPanel) IsVisible() bool {
	return c.visible
}

// Toggle switches panel visibility.
func (c *ControlsPanel) Toggle() bool {
	c.visible = !c.visible
	return c.visible
}

// SetPosition moves the panel.
func (c *ControlsPanel) SetPosition(x, y int32) {
	c.x = x
	c.y = y
}

// Height returns the panel height in pixels.
func (c *ControlsPanel) Height() int32 {
	t := c.renderer.Theme
	const rows = 5
	return rows*(t.LineHeight+6) + t.Padding*2
}

// Contains reports whether a screen point lies on the visible panel, so
// world clicks under it can be ignored.
func (c *ControlsPanel) Contains(x, y float32) bool {
	if !c.visible {
		return false
	}
	return x >= float32(c.x) && x <= float32(c.x+c.width) &&
		y >= float32(c.y) && y <= float32(c.y+c.Height())
}

// Draw renders the panel and returns the actions taken.
func (c *ControlsPanel) Draw(state ControlState) ControlActions {
	actions := ControlActions{StepsPerUpdate: state.StepsPerUpdate}
	if !c.visible {
		return actions
	}

	r := c.renderer
	pad := r.Theme.Padding
	row := float32(r.Theme.LineHeight + 6)
	r.DrawPanel(c.x, c.y, c.width, c.Height())

	x := float32(c.x + pad)
	y := float32(r.DrawSectionHeader(c.x+pad, c.y+pad, "Controls"))
	inner := float32(c.width - pad*2)

	// Mode buttons
	modes := []string{config.ModeCPU, config.ModePoints, config.ModeCompute}
	bw := (inner - 8) / float32(len(modes))
	for i, m := range modes {
		label := m
		if m == state.Mode {
			label = "[" + m + "]"
		}
		if m == config.ModeCompute && !state.ComputeOK {
			label = "(" + m + ")"
		}
		b := rl.Rectangle{X: x + float32(i)*(bw+4), Y: y, Width: bw, Height: row - 4}
		if gui.Button(b, label) && m != state.Mode {
			actions.Mode = m
		}
	}
	y += row

	// Pause, step, reset
	pauseText := "Pause"
	if state.Paused {
		pauseText = "Resume"
	}
	bw = (inner - 8) / 3
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: bw, Height: row - 4}, pauseText) {
		actions.TogglePause = true
	}
	if gui.Button(rl.Rectangle{X: x + bw + 4, Y: y, Width: bw, Height: row - 4}, "Step") {
		actions.Step = true
	}
	if gui.Button(rl.Rectangle{X: x + 2*(bw+4), Y: y, Width: bw, Height: row - 4}, "Reset") {
		actions.Reset = true
	}
	y += row

	// Steps per update
	rl.DrawText(fmt.Sprintf("steps/update: %d", state.StepsPerUpdate), int32(x), int32(y), r.Theme.FontSize, r.Theme.LabelColor)
	y += row - 4
	steps := gui.SliderBar(rl.Rectangle{X: x + 20, Y: y, Width: inner - 40, Height: row - 8}, "1", "10", float32(state.StepsPerUpdate), 1, 10)
	actions.StepsPerUpdate = int(steps + 0.5)

	return actions
}
