// Package inspector lets the user click a boid and see its state and the
// neighborhood the flocking rule sees for it.
package inspector

import (
	"fmt"

	"github.com/chewxy/math32"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flock/camera"
	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/systems"
)

// Panel dimensions
const (
	PanelWidth   = 280
	PanelPadding = 10
	HeaderHeight = 30
)

// Panel colors
var (
	ColorPanelBg     = rl.Color{R: 30, G: 30, B: 35, A: 240}
	ColorPanelHeader = rl.Color{R: 45, G: 45, B: 55, A: 255}
	ColorPanelBorder = rl.Color{R: 70, G: 70, B: 80, A: 255}
	ColorHeaderText  = rl.Color{R: 255, G: 255, B: 255, A: 255}
	ColorCloseBtn    = rl.Color{R: 180, G: 80, B: 80, A: 255}
	ColorSection     = rl.Color{R: 50, G: 50, B: 60, A: 255}
	ColorSectionText = rl.Color{R: 200, G: 200, B: 220, A: 255}
	ColorVisualRing  = rl.Color{R: 120, G: 200, B: 255, A: 90}
	ColorCloseRing   = rl.Color{R: 255, G: 120, B: 100, A: 140}
	ColorNeighbor    = rl.Color{R: 120, G: 200, B: 255, A: 60}
)

// pickSlop is the click tolerance in screen pixels.
const pickSlop = 8

// Detail is what the rule did to the selected boid in a zero-length step
// over the current snapshot.
type Detail struct {
	Speed     float32 `inspect:"bar,fmt:%.2f"`
	Heading   float32 `inspect:"angle"`
	Neighbors int32   `inspect:"label"`
	Close     int32   `inspect:"label"`
	EdgeTurns uint8   `inspect:"label"`
	Clamp     string  `inspect:"label"`
	Finite    bool
}

// Inspector tracks the selected boid and draws its panel.
type Inspector struct {
	selected     int
	panelX       int32
	panelY       int32
	screenWidth  int32
	screenHeight int32

	pos    components.Position
	vel    components.Velocity
	tag    components.Boid
	detail Detail
}

// NewInspector creates an inspector with nothing selected.
func NewInspector(screenWidth, screenHeight int32) *Inspector {
	ins := &Inspector{selected: -1}
	ins.Resize(screenWidth, screenHeight)
	return ins
}

// Resize repositions the panel for a new window size.
func (ins *Inspector) Resize(screenWidth, screenHeight int32) {
	ins.screenWidth = screenWidth
	ins.screenHeight = screenHeight
	ins.panelX = screenWidth - PanelWidth - 10
	ins.panelY = 10
}

// Select marks boid i as selected.
func (ins *Inspector) Select(i int) {
	ins.selected = i
}

// Deselect clears the current selection.
func (ins *Inspector) Deselect() {
	ins.selected = -1
}

// Selected returns the selected boid index.
func (ins *Inspector) Selected() (int, bool) {
	return ins.selected, ins.selected >= 0
}

// PickNearest returns the index of the finite boid closest to (wx, wy)
// within radius, or -1.
func PickNearest(boids []systems.Boid, wx, wy, radius float32) int {
	best := -1
	bestDist := radius * radius
	for i, b := range boids {
		if !b.Finite() {
			continue
		}
		dx, dy := b.X-wx, b.Y-wy
		if d := dx*dx + dy*dy; d <= bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// HandleInput processes selection clicks. Returns true when the click was
// consumed by the inspector.
func (ins *Inspector) HandleInput(mouseX, mouseY float32, cam *camera.Camera, boids []systems.Boid, boidRadius float32) bool {
	if rl.IsKeyPressed(rl.KeyEscape) {
		ins.Deselect()
		return false
	}
	if !rl.IsMouseButtonPressed(rl.MouseButtonLeft) {
		return false
	}

	mx, my := int32(mouseX), int32(mouseY)
	if ins.selected >= 0 {
		closeX := ins.panelX + PanelWidth - 25
		closeY := ins.panelY + 5
		if mx >= closeX && mx <= closeX+20 && my >= closeY && my <= closeY+20 {
			ins.Deselect()
			return true
		}
		if mx >= ins.panelX && mx <= ins.panelX+PanelWidth && my >= ins.panelY && my <= ins.panelY+ins.panelHeight() {
			return true
		}
	}

	wx, wy := cam.ScreenToWorld(mouseX, mouseY)
	radius := boidRadius + pickSlop/cam.Zoom
	if i := PickNearest(boids, wx, wy, radius); i >= 0 {
		ins.selected = i
		return true
	}
	ins.Deselect()
	return false
}

// Update refreshes the cached state of the selected boid from the snapshot.
// The selection is dropped when the index no longer exists.
func (ins *Inspector) Update(boids []systems.Boid, p *systems.Params) {
	if ins.selected < 0 {
		return
	}
	if ins.selected >= len(boids) {
		ins.Deselect()
		return
	}

	b := boids[ins.selected]
	ins.pos = components.Position{X: b.X, Y: b.Y}
	ins.vel = components.Velocity{X: b.VX, Y: b.VY}
	ins.tag = components.Boid{Index: uint32(ins.selected)}

	_, out := systems.UpdateBoid(boids, ins.selected, 0, p)
	ins.detail = Detail{
		Speed:     b.Speed(),
		Heading:   math32.Atan2(b.VY, b.VX),
		Neighbors: out.Neighbors,
		Close:     out.Close,
		EdgeTurns: out.EdgeTurns,
		Clamp:     clampName(out.Clamp, out.ZeroSpeed),
		Finite:    b.Finite(),
	}
}

func clampName(c int8, zero bool) string {
	switch {
	case zero:
		return "zero speed"
	case c == systems.ClampUp:
		return "raised to min"
	case c == systems.ClampDown:
		return "lowered to max"
	}
	return "none"
}

// DrawSelectionHighlight draws the visual and protected range rings around
// the selected boid and marks the boids it can see. Call inside the world
// camera pass (screen coordinates from cam).
func (ins *Inspector) DrawSelectionHighlight(cam *camera.Camera, boids []systems.Boid, p *systems.Params) {
	if ins.selected < 0 || ins.selected >= len(boids) {
		return
	}
	self := boids[ins.selected]
	if !self.Finite() {
		return
	}

	sx, sy := cam.WorldToScreen(self.X, self.Y)
	center := rl.Vector2{X: sx, Y: sy}

	for i, b := range boids {
		if i == ins.selected || !b.Finite() {
			continue
		}
		dx, dy := self.X-b.X, self.Y-b.Y
		if math32.Sqrt(dx*dx+dy*dy) < p.VisualRange {
			bx, by := cam.WorldToScreen(b.X, b.Y)
			rl.DrawLineV(center, rl.Vector2{X: bx, Y: by}, ColorNeighbor)
		}
	}

	rl.DrawCircleLinesV(center, p.VisualRange*cam.Zoom, ColorVisualRing)
	rl.DrawCircleLinesV(center, p.ProtectedRange*cam.Zoom, ColorCloseRing)
	rl.DrawCircleLinesV(center, 6, rl.Yellow)
}

// Draw renders the panel for the selected boid. p supplies the speed bar scale.
func (ins *Inspector) Draw(p *systems.Params) {
	if ins.selected < 0 {
		return
	}

	h := ins.panelHeight()
	rl.DrawRectangle(ins.panelX, ins.panelY, PanelWidth, h, ColorPanelBg)
	rl.DrawRectangleLinesEx(
		rl.Rectangle{X: float32(ins.panelX), Y: float32(ins.panelY), Width: PanelWidth, Height: float32(h)},
		1,
		ColorPanelBorder,
	)

	rl.DrawRectangle(ins.panelX, ins.panelY, PanelWidth, HeaderHeight, ColorPanelHeader)
	rl.DrawText(fmt.Sprintf("BOID #%d", ins.tag.Index), ins.panelX+PanelPadding, ins.panelY+7, 16, ColorHeaderText)

	closeX := ins.panelX + PanelWidth - 25
	closeY := ins.panelY + 5
	rl.DrawRectangle(closeX, closeY, 20, 20, ColorCloseBtn)
	rl.DrawText("X", closeX+6, closeY+3, 14, rl.White)

	x := ins.panelX + PanelPadding
	y := ins.panelY + HeaderHeight + PanelPadding

	y += ins.drawSection(x, y, "POSITION", &ins.pos)
	y += ins.drawSection(x, y, "VELOCITY", &ins.vel)

	ins.drawSectionHeader(x, y, "RULE")
	y += 20
	for _, f := range ExtractFields(&ins.detail) {
		if f.Name == "Speed" {
			f.Options["max"] = fmt.Sprint(p.SpeedMax)
		}
		y += DrawField(x, y, f)
	}
}

func (ins *Inspector) drawSection(x, y int32, title string, v any) int32 {
	ins.drawSectionHeader(x, y, title)
	return 20 + DrawFields(x, y+20, v) + 6
}

// drawSectionHeader renders a section title.
func (ins *Inspector) drawSectionHeader(x, y int32, title string) {
	rl.DrawRectangle(x-2, y-2, PanelWidth-2*PanelPadding+4, 18, ColorSection)
	rl.DrawText(title, x+2, y, 14, ColorSectionText)
}

// panelHeight computes the panel height from the drawn rows.
func (ins *Inspector) panelHeight() int32 {
	h := int32(HeaderHeight + PanelPadding)
	h += 3 * 20         // section headers
	h += 2*(2*18) + 2*6 // position and velocity rows
	h += 6*18 + 44      // detail rows plus the angle widget
	return h + PanelPadding
}
