package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flock/camera"
	"github.com/pthm-cable/flock/systems"
)

// CircleRenderer draws one filled circle per boid through raylib's batch.
type CircleRenderer struct {
	cam *camera.Camera
}

// NewCircleRenderer creates a circle renderer projecting through cam.
func NewCircleRenderer(cam *camera.Camera) *CircleRenderer {
	return &CircleRenderer{cam: cam}
}

// Draw renders every finite, visible boid. radius is in world units.
// Returns the number of circles drawn.
func (r *CircleRenderer) Draw(boids []systems.Boid, radius float32, color rl.Color) int {
	drawn := 0
	screenR := radius * r.cam.Zoom
	for i := range boids {
		b := &boids[i]
		if !b.Finite() || !r.cam.IsVisible(b.X, b.Y, radius) {
			continue
		}
		sx, sy := r.cam.WorldToScreen(b.X, b.Y)
		rl.DrawCircleV(rl.Vector2{X: sx, Y: sy}, screenR, color)
		drawn++
	}
	return drawn
}
