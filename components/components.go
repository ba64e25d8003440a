// Package components defines ECS components for the simulation.
package components

// Position represents a boid's world position.
// The world is centered on the origin, y pointing down on screen.
type Position struct {
	X float32 `inspect:"label,fmt:%.1f"`
	Y float32 `inspect:"label,fmt:%.1f"`
}

// Velocity represents a boid's velocity in world units per simulation time unit.
type Velocity struct {
	X float32 `inspect:"label,fmt:%.2f"`
	Y float32 `inspect:"label,fmt:%.2f"`
}

// Boid tags a flock member. Index is the boid's slot in every flat snapshot
// and GPU buffer; it is assigned once at spawn and never reused.
type Boid struct {
	Index uint32 `inspect:"label"`
}
