// Package systems provides the simulation systems: grid spawning, the flocking
// rule, neighbor search and the buffer layouts shared with the GPU path.
package systems

import (
	"github.com/chewxy/math32"

	"github.com/pthm-cable/flock/config"
)

// Boid is the flat per-agent state the flocking rule operates on.
// Field order matches the GPU storage layout (x, y, vx, vy).
type Boid struct {
	X, Y   float32
	VX, VY float32
}

// Speed returns the velocity magnitude.
func (b Boid) Speed() float32 {
	return math32.Sqrt(b.VX*b.VX + b.VY*b.VY)
}

// Finite reports whether every field of b is a finite number.
func (b Boid) Finite() bool {
	return finite(b.X) && finite(b.Y) && finite(b.VX) && finite(b.VY)
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}

// Params holds the flocking rule parameters as float32 for the hot loop.
type Params struct {
	TurnFactor      float32
	VisualRange     float32
	ProtectedRange  float32
	CenteringFactor float32
	AvoidFactor     float32
	MatchingFactor  float32
	SpeedMin        float32
	SpeedMax        float32
	Edge            float32

	// HoldZeroSpeed leaves a boid with exactly zero velocity untouched by the
	// speed clamp. When false the clamp divides by the zero speed and the
	// resulting NaNs propagate, which is what the reference rule does.
	HoldZeroSpeed bool
}

// ParamsFromConfig converts the flocking config section to Params.
func ParamsFromConfig(f config.FlockingConfig) Params {
	return Params{
		TurnFactor:      float32(f.TurnFactor),
		VisualRange:     float32(f.VisualRange),
		ProtectedRange:  float32(f.ProtectedRange),
		CenteringFactor: float32(f.CenteringFactor),
		AvoidFactor:     float32(f.AvoidFactor),
		MatchingFactor:  float32(f.MatchingFactor),
		SpeedMin:        float32(f.SpeedMin),
		SpeedMax:        float32(f.SpeedMax),
		Edge:            float32(f.Edge),
		HoldZeroSpeed:   f.ZeroSpeed == config.ZeroSpeedHold,
	}
}

// Clamp directions reported in Outcome.Clamp.
const (
	ClampNone int8 = 0
	ClampUp   int8 = -1 // raised to SpeedMin
	ClampDown int8 = 1  // lowered to SpeedMax
)

// Outcome describes what the rule did to a single boid in one update.
type Outcome struct {
	Neighbors int32 // boids within visual range
	Close     int32 // boids within protected range
	EdgeTurns uint8 // axes on which edge avoidance fired (0-2)
	Clamp     int8
	ZeroSpeed bool // pre-clamp speed was exactly zero
}

// Tally aggregates outcomes over a whole step.
type Tally struct {
	Neighbors int64
	EdgeTurns int
	ClampedUp int
	ClampedDn int
	ZeroSpeed int
}

// Add folds a single boid outcome into the tally.
func (t *Tally) Add(o Outcome) {
	t.Neighbors += int64(o.Neighbors)
	t.EdgeTurns += int(o.EdgeTurns)
	switch o.Clamp {
	case ClampUp:
		t.ClampedUp++
	case ClampDown:
		t.ClampedDn++
	}
	if o.ZeroSpeed {
		t.ZeroSpeed++
	}
}

// Merge adds another tally into t.
func (t *Tally) Merge(o Tally) {
	t.Neighbors += o.Neighbors
	t.EdgeTurns += o.EdgeTurns
	t.ClampedUp += o.ClampedUp
	t.ClampedDn += o.ClampedDn
	t.ZeroSpeed += o.ZeroSpeed
}

// accum holds the neighbor sums for one boid.
type accum struct {
	closeDX, closeDY float32
	velX, velY       float32
	posX, posY       float32
	neighbors        int32
	close            int32
}

// visit folds boid other into the sums if it is within range of self.
func (a *accum) visit(self, other Boid, p *Params) {
	dx := self.X - other.X
	dy := self.Y - other.Y
	dist := math32.Sqrt(dx*dx + dy*dy)

	if dist < p.VisualRange {
		a.velX += other.VX
		a.velY += other.VY
		a.posX += other.X
		a.posY += other.Y
		a.neighbors++

		if dist < p.ProtectedRange {
			a.closeDX += dx
			a.closeDY += dy
			a.close++
		}
	}
}

// UpdateBoid computes the next state of src[i] from the snapshot src,
// scanning every other boid. src is not modified.
func UpdateBoid(src []Boid, i int, dt float32, p *Params) (Boid, Outcome) {
	self := src[i]
	var a accum
	for j := range src {
		if j == i {
			continue
		}
		a.visit(self, src[j], p)
	}
	return integrate(self, &a, dt, p)
}

// UpdateBoidCandidates is UpdateBoid restricted to the given candidate
// indices. Candidates must be sorted ascending so sums accumulate in the same
// order as the full scan; i may appear and is skipped.
func UpdateBoidCandidates(src []Boid, i int, candidates []int32, dt float32, p *Params) (Boid, Outcome) {
	self := src[i]
	var a accum
	for _, j := range candidates {
		if int(j) == i {
			continue
		}
		a.visit(self, src[j], p)
	}
	return integrate(self, &a, dt, p)
}

// integrate applies the accumulated forces, edge avoidance and the speed
// clamp, then advances the position by one semi-implicit Euler step.
func integrate(b Boid, a *accum, dt float32, p *Params) (Boid, Outcome) {
	out := Outcome{Neighbors: a.neighbors, Close: a.close}

	if a.neighbors > 0 {
		n := float32(a.neighbors)
		avgVX := a.velX / n
		avgVY := a.velY / n
		avgX := a.posX / n
		avgY := a.posY / n

		b.VX += (avgVX-b.VX)*p.MatchingFactor + (avgX-b.X)*p.CenteringFactor
		b.VY += (avgVY-b.VY)*p.MatchingFactor + (avgY-b.Y)*p.CenteringFactor
	}

	b.VX += a.closeDX * p.AvoidFactor
	b.VY += a.closeDY * p.AvoidFactor

	out.EdgeTurns = AvoidEdges(&b, p)

	var clamp int8
	b.VX, b.VY, clamp, out.ZeroSpeed = ClampSpeed(b.VX, b.VY, p)
	out.Clamp = clamp

	b.X += b.VX * dt
	b.Y += b.VY * dt

	return b, out
}

// AvoidEdges nudges the velocity back toward the origin by TurnFactor on each
// axis where the position lies strictly beyond ±Edge. Returns the number of
// axes corrected.
func AvoidEdges(b *Boid, p *Params) uint8 {
	var turns uint8
	if b.X > p.Edge {
		b.VX -= p.TurnFactor
		turns++
	} else if b.X < -p.Edge {
		b.VX += p.TurnFactor
		turns++
	}
	if b.Y > p.Edge {
		b.VY -= p.TurnFactor
		turns++
	} else if b.Y < -p.Edge {
		b.VY += p.TurnFactor
		turns++
	}
	return turns
}

// ClampSpeed rescales (vx, vy) so its magnitude lies in [SpeedMin, SpeedMax].
// A zero vector is left alone under HoldZeroSpeed; otherwise it is divided
// by its zero magnitude like any other slow vector and comes back as NaN.
func ClampSpeed(vx, vy float32, p *Params) (float32, float32, int8, bool) {
	speed := math32.Sqrt(vx*vx + vy*vy)
	zero := speed == 0
	if zero && p.HoldZeroSpeed {
		return vx, vy, ClampNone, true
	}

	switch {
	case speed < p.SpeedMin:
		return vx / speed * p.SpeedMin, vy / speed * p.SpeedMin, ClampUp, zero
	case speed > p.SpeedMax:
		return vx / speed * p.SpeedMax, vy / speed * p.SpeedMax, ClampDown, zero
	}
	return vx, vy, ClampNone, zero
}

// Step writes the next frame for every boid of src into dst. Every boid reads
// the same previous-frame snapshot, so the result does not depend on
// iteration order. dst and src must have equal length and must not alias.
func Step(dst, src []Boid, dt float32, p *Params) Tally {
	var t Tally
	for i := range src {
		var o Outcome
		dst[i], o = UpdateBoid(src, i, dt, p)
		t.Add(o)
	}
	return t
}

// StepInPlace updates boids sequentially in place: boid i sees the already
// updated state of boids 0..i-1. This is the ordering of the single-array
// reference loop and is kept for comparison with Step.
func StepInPlace(boids []Boid, dt float32, p *Params) Tally {
	var t Tally
	for i := range boids {
		var o Outcome
		boids[i], o = UpdateBoid(boids, i, dt, p)
		t.Add(o)
	}
	return t
}

// CountNonFinite returns the number of boids holding NaN or Inf values.
func CountNonFinite(boids []Boid) int {
	n := 0
	for i := range boids {
		if !boids[i].Finite() {
			n++
		}
	}
	return n
}
