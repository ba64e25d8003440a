package systems

import (
	"encoding/binary"
	"fmt"
	"math"
)

// BoidStride is the size in bytes of one boid in a GPU storage buffer:
// four little-endian float32 values x, y, vx, vy.
const BoidStride = 16

// ParamsSize is the size in bytes of the flocking params block consumed by
// the compute kernel (12 scalar slots, std430).
const ParamsSize = 12 * 4

// VerticesPerBoid is the number of vertices emitted per boid by ClipVertices.
const VerticesPerBoid = 3

// FloatsPerBoid is the number of float32 values emitted per boid by
// ClipVertices: x, y, z per vertex.
const FloatsPerBoid = VerticesPerBoid * 3

// EncodeBoids appends the storage layout of boids to dst and returns it.
func EncodeBoids(dst []byte, boids []Boid) []byte {
	for _, b := range boids {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(b.X))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(b.Y))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(b.VX))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(b.VY))
	}
	return dst
}

// DecodeBoids decodes a storage buffer into dst, reusing its capacity.
// The buffer length must be a multiple of BoidStride.
func DecodeBoids(dst []Boid, src []byte) ([]Boid, error) {
	if len(src)%BoidStride != 0 {
		return dst[:0], fmt.Errorf("boid buffer length %d is not a multiple of %d", len(src), BoidStride)
	}

	n := len(src) / BoidStride
	if cap(dst) < n {
		dst = make([]Boid, n)
	}
	dst = dst[:n]

	le := binary.LittleEndian
	for i := range dst {
		off := i * BoidStride
		dst[i] = Boid{
			X:  math.Float32frombits(le.Uint32(src[off:])),
			Y:  math.Float32frombits(le.Uint32(src[off+4:])),
			VX: math.Float32frombits(le.Uint32(src[off+8:])),
			VY: math.Float32frombits(le.Uint32(src[off+12:])),
		}
	}
	return dst, nil
}

// EncodeParams writes the params block for the compute kernel into dst,
// which must hold at least ParamsSize bytes. Slot order matches the Params
// buffer declared in shaders/flock.comp.
func EncodeParams(dst []byte, p *Params, dt float32, count uint32) error {
	if len(dst) < ParamsSize {
		return fmt.Errorf("params buffer too small: %d < %d", len(dst), ParamsSize)
	}

	le := binary.LittleEndian
	slots := [...]float32{
		p.TurnFactor,
		p.VisualRange,
		p.ProtectedRange,
		p.CenteringFactor,
		p.AvoidFactor,
		p.MatchingFactor,
		p.SpeedMin,
		p.SpeedMax,
		p.Edge,
		dt,
	}
	for i, v := range slots {
		le.PutUint32(dst[i*4:], math.Float32bits(v))
	}

	var hold uint32
	if p.HoldZeroSpeed {
		hold = 1
	}
	le.PutUint32(dst[40:], count)
	le.PutUint32(dst[44:], hold)
	return nil
}

// View maps world coordinates into clip space.
type View struct {
	CenterX, CenterY float32 // world point at the middle of the viewport
	Zoom             float32
	HalfW, HalfH     float32 // half viewport size in pixels
}

// Clip converts a world position to clip space. World y grows downward like
// screen space, clip y grows upward.
func (v View) Clip(x, y float32) (float32, float32) {
	return (x - v.CenterX) * v.Zoom / v.HalfW, -(y - v.CenterY) * v.Zoom / v.HalfH
}

// ClipVertices appends one triangle per boid, pointing along its velocity,
// in clip space with z = 0. size is the triangle radius in pixels. Boids
// that are not moving, or hold non-finite values, point straight up.
func ClipVertices(dst []float32, boids []Boid, v View, size float32) []float32 {
	for _, b := range boids {
		dirX, dirY := float32(0), float32(-1)
		if s := b.Speed(); s > 0 && finite(s) {
			dirX, dirY = b.VX/s, b.VY/s
		}
		// Perpendicular to the heading
		perpX, perpY := -dirY, dirX

		r := size / v.Zoom
		noseX, noseY := b.X+dirX*r*1.5, b.Y+dirY*r*1.5
		leftX, leftY := b.X-dirX*r+perpX*r*0.7, b.Y-dirY*r+perpY*r*0.7
		rightX, rightY := b.X-dirX*r-perpX*r*0.7, b.Y-dirY*r-perpY*r*0.7

		for _, p := range [VerticesPerBoid][2]float32{{noseX, noseY}, {leftX, leftY}, {rightX, rightY}} {
			cx, cy := v.Clip(p[0], p[1])
			dst = append(dst, cx, cy, 0)
		}
	}
	return dst
}

