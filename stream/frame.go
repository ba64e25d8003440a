package stream

import (
	"encoding/binary"
	"fmt"

	"github.com/pthm-cable/flock/systems"
)

// FrameHeaderSize is the byte length of the frame header: tick and boid
// count as little-endian uint32.
const FrameHeaderSize = 8

// EncodeFrame appends a frame for the given tick to dst. The body is the
// GPU storage layout of the boids.
func EncodeFrame(dst []byte, tick uint32, boids []systems.Boid) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, tick)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(boids)))
	return systems.EncodeBoids(dst, boids)
}

// DecodeFrame parses a frame produced by EncodeFrame.
func DecodeFrame(src []byte) (uint32, []systems.Boid, error) {
	if len(src) < FrameHeaderSize {
		return 0, nil, fmt.Errorf("frame too short: %d bytes", len(src))
	}
	tick := binary.LittleEndian.Uint32(src)
	count := binary.LittleEndian.Uint32(src[4:])

	body := src[FrameHeaderSize:]
	if uint64(len(body)) != uint64(count)*systems.BoidStride {
		return 0, nil, fmt.Errorf("frame declares %d boids but carries %d bytes", count, len(body))
	}
	boids, err := systems.DecodeBoids(nil, body)
	if err != nil {
		return 0, nil, err
	}
	return tick, boids, nil
}
