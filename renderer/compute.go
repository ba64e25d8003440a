package renderer

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unsafe"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flock/systems"
)

// GL enums not exported by raylib-go.
const (
	glComputeShader = 0x91B9
	glDynamicCopy   = 0x88EA
)

// Storage buffer binding points declared in shaders/flock.comp.
const (
	bindingParams = 0
	bindingIn     = 1
	bindingOut    = 2
)

// ComputeFlock runs the flocking rule in a compute shader. Each step uploads
// the snapshot, dispatches one invocation per boid and reads the result back,
// blocking until the GPU is done. Requires an OpenGL 4.3 context (build with
// -tags opengl43).
type ComputeFlock struct {
	program   uint32
	workgroup int

	paramsBuf uint32
	inBuf     uint32
	outBuf    uint32
	capacity  int // boids the storage buffers can hold

	params   []byte
	upload   []byte
	readback []byte
	count    int
}

// NewComputeFlock compiles the kernel at path with the given workgroup size
// and allocates storage for n boids.
func NewComputeFlock(path string, workgroup, n int) (*ComputeFlock, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading compute shader: %w", err)
	}
	code := strings.ReplaceAll(string(src), "WORKGROUP_SIZE", strconv.Itoa(workgroup))

	shader := rl.CompileShader(code, glComputeShader)
	if shader == 0 {
		return nil, fmt.Errorf("compiling %s: compute shaders need an OpenGL 4.3 context", path)
	}
	program := rl.LoadComputeShaderProgram(shader)
	if program == 0 {
		return nil, fmt.Errorf("linking compute program %s", path)
	}

	c := &ComputeFlock{
		program:   program,
		workgroup: workgroup,
		params:    make([]byte, systems.ParamsSize),
	}
	c.paramsBuf = rl.LoadShaderBuffer(systems.ParamsSize, nil, glDynamicCopy)
	c.reserve(max(n, 1))
	return c, nil
}

// reserve grows the boid storage buffers to hold at least n boids.
func (c *ComputeFlock) reserve(n int) {
	if n <= c.capacity {
		return
	}
	if c.inBuf != 0 {
		rl.UnloadShaderBuffer(c.inBuf)
		rl.UnloadShaderBuffer(c.outBuf)
	}
	size := uint32(n * systems.BoidStride)
	c.inBuf = rl.LoadShaderBuffer(size, nil, glDynamicCopy)
	c.outBuf = rl.LoadShaderBuffer(size, nil, glDynamicCopy)
	c.capacity = n
}

// Upload writes the snapshot and parameters into the storage buffers.
func (c *ComputeFlock) Upload(src []systems.Boid, dt float32, p *systems.Params) error {
	c.count = len(src)
	if c.count == 0 {
		return nil
	}
	c.reserve(c.count)

	if err := systems.EncodeParams(c.params, p, dt, uint32(c.count)); err != nil {
		return err
	}
	rl.UpdateShaderBuffer(c.paramsBuf, unsafe.Pointer(&c.params[0]), systems.ParamsSize, 0)

	c.upload = systems.EncodeBoids(c.upload[:0], src)
	rl.UpdateShaderBuffer(c.inBuf, unsafe.Pointer(&c.upload[0]), uint32(len(c.upload)), 0)
	return nil
}

// Dispatch runs one invocation per uploaded boid.
func (c *ComputeFlock) Dispatch() {
	if c.count == 0 {
		return
	}
	groups := (c.count + c.workgroup - 1) / c.workgroup

	rl.EnableShader(c.program)
	rl.BindShaderBuffer(c.paramsBuf, bindingParams)
	rl.BindShaderBuffer(c.inBuf, bindingIn)
	rl.BindShaderBuffer(c.outBuf, bindingOut)
	rl.ComputeShaderDispatch(uint32(groups), 1, 1)
	rl.DisableShader()
}

// Readback blocks until the dispatch finishes and decodes the next frame
// into dst.
func (c *ComputeFlock) Readback(dst []systems.Boid) ([]systems.Boid, error) {
	if c.count == 0 {
		return dst[:0], nil
	}

	size := c.count * systems.BoidStride
	if cap(c.readback) < size {
		c.readback = make([]byte, size)
	}
	c.readback = c.readback[:size]
	rl.ReadShaderBuffer(c.outBuf, unsafe.Pointer(&c.readback[0]), uint32(size), 0)

	out, err := systems.DecodeBoids(dst, c.readback)
	if err != nil {
		return dst[:0], fmt.Errorf("decoding compute output: %w", err)
	}
	return out, nil
}

// Unload releases GPU resources.
func (c *ComputeFlock) Unload() {
	rl.UnloadShaderBuffer(c.paramsBuf)
	rl.UnloadShaderBuffer(c.inBuf)
	rl.UnloadShaderBuffer(c.outBuf)
	rl.UnloadShaderProgram(c.program)
}
