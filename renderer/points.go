package renderer

import (
	"fmt"
	"unsafe"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flock/systems"
)

// meshVertexBuffer is the raylib mesh buffer slot holding positions.
const meshVertexBuffer = 0

// PointRenderer streams one oriented triangle per boid into a dynamic mesh
// and draws the whole flock with a single draw call.
type PointRenderer struct {
	mesh     rl.Mesh
	material rl.Material
	capacity int // vertices the mesh can hold
	verts    []float32
}

// NewPointRenderer loads the flock shaders and allocates a mesh for n boids.
// Must be called after the raylib window is created.
func NewPointRenderer(vsPath, fsPath string, n int) (*PointRenderer, error) {
	shader := rl.LoadShader(vsPath, fsPath)
	if !rl.IsShaderValid(shader) {
		return nil, fmt.Errorf("loading flock shaders %s, %s", vsPath, fsPath)
	}

	r := &PointRenderer{material: rl.LoadMaterialDefault()}
	r.material.Shader = shader
	r.allocate(max(n, 1) * systems.VerticesPerBoid)
	return r, nil
}

// allocate (re)creates the mesh with room for the given number of vertices.
func (r *PointRenderer) allocate(vertices int) {
	if r.mesh.VaoID != 0 {
		rl.UnloadMesh(&r.mesh)
	}

	store := make([]float32, vertices*3)
	r.mesh = rl.Mesh{
		VertexCount:   int32(vertices),
		TriangleCount: int32(vertices / 3),
		Vertices:      &store[0],
	}
	rl.UploadMesh(&r.mesh, true)
	// The GPU copy is authoritative from here on; DrawMesh only needs the ids
	r.mesh.Vertices = nil

	r.capacity = vertices
}

// Draw uploads the flock in clip space and draws it. size is the triangle
// radius in pixels.
func (r *PointRenderer) Draw(boids []systems.Boid, view systems.View, size float32, color rl.Color) {
	r.verts = systems.ClipVertices(r.verts[:0], boids, view, size)
	if len(r.verts) == 0 {
		return
	}
	vertices := len(r.verts) / 3
	if vertices > r.capacity {
		r.allocate(vertices)
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(&r.verts[0])), len(r.verts)*4)
	rl.UpdateMeshBuffer(r.mesh, meshVertexBuffer, data, 0)

	r.material.GetMap(rl.MapDiffuse).Color = color

	// Draw only the live prefix of a possibly larger buffer
	m := r.mesh
	m.VertexCount = int32(vertices)
	m.TriangleCount = int32(vertices / 3)

	// Flush anything raylib has batched so draw order is preserved
	rl.DrawRenderBatchActive()
	rl.DisableBackfaceCulling() // winding flips with heading
	rl.DrawMesh(m, r.material, rl.MatrixIdentity())
	rl.EnableBackfaceCulling()
}

// Unload releases GPU resources, the flock shader included.
func (r *PointRenderer) Unload() {
	rl.UnloadMesh(&r.mesh)
	rl.UnloadMaterial(r.material)
}
