package render

import "github.com/go-gl/mathgl/mgl32"

// VertexAttrib describes one interleaved vertex attribute: shader location and
// float component count.
type VertexAttrib struct {
	Name     string
	Location uint32
	Size     int32
}

// Mesh is a GPU-resident buffer set. Handles are only meaningful to the device
// that created them and must stay on the goroutine that owns the GL context.
type Mesh struct {
	VAO        uint32
	VBO        uint32
	EBO        uint32
	IndexCount int32
}

// Device uploads combined geometry to GPU-resident buffers. Implementations
// are not safe for concurrent use; uploads happen on the render goroutine
// because mesh handles cannot cross the worker boundary.
type Device interface {
	UploadMesh(vertices []float32, indices []uint32, layout []VertexAttrib) (*Mesh, error)
	DeleteMesh(*Mesh)
}

// Frame is the per-tick context handed to everything that renders or
// finalizes work on the render goroutine.
type Frame struct {
	Device Device
	View   mgl32.Mat4
	Proj   mgl32.Mat4
	Number uint64
}
