package render

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// GLDevice uploads meshes into OpenGL buffer objects. It must only be used on
// the thread holding the GL context.
type GLDevice struct{}

// UploadMesh creates a VAO/VBO/EBO triple for one interleaved vertex buffer.
func (d *GLDevice) UploadMesh(vertices []float32, indices []uint32, layout []VertexAttrib) (*Mesh, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, fmt.Errorf("render: refusing to upload empty mesh")
	}

	var stride int32
	for _, attrib := range layout {
		stride += attrib.Size
	}

	mesh := &Mesh{IndexCount: int32(len(indices))}

	gl.GenVertexArrays(1, &mesh.VAO)
	gl.BindVertexArray(mesh.VAO)

	gl.GenBuffers(1, &mesh.VBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, mesh.VBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)

	var offset uintptr
	for _, attrib := range layout {
		gl.EnableVertexAttribArray(attrib.Location)
		gl.VertexAttribPointerWithOffset(attrib.Location, attrib.Size, gl.FLOAT, false, stride*4, offset)
		offset += uintptr(attrib.Size) * 4
	}

	gl.GenBuffers(1, &mesh.EBO)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, mesh.EBO)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, gl.Ptr(indices), gl.STATIC_DRAW)

	gl.BindVertexArray(0)
	return mesh, nil
}

// DeleteMesh releases the mesh's buffers.
func (d *GLDevice) DeleteMesh(m *Mesh) {
	if m == nil {
		return
	}
	gl.DeleteBuffers(1, &m.EBO)
	gl.DeleteBuffers(1, &m.VBO)
	gl.DeleteVertexArrays(1, &m.VAO)
}
