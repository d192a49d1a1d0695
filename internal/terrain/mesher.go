package terrain

import (
	"encoding/binary"
	"math"

	"geobatch/internal/geometry"
	"geobatch/internal/task"

	"github.com/go-gl/mathgl/mgl32"
)

// MeshParams describes a heightmap grid: Columns x Rows samples spaced
// CellSize apart in x/z.
type MeshParams struct {
	Columns  int
	Rows     int
	CellSize float32
}

// meshRequest is the worker payload. The height samples (and optional water
// mask) travel outside it, packed into the request's single transfer buffer
// at the recorded offsets.
type meshRequest struct {
	params  MeshParams
	offsets []int
}

// Mesher schedules terrain mesh builds on a pre-existing processor. It never
// queues: a nil future from RequestMesh means the processor is at capacity
// and the caller defers to a later tick.
type Mesher struct {
	proc *task.Processor
}

// NewMesher wraps the given processor; the caller keeps ownership and decides
// when to destroy it.
func NewMesher(proc *task.Processor) *Mesher {
	return &Mesher{proc: proc}
}

// NewMeshProcessor builds a processor running the heightmap kernel.
func NewMeshProcessor(maxActive uint32, caps task.Capabilities) *task.Processor {
	return task.NewProcessor("buildTerrainMesh", MeshHandler, maxActive, caps)
}

// RequestMesh schedules one heightmap build. heights must hold
// Columns*Rows samples; waterMask, when non-nil, holds one byte per grid cell
// and marks cells to leave unmeshed. Both buffers are packed into a single
// transferable buffer so the request needs one transfer, not one per buffer.
// A nil return means busy; retry on a later tick with the same arguments.
func (m *Mesher) RequestMesh(params MeshParams, heights []float32, waterMask []byte) *task.Future {
	bufs := [][]byte{heightsToBytes(heights)}
	if waterMask != nil {
		bufs = append(bufs, waterMask)
	}
	packed, offsets := task.PackBuffers(bufs)
	return m.proc.Schedule(&meshRequest{params: params, offsets: offsets}, [][]byte{packed})
}

// MeshHandler is the worker kernel: rebuilds the sample buffers from the
// transfer, then lifts the grid into positions, central-difference normals
// and two triangles per land cell.
func MeshHandler(call *task.Call, payload any) (any, error) {
	req, ok := payload.(*meshRequest)
	if !ok {
		return nil, task.InvalidUsage("terrain worker got %T, want *terrain.meshRequest", payload)
	}
	if len(call.Transfer) != 1 {
		return nil, task.InvalidUsage("terrain worker wants exactly one packed transfer buffer, got %d", len(call.Transfer))
	}
	bufs := task.UnpackBuffers(call.Transfer[0], req.offsets)
	if len(bufs) == 0 {
		return nil, task.InvalidUsage("terrain request carries no sample buffer")
	}
	heights := bytesToHeights(bufs[0])
	var waterMask []byte
	if len(bufs) > 1 {
		waterMask = bufs[1]
	}

	cols, rows := req.params.Columns, req.params.Rows
	if cols < 2 || rows < 2 {
		return nil, task.InvalidUsage("terrain grid must be at least 2x2, got %dx%d", cols, rows)
	}
	if len(heights) != cols*rows {
		return nil, task.InvalidUsage("terrain grid %dx%d wants %d samples, got %d", cols, rows, cols*rows, len(heights))
	}
	if waterMask != nil && len(waterMask) != (cols-1)*(rows-1) {
		return nil, task.InvalidUsage("water mask wants one byte per cell (%d), got %d", (cols-1)*(rows-1), len(waterMask))
	}

	return buildGridMesh(req.params, heights, waterMask), nil
}

func buildGridMesh(params MeshParams, heights []float32, waterMask []byte) *geometry.Geometry {
	cols, rows := params.Columns, params.Rows
	cell := params.CellSize

	positions := make([]float32, 0, cols*rows*3)
	normals := make([]float32, 0, cols*rows*3)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			positions = append(positions, float32(c)*cell, heights[r*cols+c], float32(r)*cell)
			n := gridNormal(heights, cols, rows, c, r, cell)
			normals = append(normals, n.X(), n.Y(), n.Z())
		}
	}

	indices := make([]uint32, 0, (cols-1)*(rows-1)*6)
	for r := 0; r < rows-1; r++ {
		for c := 0; c < cols-1; c++ {
			if waterMask != nil && waterMask[r*(cols-1)+c] != 0 {
				continue
			}
			a := uint32(r*cols + c)
			b := a + uint32(cols)
			indices = append(indices, a, b, a+1, a+1, b, b+1)
		}
	}

	return &geometry.Geometry{
		Positions: positions,
		Normals:   normals,
		Indices:   indices,
		Sphere:    geometry.SphereFromPositions(positions),
	}
}

// gridNormal approximates the surface normal by central differences, clamping
// at the grid edges.
func gridNormal(heights []float32, cols, rows, c, r int, cell float32) mgl32.Vec3 {
	sample := func(cc, rr int) float32 {
		if cc < 0 {
			cc = 0
		}
		if cc >= cols {
			cc = cols - 1
		}
		if rr < 0 {
			rr = 0
		}
		if rr >= rows {
			rr = rows - 1
		}
		return heights[rr*cols+cc]
	}
	dx := sample(c+1, r) - sample(c-1, r)
	dz := sample(c, r+1) - sample(c, r-1)
	return mgl32.Vec3{-dx, 2 * cell, -dz}.Normalize()
}

func heightsToBytes(heights []float32) []byte {
	out := make([]byte, len(heights)*4)
	for i, h := range heights {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(h))
	}
	return out
}

func bytesToHeights(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
