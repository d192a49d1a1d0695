package main

import (
	"fmt"
	"log"
	"math"
	"runtime"
	"time"

	"geobatch/internal/config"
	"geobatch/internal/geometry"
	"geobatch/internal/primitive"
	"geobatch/internal/profiling"
	"geobatch/internal/render"
	"geobatch/internal/scheduler"
	"geobatch/internal/terrain"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/xlab/closer"
)

const (
	windowWidth  = 900
	windowHeight = 600
)

func init() {
	runtime.LockOSThread()
}

const vertexShaderSrc = `#version 410 core
layout(location = 0) in vec3 position;
layout(location = 1) in vec3 normal;
uniform mat4 mvp;
out vec3 vNormal;
void main() {
	vNormal = normal;
	gl_Position = mvp * vec4(position, 1.0);
}`

const fragmentShaderSrc = `#version 410 core
in vec3 vNormal;
uniform vec3 baseColor;
out vec4 fragColor;
void main() {
	vec3 lightDir = normalize(vec3(0.4, 0.8, 0.4));
	float diffuse = max(dot(normalize(vNormal), lightDir), 0.15);
	fragColor = vec4(baseColor * diffuse, 1.0);
}`

func main() {
	if err := glfw.Init(); err != nil {
		log.Fatalf("glfw init: %v", err)
	}
	closer.Bind(glfw.Terminate)
	defer closer.Close()

	window, err := setupWindow()
	if err != nil {
		log.Fatalf("window setup: %v", err)
	}

	shader, err := render.NewShaderFromSource(vertexShaderSrc, fragmentShaderSrc)
	if err != nil {
		log.Fatalf("shader: %v", err)
	}
	closer.Bind(shader.Delete)

	gl.Enable(gl.DEPTH_TEST)

	// Leave two cores to the render thread on big machines; the default is
	// NumCPU-1 and can starve the main loop under heavy creation.
	if runtime.NumCPU() > 4 {
		config.SetWorkerCount(runtime.NumCPU() - 2)
	}
	sched := scheduler.Shared()

	pipeline, err := primitive.New(sched, buildScene(), primitive.WithReleaseInstances())
	if err != nil {
		log.Fatalf("pipeline: %v", err)
	}
	closer.Bind(pipeline.Destroy)

	terrainProc := terrain.NewMeshProcessor(2, sched.Caps)
	closer.Bind(terrainProc.Destroy)
	mesher := terrain.NewMesher(terrainProc)

	runLoop(window, shader, pipeline, mesher)
}

func setupWindow() (*glfw.Window, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)

	window, err := glfw.CreateWindow(windowWidth, windowHeight, "primdemo", nil, nil)
	if err != nil {
		return nil, err
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		return nil, err
	}
	glfw.SwapInterval(1)
	return window, nil
}

// buildScene describes a ring of boxes around a central ellipsoid. Creation
// and batching of all of it happens off this thread.
func buildScene() []geometry.Instance {
	instances := []geometry.Instance{{
		Descriptor:  geometry.NewSphere(2.5, 24, 32),
		ModelMatrix: mgl32.Translate3D(0, 2.5, 0),
		ID:          "core",
		Attributes: map[string]geometry.Attribute{
			"color": {Value: []float32{0.9, 0.6, 0.2}},
		},
	}}
	const ringSize = 24
	for i := 0; i < ringSize; i++ {
		angle := 2 * math.Pi * float64(i) / ringSize
		x := float32(10 * math.Cos(angle))
		z := float32(10 * math.Sin(angle))
		instances = append(instances, geometry.Instance{
			Descriptor:  geometry.NewBoxFromDimensions(mgl32.Vec3{1.5, 1.5 + float32(i%5), 1.5}),
			ModelMatrix: mgl32.Translate3D(x, 1, z),
			ID:          fmt.Sprintf("pillar-%d", i),
			Attributes: map[string]geometry.Attribute{
				"color": {Value: []float32{0.3, 0.5 + 0.02*float32(i), 0.8}},
			},
		})
	}
	return instances
}

// terrainHeights synthesizes a rolling 64x64 heightfield.
func terrainHeights(params terrain.MeshParams) []float32 {
	heights := make([]float32, params.Columns*params.Rows)
	for r := 0; r < params.Rows; r++ {
		for c := 0; c < params.Columns; c++ {
			fx, fz := float64(c)*0.25, float64(r)*0.25
			heights[r*params.Columns+c] = float32(1.2*math.Sin(fx) + 0.8*math.Cos(fz))
		}
	}
	return heights
}

func runLoop(window *glfw.Window, shader *render.Shader, pipeline *primitive.Pipeline, mesher *terrain.Mesher) {
	device := &render.GLDevice{}

	terrainParams := terrain.MeshParams{Columns: 64, Rows: 64, CellSize: 0.8}
	var terrainFut = mesher.RequestMesh(terrainParams, terrainHeights(terrainParams), nil)
	var terrainMesh *render.Mesh

	camera := render.NewOrbitCamera(windowWidth, windowHeight, mgl32.Vec3{0, 2, 0}, 28, 14)

	var frameNumber uint64
	frames := 0
	lastReport := time.Now()

	for !window.ShouldClose() {
		profiling.ResetTick()
		glfw.PollEvents()
		frameNumber++

		width, height := window.GetFramebufferSize()
		gl.Viewport(0, 0, int32(width), int32(height))
		gl.ClearColor(0.08, 0.09, 0.12, 1)
		gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

		camera.AspectRatio = float32(width) / float32(height)
		view := camera.GetViewMatrix(glfw.GetTime() * 0.2)
		proj := camera.GetProjectionMatrix()
		frame := render.Frame{Device: device, View: view, Proj: proj, Number: frameNumber}

		if err := pipeline.Update(&frame); err != nil {
			log.Fatalf("pipeline failed: %v", err)
		}

		// The terrain request may have been refused as busy; retry until the
		// processor has capacity, then poll for the built mesh.
		if terrainMesh == nil {
			if terrainFut == nil {
				terrainFut = mesher.RequestMesh(terrainParams, terrainHeights(terrainParams), nil)
			} else if value, err, ok := terrainFut.Poll(); ok {
				if err != nil {
					log.Fatalf("terrain mesh failed: %v", err)
				}
				terrainMesh = uploadTerrain(device, value.(*geometry.Geometry))
			}
		}

		shader.Use()
		mvp := proj.Mul4(view)

		if pipeline.Ready() {
			shader.SetMatrix4("mvp", mvp)
			shader.SetVector3("baseColor", mgl32.Vec3{0.4, 0.6, 0.9})
			gl.BindVertexArray(pipeline.Mesh().VAO)
			gl.DrawElements(gl.TRIANGLES, pipeline.Mesh().IndexCount, gl.UNSIGNED_INT, nil)

			// Redraw one instance's index range in its own color to show the
			// per-instance lookup surviving the batching.
			if attrs, ok := pipeline.PerInstanceAttributes("core"); ok {
				if c, ok := attrs.Attributes["color"]; ok && len(c.Value) == 3 {
					shader.SetVector3("baseColor", mgl32.Vec3{c.Value[0], c.Value[1], c.Value[2]})
				}
				gl.DrawElementsWithOffset(gl.TRIANGLES, int32(attrs.Range.Count), gl.UNSIGNED_INT, uintptr(attrs.Range.Offset)*4)
			}
		}

		if terrainMesh != nil {
			shader.SetMatrix4("mvp", mvp.Mul4(mgl32.Translate3D(-25, -3, -25)))
			shader.SetVector3("baseColor", mgl32.Vec3{0.25, 0.55, 0.3})
			gl.BindVertexArray(terrainMesh.VAO)
			gl.DrawElements(gl.TRIANGLES, terrainMesh.IndexCount, gl.UNSIGNED_INT, nil)
		}

		window.SwapBuffers()

		frames++
		if time.Since(lastReport) >= time.Second {
			log.Printf("fps=%d state=%s hot: %s", frames, pipeline.State(), profiling.TopN(3))
			frames = 0
			lastReport = time.Now()
		}
	}
}

func uploadTerrain(device render.Device, g *geometry.Geometry) *render.Mesh {
	// Terrain arrives as separate position/normal arrays; interleave before
	// upload so it shares the demo shader's layout.
	vertices := make([]float32, 0, len(g.Positions)*2)
	for v := 0; v < g.VertexCount(); v++ {
		vertices = append(vertices,
			g.Positions[v*3], g.Positions[v*3+1], g.Positions[v*3+2],
			g.Normals[v*3], g.Normals[v*3+1], g.Normals[v*3+2])
	}
	mesh, err := device.UploadMesh(vertices, g.Indices, []render.VertexAttrib{
		{Name: "position", Location: 0, Size: 3},
		{Name: "normal", Location: 1, Size: 3},
	})
	if err != nil {
		log.Fatalf("terrain upload: %v", err)
	}
	return mesh
}
