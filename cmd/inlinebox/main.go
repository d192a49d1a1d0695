package main

import (
	"fmt"
	"log"
	"runtime"
	"time"

	"geobatch/internal/geometry"
	"geobatch/internal/primitive"
	"geobatch/internal/render"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	windowWidth  = 800
	windowHeight = 600
)

func init() {
	runtime.LockOSThread()
}

const vertexSrc = `#version 410 core
layout(location = 0) in vec3 position;
layout(location = 1) in vec3 normal;
uniform mat4 mvp;
out vec3 vNormal;
void main() {
	vNormal = normal;
	gl_Position = mvp * vec4(position, 1.0);
}`

const fragmentSrc = `#version 410 core
in vec3 vNormal;
out vec4 fragColor;
void main() {
	float diffuse = max(dot(normalize(vNormal), normalize(vec3(0.4, 0.8, 0.4))), 0.15);
	fragColor = vec4(vec3(0.0, 1.0, 0.3) * diffuse, 1.0);
}`

// Smallest possible end-to-end check: one box, built synchronously on the
// main thread, uploaded and drawn. No worker pool involved.
func main() {
	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.False)

	window, err := glfw.CreateWindow(windowWidth, windowHeight, "Inline Box (Max Perf)", nil, nil)
	if err != nil {
		panic(err)
	}
	window.MakeContextCurrent()
	// Disable VSync for max raw framerate; comment this if you want vsync.
	glfw.SwapInterval(0)

	if err := gl.Init(); err != nil {
		panic(err)
	}

	shader, err := render.NewShaderFromSource(vertexSrc, fragmentSrc)
	if err != nil {
		panic(err)
	}
	defer shader.Delete()

	device := &render.GLDevice{}
	pipeline, err := primitive.New(nil, []geometry.Instance{{
		Descriptor: geometry.NewBoxFromDimensions(mgl32.Vec3{2, 2, 2}),
		ID:         "box",
	}}, primitive.WithInlineBuilder())
	if err != nil {
		panic(err)
	}
	defer pipeline.Destroy()

	// Five stages, no suspension points: ready before the first frame.
	frame := render.Frame{Device: device}
	for !pipeline.Ready() {
		if err := pipeline.Update(&frame); err != nil {
			log.Fatalf("pipeline failed: %v", err)
		}
	}
	mesh := pipeline.Mesh()

	gl.Enable(gl.DEPTH_TEST)
	gl.ClearColor(0.0, 0.0, 0.0, 1.0)

	proj := mgl32.Perspective(mgl32.DegToRad(60), float32(windowWidth)/float32(windowHeight), 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{4, 3, 4}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})

	// FPS counter variables
	frames := 0
	last := time.Now()
	fpsTicker := time.NewTicker(time.Second)
	defer fpsTicker.Stop()
	shader.Use()
	gl.BindVertexArray(mesh.VAO)

	for !window.ShouldClose() {
		if window.GetKey(glfw.KeyEscape) == glfw.Press {
			window.SetShouldClose(true)
		}

		gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

		model := mgl32.HomogRotate3DY(float32(glfw.GetTime()))
		shader.SetMatrix4("mvp", proj.Mul4(view).Mul4(model))
		gl.DrawElements(gl.TRIANGLES, mesh.IndexCount, gl.UNSIGNED_INT, nil)

		window.SwapBuffers()
		glfw.PollEvents()

		frames++

		select {
		case <-fpsTicker.C:
			now := time.Now()
			elapsed := now.Sub(last).Seconds()
			if elapsed > 0 {
				fmt.Printf("FPS: %d\n", int(float64(frames)/elapsed+0.5))
			}
			frames = 0
			last = now
		default:
			// continue rendering
		}
	}
}
