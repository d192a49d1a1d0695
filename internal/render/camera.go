package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera handles the view and projection matrices
type Camera struct {
	AspectRatio float32
	FOV         float32
	NearPlane   float32
	FarPlane    float32

	Target mgl32.Vec3
	Radius float32
	Height float32
}

// NewOrbitCamera circles the target at the given radius and height.
func NewOrbitCamera(width, height int, target mgl32.Vec3, radius, camHeight float32) *Camera {
	return &Camera{
		AspectRatio: float32(width) / float32(height),
		FOV:         60.0,
		NearPlane:   0.1,
		FarPlane:    1000.0,
		Target:      target,
		Radius:      radius,
		Height:      camHeight,
	}
}

func (c *Camera) GetProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FOV), c.AspectRatio, c.NearPlane, c.FarPlane)
}

// GetViewMatrix places the eye on the orbit at the given angle in radians.
func (c *Camera) GetViewMatrix(angle float64) mgl32.Mat4 {
	eye := mgl32.Vec3{
		c.Target.X() + c.Radius*float32(math.Cos(angle)),
		c.Target.Y() + c.Height,
		c.Target.Z() + c.Radius*float32(math.Sin(angle)),
	}
	return mgl32.LookAtV(eye, c.Target, mgl32.Vec3{0, 1, 0})
}
