package raycast

import (
	"github.com/go-gl/mathgl/mgl32"
)

type CameraProjection int

const (
	ProjectionPerspective CameraProjection = iota
	ProjectionOrthographic
)

// CameraComponent describes the view used to unproject cursor positions into
// world-space rays. Fov is the vertical field of view in degrees;
// OrthoHeight is the vertical extent of the view volume in world units when
// the projection is orthographic.
type CameraComponent struct {
	Position    mgl32.Vec3
	Direction   mgl32.Vec3
	Up          mgl32.Vec3
	Projection  CameraProjection
	Fov         float32
	OrthoHeight float32
	Aspect      float32
	Near        float32
	Far         float32
}

func (cam *CameraComponent) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(cam.Position, cam.Position.Add(cam.Direction), cam.Up)
}

// WorldMatrix is the camera-to-world transform: the inverse of the view.
func (cam *CameraComponent) WorldMatrix() mgl32.Mat4 {
	return cam.ViewMatrix().Inv()
}

func (cam *CameraComponent) ProjectionMatrix() mgl32.Mat4 {
	if cam.Projection == ProjectionOrthographic {
		halfH := cam.OrthoHeight / 2
		halfW := halfH * cam.Aspect
		return mgl32.Ortho(-halfW, halfW, -halfH, halfH, cam.Near, cam.Far)
	}
	return mgl32.Perspective(mgl32.DegToRad(cam.Fov), cam.Aspect, cam.Near, cam.Far)
}

// Viewport locates the rendered image in window pixels: cursor coordinates
// are window-relative with (0,0) at the top-left corner.
type Viewport struct {
	Offset mgl32.Vec2
	Size   mgl32.Vec2
}

func (v Viewport) contains(cursor mgl32.Vec2) bool {
	local := cursor.Sub(v.Offset)
	return local.X() >= 0 && local.Y() >= 0 &&
		local.X() <= v.Size.X() && local.Y() <= v.Size.Y()
}
