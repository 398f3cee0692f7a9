package raycast

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// epsilon is the smallest tolerance that still separates a grazing hit from
// a miss in float32 arithmetic (2^-23).
const epsilon float32 = 1.1920929e-07

// Ray is a world- or mesh-space ray. The direction is guaranteed to be
// normalized because rays can only be built through the constructors.
type Ray struct {
	origin    mgl32.Vec3
	direction mgl32.Vec3
}

// NewRay constructs a Ray, normalizing the direction vector. Non-finite
// input is a programmer error and panics.
func NewRay(origin, direction mgl32.Vec3) Ray {
	for i := 0; i < 3; i++ {
		if math.IsNaN(float64(origin[i])) || math.IsInf(float64(origin[i]), 0) ||
			math.IsNaN(float64(direction[i])) || math.IsInf(float64(direction[i]), 0) {
			panic(fmt.Sprintf("non-finite ray: origin=%v direction=%v", origin, direction))
		}
	}
	return Ray{
		origin:    origin,
		direction: direction.Normalize(),
	}
}

func (ray Ray) Origin() mgl32.Vec3 {
	return ray.origin
}

func (ray Ray) Direction() mgl32.Vec3 {
	return ray.direction
}

// Position returns the point at the given distance along the ray.
func (ray Ray) Position(distance float32) mgl32.Vec3 {
	return ray.origin.Add(ray.direction.Mul(distance))
}

// Transformed maps the ray into the frame described by m, transforming the
// origin as a point and the direction as a vector. The direction is
// re-normalized, so parameter distances along the result are not comparable
// to the source ray's whenever m scales, uniformly or not.
func (ray Ray) Transformed(m mgl32.Mat4) Ray {
	origin := mgl32.TransformCoordinate(ray.origin, m)
	direction := mgl32.TransformNormal(ray.direction, m)
	return NewRay(origin, direction)
}

// ToTransform builds the frame matrix whose translation is the ray origin
// and whose Y axis is aligned with the ray direction.
func (ray Ray) ToTransform() mgl32.Mat4 {
	return ray.ToAlignedTransform(mgl32.Vec3{0, 1, 0})
}

// ToAlignedTransform builds a frame at the ray origin rotating the given up
// axis onto the ray direction.
func (ray Ray) ToAlignedTransform(up mgl32.Vec3) mgl32.Mat4 {
	translation := mgl32.Translate3D(ray.origin.X(), ray.origin.Y(), ray.origin.Z())

	dot := up.Dot(ray.direction)
	angle := float32(math.Acos(float64(mgl32.Clamp(dot, -1, 1))))
	if angle < epsilon {
		return translation
	}

	axis := up.Cross(ray.direction)
	if axis.Len() < epsilon {
		// up and direction are antiparallel; any perpendicular axis works.
		axis = up.Cross(mgl32.Vec3{1, 0, 0})
		if axis.Len() < epsilon {
			axis = up.Cross(mgl32.Vec3{0, 0, 1})
		}
	}
	rotation := mgl32.QuatRotate(angle, axis.Normalize())
	return translation.Mul4(rotation.Mat4())
}

// RayFromTransform derives a ray from a world transform: the origin is the
// transform's translation, the direction its forward (negative Z) axis.
func RayFromTransform(m mgl32.Mat4) Ray {
	origin := m.Col(3).Vec3()
	forward := mgl32.TransformNormal(mgl32.Vec3{0, 0, -1}, m)
	return NewRay(origin, forward)
}

// RayFromScreenspace builds the world-space ray under a window cursor by
// unprojecting the near and far points of the pixel through the camera.
// Returns false when the cursor lies outside the viewport.
func RayFromScreenspace(cursor mgl32.Vec2, camera *CameraComponent, cameraWorld mgl32.Mat4, viewport Viewport) (Ray, bool) {
	if viewport.Size.X() <= 0 || viewport.Size.Y() <= 0 {
		return Ray{}, false
	}
	if !viewport.contains(cursor) {
		return Ray{}, false
	}

	local := cursor.Sub(viewport.Offset)
	// Pixel (0,0) is the top-left corner; NDC y grows upward.
	ndc := mgl32.Vec2{
		local.X()/viewport.Size.X()*2 - 1,
		1 - local.Y()/viewport.Size.Y()*2,
	}

	ndcToWorld := cameraWorld.Mul4(camera.ProjectionMatrix().Inv())
	near, okNear := projectPoint(ndcToWorld, mgl32.Vec3{ndc.X(), ndc.Y(), -1})
	far, okFar := projectPoint(ndcToWorld, mgl32.Vec3{ndc.X(), ndc.Y(), 1})
	if !okNear || !okFar {
		return Ray{}, false
	}

	direction := far.Sub(near)
	if direction.Len() < epsilon {
		return Ray{}, false
	}
	return NewRay(near, direction), true
}

// projectPoint applies m to p with a perspective divide.
func projectPoint(m mgl32.Mat4, p mgl32.Vec3) (mgl32.Vec3, bool) {
	h := m.Mul4x1(p.Vec4(1))
	w := h.W()
	if w > -epsilon && w < epsilon {
		return mgl32.Vec3{}, false
	}
	return h.Vec3().Mul(1 / w), true
}

// IntersectsAABB tests the ray against a local-frame box behind a
// model-to-world transform using the slab method. The ray is transformed
// into the model frame (without re-normalization) so the test stays
// axis-aligned and the returned near/far stay in world distance units.
func (ray Ray) IntersectsAABB(aabb AABB, modelToWorld mgl32.Mat4) (near, far float32, ok bool) {
	worldToModel := modelToWorld.Inv()
	origin := mgl32.TransformCoordinate(ray.origin, worldToModel)
	direction := mgl32.TransformNormal(ray.direction, worldToModel)
	return slabIntersection(origin, direction, aabb)
}

// intersectsAABBLocal is the same test for a ray already in the box's frame.
func (ray Ray) intersectsAABBLocal(aabb AABB) (near, far float32, ok bool) {
	return slabIntersection(ray.origin, ray.direction, aabb)
}

func slabIntersection(origin, direction mgl32.Vec3, aabb AABB) (near, far float32, ok bool) {
	min := aabb.Min()
	max := aabb.Max()

	// Relies on IEEE division: a zero direction component yields +/-Inf slab
	// distances, which the min/max comparisons below discard correctly.
	t0x := (min.X() - origin.X()) / direction.X()
	t1x := (max.X() - origin.X()) / direction.X()
	near = min32(t0x, t1x)
	far = max32(t0x, t1x)

	t0y := (min.Y() - origin.Y()) / direction.Y()
	t1y := (max.Y() - origin.Y()) / direction.Y()
	tMinY := min32(t0y, t1y)
	tMaxY := max32(t0y, t1y)

	if near > tMaxY || tMinY > far {
		return 0, 0, false
	}
	near = max32(near, tMinY)
	far = min32(far, tMaxY)

	t0z := (min.Z() - origin.Z()) / direction.Z()
	t1z := (max.Z() - origin.Z()) / direction.Z()
	tMinZ := min32(t0z, t1z)
	tMaxZ := max32(t0z, t1z)

	if near > tMaxZ || tMinZ > far {
		return 0, 0, false
	}
	near = max32(near, tMinZ)
	far = min32(far, tMaxZ)

	if far < 0 {
		return 0, 0, false
	}
	return near, far, true
}

// PrimitiveIntersection is a hit against an analytic shape rather than a
// triangle.
type PrimitiveIntersection struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Distance float32
}

// IntersectsPlane intersects the ray with the plane through point with the
// given normal. Fails when the ray is parallel to the plane.
func (ray Ray) IntersectsPlane(point, normal mgl32.Vec3) (PrimitiveIntersection, bool) {
	denominator := ray.direction.Dot(normal)
	if denominator > -epsilon && denominator < epsilon {
		return PrimitiveIntersection{}, false
	}

	distance := normal.Dot(point.Sub(ray.origin)) / denominator
	return PrimitiveIntersection{
		Position: ray.Position(distance),
		Normal:   normal,
		Distance: distance,
	}, true
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
