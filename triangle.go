package raycast

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Triangle is three vertices in counter-clockwise winding order. Winding
// matters when back-face culling is enabled.
type Triangle struct {
	V0 mgl32.Vec3
	V1 mgl32.Vec3
	V2 mgl32.Vec3
}

// Normal is the geometric face normal derived from the winding.
func (tri Triangle) Normal() mgl32.Vec3 {
	return tri.V1.Sub(tri.V0).Cross(tri.V2.Sub(tri.V0)).Normalize()
}

// IntersectsAABB tests triangle/box overlap with the separating axis
// theorem: three box face normals, the triangle plane normal, and the nine
// edge cross products. True when no separating axis exists.
func (tri Triangle) IntersectsAABB(aabb AABB) bool {
	// Work in the box frame, centered on the box.
	v0 := tri.V0.Sub(aabb.Center)
	v1 := tri.V1.Sub(aabb.Center)
	v2 := tri.V2.Sub(aabb.Center)
	h := aabb.HalfExtents

	e0 := v1.Sub(v0)
	e1 := v2.Sub(v1)
	e2 := v0.Sub(v2)

	// Nine cross-product axes between triangle edges and box axes.
	axes := [9]mgl32.Vec3{
		{0, -e0.Z(), e0.Y()},
		{0, -e1.Z(), e1.Y()},
		{0, -e2.Z(), e2.Y()},
		{e0.Z(), 0, -e0.X()},
		{e1.Z(), 0, -e1.X()},
		{e2.Z(), 0, -e2.X()},
		{-e0.Y(), e0.X(), 0},
		{-e1.Y(), e1.X(), 0},
		{-e2.Y(), e2.X(), 0},
	}
	for _, axis := range axes {
		if separatedOnAxis(v0, v1, v2, axis, h) {
			return false
		}
	}

	// Box face normals: compare the triangle extent per axis.
	for i := 0; i < 3; i++ {
		lo := min32(v0[i], min32(v1[i], v2[i]))
		hi := max32(v0[i], max32(v1[i], v2[i]))
		if lo > h[i] || hi < -h[i] {
			return false
		}
	}

	// Triangle plane normal.
	return !separatedOnAxis(v0, v1, v2, e0.Cross(e1), h)
}

func separatedOnAxis(v0, v1, v2, axis, h mgl32.Vec3) bool {
	p0 := v0.Dot(axis)
	p1 := v1.Dot(axis)
	p2 := v2.Dot(axis)

	r := h.X()*abs32(axis.X()) + h.Y()*abs32(axis.Y()) + h.Z()*abs32(axis.Z())
	lo := min32(p0, min32(p1, p2))
	hi := max32(p0, max32(p1, p2))
	return lo > r || hi < -r
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// Backfaces selects how the narrow phase treats triangles whose winding
// faces away from the ray.
type Backfaces int

const (
	// BackfacesCull skips back-facing triangles. This is the default.
	BackfacesCull Backfaces = iota
	// BackfacesInclude reports hits on both faces.
	BackfacesInclude
)

// RayHit is the raw output of the ray/triangle kernel: the parameter
// distance along the ray and the barycentric coordinates of the hit.
type RayHit struct {
	Distance float32
	U        float32
	V        float32
}

// RayTriangleIntersection runs the Möller-Trumbore intersection test.
func RayTriangleIntersection(ray Ray, tri Triangle, backfaceCulling Backfaces) (RayHit, bool) {
	v0v1 := tri.V1.Sub(tri.V0)
	v0v2 := tri.V2.Sub(tri.V0)
	pVec := ray.direction.Cross(v0v2)
	determinant := v0v1.Dot(pVec)

	switch backfaceCulling {
	case BackfacesCull:
		// A negative determinant means the triangle is back-facing; a
		// determinant near zero means the ray misses the plane. One test
		// covers both.
		if determinant < epsilon {
			return RayHit{}, false
		}
	case BackfacesInclude:
		if determinant > -epsilon && determinant < epsilon {
			return RayHit{}, false
		}
	}

	inverseDeterminant := 1.0 / determinant

	tVec := ray.origin.Sub(tri.V0)
	u := tVec.Dot(pVec) * inverseDeterminant
	if u < 0 || u > 1 {
		return RayHit{}, false
	}

	qVec := tVec.Cross(v0v1)
	v := ray.direction.Dot(qVec) * inverseDeterminant
	if v < 0 || u+v > 1 {
		return RayHit{}, false
	}

	t := v0v2.Dot(qVec) * inverseDeterminant
	return RayHit{Distance: t, U: u, V: v}, true
}
