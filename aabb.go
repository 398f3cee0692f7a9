package raycast

import (
	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis-aligned box in the local frame of whatever owns it,
// stored as center and half-extents.
type AABB struct {
	Center      mgl32.Vec3
	HalfExtents mgl32.Vec3
}

func AABBFromMinMax(min, max mgl32.Vec3) AABB {
	return AABB{
		Center:      min.Add(max).Mul(0.5),
		HalfExtents: max.Sub(min).Mul(0.5),
	}
}

func (aabb AABB) Min() mgl32.Vec3 {
	return aabb.Center.Sub(aabb.HalfExtents)
}

func (aabb AABB) Max() mgl32.Vec3 {
	return aabb.Center.Add(aabb.HalfExtents)
}

// Octant returns the child box of the equal eight-way subdivision selected by
// the XYZ triplet (bit 2 = x, bit 1 = y, bit 0 = z; a set bit picks the half
// away from the axis origin).
func (aabb AABB) Octant(triplet uint8) AABB {
	offset := mgl32.Vec3{-1, -1, -1}
	if triplet&0b100 != 0 {
		offset[0] = 1
	}
	if triplet&0b010 != 0 {
		offset[1] = 1
	}
	if triplet&0b001 != 0 {
		offset[2] = 1
	}

	half := aabb.HalfExtents.Mul(0.5)
	return AABB{
		Center: mgl32.Vec3{
			aabb.Center.X() + half.X()*offset.X(),
			aabb.Center.Y() + half.Y()*offset.Y(),
			aabb.Center.Z() + half.Z()*offset.Z(),
		},
		HalfExtents: half,
	}
}

// AABBComponent attaches a local-frame bounding box to an entity for
// broad-phase culling. An entity without one is never culled.
type AABBComponent struct {
	AABB AABB
}
