package raycast

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// IntersectionData is a single ray/mesh hit, fully in world space. Distance
// is the length of the vector from the ray origin to the hit position,
// which differs from the mesh-space ray parameter under scale.
type IntersectionData struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Distance float32
	Triangle Triangle
}

// NormalRay is a ray standing on the hit position pointing along the
// surface normal. Handy for reflection chains and debug drawing.
func (data IntersectionData) NormalRay() Ray {
	return NewRay(data.Position, data.Normal)
}

// RayMeshIntersection walks every triangle of a mesh and returns the
// nearest hit, if any. The ray is given in world space; meshToWorld places
// the mesh. A contract violation (topology, attributes, indices) is returned
// as an error, distinct from a miss.
func RayMeshIntersection(ray Ray, asset *MeshAsset, meshToWorld mgl32.Mat4, backfaceCulling Backfaces) (IntersectionData, bool, error) {
	accessor, err := NewMeshAccessor(asset)
	if err != nil {
		return IntersectionData{}, false, err
	}

	meshRay := ray.Transformed(meshToWorld.Inv())

	tBest := float32(math.MaxFloat32)
	bestIndex := -1
	var bestHit RayHit

	for index := 0; index < accessor.TriangleCount(); index++ {
		hit, ok := triangleIntersection(meshRay, accessor, index, tBest, backfaceCulling)
		if !ok {
			continue
		}
		tBest = hit.Distance
		bestIndex = index
		bestHit = hit
	}

	if bestIndex < 0 {
		return IntersectionData{}, false, nil
	}
	return makeWorldIntersection(meshToWorld, meshRay, accessor, bestIndex, bestHit), true, nil
}

// triangleIntersection tests one triangle against a mesh-space ray,
// accepting only hits in front of the origin and nearer than tBest. The
// squared-distance check rejects triangles whose every vertex lies beyond
// the current best hit before running the kernel.
func triangleIntersection(meshRay Ray, accessor MeshAccessor, index int, tBest float32, backfaceCulling Backfaces) (RayHit, bool) {
	tri, err := accessor.Triangle(index)
	if err != nil {
		return RayHit{}, false
	}

	if tBest < float32(math.MaxFloat32) {
		bestSq := tBest * tBest
		origin := meshRay.Origin()
		if tri.V0.Sub(origin).LenSqr() >= bestSq &&
			tri.V1.Sub(origin).LenSqr() >= bestSq &&
			tri.V2.Sub(origin).LenSqr() >= bestSq {
			return RayHit{}, false
		}
	}

	hit, ok := RayTriangleIntersection(meshRay, tri, backfaceCulling)
	if !ok || hit.Distance <= 0 || hit.Distance >= tBest {
		return RayHit{}, false
	}
	return hit, true
}

// makeWorldIntersection lifts a mesh-space hit back through meshToWorld.
func makeWorldIntersection(meshToWorld mgl32.Mat4, meshRay Ray, accessor MeshAccessor, index int, hit RayHit) IntersectionData {
	position := meshRay.Position(hit.Distance)
	normal := accessor.IntersectionNormal(index, hit)

	tri, _ := accessor.Triangle(index)
	worldTriangle := Triangle{
		V0: mgl32.TransformCoordinate(tri.V0, meshToWorld),
		V1: mgl32.TransformCoordinate(tri.V1, meshToWorld),
		V2: mgl32.TransformCoordinate(tri.V2, meshToWorld),
	}

	return IntersectionData{
		Position: mgl32.TransformCoordinate(position, meshToWorld),
		Normal:   mgl32.TransformNormal(normal, meshToWorld).Normalize(),
		Distance: mgl32.TransformNormal(meshRay.Direction().Mul(hit.Distance), meshToWorld).Len(),
		Triangle: worldTriangle,
	}
}
