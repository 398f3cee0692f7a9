package raycast

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// MeshAccessor is a read-only view that abstracts triangle access over
// indexed and non-indexed vertex streams. It never mutates the asset it
// reads from.
type MeshAccessor struct {
	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	indices   MeshIndices
}

// NewMeshAccessor checks the mesh contract and wraps the asset. The contract
// failures mirror how a scene query must react: a topology or attribute
// error fails the whole mesh, never panics.
func NewMeshAccessor(asset *MeshAsset) (MeshAccessor, error) {
	if asset.topology != TopologyTriangleList {
		return MeshAccessor{}, fmt.Errorf("%w: topology %d", ErrBadTopology, asset.topology)
	}
	if len(asset.positions) == 0 {
		return MeshAccessor{}, ErrMissingPositions
	}
	if err := validateIndices(asset.indices, len(asset.positions)); err != nil {
		return MeshAccessor{}, err
	}
	normals := asset.normals
	if normals != nil && len(normals) != len(asset.positions) {
		// Mismatched normals are dropped rather than failing the mesh; the
		// geometric face normal still works.
		normals = nil
	}
	return MeshAccessor{
		positions: asset.positions,
		normals:   normals,
		indices:   asset.indices,
	}, nil
}

func (acc MeshAccessor) HasNormals() bool {
	return acc.normals != nil
}

func (acc MeshAccessor) TriangleCount() int {
	if acc.indices.Present() {
		return acc.indices.Len() / 3
	}
	return len(acc.positions) / 3
}

// Triangle returns the vertices of triangle index. Indexed meshes read
// indices [3i, 3i+1, 3i+2] and dereference positions; non-indexed meshes
// read vertices [3i..3i+2] directly.
func (acc MeshAccessor) Triangle(index int) (Triangle, error) {
	if index < 0 || index >= acc.TriangleCount() {
		return Triangle{}, fmt.Errorf("%w: %d of %d", ErrNoSuchTriangle, index, acc.TriangleCount())
	}
	if acc.indices.Present() {
		return Triangle{
			V0: acc.positions[acc.indices.At(index*3)],
			V1: acc.positions[acc.indices.At(index*3+1)],
			V2: acc.positions[acc.indices.At(index*3+2)],
		}, nil
	}
	return Triangle{
		V0: acc.positions[index*3],
		V1: acc.positions[index*3+1],
		V2: acc.positions[index*3+2],
	}, nil
}

// TriangleNormals returns the three vertex normals of a triangle, or false
// when the mesh carries no normal stream or the index is out of range.
func (acc MeshAccessor) TriangleNormals(index int) ([3]mgl32.Vec3, bool) {
	if acc.normals == nil || index < 0 || index >= acc.TriangleCount() {
		return [3]mgl32.Vec3{}, false
	}
	if acc.indices.Present() {
		return [3]mgl32.Vec3{
			acc.normals[acc.indices.At(index*3)],
			acc.normals[acc.indices.At(index*3+1)],
			acc.normals[acc.indices.At(index*3+2)],
		}, true
	}
	return [3]mgl32.Vec3{
		acc.normals[index*3],
		acc.normals[index*3+1],
		acc.normals[index*3+2],
	}, true
}

// IntersectionNormal interpolates the vertex normals of a triangle at the
// hit's barycentric coordinates, falling back to the geometric face normal
// when the mesh has none.
func (acc MeshAccessor) IntersectionNormal(index int, hit RayHit) mgl32.Vec3 {
	if normals, ok := acc.TriangleNormals(index); ok {
		w := 1 - hit.U - hit.V
		return normals[0].Mul(w).
			Add(normals[1].Mul(hit.U)).
			Add(normals[2].Mul(hit.V)).
			Normalize()
	}
	tri, err := acc.Triangle(index)
	if err != nil {
		return mgl32.Vec3{}
	}
	return tri.Normal()
}

// GenerateAABB computes the bounding box of the position stream.
func (acc MeshAccessor) GenerateAABB() AABB {
	min := acc.positions[0]
	max := acc.positions[0]
	for _, p := range acc.positions[1:] {
		for i := 0; i < 3; i++ {
			min[i] = min32(min[i], p[i])
			max[i] = max32(max[i], p[i])
		}
	}
	return AABBFromMinMax(min, max)
}
