package raycast

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestNodeAddrDepth(t *testing.T) {
	d0 := NewRootNodeAddr().Depth()
	if d0 != 0 {
		t.Errorf("root depth: got %d, want 0", d0)
	}
	d3 := NodeAddr(0b_000_000_000_000_000_000_000_1_000_000_000_0).Depth()
	if d3 != 3 {
		t.Errorf("got %d, want 3", d3)
	}
	d10 := NodeAddr(0b_1_000_000_000_000_000_000_000_000_000_000_1).Depth()
	if d10 != 10 {
		t.Errorf("got %d, want 10", d10)
	}
}

func TestNodeAddrPushBits(t *testing.T) {
	root := NewRootNodeAddr()
	if root.IsLeaf() {
		t.Error("root must not be a leaf")
	}

	child := root.PushBits(0b101, false)
	if child.IsLeaf() {
		t.Error("node child must not be a leaf")
	}
	if child.Depth() != 1 {
		t.Errorf("child depth: got %d, want 1", child.Depth())
	}

	leaf := root.PushBits(0b101, true)
	if !leaf.IsLeaf() {
		t.Error("leaf child must be a leaf")
	}
	if leaf.ToNode() != child {
		t.Error("ToNode must clear only the leaf bit")
	}
	if child.ToLeaf() != leaf {
		t.Error("ToLeaf must set only the leaf bit")
	}

	grandchild := child.PushBits(0b010, false)
	if grandchild.Depth() != 2 {
		t.Errorf("grandchild depth: got %d, want 2", grandchild.Depth())
	}
}

func TestNodeAddrComputeAABB(t *testing.T) {
	bounds := AABB{Center: mgl32.Vec3{0, 0, 0}, HalfExtents: mgl32.Vec3{4, 4, 4}}

	// Triplet 0b111: away from the origin on every axis.
	high := NewRootNodeAddr().PushBits(0b111, true)
	aabb := high.ComputeAABB(bounds)
	vecAlmostEqual(t, aabb.Center, mgl32.Vec3{2, 2, 2}, 1e-6, "child center")
	vecAlmostEqual(t, aabb.HalfExtents, mgl32.Vec3{2, 2, 2}, 1e-6, "child half extents")

	// Two levels down: triplets are applied root-first.
	low := NewRootNodeAddr().PushBits(0b000, false).PushBits(0b100, true)
	aabb = low.ComputeAABB(bounds)
	vecAlmostEqual(t, aabb.Center, mgl32.Vec3{-1, -3, -3}, 1e-6, "grandchild center")
	vecAlmostEqual(t, aabb.HalfExtents, mgl32.Vec3{1, 1, 1}, 1e-6, "grandchild half extents")
}

func TestNodeMask(t *testing.T) {
	var mask NodeMask
	// Push slots 7..0; slot 0 must land in the low bits.
	kinds := [8]NodeKind{NodeEmpty, NodeLeaf, NodeInternal, NodeEmpty, NodeLeaf, NodeEmpty, NodeEmpty, NodeInternal}
	for slot := 7; slot >= 0; slot-- {
		mask.pushChild(kinds[slot])
	}
	for slot := uint8(0); slot < 8; slot++ {
		if got := mask.child(slot); got != kinds[slot] {
			t.Errorf("slot %d: got %d, want %d", slot, got, kinds[slot])
		}
	}
}

func quadAccessor(t *testing.T) MeshAccessor {
	t.Helper()
	accessor, err := NewMeshAccessor(triangleListAsset(quadPositions, nil, MeshIndices{}))
	if err != nil {
		t.Fatal(err)
	}
	return accessor
}

func TestBuildMeshOctreeQuad(t *testing.T) {
	accessor := quadAccessor(t)
	octree := BuildMeshOctree(accessor, 8)

	if len(octree.nodes) == 0 {
		t.Fatal("octree has no nodes")
	}
	if _, ok := octree.nodes[NewRootNodeAddr()]; !ok {
		t.Fatal("octree has no root node")
	}

	// Two triangles sit under the cutoff, so every non-empty child of the
	// root is a leaf and no deeper nodes exist.
	if len(octree.nodes) != 1 {
		t.Errorf("expected only the root node, got %d nodes", len(octree.nodes))
	}
	if len(octree.leaves) == 0 {
		t.Error("expected leaves")
	}
	for addr, tris := range octree.leaves {
		if !addr.IsLeaf() {
			t.Errorf("leaf key %v is not tagged as a leaf", addr)
		}
		if len(tris) == 0 {
			t.Errorf("leaf %v is empty", addr)
		}
	}
}

func TestOctreeCastRayQuad(t *testing.T) {
	accessor := quadAccessor(t)
	octree := BuildMeshOctree(accessor, 8)

	ray := NewRay(mgl32.Vec3{0, -1, 0.2}, mgl32.Vec3{0, 1, 0})
	data, ok := octree.CastRay(ray, accessor, mgl32.Ident4(), BackfacesCull)
	if !ok {
		t.Fatal("expected octree hit")
	}
	almostEqual(t, data.Distance, 1, 1e-5, "distance")
	vecAlmostEqual(t, data.Position, mgl32.Vec3{0, 0, 0.2}, 1e-5, "position")
}

func TestOctreeCastRayMiss(t *testing.T) {
	accessor := quadAccessor(t)
	octree := BuildMeshOctree(accessor, 8)

	ray := NewRay(mgl32.Vec3{5, -1, 5}, mgl32.Vec3{0, 1, 0})
	if _, ok := octree.CastRay(ray, accessor, mgl32.Ident4(), BackfacesCull); ok {
		t.Error("expected miss outside the quad")
	}
}

func TestOctreeRejectsHitsBehindOrigin(t *testing.T) {
	accessor := quadAccessor(t)
	octree := BuildMeshOctree(accessor, 8)

	// The quad is behind this ray; a t<=0 hit must not be reported.
	ray := NewRay(mgl32.Vec3{0, 1, 0.2}, mgl32.Vec3{0, 1, 0})
	if _, ok := octree.CastRay(ray, accessor, mgl32.Ident4(), BackfacesCull); ok {
		t.Error("hit behind the ray origin must be rejected")
	}
}

func TestOctreeMatchesLinearScan(t *testing.T) {
	server := NewAssetServer()
	mesh := server.CreateIcosphereMesh(1, 2)
	asset, err := server.GetMesh(mesh)
	if err != nil {
		t.Fatal(err)
	}
	accessor, err := NewMeshAccessor(asset)
	if err != nil {
		t.Fatal(err)
	}
	// A low cutoff forces real subdivision.
	octree := BuildMeshOctree(accessor, 4)

	origins := []mgl32.Vec3{
		{0, 0, 5}, {5, 0, 0}, {0, 5, 0},
		{3, 3, 3}, {-4, 1, 2}, {0.3, -5, 0.1},
	}
	for _, origin := range origins {
		ray := NewRay(origin, origin.Mul(-1))

		linear, okLinear, err := RayMeshIntersection(ray, asset, mgl32.Ident4(), BackfacesCull)
		if err != nil {
			t.Fatal(err)
		}
		accelerated, okOctree := octree.CastRay(ray, accessor, mgl32.Ident4(), BackfacesCull)

		if okLinear != okOctree {
			t.Fatalf("origin %v: linear hit=%v octree hit=%v", origin, okLinear, okOctree)
		}
		if okLinear {
			almostEqual(t, accelerated.Distance, linear.Distance, 1e-4, "octree vs linear distance")
			vecAlmostEqual(t, accelerated.Position, linear.Position, 1e-4, "octree vs linear position")
		}
	}
}

func TestOctreeTransformedMesh(t *testing.T) {
	accessor := quadAccessor(t)
	octree := BuildMeshOctree(accessor, 8)

	meshToWorld := mgl32.Translate3D(0, 3, 0)
	ray := NewRay(mgl32.Vec3{0, 0, 0.2}, mgl32.Vec3{0, 1, 0})

	data, ok := octree.CastRay(ray, accessor, meshToWorld, BackfacesCull)
	if !ok {
		t.Fatal("expected hit on the translated quad")
	}
	almostEqual(t, data.Distance, 3, 1e-5, "distance")
}

func TestOctreeCacheInvalidation(t *testing.T) {
	server := NewAssetServer()
	mesh := server.CreatePlaneMesh(2, 2)

	first, err := server.Octree(mesh)
	if err != nil {
		t.Fatal(err)
	}
	again, err := server.Octree(mesh)
	if err != nil {
		t.Fatal(err)
	}
	if first != again {
		t.Error("unchanged mesh must reuse the cached octree")
	}

	asset, _ := server.GetMesh(mesh)
	if err := server.ReplaceMeshGeometry(mesh, asset.Positions(), asset.Normals(), asset.Indices()); err != nil {
		t.Fatal(err)
	}
	rebuilt, err := server.Octree(mesh)
	if err != nil {
		t.Fatal(err)
	}
	if rebuilt == first {
		t.Error("geometry change must rebuild the octree")
	}
}
