package raycast

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// octreeLeafTriCutoff is the default leaf promotion threshold: a node
	// with at most this many triangles becomes a leaf.
	octreeLeafTriCutoff = 8

	// octreeMaxNodeDepth caps subdivision; a 32-bit address holds ten
	// three-bit triplets plus the metadata bits.
	octreeMaxNodeDepth = 10
)

// NodeAddr encodes the path from the root to a node as a list of XYZ
// triplets packed into a u32.
//
//	   2----6       010--110      Y
//	3----7  |    011--111 |       |
//	|  0-|--4     | 000|-100      o---X
//	1----5       001--101       Z
//
//	 Decimal        Binary       Coords
//
// Each triplet is the child cell at that level: a set bit means away from
// the axis origin. The address starts with a 1 header bit so depth can be
// recovered from the position of the highest set bit, and the very last bit
// tags the address as a leaf (1) or an internal node (0):
//
//	1 000 000 000 000 000 000 000 000 000 000 1 -> depth-10 leaf
//	000 000 000 000 000 000 000 1 000 000 000 0 -> depth-3 node
type NodeAddr uint32

func NewRootNodeAddr() NodeAddr {
	return NodeAddr(0b10)
}

// PushBits appends a child triplet, producing the full address of the
// child. The trailing leaf/node bit is re-added at the end.
func (addr NodeAddr) PushBits(triplet uint8, leaf bool) NodeAddr {
	bits := uint32(triplet&0b111) << 1
	if leaf {
		bits |= 1
	}
	next := uint32(addr)
	next >>= 1 // drop the leaf/node bit
	next <<= 4 // make room for the triplet and a fresh leaf/node bit
	next |= bits
	return NodeAddr(next)
}

// ToLeaf returns the address with the leaf bit set.
func (addr NodeAddr) ToLeaf() NodeAddr {
	return addr | 1
}

// ToNode returns the address with the leaf bit cleared.
func (addr NodeAddr) ToNode() NodeAddr {
	return addr &^ 1
}

func (addr NodeAddr) IsLeaf() bool {
	return addr&1 == 1
}

// Depth is the number of octree levels below the root this address points
// to, derived from the position of the header bit.
func (addr NodeAddr) Depth() int {
	lead := 0
	for i := 31; i >= 0; i-- {
		if addr&(1<<uint(i)) != 0 {
			break
		}
		lead++
	}
	addressBits := 32 - 2 - lead
	if addressBits < 0 {
		addressBits = 0
	}
	return addressBits / 3
}

// ComputeAABB resolves the address to its cell inside the mesh bounds by
// applying the triplets root-first.
func (addr NodeAddr) ComputeAABB(meshAABB AABB) AABB {
	aabb := meshAABB
	bits := uint32(addr) >> 1 // drop the leaf/node bit
	depth := addr.Depth()
	for level := depth - 1; level >= 0; level-- {
		triplet := uint8(bits >> (3 * level) & 0b111)
		aabb = aabb.Octant(triplet)
	}
	return aabb
}

func (addr NodeAddr) String() string {
	return fmt.Sprintf("NodeAddr(%032b)", uint32(addr))
}

// NodeKind is the two-bit state of one child slot.
type NodeKind uint16

const (
	NodeEmpty    NodeKind = 0
	NodeInternal NodeKind = 1
	NodeLeaf     NodeKind = 2
)

// NodeMask packs the eight child slots of a node into a u16, two bits per
// slot, indexed by the child's XYZ triplet.
type NodeMask uint16

const nodeMaskSlots = 8

// pushChild shifts the mask left and appends a child state. Children must be
// pushed in descending slot order so slot 0 lands in the low bits.
func (mask *NodeMask) pushChild(kind NodeKind) {
	*mask = *mask<<2 | NodeMask(kind)
}

func (mask NodeMask) child(slot uint8) NodeKind {
	return NodeKind(mask >> (slot * 2) & 0b11)
}

// MeshOctree is a per-mesh acceleration structure: a compressed octree of
// triangle indices keyed by path address. It is read-only after build and
// safe for concurrent queries; a mesh change requires a rebuild.
type MeshOctree struct {
	aabb   AABB
	nodes  map[NodeAddr]NodeMask
	leaves map[NodeAddr][]uint32
}

func (o *MeshOctree) AABB() AABB {
	return o.aabb
}

type octreeStackEntry struct {
	addr      NodeAddr
	aabb      AABB
	triangles []uint32
}

// BuildMeshOctree subdivides the mesh bounds, keeping in each child the
// triangles whose SAT test overlaps the child cell. A child with at most
// cutoff triangles (or at the depth limit) becomes a leaf. The builder is
// iterative: an explicit stack avoids deep recursion on degenerate meshes.
func BuildMeshOctree(accessor MeshAccessor, cutoff int) *MeshOctree {
	if cutoff <= 0 {
		cutoff = octreeLeafTriCutoff
	}

	rootAABB := accessor.GenerateAABB()
	rootTris := make([]uint32, 0, accessor.TriangleCount())
	for i := 0; i < accessor.TriangleCount(); i++ {
		rootTris = append(rootTris, uint32(i))
	}

	octree := &MeshOctree{
		aabb:   rootAABB,
		nodes:  make(map[NodeAddr]NodeMask),
		leaves: make(map[NodeAddr][]uint32),
	}

	stack := []octreeStackEntry{{
		addr:      NewRootNodeAddr(),
		aabb:      rootAABB,
		triangles: rootTris,
	}}

	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var mask NodeMask
		// Descending slot order: pushChild builds the mask from the right.
		for slot := int8(nodeMaskSlots - 1); slot >= 0; slot-- {
			child := buildChild(entry, uint8(slot), accessor)

			switch {
			case len(child.triangles) == 0:
				mask.pushChild(NodeEmpty)
			case len(child.triangles) <= cutoff || child.addr.Depth() >= octreeMaxNodeDepth:
				octree.leaves[child.addr.ToLeaf()] = child.triangles
				mask.pushChild(NodeLeaf)
			default:
				stack = append(stack, child)
				mask.pushChild(NodeInternal)
			}
		}

		octree.nodes[entry.addr.ToNode()] = mask
	}

	return octree
}

// buildChild collects the parent triangles overlapping one child octant.
func buildChild(parent octreeStackEntry, slot uint8, accessor MeshAccessor) octreeStackEntry {
	childAABB := parent.aabb.Octant(slot)
	var childTris []uint32
	for _, index := range parent.triangles {
		tri, err := accessor.Triangle(int(index))
		if err != nil {
			continue
		}
		if tri.IntersectsAABB(childAABB) {
			childTris = append(childTris, index)
		}
	}
	return octreeStackEntry{
		addr:      parent.addr.PushBits(slot, false),
		aabb:      childAABB,
		triangles: childTris,
	}
}

// CastRay traverses the octree with a world-space ray, returning the
// nearest hit. The result matches the linear triangle scan up to floating
// point tolerance.
func (o *MeshOctree) CastRay(ray Ray, accessor MeshAccessor, meshToWorld mgl32.Mat4, backfaceCulling Backfaces) (IntersectionData, bool) {
	meshRay := ray.Transformed(meshToWorld.Inv())

	index, hit, ok := o.castRayLocal(meshRay, accessor, backfaceCulling)
	if !ok {
		return IntersectionData{}, false
	}
	return makeWorldIntersection(meshToWorld, meshRay, accessor, index, hit), true
}

// castRayLocal walks nodes front-to-back. The first leaf hit is the nearest
// hit overall: the node intersection order is invariant over the whole tree
// because every subdivision preserves axis alignment.
func (o *MeshOctree) castRayLocal(meshRay Ray, accessor MeshAccessor, backfaceCulling Backfaces) (int, RayHit, bool) {
	order := nodeIntersectOrder(meshRay)

	stack := make([]NodeAddr, 0, 8)
	stack = append(stack, NewRootNodeAddr())

	for len(stack) > 0 {
		addr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if addr.IsLeaf() {
			if index, hit, ok := o.leafRaycast(addr, accessor, meshRay, backfaceCulling); ok {
				return index, hit, true
			}
			continue
		}

		mask, ok := o.nodes[addr]
		if !ok {
			panic(fmt.Sprintf("malformed mesh octree: node %v does not exist", addr))
		}
		parentAABB := addr.ComputeAABB(o.aabb)

		// Reverse traversal order: the nearest child must be pushed last so
		// it is popped first.
		for i := nodeMaskSlots - 1; i >= 0; i-- {
			slot := order[i]
			kind := mask.child(slot)
			if kind == NodeEmpty {
				continue
			}
			if _, _, hit := meshRay.intersectsAABBLocal(parentAABB.Octant(slot)); !hit {
				continue
			}
			stack = append(stack, addr.PushBits(slot, kind == NodeLeaf))
		}
	}

	return 0, RayHit{}, false
}

// leafRaycast runs the narrow phase over a leaf's triangles, committing to
// the nearest forward hit that lies inside the leaf's cell. A hit on a
// triangle that spans several cells but lands outside this one is left to
// the leaf that contains it, which keeps the first leaf hit the nearest.
func (o *MeshOctree) leafRaycast(addr NodeAddr, accessor MeshAccessor, meshRay Ray, backfaceCulling Backfaces) (int, RayHit, bool) {
	triangles, ok := o.leaves[addr]
	if !ok {
		panic(fmt.Sprintf("malformed mesh octree: leaf %v does not exist", addr))
	}

	cell := addr.ComputeAABB(o.aabb)
	tolerance := o.aabb.HalfExtents.Len()*1e-5 + epsilon

	bestIndex := -1
	var best RayHit
	for _, index := range triangles {
		tri, err := accessor.Triangle(int(index))
		if err != nil {
			continue
		}
		hit, ok := RayTriangleIntersection(meshRay, tri, backfaceCulling)
		if !ok || hit.Distance <= 0 {
			continue
		}
		offset := meshRay.Position(hit.Distance).Sub(cell.Center)
		if abs32(offset.X()) > cell.HalfExtents.X()+tolerance ||
			abs32(offset.Y()) > cell.HalfExtents.Y()+tolerance ||
			abs32(offset.Z()) > cell.HalfExtents.Z()+tolerance {
			continue
		}
		if bestIndex < 0 || hit.Distance < best.Distance {
			bestIndex = int(index)
			best = hit
		}
	}

	if bestIndex < 0 {
		return 0, RayHit{}, false
	}
	return bestIndex, best, true
}

// nodeIntersectOrder projects the eight unit-cube corners onto the ray
// direction and sorts ascending, yielding the order any node's children are
// entered by the ray. Ties resolve to the lower slot index.
func nodeIntersectOrder(meshRay Ray) [8]uint8 {
	direction := meshRay.Direction()

	type slotDistance struct {
		distance float32
		slot     uint8
	}
	distances := make([]slotDistance, 0, 8)
	for i := uint8(0); i < 8; i++ {
		corner := mgl32.Vec3{
			float32(i >> 2 & 1),
			float32(i >> 1 & 1),
			float32(i & 1),
		}
		distance := corner.Dot(direction)
		if math.IsNaN(float64(distance)) || math.IsInf(float64(distance), 0) {
			distance = math.MaxFloat32
		}
		distances = append(distances, slotDistance{distance, i})
	}
	sort.SliceStable(distances, func(a, b int) bool {
		return distances[a].distance < distances[b].distance
	})

	var order [8]uint8
	for i, d := range distances {
		order[i] = d.slot
	}
	return order
}
