package raycast

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Procedural triangle-list meshes. These are the stock shapes used by tests
// and example scenes; all of them carry vertex normals and a 16-bit index
// stream.

// CreatePlaneMesh builds a quad on the X-Z plane centered on the origin,
// facing +Y.
func (server *AssetServer) CreatePlaneMesh(width, depth float32) Mesh {
	hw, hd := width/2, depth/2
	positions := []mgl32.Vec3{
		{-hw, 0, -hd},
		{-hw, 0, hd},
		{hw, 0, hd},
		{hw, 0, -hd},
	}
	up := mgl32.Vec3{0, 1, 0}
	normals := []mgl32.Vec3{up, up, up, up}
	indices := MeshIndices{U16: []uint16{0, 1, 2, 0, 2, 3}}

	mesh, err := server.LoadMesh(TopologyTriangleList, positions, normals, indices)
	if err != nil {
		panic(err)
	}
	return mesh
}

// CreateCubeMesh builds an axis-aligned box centered on the origin with
// per-face normals, wound counter-clockwise seen from outside.
func (server *AssetServer) CreateCubeMesh(width, height, depth float32) Mesh {
	x, y, z := width/2, height/2, depth/2

	type face struct {
		normal  mgl32.Vec3
		corners [4]mgl32.Vec3
	}
	faces := []face{
		{mgl32.Vec3{0, 0, 1}, [4]mgl32.Vec3{{-x, -y, z}, {x, -y, z}, {x, y, z}, {-x, y, z}}},
		{mgl32.Vec3{0, 0, -1}, [4]mgl32.Vec3{{x, -y, -z}, {-x, -y, -z}, {-x, y, -z}, {x, y, -z}}},
		{mgl32.Vec3{1, 0, 0}, [4]mgl32.Vec3{{x, -y, z}, {x, -y, -z}, {x, y, -z}, {x, y, z}}},
		{mgl32.Vec3{-1, 0, 0}, [4]mgl32.Vec3{{-x, -y, -z}, {-x, -y, z}, {-x, y, z}, {-x, y, -z}}},
		{mgl32.Vec3{0, 1, 0}, [4]mgl32.Vec3{{-x, y, z}, {x, y, z}, {x, y, -z}, {-x, y, -z}}},
		{mgl32.Vec3{0, -1, 0}, [4]mgl32.Vec3{{-x, -y, -z}, {x, -y, -z}, {x, -y, z}, {-x, -y, z}}},
	}

	var positions, normals []mgl32.Vec3
	var indices []uint16
	for _, f := range faces {
		base := uint16(len(positions))
		for _, c := range f.corners {
			positions = append(positions, c)
			normals = append(normals, f.normal)
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}

	mesh, err := server.LoadMesh(TopologyTriangleList, positions, normals, MeshIndices{U16: indices})
	if err != nil {
		panic(err)
	}
	return mesh
}

// CreateIcosphereMesh builds a subdivided icosahedron. Normals point
// radially, so interpolated hit normals are smooth.
func (server *AssetServer) CreateIcosphereMesh(radius float32, subdivisions int) Mesh {
	t := float32((1.0 + math.Sqrt(5.0)) / 2.0)

	positions := []mgl32.Vec3{
		{-1, t, 0}, {1, t, 0}, {-1, -t, 0}, {1, -t, 0},
		{0, -1, t}, {0, 1, t}, {0, -1, -t}, {0, 1, -t},
		{t, 0, -1}, {t, 0, 1}, {-t, 0, -1}, {-t, 0, 1},
	}
	for i := range positions {
		positions[i] = positions[i].Normalize()
	}

	faces := [][3]uint16{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}

	midpoints := make(map[[2]uint16]uint16)
	midpoint := func(a, b uint16) uint16 {
		key := [2]uint16{min16(a, b), max16(a, b)}
		if idx, ok := midpoints[key]; ok {
			return idx
		}
		mid := positions[a].Add(positions[b]).Mul(0.5).Normalize()
		positions = append(positions, mid)
		idx := uint16(len(positions) - 1)
		midpoints[key] = idx
		return idx
	}

	for s := 0; s < subdivisions; s++ {
		next := make([][3]uint16, 0, len(faces)*4)
		for _, f := range faces {
			a := midpoint(f[0], f[1])
			b := midpoint(f[1], f[2])
			c := midpoint(f[2], f[0])
			next = append(next,
				[3]uint16{f[0], a, c},
				[3]uint16{f[1], b, a},
				[3]uint16{f[2], c, b},
				[3]uint16{a, b, c},
			)
		}
		faces = next
	}

	normals := make([]mgl32.Vec3, len(positions))
	for i := range positions {
		normals[i] = positions[i]
		positions[i] = positions[i].Mul(radius)
	}

	indices := make([]uint16, 0, len(faces)*3)
	for _, f := range faces {
		indices = append(indices, f[0], f[1], f[2])
	}

	mesh, err := server.LoadMesh(TopologyTriangleList, positions, normals, MeshIndices{U16: indices})
	if err != nil {
		panic(err)
	}
	return mesh
}

func min16(a, b uint16) uint16 {
	if a < b {
		return a
	}
	return b
}

func max16(a, b uint16) uint16 {
	if a > b {
		return a
	}
	return b
}
