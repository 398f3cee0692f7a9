package raycast

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/require"
)

// gltfTriangleDocument assembles an in-memory GLB-style document holding a
// single triangle: three float32 positions followed by three uint16 indices.
func gltfTriangleDocument() *gltf.Document {
	var data []byte
	appendFloat := func(f float32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
		data = append(data, b[:]...)
	}
	for _, v := range [][3]float32{{-1, 0, 0}, {1, 0, 0}, {0, 1, 0}} {
		appendFloat(v[0])
		appendFloat(v[1])
		appendFloat(v[2])
	}
	indexOffset := len(data)
	for _, i := range []uint16{0, 1, 2} {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], i)
		data = append(data, b[:]...)
	}

	return &gltf.Document{
		Buffers: []*gltf.Buffer{{ByteLength: len(data), Data: data}},
		BufferViews: []*gltf.BufferView{
			{Buffer: 0, ByteOffset: 0, ByteLength: indexOffset},
			{Buffer: 0, ByteOffset: indexOffset, ByteLength: len(data) - indexOffset},
		},
		Accessors: []*gltf.Accessor{
			{BufferView: gltf.Index(0), ComponentType: gltf.ComponentFloat, Count: 3, Type: gltf.AccessorVec3},
			{BufferView: gltf.Index(1), ComponentType: gltf.ComponentUshort, Count: 3, Type: gltf.AccessorScalar},
		},
	}
}

func TestReadGltfVec3(t *testing.T) {
	doc := gltfTriangleDocument()

	positions, err := readGltfVec3(doc, 0)
	require.NoError(t, err)
	require.Len(t, positions, 3)
	require.Equal(t, mgl32.Vec3{-1, 0, 0}, positions[0])
	require.Equal(t, mgl32.Vec3{0, 1, 0}, positions[2])
}

func TestReadGltfIndices(t *testing.T) {
	doc := gltfTriangleDocument()

	indices, err := readGltfIndices(doc, 1)
	require.NoError(t, err)
	require.Equal(t, []uint16{0, 1, 2}, indices.U16)
}

func TestLoadGltfPrimitive(t *testing.T) {
	doc := gltfTriangleDocument()
	server := NewAssetServer()

	mesh, err := server.loadGltfPrimitive(doc, &gltf.Primitive{
		Attributes: gltf.PrimitiveAttributes{gltf.POSITION: 0},
		Indices:    gltf.Index(1),
		Mode:       gltf.PrimitiveTriangles,
	})
	require.NoError(t, err)

	asset, err := server.GetMesh(mesh)
	require.NoError(t, err)

	accessor, err := NewMeshAccessor(asset)
	require.NoError(t, err)
	require.Equal(t, 1, accessor.TriangleCount())

	tri, err := accessor.Triangle(0)
	require.NoError(t, err)
	require.Equal(t, mgl32.Vec3{-1, 0, 0}, tri.V0)
}

func TestLoadGltfPrimitiveRejectsNonTriangles(t *testing.T) {
	doc := gltfTriangleDocument()
	server := NewAssetServer()

	_, err := server.loadGltfPrimitive(doc, &gltf.Primitive{
		Attributes: gltf.PrimitiveAttributes{gltf.POSITION: 0},
		Mode:       gltf.PrimitiveLines,
	})
	require.ErrorIs(t, err, ErrBadTopology)
}
