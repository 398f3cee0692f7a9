package raycast

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
)

// LoadGltfMeshes imports every mesh primitive of a glTF/GLB file into the
// asset server, one Mesh handle per primitive. Primitives in any mode other
// than triangles fail with a topology error, per the mesh contract.
func (server *AssetServer) LoadGltfMeshes(path string) ([]Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}

	var meshes []Mesh
	for _, m := range doc.Meshes {
		for _, prim := range m.Primitives {
			mesh, err := server.loadGltfPrimitive(doc, prim)
			if err != nil {
				return nil, fmt.Errorf("mesh %q: %w", m.Name, err)
			}
			meshes = append(meshes, mesh)
		}
	}
	return meshes, nil
}

func (server *AssetServer) loadGltfPrimitive(doc *gltf.Document, prim *gltf.Primitive) (Mesh, error) {
	// Mode 0 shows up for documents that omit the field entirely.
	if prim.Mode != gltf.PrimitiveTriangles && prim.Mode != 0 {
		return Mesh{}, fmt.Errorf("%w: gltf primitive mode %d", ErrBadTopology, prim.Mode)
	}

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return Mesh{}, ErrMissingPositions
	}
	positions, err := readGltfVec3(doc, posIdx)
	if err != nil {
		return Mesh{}, fmt.Errorf("read positions: %w", err)
	}

	var normals []mgl32.Vec3
	if normIdx, ok := prim.Attributes[gltf.NORMAL]; ok {
		normals, err = readGltfVec3(doc, normIdx)
		if err != nil {
			return Mesh{}, fmt.Errorf("read normals: %w", err)
		}
	}

	var indices MeshIndices
	if prim.Indices != nil {
		indices, err = readGltfIndices(doc, *prim.Indices)
		if err != nil {
			return Mesh{}, fmt.Errorf("read indices: %w", err)
		}
	}

	return server.LoadMesh(TopologyTriangleList, positions, normals, indices)
}

func readGltfVec3(doc *gltf.Document, accessorIdx int) ([]mgl32.Vec3, error) {
	accessor := doc.Accessors[accessorIdx]
	if accessor.Type != gltf.AccessorVec3 || accessor.ComponentType != gltf.ComponentFloat {
		return nil, fmt.Errorf("expected float VEC3, got %v/%v", accessor.Type, accessor.ComponentType)
	}

	data, stride, err := gltfAccessorBytes(doc, accessor, 12)
	if err != nil {
		return nil, err
	}

	result := make([]mgl32.Vec3, accessor.Count)
	for i := range result {
		offset := i * stride
		result[i] = mgl32.Vec3{
			gltfFloat32(data[offset:]),
			gltfFloat32(data[offset+4:]),
			gltfFloat32(data[offset+8:]),
		}
	}
	return result, nil
}

func readGltfIndices(doc *gltf.Document, accessorIdx int) (MeshIndices, error) {
	accessor := doc.Accessors[accessorIdx]
	if accessor.Type != gltf.AccessorScalar {
		return MeshIndices{}, fmt.Errorf("expected SCALAR indices, got %v", accessor.Type)
	}

	switch accessor.ComponentType {
	case gltf.ComponentUbyte:
		data, stride, err := gltfAccessorBytes(doc, accessor, 1)
		if err != nil {
			return MeshIndices{}, err
		}
		out := make([]uint16, accessor.Count)
		for i := range out {
			out[i] = uint16(data[i*stride])
		}
		return MeshIndices{U16: out}, nil

	case gltf.ComponentUshort:
		data, stride, err := gltfAccessorBytes(doc, accessor, 2)
		if err != nil {
			return MeshIndices{}, err
		}
		out := make([]uint16, accessor.Count)
		for i := range out {
			offset := i * stride
			out[i] = uint16(data[offset]) | uint16(data[offset+1])<<8
		}
		return MeshIndices{U16: out}, nil

	case gltf.ComponentUint:
		data, stride, err := gltfAccessorBytes(doc, accessor, 4)
		if err != nil {
			return MeshIndices{}, err
		}
		out := make([]uint32, accessor.Count)
		for i := range out {
			offset := i * stride
			out[i] = uint32(data[offset]) |
				uint32(data[offset+1])<<8 |
				uint32(data[offset+2])<<16 |
				uint32(data[offset+3])<<24
		}
		return MeshIndices{U32: out}, nil
	}

	return MeshIndices{}, fmt.Errorf("%w: index component type %v", ErrMalformedIndices, accessor.ComponentType)
}

// gltfAccessorBytes resolves an accessor to the byte slice it reads from
// and its element stride. Only embedded (GLB) buffers are supported.
func gltfAccessorBytes(doc *gltf.Document, accessor *gltf.Accessor, defaultStride int) ([]byte, int, error) {
	if accessor.BufferView == nil {
		return nil, 0, fmt.Errorf("accessor has no buffer view")
	}
	bufferView := doc.BufferViews[*accessor.BufferView]
	buffer := doc.Buffers[bufferView.Buffer]

	if buffer.URI != "" {
		return nil, 0, fmt.Errorf("external buffers are not supported")
	}
	if buffer.Data == nil {
		return nil, 0, fmt.Errorf("buffer has no data")
	}

	stride := bufferView.ByteStride
	if stride == 0 {
		stride = defaultStride
	}

	start := bufferView.ByteOffset + accessor.ByteOffset
	end := start + (accessor.Count-1)*stride + defaultStride
	if end > len(buffer.Data) {
		return nil, 0, fmt.Errorf("accessor reads past end of buffer")
	}
	return buffer.Data[start:], stride, nil
}

func gltfFloat32(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}
