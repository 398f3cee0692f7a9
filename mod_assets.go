package raycast

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type AssetId string

type MeshTopology int

const (
	TopologyTriangleList MeshTopology = iota
	TopologyTriangleStrip
	TopologyLineList
	TopologyPointList
)

// MeshIndices is an optional 16- or 32-bit index stream describing triangles
// in triangle-list order. At most one of the two widths is set.
type MeshIndices struct {
	U16 []uint16
	U32 []uint32
}

func (ix MeshIndices) Present() bool {
	return ix.U16 != nil || ix.U32 != nil
}

func (ix MeshIndices) Len() int {
	if ix.U16 != nil {
		return len(ix.U16)
	}
	return len(ix.U32)
}

func (ix MeshIndices) At(i int) int {
	if ix.U16 != nil {
		return int(ix.U16[i])
	}
	return int(ix.U32[i])
}

// MeshAsset holds the vertex streams the intersection code reads. The
// position stream is mandatory; normals and indices are optional. Assets are
// immutable during queries: any change goes through the AssetServer and
// bumps the version, invalidating derived data such as octrees.
type MeshAsset struct {
	version   uint
	topology  MeshTopology
	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	indices   MeshIndices
}

func (m *MeshAsset) Version() uint           { return m.version }
func (m *MeshAsset) Topology() MeshTopology  { return m.topology }
func (m *MeshAsset) Positions() []mgl32.Vec3 { return m.positions }
func (m *MeshAsset) Normals() []mgl32.Vec3   { return m.normals }
func (m *MeshAsset) Indices() MeshIndices    { return m.indices }

// Mesh is a cheap handle onto an asset owned by the AssetServer.
type Mesh struct {
	assetId AssetId
}

type octreeEntry struct {
	version uint
	octree  *MeshOctree
}

// AssetServer owns mesh assets and their derived octrees. Mesh data is
// immutable once loaded; one read-write mutex guards both the meshes and the
// octree cache, so queries can build acceleration structures lazily.
type AssetServer struct {
	mu      sync.RWMutex
	meshes  map[AssetId]*MeshAsset
	octrees map[AssetId]octreeEntry

	// LeafTriCutoff is the octree leaf promotion threshold used for lazily
	// built octrees.
	LeafTriCutoff int
}

type AssetServerModule struct{}

func (AssetServerModule) Install(app *App, cmd *Commands) {
	app.addResources(NewAssetServer())
}

func NewAssetServer() *AssetServer {
	return &AssetServer{
		meshes:        make(map[AssetId]*MeshAsset),
		octrees:       make(map[AssetId]octreeEntry),
		LeafTriCutoff: octreeLeafTriCutoff,
	}
}

// LoadMesh validates and stores a mesh. Position count must be positive; a
// normal stream, if present, must match it; an index stream must be a
// multiple of three and stay in range. Topology is recorded as-is: meshes in
// a non-triangle-list topology load fine but fail any intersection query.
func (server *AssetServer) LoadMesh(topology MeshTopology, positions, normals []mgl32.Vec3, indices MeshIndices) (Mesh, error) {
	if len(positions) == 0 {
		return Mesh{}, ErrMissingPositions
	}
	if normals != nil && len(normals) != len(positions) {
		return Mesh{}, fmt.Errorf("%w: %d normals for %d positions", ErrMissingPositions, len(normals), len(positions))
	}
	if err := validateIndices(indices, len(positions)); err != nil {
		return Mesh{}, err
	}

	id := makeAssetId()

	server.mu.Lock()
	server.meshes[id] = &MeshAsset{
		version:   0,
		topology:  topology,
		positions: positions,
		normals:   normals,
		indices:   indices,
	}
	server.mu.Unlock()

	return Mesh{assetId: id}, nil
}

func validateIndices(indices MeshIndices, positionCount int) error {
	if !indices.Present() {
		return nil
	}
	if indices.Len()%3 != 0 {
		return fmt.Errorf("%w: length %d is not a multiple of 3", ErrMalformedIndices, indices.Len())
	}
	for i := 0; i < indices.Len(); i++ {
		if idx := indices.At(i); idx >= positionCount {
			return fmt.Errorf("%w: index %d out of range for %d vertices", ErrMalformedIndices, idx, positionCount)
		}
	}
	return nil
}

// GetMesh resolves a handle to its asset.
func (server *AssetServer) GetMesh(mesh Mesh) (*MeshAsset, error) {
	server.mu.RLock()
	defer server.mu.RUnlock()

	asset, ok := server.meshes[mesh.assetId]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchMesh, mesh.assetId)
	}
	return asset, nil
}

// ReplaceMeshGeometry swaps the vertex streams of an existing asset and
// bumps its version, invalidating any cached octree.
func (server *AssetServer) ReplaceMeshGeometry(mesh Mesh, positions, normals []mgl32.Vec3, indices MeshIndices) error {
	if len(positions) == 0 {
		return ErrMissingPositions
	}
	if normals != nil && len(normals) != len(positions) {
		return fmt.Errorf("%w: %d normals for %d positions", ErrMissingPositions, len(normals), len(positions))
	}
	if err := validateIndices(indices, len(positions)); err != nil {
		return err
	}

	server.mu.Lock()
	defer server.mu.Unlock()

	asset, ok := server.meshes[mesh.assetId]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchMesh, mesh.assetId)
	}
	server.meshes[mesh.assetId] = &MeshAsset{
		version:   asset.version + 1,
		topology:  asset.topology,
		positions: positions,
		normals:   normals,
		indices:   indices,
	}
	delete(server.octrees, mesh.assetId)
	return nil
}

// Octree returns the acceleration structure for a mesh, building and caching
// it on first use. A stale entry left over from an older mesh version is
// rebuilt.
func (server *AssetServer) Octree(mesh Mesh) (*MeshOctree, error) {
	asset, err := server.GetMesh(mesh)
	if err != nil {
		return nil, err
	}

	server.mu.Lock()
	defer server.mu.Unlock()

	if entry, ok := server.octrees[mesh.assetId]; ok && entry.version == asset.version {
		return entry.octree, nil
	}

	accessor, err := NewMeshAccessor(asset)
	if err != nil {
		return nil, err
	}
	octree := BuildMeshOctree(accessor, server.LeafTriCutoff)
	server.octrees[mesh.assetId] = octreeEntry{version: asset.version, octree: octree}
	return octree, nil
}

func makeAssetId() AssetId {
	return AssetId(uuid.NewString())
}
