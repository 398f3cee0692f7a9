package raycast

import (
	"math"
	"reflect"
	"runtime"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// TransformComponent places an entity in the world.
type TransformComponent struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

// Matrix composes the entity-to-world transform. Zero-value rotation and
// scale are treated as identity so a bare component is usable.
func (tr *TransformComponent) Matrix() mgl32.Mat4 {
	rotation := tr.Rotation
	if rotation.W == 0 && rotation.V.Len() == 0 {
		rotation = mgl32.QuatIdent()
	}
	scale := tr.Scale
	if scale.Len() == 0 {
		scale = mgl32.Vec3{1, 1, 1}
	}
	translate := mgl32.Translate3D(tr.Position.X(), tr.Position.Y(), tr.Position.Z())
	return translate.Mul4(rotation.Mat4()).Mul4(mgl32.Scale3D(scale.X(), scale.Y(), scale.Z()))
}

// MeshComponent attaches a mesh asset to an entity.
type MeshComponent struct {
	Mesh Mesh
}

// SourceHit is one deferred-facade intersection mirrored onto a mesh,
// keyed by the ray source entity that produced it.
type SourceHit struct {
	Source EntityId
	Data   IntersectionData
}

// RaycastMeshComponent marks an entity as a raycast target. The deferred
// facade mirrors hits into Intersections once per tick; immediate queries
// only use it as a marker.
type RaycastMeshComponent struct {
	Intersections []SourceHit
}

// SimplifiedMeshComponent substitutes a coarser mesh for the narrow phase
// only: a precision-for-speed knob controlled by the host.
type SimplifiedMeshComponent struct {
	Mesh Mesh
}

// NoBackfaceCulling suppresses back-face culling for one entity.
type NoBackfaceCulling struct{}

// VisibilityComponent carries the host renderer's visibility verdicts.
// Visible is the hierarchy-resolved flag, InView adds frustum culling.
type VisibilityComponent struct {
	Visible bool
	InView  bool
}

// RaycastVisibility selects how a query treats entity visibility.
type RaycastVisibility int

const (
	// VisibilityIgnore hits meshes regardless of visibility.
	VisibilityIgnore RaycastVisibility = iota
	// VisibilityMustBeVisible requires the hierarchy-visible flag.
	VisibilityMustBeVisible
	// VisibilityMustBeVisibleAndInView additionally requires the entity to
	// be in a view frustum.
	VisibilityMustBeVisibleAndInView
)

// RaycastSettings configures one cast. Filter selects eligible entities;
// EarlyExitTest decides per hit entity whether the hit blocks everything
// behind it. Both predicates must be pure: they may run many times and in
// any order.
type RaycastSettings struct {
	Visibility    RaycastVisibility
	Backfaces     Backfaces
	Filter        func(EntityId) bool
	EarlyExitTest func(EntityId) bool
}

// DefaultRaycastSettings mirrors the common picking case: visible targets
// only, every hit blocks, so the query yields the single nearest hit.
func DefaultRaycastSettings() *RaycastSettings {
	return &RaycastSettings{
		Visibility: VisibilityMustBeVisibleAndInView,
		Backfaces:  BackfacesCull,
	}
}

func (s *RaycastSettings) WithVisibility(v RaycastVisibility) *RaycastSettings {
	s.Visibility = v
	return s
}

func (s *RaycastSettings) WithBackfaces(b Backfaces) *RaycastSettings {
	s.Backfaces = b
	return s
}

func (s *RaycastSettings) WithFilter(filter func(EntityId) bool) *RaycastSettings {
	s.Filter = filter
	return s
}

func (s *RaycastSettings) WithEarlyExitTest(test func(EntityId) bool) *RaycastSettings {
	s.EarlyExitTest = test
	return s
}

func (s *RaycastSettings) allows(entity EntityId) bool {
	return s.Filter == nil || s.Filter(entity)
}

func (s *RaycastSettings) earlyExit(entity EntityId) bool {
	return s.EarlyExitTest == nil || s.EarlyExitTest(entity)
}

// EntityHit pairs a hit with the entity that owns the mesh.
type EntityHit struct {
	Entity EntityId
	Data   IntersectionData
}

// candidateRow is the immutable snapshot of one raycastable entity taken
// while walking the ECS, before any (possibly parallel) AABB testing.
type candidateRow struct {
	entity   EntityId
	matrix   mgl32.Mat4
	aabb     *AABB
	unculled bool
	entry    float32
}

// Raycaster is the stateless immediate-mode facade: it owns no per-frame
// state, only scratch buffers reused across calls to avoid allocation. The
// returned hit slice is valid until the next CastRay on the same Raycaster.
type Raycaster struct {
	// UseOctrees routes the narrow phase through per-mesh octrees built and
	// cached by the AssetServer.
	UseOctrees bool

	// ParallelCullThreshold fans the per-entity AABB tests across worker
	// goroutines once a query sees at least this many candidates.
	// Zero disables the fan-out.
	ParallelCullThreshold int

	rows []candidateRow
	hits []EntityHit
}

// RaycastModule installs the immediate-mode facade. It expects an
// AssetServer resource (install AssetServerModule first).
type RaycastModule struct {
	UseOctrees            bool
	ParallelCullThreshold int
}

func (m RaycastModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Raycaster{
		UseOctrees:            m.UseOctrees,
		ParallelCullThreshold: m.ParallelCullThreshold,
	})
}

func getResource[T any](app *App) *T {
	if r, ok := app.resources[reflect.TypeOf((*T)(nil)).Elem()]; ok {
		return r.(*T)
	}
	return nil
}

// CastRay runs the scene broad-phase and narrow-phase for one ray and
// returns the hits sorted ascending by world distance. With an
// always-true EarlyExitTest the result holds only the nearest blocking
// hit; with an always-false one it holds every hit along the ray.
func (r *Raycaster) CastRay(cmd *Commands, ray Ray, settings *RaycastSettings) []EntityHit {
	if settings == nil {
		settings = DefaultRaycastSettings()
	}
	server := getResource[AssetServer](cmd.app)
	logger := cmd.app.Logger()
	r.rows = r.rows[:0]
	r.hits = r.hits[:0]
	if server == nil {
		logger.Errorf("raycast: no AssetServer resource installed")
		return r.hits
	}

	r.gatherCandidates(cmd, settings)
	r.cullByAABB(ray)
	candidates := r.sortedSurvivors(settings)

	// The narrow phase is sequential on purpose: bestBlocker must observe
	// earlier hits before later candidates are considered.
	bestBlocker := float32(math.MaxFloat32)
	for _, row := range candidates {
		if row.entry > bestBlocker {
			break
		}

		mesh, backfaces := r.resolveTarget(cmd, row.entity, settings)
		data, ok, err := r.intersectMesh(server, ray, mesh, row.matrix, backfaces)
		if err != nil {
			logger.Warnf("raycast: skipping entity %d: %v", row.entity, err)
			continue
		}
		if !ok {
			continue
		}

		r.hits = append(r.hits, EntityHit{Entity: row.entity, Data: data})
		if settings.earlyExit(row.entity) && data.Distance < bestBlocker {
			bestBlocker = data.Distance
		}
	}

	// Drop hits behind the final blocker, then order by distance. The sort
	// is stable so equal distances keep the entry-distance candidate order.
	kept := r.hits[:0]
	for _, hit := range r.hits {
		if hit.Data.Distance <= bestBlocker {
			kept = append(kept, hit)
		}
	}
	r.hits = kept
	sort.SliceStable(r.hits, func(a, b int) bool {
		return r.hits[a].Data.Distance < r.hits[b].Data.Distance
	})
	return r.hits
}

// gatherCandidates snapshots every raycastable entity that passes the
// visibility mode. ECS storage is only touched here, on the calling
// goroutine.
func (r *Raycaster) gatherCandidates(cmd *Commands, settings *RaycastSettings) {
	MakeQuery5[RaycastMeshComponent, MeshComponent, TransformComponent, AABBComponent, VisibilityComponent](cmd).
		Map(func(eid EntityId, _ *RaycastMeshComponent, _ *MeshComponent, tr *TransformComponent, aabb *AABBComponent, vis *VisibilityComponent) bool {
			switch settings.Visibility {
			case VisibilityMustBeVisible:
				if vis != nil && !vis.Visible {
					return true
				}
			case VisibilityMustBeVisibleAndInView:
				if vis != nil && (!vis.Visible || !vis.InView) {
					return true
				}
			}

			row := candidateRow{entity: eid, matrix: tr.Matrix()}
			if aabb != nil {
				boxCopy := aabb.AABB
				row.aabb = &boxCopy
			}
			r.rows = append(r.rows, row)
			return true
		}, AABBComponent{}, VisibilityComponent{})
}

// cullByAABB runs the slab test for every snapshotted row, in parallel when
// the candidate set is large enough. An entity without an AABB is
// unboundable: it survives with entry distance zero.
func (r *Raycaster) cullByAABB(ray Ray) {
	testRow := func(row *candidateRow) {
		if row.aabb == nil {
			row.unculled = true
			row.entry = 0
			return
		}
		near, far, ok := ray.IntersectsAABB(*row.aabb, row.matrix)
		if ok && far >= 0 {
			row.unculled = true
			row.entry = near
		}
	}

	if r.ParallelCullThreshold <= 0 || len(r.rows) < r.ParallelCullThreshold {
		for i := range r.rows {
			testRow(&r.rows[i])
		}
		return
	}

	workers := runtime.NumCPU()
	jobs := make(chan int, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				testRow(&r.rows[i])
			}
		}()
	}
	for i := range r.rows {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

// sortedSurvivors orders the unculled rows by AABB entry distance and then
// applies the user filter. Ties sort by entity id so two identical queries
// walk candidates in the same order.
func (r *Raycaster) sortedSurvivors(settings *RaycastSettings) []candidateRow {
	survivors := r.rows[:0]
	for _, row := range r.rows {
		if row.unculled {
			survivors = append(survivors, row)
		}
	}
	r.rows = survivors

	sort.Slice(r.rows, func(a, b int) bool {
		if r.rows[a].entry != r.rows[b].entry {
			return r.rows[a].entry < r.rows[b].entry
		}
		return r.rows[a].entity < r.rows[b].entity
	})

	filtered := r.rows[:0]
	for _, row := range r.rows {
		if settings.allows(row.entity) {
			filtered = append(filtered, row)
		}
	}
	r.rows = filtered
	return r.rows
}

// resolveTarget picks the narrow-phase mesh (simplified when present) and
// the effective back-face policy for one entity.
func (r *Raycaster) resolveTarget(cmd *Commands, entity EntityId, settings *RaycastSettings) (Mesh, Backfaces) {
	var mesh Mesh
	backfaces := settings.Backfaces

	for _, component := range cmd.GetAllComponents(entity) {
		switch c := component.(type) {
		case MeshComponent:
			if mesh == (Mesh{}) {
				mesh = c.Mesh
			}
		case SimplifiedMeshComponent:
			mesh = c.Mesh
		case NoBackfaceCulling:
			backfaces = BackfacesInclude
		}
	}
	return mesh, backfaces
}

// intersectMesh is the per-entity narrow-phase dispatch: octree-accelerated
// when enabled, linear triangle scan otherwise.
func (r *Raycaster) intersectMesh(server *AssetServer, ray Ray, mesh Mesh, meshToWorld mgl32.Mat4, backfaces Backfaces) (IntersectionData, bool, error) {
	asset, err := server.GetMesh(mesh)
	if err != nil {
		return IntersectionData{}, false, err
	}

	if r.UseOctrees {
		octree, err := server.Octree(mesh)
		if err != nil {
			return IntersectionData{}, false, err
		}
		accessor, err := NewMeshAccessor(asset)
		if err != nil {
			return IntersectionData{}, false, err
		}
		data, ok := octree.CastRay(ray, accessor, meshToWorld, backfaces)
		return data, ok, nil
	}

	return RayMeshIntersection(ray, asset, meshToWorld, backfaces)
}
