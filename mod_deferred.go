package raycast

import (
	"github.com/go-gl/mathgl/mgl32"
)

// RaycastMethod selects how a deferred ray source rebuilds its ray each
// tick.
type RaycastMethod int

const (
	// CastMethodCursor builds the ray from the window cursor through the
	// source's camera.
	CastMethodCursor RaycastMethod = iota
	// CastMethodScreenspace builds the ray from a fixed screen coordinate
	// through the source's camera.
	CastMethodScreenspace
	// CastMethodTransform fires the ray out of the source's transform along
	// its forward axis.
	CastMethodTransform
)

// RaycastSourceComponent is the deferred facade's per-source state: the ray
// rebuilt once per tick and the hits of the latest cast, sorted by
// distance.
type RaycastSourceComponent struct {
	Method RaycastMethod
	// Cursor is the screen coordinate used by CastMethodScreenspace.
	Cursor mgl32.Vec2
	// ShouldEarlyExit keeps only the nearest blocking hit when set.
	ShouldEarlyExit bool
	Visibility      RaycastVisibility
	Backfaces       Backfaces

	Ray           Ray
	HasRay        bool
	Intersections []EntityHit
}

func NewCursorRaycastSource() RaycastSourceComponent {
	return RaycastSourceComponent{
		Method:          CastMethodCursor,
		ShouldEarlyExit: true,
		Visibility:      VisibilityMustBeVisibleAndInView,
	}
}

func NewScreenspaceRaycastSource(cursor mgl32.Vec2) RaycastSourceComponent {
	source := NewCursorRaycastSource()
	source.Method = CastMethodScreenspace
	source.Cursor = cursor
	return source
}

func NewTransformRaycastSource() RaycastSourceComponent {
	source := NewCursorRaycastSource()
	source.Method = CastMethodTransform
	return source
}

// NearestIntersection returns the top hit of the latest cast, if any.
func (source *RaycastSourceComponent) NearestIntersection() (EntityHit, bool) {
	if len(source.Intersections) == 0 {
		return EntityHit{}, false
	}
	return source.Intersections[0], true
}

// CursorRay is a resource holding the latest cursor position as a world
// ray, built from the first camera each tick. Valid is false when there is
// no camera, no cursor, or the cursor misses the viewport.
type CursorRay struct {
	Ray   Ray
	Valid bool
}

// DeferredRaycastModule wires the per-tick pipeline: rebuild source rays,
// cast them, and mirror the results onto the hit meshes. It expects
// AssetServerModule and RaycastModule to be installed.
type DeferredRaycastModule struct{}

func (DeferredRaycastModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&CursorRay{})

	app.UseSystem(System(updateCursorRaySystem).InStage(PreUpdate))
	app.UseSystem(System(buildRaysSystem).InStage(PreUpdate))
	app.UseSystem(System(updateRaycastSystem).InStage(Update))
	app.UseSystem(System(updateTargetIntersectionsSystem).InStage(PostUpdate))
}

// activeViewport resolves the viewport for screenspace casts: an explicit
// Viewport resource wins, otherwise the window size reported by the input
// layer.
func activeViewport(app *App) (Viewport, bool) {
	if vp := getResource[Viewport](app); vp != nil {
		return *vp, true
	}
	if input := getResource[Input](app); input != nil && input.WindowWidth > 0 && input.WindowHeight > 0 {
		return Viewport{
			Size: mgl32.Vec2{float32(input.WindowWidth), float32(input.WindowHeight)},
		}, true
	}
	return Viewport{}, false
}

func cursorPosition(app *App) (mgl32.Vec2, bool) {
	input := getResource[Input](app)
	if input == nil {
		return mgl32.Vec2{}, false
	}
	return mgl32.Vec2{float32(input.MouseX), float32(input.MouseY)}, true
}

// updateCursorRaySystem refreshes the CursorRay resource from the first
// camera entity.
func updateCursorRaySystem(cmd *Commands, cursorRay *CursorRay) {
	cursorRay.Valid = false

	cursor, ok := cursorPosition(cmd.app)
	if !ok {
		return
	}
	viewport, ok := activeViewport(cmd.app)
	if !ok {
		return
	}

	MakeQuery1[CameraComponent](cmd).Map(func(eid EntityId, cam *CameraComponent) bool {
		if ray, ok := RayFromScreenspace(cursor, cam, cam.WorldMatrix(), viewport); ok {
			cursorRay.Ray = ray
			cursorRay.Valid = true
		}
		return false
	})
}

// buildRaysSystem rebuilds the ray of every source for this tick. A source
// that cannot build a ray carries no ray and produces no hits: quietly when
// the cursor is absent or outside the viewport, with a logged error when the
// camera or transform its method needs is missing.
func buildRaysSystem(cmd *Commands) {
	logger := cmd.app.Logger()

	MakeQuery3[RaycastSourceComponent, TransformComponent, CameraComponent](cmd).
		Map(func(eid EntityId, source *RaycastSourceComponent, tr *TransformComponent, cam *CameraComponent) bool {
			source.HasRay = false

			switch source.Method {
			case CastMethodTransform:
				if tr == nil {
					logger.Errorf("raycast source %d casts from its transform but has no TransformComponent", eid)
					return true
				}
				source.Ray = RayFromTransform(tr.Matrix())
				source.HasRay = true

			case CastMethodScreenspace, CastMethodCursor:
				if cam == nil {
					logger.Errorf("raycast source %d is screenspace but has no CameraComponent", eid)
					return true
				}
				cursor := source.Cursor
				if source.Method == CastMethodCursor {
					pos, ok := cursorPosition(cmd.app)
					if !ok {
						return true
					}
					cursor = pos
				}
				viewport, ok := activeViewport(cmd.app)
				if !ok {
					return true
				}
				if ray, ok := RayFromScreenspace(cursor, cam, cam.WorldMatrix(), viewport); ok {
					source.Ray = ray
					source.HasRay = true
				}
			}
			return true
		}, TransformComponent{}, CameraComponent{})
}

// updateRaycastSystem casts every source's ray and stores the sorted hits
// on the source. Hits are copied out of the Raycaster's scratch buffers.
func updateRaycastSystem(cmd *Commands, raycaster *Raycaster) {
	MakeQuery1[RaycastSourceComponent](cmd).Map(func(eid EntityId, source *RaycastSourceComponent) bool {
		source.Intersections = source.Intersections[:0]
		if !source.HasRay {
			return true
		}

		shouldEarlyExit := source.ShouldEarlyExit
		settings := DefaultRaycastSettings().
			WithVisibility(source.Visibility).
			WithBackfaces(source.Backfaces).
			WithEarlyExitTest(func(EntityId) bool { return shouldEarlyExit })

		hits := raycaster.CastRay(cmd, source.Ray, settings)
		source.Intersections = append(source.Intersections, hits...)
		return true
	})
}

// updateTargetIntersectionsSystem mirrors each source's hits onto the hit
// meshes, keyed by source entity. Lists from the previous tick are cleared
// first.
func updateTargetIntersectionsSystem(cmd *Commands) {
	mirrored := make(map[EntityId][]SourceHit)
	MakeQuery1[RaycastSourceComponent](cmd).Map(func(source EntityId, src *RaycastSourceComponent) bool {
		for _, hit := range src.Intersections {
			mirrored[hit.Entity] = append(mirrored[hit.Entity], SourceHit{
				Source: source,
				Data:   hit.Data,
			})
		}
		return true
	})

	MakeQuery1[RaycastMeshComponent](cmd).Map(func(eid EntityId, mesh *RaycastMeshComponent) bool {
		mesh.Intersections = mesh.Intersections[:0]
		mesh.Intersections = append(mesh.Intersections, mirrored[eid]...)
		return true
	})
}
