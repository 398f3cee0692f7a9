package raycast

import (
	"github.com/go-gl/mathgl/mgl32"
)

// SceneDef declares the initial raycastable content of a scene.
type SceneDef struct {
	Meshes  []MeshInstanceDef
	Cameras []CameraDef
}

// MeshInstanceDef spawns one raycastable mesh entity.
type MeshInstanceDef struct {
	Mesh     Mesh
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3

	// Simplified, when set, substitutes a coarser mesh in the narrow phase.
	Simplified *Mesh
	// NoBackfaceCulling reports hits on both triangle faces.
	NoBackfaceCulling bool
	// Unbounded skips the AABB: the entity is never broad-phase culled.
	Unbounded bool
	Visible   bool
	InView    bool
}

// CameraDef spawns a camera entity, optionally with a deferred ray source
// attached.
type CameraDef struct {
	Camera CameraComponent
	Source *RaycastSourceComponent
}

// LoadScene spawns every entity the definition describes. Mesh AABBs are
// derived from the mesh position stream; meshes that fail the contract are
// spawned unbounded and left for the query path to report.
func LoadScene(cmd *Commands, server *AssetServer, scene *SceneDef) []EntityId {
	var spawned []EntityId

	for _, def := range scene.Meshes {
		comps := []any{
			&TransformComponent{
				Position: def.Position,
				Rotation: def.Rotation,
				Scale:    def.Scale,
			},
			&MeshComponent{Mesh: def.Mesh},
			&RaycastMeshComponent{},
			&VisibilityComponent{Visible: def.Visible, InView: def.InView},
		}

		if !def.Unbounded {
			if aabb, ok := meshAABB(server, def.Mesh); ok {
				comps = append(comps, &AABBComponent{AABB: aabb})
			}
		}
		if def.Simplified != nil {
			comps = append(comps, &SimplifiedMeshComponent{Mesh: *def.Simplified})
		}
		if def.NoBackfaceCulling {
			comps = append(comps, &NoBackfaceCulling{})
		}

		spawned = append(spawned, cmd.AddEntity(comps...))
	}

	for _, def := range scene.Cameras {
		camera := def.Camera
		comps := []any{&camera}
		if def.Source != nil {
			source := *def.Source
			comps = append(comps, &source)
		}
		spawned = append(spawned, cmd.AddEntity(comps...))
	}

	return spawned
}

func meshAABB(server *AssetServer, mesh Mesh) (AABB, bool) {
	asset, err := server.GetMesh(mesh)
	if err != nil {
		return AABB{}, false
	}
	accessor, err := NewMeshAccessor(asset)
	if err != nil {
		return AABB{}, false
	}
	return accessor.GenerateAABB(), true
}
