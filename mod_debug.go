package raycast

var (
	debugRayColor      = [4]float32{0.2, 0.4, 1.0, 1.0}
	debugTopHitColor   = [4]float32{0.2, 1.0, 0.2, 1.0}
	debugOtherHitColor = [4]float32{1.0, 0.4, 0.8, 1.0}
)

// debugGizmoState tracks the gizmo entities spawned last tick so they can
// be replaced instead of accumulating.
type debugGizmoState struct {
	spawned []EntityId
}

// DebugRaycastModule draws every deferred source's ray and its hits as
// gizmo entities: the ray as a line with a sphere on its origin, each hit
// as a circle on the surface with its normal, the nearest hit highlighted.
type DebugRaycastModule struct {
	// RayLength is the drawn length of rays, in world units.
	RayLength float32
}

func (m DebugRaycastModule) Install(app *App, cmd *Commands) {
	rayLength := m.RayLength
	if rayLength <= 0 {
		rayLength = 100
	}
	cmd.AddResources(&debugGizmoState{})
	app.UseSystem(System(func(cmd *Commands, state *debugGizmoState) {
		updateDebugGizmos(cmd, state, rayLength)
	}).InStage(PostUpdate))
}

func updateDebugGizmos(cmd *Commands, state *debugGizmoState, rayLength float32) {
	for _, eid := range state.spawned {
		cmd.RemoveEntity(eid)
	}
	state.spawned = state.spawned[:0]

	spawn := func(gizmo GizmoComponent) {
		state.spawned = append(state.spawned, cmd.AddEntity(&gizmo))
	}

	MakeQuery1[RaycastSourceComponent](cmd).Map(func(eid EntityId, source *RaycastSourceComponent) bool {
		if !source.HasRay {
			return true
		}

		origin := source.Ray.Origin()
		spawn(NewGizmoLine(origin, source.Ray.Position(rayLength), debugRayColor))
		spawn(NewGizmoSphere(origin, 0.1, debugRayColor))

		for i, hit := range source.Intersections {
			color := debugOtherHitColor
			if i == 0 {
				color = debugTopHitColor
			}
			normalTip := hit.Data.Position.Add(hit.Data.Normal)
			spawn(NewGizmoLine(hit.Data.Position, normalTip, color))
			spawn(NewGizmoCircle(hit.Data.Position, hit.Data.Normal, 0.1, color))
		}
		return true
	})
}

// PrintIntersectionsSystem logs every mirrored mesh intersection; useful
// when bringing up a new host integration.
func PrintIntersectionsSystem(cmd *Commands) {
	logger := cmd.app.Logger()
	MakeQuery1[RaycastMeshComponent](cmd).Map(func(eid EntityId, mesh *RaycastMeshComponent) bool {
		for _, hit := range mesh.Intersections {
			logger.Infof("mesh %d hit by source %d: distance %f, position %v",
				eid, hit.Source, hit.Data.Distance, hit.Data.Position)
		}
		return true
	})
}
