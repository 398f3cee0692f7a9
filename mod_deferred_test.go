package raycast

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestDeferredTransformSource(t *testing.T) {
	app, cmd, server, _ := newRaycastTestApp(t, false)

	cube := server.CreateCubeMesh(1, 1, 1)
	targets := LoadScene(cmd, server, &SceneDef{Meshes: []MeshInstanceDef{
		{Mesh: cube, Position: mgl32.Vec3{0, 0, -5}, Visible: true, InView: true},
	}})

	source := cmd.AddEntity(
		&TransformComponent{Position: mgl32.Vec3{0, 0, 0}, Rotation: mgl32.QuatIdent()},
		&RaycastSourceComponent{Method: CastMethodTransform, ShouldEarlyExit: true, Visibility: VisibilityIgnore},
	)

	app.UpdateOnce()

	src := getComponent[RaycastSourceComponent](app, source)
	if src == nil {
		t.Fatal("source component missing")
	}
	if !src.HasRay {
		t.Fatal("transform source must build a ray")
	}
	vecAlmostEqual(t, src.Ray.Direction(), mgl32.Vec3{0, 0, -1}, 1e-6, "ray along the forward axis")

	if len(src.Intersections) != 1 {
		t.Fatalf("expected 1 intersection, got %d", len(src.Intersections))
	}
	hit := src.Intersections[0]
	if hit.Entity != targets[0] {
		t.Errorf("hit the wrong entity: %d", hit.Entity)
	}
	almostEqual(t, hit.Data.Distance, 4.5, 1e-4, "distance to the cube's near face")

	mesh := getComponent[RaycastMeshComponent](app, targets[0])
	if mesh == nil || len(mesh.Intersections) != 1 {
		t.Fatal("hit must be mirrored onto the mesh")
	}
	if mesh.Intersections[0].Source != source {
		t.Error("mirrored hit must be keyed by the source entity")
	}
}

func TestDeferredScreenspaceSource(t *testing.T) {
	app, cmd, server, _ := newRaycastTestApp(t, false)
	cmd.AddResources(&Viewport{Size: mgl32.Vec2{100, 100}})

	cube := server.CreateCubeMesh(1, 1, 1)
	LoadScene(cmd, server, &SceneDef{Meshes: []MeshInstanceDef{
		{Mesh: cube, Position: mgl32.Vec3{0, 0, -5}, Visible: true, InView: true},
	}})

	camera := *orthoTestCamera()
	sourceDef := NewScreenspaceRaycastSource(mgl32.Vec2{50, 50})
	sourceDef.Visibility = VisibilityIgnore
	spawned := LoadScene(cmd, server, &SceneDef{Cameras: []CameraDef{
		{Camera: camera, Source: &sourceDef},
	}})
	source := spawned[len(spawned)-1]

	app.UpdateOnce()

	src := getComponent[RaycastSourceComponent](app, source)
	if src == nil || !src.HasRay {
		t.Fatal("screenspace source must build a ray through the viewport center")
	}
	if len(src.Intersections) != 1 {
		t.Fatalf("expected 1 intersection, got %d", len(src.Intersections))
	}
	// The ray starts on the near plane (z=-0.1); the cube face is at z=-4.5.
	almostEqual(t, src.Intersections[0].Data.Distance, 4.4, 1e-3, "distance")
}

func TestDeferredCursorOutsideViewportClearsHits(t *testing.T) {
	app, cmd, server, _ := newRaycastTestApp(t, false)
	cmd.AddResources(&Viewport{Size: mgl32.Vec2{100, 100}})

	cube := server.CreateCubeMesh(1, 1, 1)
	targets := LoadScene(cmd, server, &SceneDef{Meshes: []MeshInstanceDef{
		{Mesh: cube, Position: mgl32.Vec3{0, 0, -5}, Visible: true, InView: true},
	}})

	camera := *orthoTestCamera()
	sourceDef := NewScreenspaceRaycastSource(mgl32.Vec2{50, 50})
	sourceDef.Visibility = VisibilityIgnore
	spawned := LoadScene(cmd, server, &SceneDef{Cameras: []CameraDef{
		{Camera: camera, Source: &sourceDef},
	}})
	source := spawned[len(spawned)-1]

	app.UpdateOnce()
	if src := getComponent[RaycastSourceComponent](app, source); len(src.Intersections) != 1 {
		t.Fatal("setup: expected a hit on the first tick")
	}

	// Move the cursor off screen: the ray disappears quietly, the previous
	// tick's hits are cleared everywhere.
	getComponent[RaycastSourceComponent](app, source).Cursor = mgl32.Vec2{500, 500}
	app.UpdateOnce()

	src := getComponent[RaycastSourceComponent](app, source)
	if src.HasRay {
		t.Error("cursor outside the viewport must produce no ray")
	}
	if len(src.Intersections) != 0 {
		t.Error("stale intersections must be cleared")
	}
	if mesh := getComponent[RaycastMeshComponent](app, targets[0]); len(mesh.Intersections) != 0 {
		t.Error("mirrored hits must be cleared")
	}
}

func TestDeferredEarlyExitFlag(t *testing.T) {
	app, cmd, server, _ := newRaycastTestApp(t, false)

	cube := server.CreateCubeMesh(1, 1, 1)
	LoadScene(cmd, server, &SceneDef{Meshes: []MeshInstanceDef{
		{Mesh: cube, Position: mgl32.Vec3{0, 0, -5}, Visible: true, InView: true},
		{Mesh: cube, Position: mgl32.Vec3{0, 0, -10}, Visible: true, InView: true},
	}})

	source := cmd.AddEntity(
		&TransformComponent{Position: mgl32.Vec3{0, 0, 0}, Rotation: mgl32.QuatIdent()},
		&RaycastSourceComponent{Method: CastMethodTransform, ShouldEarlyExit: false, Visibility: VisibilityIgnore},
	)

	app.UpdateOnce()

	src := getComponent[RaycastSourceComponent](app, source)
	if len(src.Intersections) != 2 {
		t.Fatalf("early exit off: expected every hit along the ray, got %d", len(src.Intersections))
	}
	if src.Intersections[0].Data.Distance >= src.Intersections[1].Data.Distance {
		t.Error("intersections must be sorted nearest first")
	}

	getComponent[RaycastSourceComponent](app, source).ShouldEarlyExit = true
	app.UpdateOnce()

	src = getComponent[RaycastSourceComponent](app, source)
	if len(src.Intersections) != 1 {
		t.Fatalf("early exit on: expected only the nearest blocker, got %d", len(src.Intersections))
	}
}

func TestCursorRayResource(t *testing.T) {
	app, cmd, server, _ := newRaycastTestApp(t, false)
	cmd.AddResources(&Input{MouseX: 50, MouseY: 50, WindowWidth: 100, WindowHeight: 100})

	LoadScene(cmd, server, &SceneDef{Cameras: []CameraDef{
		{Camera: *orthoTestCamera()},
	}})

	app.UpdateOnce()

	cursorRay := getResource[CursorRay](app)
	if cursorRay == nil || !cursorRay.Valid {
		t.Fatal("cursor ray must be built from the Input resource")
	}
	vecAlmostEqual(t, cursorRay.Ray.Direction(), mgl32.Vec3{0, 0, -1}, 1e-5, "direction")
}

func TestCursorSourceUsesInput(t *testing.T) {
	app, cmd, server, _ := newRaycastTestApp(t, false)
	cmd.AddResources(&Input{MouseX: 50, MouseY: 50, WindowWidth: 100, WindowHeight: 100})

	cube := server.CreateCubeMesh(1, 1, 1)
	LoadScene(cmd, server, &SceneDef{Meshes: []MeshInstanceDef{
		{Mesh: cube, Position: mgl32.Vec3{0, 0, -5}, Visible: true, InView: true},
	}})

	sourceDef := NewCursorRaycastSource()
	sourceDef.Visibility = VisibilityIgnore
	spawned := LoadScene(cmd, server, &SceneDef{Cameras: []CameraDef{
		{Camera: *orthoTestCamera(), Source: &sourceDef},
	}})
	source := spawned[len(spawned)-1]

	app.UpdateOnce()

	src := getComponent[RaycastSourceComponent](app, source)
	if src == nil || !src.HasRay {
		t.Fatal("cursor source must build a ray from the input cursor")
	}
	if len(src.Intersections) != 1 {
		t.Fatalf("expected 1 intersection, got %d", len(src.Intersections))
	}
}
