package raycast

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func almostEqual(t *testing.T, got, want float32, tolerance float32, label string) {
	t.Helper()
	if float32(math.Abs(float64(got-want))) > tolerance {
		t.Errorf("%s: got %f, want %f", label, got, want)
	}
}

func vecAlmostEqual(t *testing.T, got, want mgl32.Vec3, tolerance float32, label string) {
	t.Helper()
	if got.Sub(want).Len() > tolerance {
		t.Errorf("%s: got %v, want %v", label, got, want)
	}
}

func TestNewRayNormalizesDirection(t *testing.T) {
	ray := NewRay(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{0, 10, 0})

	almostEqual(t, ray.Direction().Len(), 1.0, 1e-6, "direction length")
	vecAlmostEqual(t, ray.Direction(), mgl32.Vec3{0, 1, 0}, 1e-6, "direction")
	vecAlmostEqual(t, ray.Origin(), mgl32.Vec3{1, 2, 3}, 0, "origin")
}

func TestNewRayNonFinitePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-finite direction")
		}
	}()
	NewRay(mgl32.Vec3{}, mgl32.Vec3{float32(math.NaN()), 0, 0})
}

func TestRayPosition(t *testing.T) {
	ray := NewRay(mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1})
	vecAlmostEqual(t, ray.Position(5), mgl32.Vec3{1, 0, -5}, 1e-6, "position")
}

func TestRayIntersectsAABBSlab(t *testing.T) {
	aabb := AABB{Center: mgl32.Vec3{5, 0, 0}, HalfExtents: mgl32.Vec3{1, 1, 1}}

	near, far, ok := NewRay(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}).
		IntersectsAABB(aabb, mgl32.Ident4())
	if !ok {
		t.Fatal("expected hit")
	}
	almostEqual(t, near, 4, 1e-5, "near")
	almostEqual(t, far, 6, 1e-5, "far")

	if _, _, ok := NewRay(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0}).
		IntersectsAABB(aabb, mgl32.Ident4()); ok {
		t.Error("perpendicular ray should miss")
	}
}

func TestRayIntersectsAABBFromInside(t *testing.T) {
	aabb := AABB{Center: mgl32.Vec3{0, 0, 0}, HalfExtents: mgl32.Vec3{1, 1, 1}}
	near, far, ok := NewRay(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}).
		IntersectsAABB(aabb, mgl32.Ident4())
	if !ok {
		t.Fatal("expected hit from inside")
	}
	if near > 0 {
		t.Errorf("near should be behind the origin, got %f", near)
	}
	almostEqual(t, far, 1, 1e-5, "far")
}

func TestRayIntersectsAABBBehindOrigin(t *testing.T) {
	aabb := AABB{Center: mgl32.Vec3{-5, 0, 0}, HalfExtents: mgl32.Vec3{1, 1, 1}}
	if _, _, ok := NewRay(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}).
		IntersectsAABB(aabb, mgl32.Ident4()); ok {
		t.Error("box entirely behind the origin should not hit")
	}
}

func TestRayIntersectsAABBTransformed(t *testing.T) {
	// A unit box placed at x=5 through its model matrix, not its bounds.
	aabb := AABB{Center: mgl32.Vec3{0, 0, 0}, HalfExtents: mgl32.Vec3{1, 1, 1}}
	modelToWorld := mgl32.Translate3D(5, 0, 0)

	near, far, ok := NewRay(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}).
		IntersectsAABB(aabb, modelToWorld)
	if !ok {
		t.Fatal("expected hit")
	}
	almostEqual(t, near, 4, 1e-5, "near")
	almostEqual(t, far, 6, 1e-5, "far")
}

func TestRayIntersectsPlane(t *testing.T) {
	ray := NewRay(mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, 1, 0})

	hit, ok := ray.IntersectsPlane(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
	if !ok {
		t.Fatal("expected plane hit")
	}
	almostEqual(t, hit.Distance, 1, 1e-6, "distance")
	vecAlmostEqual(t, hit.Position, mgl32.Vec3{0, 0, 0}, 1e-6, "position")

	if _, ok := ray.IntersectsPlane(mgl32.Vec3{1, 0, 0}, mgl32.Vec3{1, 0, 0}); ok {
		t.Error("parallel ray should not hit the plane")
	}
}

func TestRayFromTransform(t *testing.T) {
	ray := RayFromTransform(mgl32.Translate3D(1, 2, 3))

	vecAlmostEqual(t, ray.Origin(), mgl32.Vec3{1, 2, 3}, 1e-6, "origin")
	vecAlmostEqual(t, ray.Direction(), mgl32.Vec3{0, 0, -1}, 1e-6, "direction")
}

func TestRayTransformedRenormalizes(t *testing.T) {
	ray := NewRay(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0})
	scaled := ray.Transformed(mgl32.Scale3D(10, 1, 1))

	almostEqual(t, scaled.Direction().Len(), 1.0, 1e-6, "direction stays unit under scale")
}

func TestRayToAlignedTransform(t *testing.T) {
	ray := NewRay(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{1, 0, 0})
	m := ray.ToTransform()

	vecAlmostEqual(t, m.Col(3).Vec3(), mgl32.Vec3{1, 2, 3}, 1e-5, "translation")

	up := mgl32.TransformNormal(mgl32.Vec3{0, 1, 0}, m)
	vecAlmostEqual(t, up, ray.Direction(), 1e-5, "up axis aligns with direction")
}

func orthoTestCamera() *CameraComponent {
	return &CameraComponent{
		Position:    mgl32.Vec3{0, 0, 0},
		Direction:   mgl32.Vec3{0, 0, -1},
		Up:          mgl32.Vec3{0, 1, 0},
		Projection:  ProjectionOrthographic,
		OrthoHeight: 2,
		Aspect:      1,
		Near:        0.1,
		Far:         100,
	}
}

func TestRayFromScreenspaceOrthographicCenter(t *testing.T) {
	cam := orthoTestCamera()
	viewport := Viewport{Size: mgl32.Vec2{100, 100}}

	ray, ok := RayFromScreenspace(mgl32.Vec2{50, 50}, cam, cam.WorldMatrix(), viewport)
	if !ok {
		t.Fatal("expected a ray")
	}

	vecAlmostEqual(t, ray.Direction(), mgl32.Vec3{0, 0, -1}, 1e-5, "direction equals camera forward")
	almostEqual(t, ray.Origin().X(), 0, 1e-5, "origin x")
	almostEqual(t, ray.Origin().Y(), 0, 1e-5, "origin y")
	almostEqual(t, ray.Origin().Z(), -cam.Near, 1e-5, "origin lies on the near plane")
}

func TestRayFromScreenspaceTopLeftCorner(t *testing.T) {
	cam := orthoTestCamera()
	viewport := Viewport{Size: mgl32.Vec2{100, 100}}

	ray, ok := RayFromScreenspace(mgl32.Vec2{0, 0}, cam, cam.WorldMatrix(), viewport)
	if !ok {
		t.Fatal("expected a ray")
	}
	if ray.Origin().X() >= 0 || ray.Origin().Y() <= 0 {
		t.Errorf("pixel (0,0) should unproject to the top-left corner, got origin %v", ray.Origin())
	}
}

func TestRayFromScreenspaceOutsideViewport(t *testing.T) {
	cam := orthoTestCamera()
	viewport := Viewport{Size: mgl32.Vec2{100, 100}}

	if _, ok := RayFromScreenspace(mgl32.Vec2{150, 50}, cam, cam.WorldMatrix(), viewport); ok {
		t.Error("cursor outside the viewport must not produce a ray")
	}
	if _, ok := RayFromScreenspace(mgl32.Vec2{50, -1}, cam, cam.WorldMatrix(), viewport); ok {
		t.Error("cursor above the viewport must not produce a ray")
	}
}

func TestRayFromScreenspaceViewportOffset(t *testing.T) {
	cam := orthoTestCamera()
	viewport := Viewport{Offset: mgl32.Vec2{100, 0}, Size: mgl32.Vec2{100, 100}}

	// The center of the offset viewport is window pixel (150, 50).
	ray, ok := RayFromScreenspace(mgl32.Vec2{150, 50}, cam, cam.WorldMatrix(), viewport)
	if !ok {
		t.Fatal("expected a ray")
	}
	almostEqual(t, ray.Origin().X(), 0, 1e-5, "viewport offset applied")

	if _, ok := RayFromScreenspace(mgl32.Vec2{50, 50}, cam, cam.WorldMatrix(), viewport); ok {
		t.Error("cursor left of the offset viewport must not produce a ray")
	}
}
