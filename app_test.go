package raycast

import (
	"testing"
)

type mockModule struct {
	installed bool
}

func (m *mockModule) Install(app *App, commands *Commands) {
	m.installed = true
}

func TestAppBuildInstallsModules(t *testing.T) {
	module1 := &mockModule{}
	module2 := &mockModule{}

	app := NewApp()
	app.UseModules(module1, module2)
	app.Build()

	if !module1.installed {
		t.Error("expected Install to be called on module 1")
	}
	if !module2.installed {
		t.Error("expected Install to be called on module 2")
	}
}

func TestAppBuildIsIdempotent(t *testing.T) {
	module := &mockModule{}
	app := NewApp()
	app.UseModules(module)

	app.Build()
	module.installed = false
	app.Build()

	if module.installed {
		t.Error("second Build must not reinstall modules")
	}
}

type orderProbe struct {
	calls []string
}

func TestAppStageOrdering(t *testing.T) {
	app := NewApp()
	probe := &orderProbe{}
	app.Commands().AddResources(probe)

	app.UseSystem(System(func(p *orderProbe) { p.calls = append(p.calls, "update") }).InStage(Update))
	app.UseSystem(System(func(p *orderProbe) { p.calls = append(p.calls, "prelude") }).InStage(Prelude))
	app.UseSystem(System(func(p *orderProbe) { p.calls = append(p.calls, "finale") }).InStage(Finale))

	app.UpdateOnce()

	want := []string{"prelude", "update", "finale"}
	if len(probe.calls) != len(want) {
		t.Fatalf("got calls %v", probe.calls)
	}
	for i := range want {
		if probe.calls[i] != want[i] {
			t.Fatalf("stage order wrong: got %v, want %v", probe.calls, want)
		}
	}
}

func TestAppSystemResourceInjection(t *testing.T) {
	app := NewApp()
	probe := &orderProbe{}
	app.Commands().AddResources(probe)

	ran := false
	app.UseSystem(System(func(cmd *Commands, p *orderProbe) {
		ran = p == probe && cmd.app == app
	}))
	app.UpdateOnce()

	if !ran {
		t.Error("system did not receive its resource and commands")
	}
}

func TestAppUnresolvableDependencyPanics(t *testing.T) {
	type missingResource struct{ _ int }

	app := NewApp()
	app.UseSystem(System(func(m *missingResource) {}))

	defer func() {
		if recover() == nil {
			t.Error("expected panic for unresolvable system dependency")
		}
	}()
	app.UpdateOnce()
}

func TestAppDuplicateResourcePanics(t *testing.T) {
	app := NewApp()
	probe := &orderProbe{}
	app.Commands().AddResources(probe)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for duplicate resource")
		}
	}()
	app.Commands().AddResources(&orderProbe{})
}

func TestAppEntitiesSpawnedInAStageAreVisibleInTheNext(t *testing.T) {
	app := NewApp()

	var sawInUpdate int
	app.UseSystem(System(func(cmd *Commands) {
		cmd.AddEntity(&testTag{Value: 1})
	}).InStage(PreUpdate))
	app.UseSystem(System(func(cmd *Commands) {
		MakeQuery1[testTag](cmd).Map(func(EntityId, *testTag) bool {
			sawInUpdate++
			return true
		})
	}).InStage(Update))

	app.UpdateOnce()

	if sawInUpdate != 1 {
		t.Errorf("entity spawned in PreUpdate not visible in Update: %d", sawInUpdate)
	}
}
