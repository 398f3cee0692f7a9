package raycast

import (
	"fmt"
	"reflect"
	"runtime"
	"time"
)

// System funcs are plain functions whose pointer arguments are resolved by
// reflection: *Commands is always available, everything else must be a
// registered resource.
type systemFn any

type App struct {
	resources map[reflect.Type]any
	stages    []Stage
	systems   map[string][]systemFn
	modules   []Module
	ecs       *Ecs
	built     bool
	quit      bool

	pendingAdditions    []pendingAdd
	pendingCompAdds     []pendingCompAdd
	pendingCompRemovals []pendingCompRemoval
	pendingRemovals     []EntityId
}

// Module is the unit of composition: a module installs resources and systems
// into the app.
type Module interface {
	Install(app *App, commands *Commands)
}

func NewApp() *App {
	ecs := MakeEcs()
	return &App{
		resources: make(map[reflect.Type]any),
		systems:   make(map[string][]systemFn),
		ecs:       &ecs,
		modules:   make([]Module, 0),
	}
}

func (app *App) Commands() *Commands {
	return &Commands{app: app}
}

func (app *App) UseModules(modules ...Module) *App {
	app.modules = append(app.modules, modules...)
	return app
}

// Build finalizes the stage list and installs every module. It is idempotent
// and implied by the first Update or Run call.
func (app *App) Build() *App {
	if app.built {
		return app
	}
	app.built = true

	app.stages = append(app.stages,
		Prelude, PreUpdate, Update, PostUpdate, PreRender, Render, PostRender, Finale)
	for _, stage := range app.stages {
		if _, ok := app.systems[stage.Name]; !ok {
			app.systems[stage.Name] = make([]systemFn, 0)
		}
	}

	commands := &Commands{app: app}
	for _, module := range app.modules {
		module.Install(app, commands)
	}
	return app
}

// UpdateOnce runs every stage once, flushing deferred entity commands after
// each stage so systems in a later stage observe entities spawned earlier in
// the frame.
func (app *App) UpdateOnce() {
	app.Build()
	for _, stage := range app.stages {
		for _, system := range app.systems[stage.Name] {
			app.callSystem(system)
		}
		app.FlushCommands()
	}
}

// Run ticks the app until a system calls Quit.
func (app *App) Run() {
	app.Build()
	for !app.quit {
		app.UpdateOnce()
	}
}

func (app *App) Quit() {
	app.quit = true
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if resourceType.Kind() != reflect.Pointer {
			panic(fmt.Sprintf("resource %s must be a pointer", resourceType))
		}
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}

		app.resources[resourceType.Elem()] = resource
	}
	return app
}

func (app *App) callSystem(system systemFn) {
	logger := app.Logger()
	if !logger.DebugEnabled() {
		app.callSystemInternal(system)
		return
	}

	start := time.Now()
	app.callSystemInternal(system)
	logger.Debugf("system %s: %dus",
		runtime.FuncForPC(reflect.ValueOf(system).Pointer()).Name(),
		time.Since(start).Microseconds(),
	)
}

var typeOfCommands = reflect.TypeOf(Commands{})

func (app *App) callSystemInternal(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		underlyingType := argType.Elem()

		if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(&Commands{app: app})
		} else if resource, argIsResource := app.resources[underlyingType]; argIsResource {
			args[i] = reflect.ValueOf(resource)
		} else {
			msg := fmt.Sprintf("unable to resolve system dependency\nsystem: %s\nsystem type: %s\ndependency: %s",
				runtime.FuncForPC(systemValue.Pointer()).Name(),
				fmt.Sprint(systemType),
				fmt.Sprint(argType),
			)
			panic(msg)
		}
	}
	systemValue.Call(args)
}

// FlushCommands applies the entity mutations queued on Commands since the
// last flush. Additions run before removals so a same-frame add+remove of an
// entity nets out to nothing.
func (app *App) FlushCommands() {
	for _, add := range app.pendingAdditions {
		app.ecs.insertEntity(add.eid, add.components...)
	}
	app.pendingAdditions = app.pendingAdditions[:0]

	for _, compAdd := range app.pendingCompAdds {
		app.ecs.addComponents(compAdd.eid, compAdd.components...)
	}
	app.pendingCompAdds = app.pendingCompAdds[:0]

	for _, compRemoval := range app.pendingCompRemovals {
		app.ecs.removeComponents(compRemoval.eid, compRemoval.components...)
	}
	app.pendingCompRemovals = app.pendingCompRemovals[:0]

	for _, eid := range app.pendingRemovals {
		app.ecs.removeEntity(eid)
	}
	app.pendingRemovals = app.pendingRemovals[:0]
}
