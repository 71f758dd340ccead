package lightbake

import (
	"fmt"
	"reflect"
	"runtime"
	"time"
)

type systemFn any

type Module interface {
	Install(app *App, cmd *Commands)
}

// App runs every stage once, in order. Systems share state through typed
// resources that are injected into their pointer parameters.
type App struct {
	modules   []Module
	stages    []Stage
	systems   map[string][]systemFn
	resources map[reflect.Type]any
	ran       bool
}

func (app *App) Commands() *Commands {
	return &Commands{
		app: app,
	}
}

// Run calls every system stage by stage. The first system error stops the
// run and is returned. An App runs at most once.
func (app *App) Run() error {
	if app.ran {
		return fmt.Errorf("app already ran")
	}
	app.ran = true

	log := app.Logger()
	for _, stage := range app.stages {
		start := time.Now()
		for _, system := range app.systems[stage.Name] {
			if err := app.callSystem(system); err != nil {
				return fmt.Errorf("%s: %w", stage.Name, err)
			}
		}
		elapsed := time.Since(start)
		if clock, ok := Resource[BakeClock](app); ok {
			clock.record(stage.Name, elapsed)
		}
		if n := len(app.systems[stage.Name]); n > 0 {
			log.Debugf("stage %s: %d systems in %v", stage.Name, n, elapsed)
		}
	}
	return nil
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}

		app.resources[resourceType.Elem()] = resource
	}
	return app
}

// Resource returns the resource of type T, if one was added.
func Resource[T any](app *App) (*T, bool) {
	r, ok := app.resources[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		return nil, false
	}
	return r.(*T), true
}

func (app *App) callSystem(system systemFn) error {
	start := time.Now()
	err := app.callSystemInternal(system)
	app.Logger().Debugf("system %s: %v", systemName(system), time.Since(start))
	return err
}

func systemName(system systemFn) string {
	return runtime.FuncForPC(reflect.ValueOf(system).Pointer()).Name()
}

var (
	typeOfCommands = reflect.TypeOf(Commands{})
	typeOfError    = reflect.TypeOf((*error)(nil)).Elem()
)

func (app *App) callSystemInternal(system systemFn) error {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		if argType.Kind() != reflect.Pointer {
			return fmt.Errorf("system %s: parameter %d (%s) is not a pointer", systemName(system), i, argType)
		}
		underlyingType := argType.Elem()

		if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(&Commands{app: app})
		} else if resource, argIsResource := app.resources[underlyingType]; argIsResource {
			args[i] = reflect.ValueOf(resource)
		} else {
			return fmt.Errorf("unable to resolve system dependency: system %s needs %s",
				systemName(system), argType)
		}
	}

	out := systemValue.Call(args)
	if n := systemType.NumOut(); n > 0 && systemType.Out(n-1) == typeOfError {
		if err, _ := out[n-1].Interface().(error); err != nil {
			return err
		}
	}
	return nil
}
