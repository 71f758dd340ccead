package lightbake

import "github.com/gekko3d/lightbake/bake/logging"

// Commands is handed to modules and systems to change the App.
type Commands struct {
	app *App
}

func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.app.addResources(resources...)
	return cmd
}

func (cmd *Commands) UseSystem(system systemScheduleBuilder) *Commands {
	cmd.app.UseSystem(system)
	return cmd
}

func (cmd *Commands) Logger() logging.Logger {
	return cmd.app.Logger()
}
