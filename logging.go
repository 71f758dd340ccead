package lightbake

import (
	"io"
	"os"

	"github.com/gekko3d/lightbake/bake/logging"
)

// LoggingModule installs a default logger as a resource. Out and ErrOut
// default to stdout and stderr.
type LoggingModule struct {
	Prefix string
	Debug  bool
	Out    io.Writer
	ErrOut io.Writer
}

func (m LoggingModule) Install(app *App, cmd *Commands) {
	out, errOut := m.Out, m.ErrOut
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	cmd.AddResources(logging.NewWriterLogger(m.Prefix, m.Debug, out, errOut))
}

// Logger returns the first Logger resource if present, otherwise a no-op logger.
// Safe to call at any time; never returns nil.
func (app *App) Logger() logging.Logger {
	if app == nil {
		return logging.NewNopLogger()
	}
	for _, r := range app.resources {
		if l, ok := r.(logging.Logger); ok {
			return l
		}
	}
	return logging.NewNopLogger()
}
