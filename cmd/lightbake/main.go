package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gekko3d/lightbake"
)

func main() {
	configPath := flag.String("config", "", "Bake settings and light definitions (YAML); built-in defaults when empty")
	levelPath := flag.String("level", "", "Level description to bake (YAML)")
	outDir := flag.String("out", "out", "Output directory")
	threads := flag.Int("threads", 0, "Worker threads (1-128); 0 keeps the configured value")
	debug := flag.Bool("debug", false, "Enable debug logging")
	preview := flag.Bool("preview", false, "Also write 4x upscaled atlas previews")
	flag.Parse()

	if *levelPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -level is required")
		flag.Usage()
		os.Exit(1)
	}

	app := lightbake.NewAppBuilder().
		UseModule(
			lightbake.LoggingModule{Prefix: "lightbake", Debug: *debug},
			lightbake.TimeModule{},
			lightbake.ConfigModule{Path: *configPath, Threads: *threads},
			lightbake.LevelModule{Path: *levelPath},
			lightbake.LightmapModule{},
			lightbake.LightGridModule{},
			lightbake.ExportModule{Dir: *outDir, Preview: *preview},
		).
		Build()

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
