package lightbake

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gekko3d/lightbake/bake/bsp"
	"github.com/gekko3d/lightbake/bake/config"
	"github.com/gekko3d/lightbake/bake/export"
	"github.com/gekko3d/lightbake/bake/jobs"
	"github.com/gekko3d/lightbake/bake/level"
	"github.com/gekko3d/lightbake/bake/lightmap"
	"github.com/gekko3d/lightbake/bake/logging"
)

// ConfigModule loads the bake settings in the Prelude stage. A non-nil
// Config is used as is instead of reading Path. Threads overrides the
// configured worker count when non-zero.
type ConfigModule struct {
	Path    string
	Threads int
	Config  *config.Config
}

func (m ConfigModule) Install(app *App, cmd *Commands) {
	cmd.UseSystem(System(m.loadConfig).InStage(Prelude))
}

func (m ConfigModule) loadConfig(cmd *Commands) error {
	cfg := m.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(m.Path); err != nil {
			return err
		}
	}
	if m.Threads != 0 {
		cfg.SetThreads(m.Threads)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	cmd.AddResources(cfg)
	cmd.Logger().Debugf("config: %d point light defs, %d surface light defs, %d workers",
		len(cfg.Lights), len(cfg.SurfaceLights), cfg.Derived.Workers)
	return nil
}

// LevelSource records where the baked level came from.
type LevelSource struct {
	Path string
}

// LevelModule loads the level in the Prelude stage, builds its tree when
// the file has none and extracts surfaces. A non-nil Level is used instead
// of reading Path.
type LevelModule struct {
	Path  string
	Level *level.Level
}

func (m LevelModule) Install(app *App, cmd *Commands) {
	cmd.UseSystem(System(m.loadLevel).InStage(Prelude))
}

func (m LevelModule) loadLevel(cmd *Commands) error {
	lvl := m.Level
	if lvl == nil {
		var err error
		if lvl, err = level.Load(m.Path); err != nil {
			return err
		}
	}
	if err := PrepareLevel(lvl, cmd.Logger()); err != nil {
		return err
	}
	cmd.AddResources(lvl, &LevelSource{Path: m.Path})
	return nil
}

// PrepareLevel gives lvl a tree and surfaces. A tree already present is
// kept and only its bounds are refreshed.
func PrepareLevel(lvl *level.Level, log logging.Logger) error {
	log = logging.OrNop(log)
	if lvl.Root.Valid() {
		if err := bsp.ComputeBounds(lvl); err != nil {
			return err
		}
	} else if err := bsp.Build(lvl, log); err != nil {
		return err
	}
	if skipped := level.ExtractSurfaces(lvl, log); skipped > 0 {
		log.Warnf("%d leaves skipped during surface extraction", skipped)
	}
	if err := lvl.Validate(); err != nil {
		return err
	}
	log.Infof("level: %d leaves, %d nodes, %d surfaces, %d things",
		len(lvl.Leaves), len(lvl.Nodes), len(lvl.Surfaces), len(lvl.Things))
	return nil
}

// LightmapModule bakes surface lightmaps in the Surfaces stage and leaves
// the builder and dispatcher as resources.
type LightmapModule struct{}

func (m LightmapModule) Install(app *App, cmd *Commands) {
	cmd.UseSystem(System(bakeSurfaces).InStage(Surfaces))
}

func bakeSurfaces(cmd *Commands, cfg *config.Config, lvl *level.Level) error {
	log := cmd.Logger()
	d, err := jobs.New(cfg.Derived.Workers, log)
	if err != nil {
		return err
	}
	b, err := lightmap.NewBuilder(lvl, cfg.Options(), log)
	if err != nil {
		return err
	}
	start := time.Now()
	if err := b.BakeSurfaces(d); err != nil {
		return err
	}
	s := b.Stats()
	log.Infof("surfaces: %d of %d lit, %d texels on %d pages in %v",
		s.UsedSurfaces, s.Surfaces, s.Texels, s.Pages, time.Since(start).Round(time.Millisecond))
	cmd.AddResources(b, d)
	return nil
}

// LightGridModule samples the light grid in the Grid stage.
type LightGridModule struct{}

func (m LightGridModule) Install(app *App, cmd *Commands) {
	cmd.UseSystem(System(bakeGrid).InStage(Grid))
}

func bakeGrid(b *lightmap.Builder, d *jobs.Dispatcher) error {
	return b.BakeGrid(d)
}

// Output file names.
const (
	GridFile     = "lightgrid.bin"
	ManifestFile = "manifest.yaml"
	ConfigFile   = "config.yaml"
)

// SurfaceTableName names the surface table after the bake it belongs to.
func SurfaceTableName(bakeID string) string {
	if len(bakeID) > 8 {
		bakeID = bakeID[:8]
	}
	return fmt.Sprintf("surfaces_%s.csv", bakeID)
}

// ExportModule writes every result into Dir in the Finale stage and leaves
// the manifest as a resource.
type ExportModule struct {
	Dir     string
	Preview bool
}

func (m ExportModule) Install(app *App, cmd *Commands) {
	cmd.UseSystem(System(m.export).InStage(Finale))
}

func (m ExportModule) export(cmd *Commands, cfg *config.Config, src *LevelSource, b *lightmap.Builder) error {
	if err := os.MkdirAll(m.Dir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	lvl := b.Level()
	manifest := export.Manifest{
		BakeID:   export.NewBakeID(),
		Created:  time.Now().UTC().Format(time.RFC3339),
		Level:    src.Path,
		Settings: cfg.Bake,
		Counts:   export.CountsFrom(b.Stats()),
	}

	files, err := export.WriteAtlases(m.Dir, b.Atlas.Pages(), export.AtlasOptions{
		Format:  cfg.Bake.AtlasFormat,
		Preview: m.Preview,
		Workers: cfg.Derived.Workers,
	})
	if err != nil {
		return err
	}

	table := SurfaceTableName(manifest.BakeID)
	if err := export.WriteSurfaceTable(filepath.Join(m.Dir, table), lvl); err != nil {
		return err
	}
	files = append(files, table)

	if err := cfg.WriteYAML(filepath.Join(m.Dir, ConfigFile)); err != nil {
		return err
	}
	files = append(files, ConfigFile)

	if b.Grid != nil {
		if err := export.WriteGrid(filepath.Join(m.Dir, GridFile), b.Grid); err != nil {
			return err
		}
		files = append(files, GridFile)
		manifest.GridLuminance = export.Summarize(export.GridLuminance(b.Grid))
	}
	manifest.Luminance = export.Summarize(export.SurfaceLuminance(lvl, b.Atlas.Pages()))
	if clock, ok := Resource[BakeClock](cmd.app); ok {
		manifest.Timings = clock.Timings()
	}
	manifest.Files = files

	if err := export.WriteManifest(filepath.Join(m.Dir, ManifestFile), manifest); err != nil {
		return err
	}
	cmd.Logger().Infof("wrote %d files to %s (bake %s)", len(files)+1, m.Dir, manifest.BakeID)
	cmd.AddResources(&manifest)
	return nil
}
