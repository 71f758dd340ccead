package lightbake

import (
	"time"
)

// BakeClock records when the bake started and how long each stage took.
type BakeClock struct {
	Start  time.Time
	Stages map[string]time.Duration
}

type TimeModule struct {
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&BakeClock{
		Start:  time.Now(),
		Stages: make(map[string]time.Duration),
	})
}

func (c *BakeClock) record(stage string, d time.Duration) {
	c.Stages[stage] += d
}

// Elapsed is the wall time since the bake started.
func (c *BakeClock) Elapsed() time.Duration {
	return time.Since(c.Start)
}

// Timings formats the stage durations for the manifest.
func (c *BakeClock) Timings() map[string]string {
	out := make(map[string]string, len(c.Stages))
	for stage, d := range c.Stages {
		out[stage] = d.Round(time.Millisecond).String()
	}
	return out
}
