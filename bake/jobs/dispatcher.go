// Package jobs runs a flat list of indexed jobs on a fixed set of
// goroutines. Workers claim indices in increasing order from a shared
// counter; completion order is unspecified.
package jobs

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/gekko3d/lightbake/bake/logging"
)

const (
	MinWorkers = 1
	MaxWorkers = 128

	DefaultPollInterval = 100 * time.Millisecond
)

var ErrInvalidWorkerCount = errors.New("jobs: worker count out of range")

// Dispatcher owns the job counter. One Dispatcher runs one phase at a time.
type Dispatcher struct {
	workers      int
	log          logging.Logger
	PollInterval time.Duration

	mu       sync.Mutex
	next     int
	total    int
	finished int
}

func New(workers int, log logging.Logger) (*Dispatcher, error) {
	if workers < MinWorkers || workers > MaxWorkers {
		return nil, fmt.Errorf("%w: %d not in %d..%d", ErrInvalidWorkerCount, workers, MinWorkers, MaxWorkers)
	}
	return &Dispatcher{
		workers:      workers,
		log:          logging.OrNop(log),
		PollInterval: DefaultPollInterval,
	}, nil
}

// DefaultWorkers is the CPU count clamped to the supported range.
func DefaultWorkers() int {
	return min(max(runtime.NumCPU(), MinWorkers), MaxWorkers)
}

func (d *Dispatcher) Workers() int {
	return d.workers
}

// claim hands out the next unclaimed index, or false once all are taken.
func (d *Dispatcher) claim() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.next >= d.total {
		return 0, false
	}
	i := d.next
	d.next++
	return i, true
}

func (d *Dispatcher) finish() {
	d.mu.Lock()
	d.finished++
	d.mu.Unlock()
}

func (d *Dispatcher) progress() (claimed, finished int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.next, d.finished
}

// Run calls fn(shared, i) for every i in [0, jobCount) across the
// dispatcher's workers and returns once all calls have finished. fn runs
// without the dispatcher lock held. Progress is logged under name.
func Run[T any](d *Dispatcher, name string, jobCount int, shared T, fn func(shared T, index int)) {
	if jobCount <= 0 {
		return
	}
	d.mu.Lock()
	d.next, d.total, d.finished = 0, jobCount, 0
	d.mu.Unlock()

	workers := min(d.workers, jobCount)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				i, ok := d.claim()
				if !ok {
					return
				}
				fn(shared, i)
				d.finish()
			}
		}()
	}

	lastStep := -1
	for {
		claimed, finished := d.progress()
		pct := finished * 100 / jobCount
		if pct/10 != lastStep {
			d.log.Infof("%s: %d%%", name, pct)
			lastStep = pct / 10
		}
		if claimed >= jobCount && finished >= jobCount {
			break
		}
		time.Sleep(d.PollInterval)
	}
	wg.Wait()
}
