package jobs

import (
	"bytes"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gekko3d/lightbake/bake/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesWorkers(t *testing.T) {
	for _, n := range []int{0, -3, 129} {
		_, err := New(n, nil)
		assert.ErrorIs(t, err, ErrInvalidWorkerCount, "%d workers", n)
	}
	for _, n := range []int{1, 64, 128} {
		d, err := New(n, nil)
		require.NoError(t, err)
		assert.Equal(t, n, d.Workers())
	}
	assert.GreaterOrEqual(t, DefaultWorkers(), MinWorkers)
	assert.LessOrEqual(t, DefaultWorkers(), MaxWorkers)
}

func TestRunVisitsEveryIndexOnce(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		jobs    int
	}{
		{"single worker", 1, 50},
		{"more workers than jobs", 16, 3},
		{"many jobs", 8, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.workers, nil)
			require.NoError(t, err)
			d.PollInterval = time.Millisecond

			counts := make([]int32, tt.jobs)
			Run(d, "test", tt.jobs, counts, func(c []int32, i int) {
				atomic.AddInt32(&c[i], 1)
			})
			for i, c := range counts {
				assert.Equal(t, int32(1), c, "job %d", i)
			}
		})
	}
}

func TestRunSingleWorkerClaimsInOrder(t *testing.T) {
	d, err := New(1, nil)
	require.NoError(t, err)
	d.PollInterval = time.Millisecond

	var order []int
	Run(d, "ordered", 20, &order, func(o *[]int, i int) {
		*o = append(*o, i)
	})
	for i, v := range order {
		assert.Equal(t, i, v)
	}
	assert.Len(t, order, 20)
}

func TestRunRunsConcurrently(t *testing.T) {
	d, err := New(4, nil)
	require.NoError(t, err)
	d.PollInterval = time.Millisecond

	var mu sync.Mutex
	active, peak := 0, 0
	Run(d, "overlap", 8, struct{}{}, func(_ struct{}, _ int) {
		mu.Lock()
		active++
		peak = max(peak, active)
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	})
	assert.Greater(t, peak, 1)
	assert.LessOrEqual(t, peak, 4)
}

func TestRunReportsProgress(t *testing.T) {
	var out bytes.Buffer
	log := logging.NewWriterLogger("bake", false, &out, &out)
	d, err := New(2, log)
	require.NoError(t, err)
	d.PollInterval = time.Millisecond

	Run(d, "surfaces", 10, 0, func(int, int) { time.Sleep(time.Millisecond) })
	assert.Contains(t, out.String(), "surfaces: 100%")
	assert.LessOrEqual(t, strings.Count(out.String(), "surfaces:"), 11, "at most one line per 10%")

	out.Reset()
	Run(d, "empty", 0, 0, func(int, int) { t.Fatal("no jobs") })
	assert.Empty(t, out.String())
}
