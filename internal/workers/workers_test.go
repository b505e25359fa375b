package workers

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync/atomic"
	"testing"
	"time"
)

func TestCount(t *testing.T) {
	t.Setenv(EnvOverride, "")

	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{
			name:       "CPU-bound task (1.0x multiplier)",
			multiplier: 1.0,
			limit:      0,
			minExpect:  1,
			maxExpect:  availableCPU,
		},
		{
			name:       "I/O-bound task (2.0x multiplier)",
			multiplier: 2.0,
			limit:      0,
			minExpect:  1,
			maxExpect:  availableCPU * 2,
		},
		{
			name:       "With limit lower than calculated",
			multiplier: 2.0,
			limit:      2,
			minExpect:  1,
			maxExpect:  2,
		},
		{
			name:       "Very low multiplier",
			multiplier: 0.01,
			limit:      0,
			minExpect:  1,
			maxExpect:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)

			if got < tt.minExpect {
				t.Errorf("Count(%v, %d) = %d, expected >= %d", tt.multiplier, tt.limit, got, tt.minExpect)
			}
			if got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, expected <= %d", tt.multiplier, tt.limit, got, tt.maxExpect)
			}
		})
	}
}

func TestCountOverride(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		limit int
		want  int
	}{
		{name: "override applied", env: "3", limit: 0, want: 3},
		{name: "override capped by limit", env: "12", limit: 4, want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvOverride, tt.env)
			if got := ForCPU(tt.limit); got != tt.want {
				t.Errorf("ForCPU(%d) with %s=%s = %d, want %d", tt.limit, EnvOverride, tt.env, got, tt.want)
			}
		})
	}
}

func TestCountInvalidOverrideIgnored(t *testing.T) {
	for _, env := range []string{"zero", "0", "-2"} {
		t.Run(env, func(t *testing.T) {
			t.Setenv(EnvOverride, env)
			got := ForCPU(0)
			if got != max(1, runtime.GOMAXPROCS(0)) {
				t.Errorf("ForCPU(0) with invalid override %q = %d, want GOMAXPROCS", env, got)
			}
		})
	}
}

func TestPoolProcessesAllJobs(t *testing.T) {
	pool := NewPool(4, func(_ context.Context, n int) (int, error) {
		return n * n, nil
	})

	jobs := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	var squares []int
	for r := range pool.Run(context.Background(), jobs) {
		if r.Err != nil {
			t.Fatalf("job %d: unexpected error %v", r.Job, r.Err)
		}
		if r.Value != r.Job*r.Job {
			t.Errorf("job %d: value %d, want %d", r.Job, r.Value, r.Job*r.Job)
		}
		squares = append(squares, r.Value)
	}

	sort.Ints(squares)
	if len(squares) != len(jobs) {
		t.Fatalf("got %d results, want %d", len(squares), len(jobs))
	}
	if squares[0] != 1 || squares[9] != 100 {
		t.Errorf("unexpected results: %v", squares)
	}
}

func TestPoolErrorsDoNotStopOtherJobs(t *testing.T) {
	errOdd := errors.New("odd")
	pool := NewPool(3, func(_ context.Context, n int) (int, error) {
		if n%2 == 1 {
			return 0, errOdd
		}
		return n, nil
	})

	var ok, failed int
	for r := range pool.Run(context.Background(), []int{1, 2, 3, 4, 5, 6}) {
		if errors.Is(r.Err, errOdd) {
			failed++
			continue
		}
		ok++
	}

	if ok != 3 || failed != 3 {
		t.Errorf("ok=%d failed=%d, want 3 and 3", ok, failed)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const size = 2
	var running, peak atomic.Int32

	pool := NewPool(size, func(_ context.Context, n int) (int, error) {
		cur := running.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return n, nil
	})

	jobs := make([]int, 20)
	for range pool.Run(context.Background(), jobs) {
	}

	if got := peak.Load(); got > size {
		t.Errorf("peak concurrency = %d, want <= %d", got, size)
	}
}

func TestPoolCancellationStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var started atomic.Int32
	pool := NewPool(1, func(ctx context.Context, n int) (int, error) {
		started.Add(1)
		if n == 3 {
			cancel()
			return 0, ctx.Err()
		}
		return n, nil
	})

	jobs := make([]int, 100)
	for i := range jobs {
		jobs[i] = i + 1
	}

	var delivered int
	for r := range pool.Run(ctx, jobs) {
		if r.Err == nil {
			delivered++
		}
	}

	if delivered != 2 {
		t.Errorf("delivered = %d successful results, want 2", delivered)
	}
	if got := started.Load(); got != 3 {
		t.Errorf("started = %d jobs, want 3", got)
	}
}

func TestNewPoolMinimumSize(t *testing.T) {
	pool := NewPool(0, func(_ context.Context, n int) (int, error) { return n, nil })
	if pool.Size() != 1 {
		t.Errorf("Size() = %d, want 1", pool.Size())
	}
}
