package memory

import (
	"context"
	"errors"
	"runtime/debug"
	"testing"
	"time"
)

func testMonitor(limit int64) *Monitor {
	return NewMonitor(Config{
		LimitBytes:        limit,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     10 * time.Millisecond,
	})
}

func TestMonitorWaterMarks(t *testing.T) {
	m := testMonitor(1000)

	tests := []struct {
		name       string
		alloc      uint64
		wantPaused bool
	}{
		{"below high water mark", 500, false},
		{"between marks stays running", 800, false},
		{"critical pauses", 900, true},
		{"between marks stays paused", 800, true},
		{"below high water mark resumes", 600, false},
	}

	for _, tt := range tests {
		m.update(tt.alloc)
		if got := m.IsPaused(); got != tt.wantPaused {
			t.Errorf("%s: IsPaused() = %v, want %v", tt.name, got, tt.wantPaused)
		}
	}

	if got := m.Usage(); got != 0.6 {
		t.Errorf("Usage() = %v, want 0.6", got)
	}
}

func TestMonitorWaitReleasedOnRecovery(t *testing.T) {
	m := testMonitor(1000)
	m.update(950)

	done := make(chan error, 1)
	go func() {
		done <- m.Wait(context.Background())
	}()

	select {
	case <-done:
		t.Fatal("Wait() returned while memory is critical")
	case <-time.After(20 * time.Millisecond):
	}

	m.update(100)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() did not return after recovery")
	}
}

func TestMonitorWaitHonorsContext(t *testing.T) {
	m := testMonitor(1000)
	m.update(950)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestMonitorStopReleasesWaiters(t *testing.T) {
	m := testMonitor(1000)
	m.update(950)
	m.Stop()
	m.Stop()

	if err := m.Wait(context.Background()); err != nil {
		t.Errorf("Wait() after Stop() error = %v", err)
	}
}

func TestNilMonitor(t *testing.T) {
	var m *Monitor

	m.Start()
	m.Stop()
	if err := m.Wait(context.Background()); err != nil {
		t.Errorf("nil Wait() error = %v", err)
	}
	if m.IsPaused() {
		t.Error("nil IsPaused() = true")
	}
	if m.Usage() != 0 {
		t.Error("nil Usage() != 0")
	}
}

func TestMonitorWithoutLimitNeverPauses(t *testing.T) {
	old := debug.SetMemoryLimit(-1)
	debug.SetMemoryLimit(1<<63 - 1)
	t.Cleanup(func() { debug.SetMemoryLimit(old) })

	m := testMonitor(0)
	m.update(1 << 40)
	if m.IsPaused() {
		t.Error("monitor without a limit paused")
	}
}

func TestConfigureFromEnv(t *testing.T) {
	old := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(old) })

	tests := []struct {
		name       string
		limit      string
		ratio      string
		wantSource string
		wantLimit  int64
	}{
		{"unset", "", "", "none", 0},
		{"invalid limit", "lots", "", "none", 0},
		{"default ratio", "1000000", "", EnvLimit, 850000},
		{"custom ratio", "1000000", "0.5", EnvLimit, 500000},
		{"out of range ratio", "1000000", "1.5", EnvLimit, 850000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv(EnvLimit, tt.limit)
			t.Setenv(EnvRatio, tt.ratio)

			result := ConfigureFromEnv()
			if result.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", result.Source, tt.wantSource)
			}
			if result.GoMemLimit != tt.wantLimit {
				t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, tt.wantLimit)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1 << 20, "1.0 MiB"},
		{5 << 30, "5.0 GiB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
