package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"imgdb/internal/indexer"
)

const progressInterval = 200 * time.Millisecond

// progressPrinter redraws a single status line per stage. It prints nothing
// unless enabled, so piped output stays clean.
type progressPrinter struct {
	w       io.Writer
	enabled bool

	mu      sync.Mutex
	stage   indexer.Stage
	last    time.Time
	pending bool
}

func newProgressPrinter(w io.Writer, enabled bool) *progressPrinter {
	return &progressPrinter{w: w, enabled: enabled}
}

// Update implements indexer.ProgressFunc.
func (p *progressPrinter) Update(stage indexer.Stage, done, total int) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending && stage != p.stage {
		fmt.Fprintln(p.w)
		p.pending = false
	}
	p.stage = stage

	finished := total > 0 && done >= total
	now := time.Now()
	if !finished && p.pending && now.Sub(p.last) < progressInterval {
		return
	}
	p.last = now

	if total > 0 {
		fmt.Fprintf(p.w, "\r%-8s %d/%d (%d%%)", stage, done, total, done*100/total)
	} else {
		fmt.Fprintf(p.w, "\r%-8s %d", stage, done)
	}
	p.pending = true

	if finished {
		fmt.Fprintln(p.w)
		p.pending = false
	}
}

// Done ends a line left open by Update.
func (p *progressPrinter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending {
		fmt.Fprintln(p.w)
		p.pending = false
	}
}
