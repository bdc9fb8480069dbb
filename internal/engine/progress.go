package engine

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Progress tracks completion of one run. Written is advanced only by the
// writer sink; Failed is shared by the workers through atomics.
type Progress struct {
	total     int
	startedAt time.Time

	written atomic.Int64
	bytes   atomic.Uint64
	failed  atomic.Int64
}

// Snapshot is a point-in-time view of a run, served by the status API.
type Snapshot struct {
	Total     int     `json:"total"`
	Written   int     `json:"written"`
	Failed    int     `json:"failed"`
	Bytes     uint64  `json:"bytes"`
	Percent   float64 `json:"percent"`
	ElapsedMS int64   `json:"elapsed_ms"`
}

func NewProgress(total int) *Progress {
	return &Progress{
		total:     total,
		startedAt: time.Now(),
	}
}

func (p *Progress) Advance(n int) {
	p.written.Add(1)
	p.bytes.Add(uint64(n))
}

func (p *Progress) Fail() {
	p.failed.Add(1)
}

func (p *Progress) Written() int { return int(p.written.Load()) }
func (p *Progress) Failed() int  { return int(p.failed.Load()) }

func (p *Progress) Snapshot() Snapshot {
	written := int(p.written.Load())
	failed := int(p.failed.Load())

	percent := 100.0
	if p.total > 0 {
		percent = float64(written+failed) / float64(p.total) * 100
	}

	return Snapshot{
		Total:     p.total,
		Written:   written,
		Failed:    failed,
		Bytes:     p.bytes.Load(),
		Percent:   percent,
		ElapsedMS: time.Since(p.startedAt).Milliseconds(),
	}
}

// StartRender redraws the progress line once per second until ctx is
// cancelled. Meant to run on its own goroutine.
func (p *Progress) StartRender(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.render(false)
		case <-ctx.Done():
			return
		}
	}
}

// Finish draws the terminal "done" state.
func (p *Progress) Finish() {
	p.render(true)
	fmt.Println()
}

func (p *Progress) render(final bool) {
	snap := p.Snapshot()

	percent := snap.Percent
	if final {
		percent = 100.0
	}

	// [====>   ] bar, 20 columns
	const barWidth = 20
	completedWidth := int(percent / 100 * barWidth)
	if completedWidth > barWidth {
		completedWidth = barWidth
	}
	bar := strings.Repeat("=", completedWidth)
	if completedWidth < barWidth {
		bar += ">" + strings.Repeat(" ", barWidth-completedWidth-1)
	}

	elapsed := time.Since(p.startedAt)
	seconds := elapsed.Seconds()
	if seconds < 0.1 {
		seconds = 0.1
	}
	speedMbps := float64(snap.Bytes) * 8 / (1024 * 1024) / seconds

	fmt.Printf("\r[%s] %5.1f%% | %d/%d segments | %6.2f Mbps | %s   ",
		bar, percent, snap.Written, snap.Total, speedMbps, elapsed.Truncate(time.Second))

	if final {
		fmt.Print("\nDone!")
	}
}
