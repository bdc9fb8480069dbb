package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Blameying/M3U8-Downloader/internal/domain"
)

// WriterSink is the single consumer of fetched segments. All filesystem
// writes into the output directory go through this one goroutine, so there
// are no write races by construction. It also owns the progress counter.
type WriterSink struct {
	dir      string
	progress *Progress
	err      error
	done     chan struct{}
}

func NewWriterSink(dir string, progress *Progress) *WriterSink {
	return &WriterSink{
		dir:      dir,
		progress: progress,
		done:     make(chan struct{}),
	}
}

// Run drains the payload channel until it is closed, writing each segment to
// <dir>/<name> and advancing the progress counter. A disk write failure is
// fatal for the run, but the sink keeps draining so producers never block on
// a dead consumer; the error is surfaced by Wait.
func (w *WriterSink) Run(payloads <-chan domain.SegmentPayload) {
	defer close(w.done)

	for p := range payloads {
		if w.err != nil {
			continue
		}
		path := filepath.Join(w.dir, p.Name)
		if err := os.WriteFile(path, p.Data, 0644); err != nil {
			w.err = fmt.Errorf("could not write segment %s: %w", p.Name, err)
			continue
		}
		w.progress.Advance(len(p.Data))
	}
}

// Wait blocks until the channel has been drained and returns the first disk
// error, if any.
func (w *WriterSink) Wait() error {
	<-w.done
	return w.err
}
