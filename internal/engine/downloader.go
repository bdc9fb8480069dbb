package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Blameying/M3U8-Downloader/internal/domain"
	"github.com/Blameying/M3U8-Downloader/internal/infra/logger"
	"github.com/Blameying/M3U8-Downloader/internal/playlist"
	"github.com/segmentio/ksuid"
)

// Journal persists run history. The engine only needs these two operations,
// so it doesn't import the store package directly.
type Journal interface {
	SaveRun(rec *domain.RunRecord) error
	RecordFailure(runID, segment, errMsg string) error
}

// Downloader is the concrete download engine: it loads the segment list,
// applies resume filtering, partitions the work across workers and drives
// them to completion through the single writer sink.
type Downloader struct {
	log     *logger.Logger
	journal Journal
	timeout time.Duration

	// Quiet suppresses the progress bar (tests, scripting).
	Quiet bool

	mu        sync.RWMutex
	current   *Progress
	currentID string
}

// New creates a Downloader. journal may be nil, in which case run history is
// simply not recorded.
func New(log *logger.Logger, journal Journal, timeout time.Duration) *Downloader {
	return &Downloader{
		log:     log,
		journal: journal,
		timeout: timeout,
	}
}

// Run executes one download job from start to finish and returns its record.
// Per-segment fetch failures do not fail the run; a disk write failure does.
func (d *Downloader) Run(ctx context.Context, job domain.Job) (*domain.RunRecord, error) {
	if err := os.MkdirAll(job.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create output dir %s: %w", job.OutDir, err)
	}

	list, err := playlist.ExtractFile(job.PlaylistPath)
	if err != nil {
		return nil, err
	}

	extracted := len(list)
	skipped := 0
	if job.Resume {
		list = filterExisting(job.OutDir, list)
		skipped = extracted - len(list)
		d.log.Info("resume: %d of %d segments already on disk", skipped, extracted)
	}

	rec := &domain.RunRecord{
		ID:        ksuid.New().String(),
		Playlist:  job.PlaylistPath,
		BaseURL:   job.BaseURL,
		Dest:      job.OutDir,
		Status:    domain.StatusRunning,
		Scheduled: len(list),
		Skipped:   skipped,
		StartedAt: time.Now(),
	}
	d.saveRun(rec)

	if len(list) == 0 {
		rec.Status = domain.StatusCompleted
		rec.FinishedAt = time.Now()
		d.saveRun(rec)
		if !d.Quiet {
			fmt.Println("Done!")
		}
		return rec, nil
	}

	fetcher, err := NewFetcher(job.BaseURL, job.Headers, d.timeout, d.log)
	if err != nil {
		rec.Status = domain.StatusFailed
		rec.Error = err.Error()
		rec.FinishedAt = time.Now()
		d.saveRun(rec)
		return rec, err
	}

	chunks := Partition(list, job.Workers)
	d.log.Info("downloading %d segments with %d workers", len(list), len(chunks))

	progress := NewProgress(len(list))
	d.setCurrent(rec.ID, progress)
	defer d.clearCurrent()

	payloads := make(chan domain.SegmentPayload, len(chunks)*2)
	sink := NewWriterSink(job.OutDir, progress)
	go sink.Run(payloads)

	var failMu sync.Mutex
	var failures []domain.SegmentFailure

	var wg sync.WaitGroup
	for _, chunk := range chunks {
		wg.Add(1)
		go func(chunk []string) {
			defer wg.Done()
			fetcher.FetchChunk(ctx, chunk, payloads, func(name string, err error) {
				progress.Fail()
				failMu.Lock()
				failures = append(failures, domain.SegmentFailure{Name: name, Err: err.Error()})
				failMu.Unlock()
			})
		}(chunk)
	}

	// All producers are registered; the channel closes exactly when the last
	// worker finishes, which is what terminates the sink's drain loop.
	go func() {
		wg.Wait()
		close(payloads)
	}()

	renderStop := func() {}
	if !d.Quiet {
		renderCtx, cancel := context.WithCancel(ctx)
		renderStop = cancel
		go progress.StartRender(renderCtx)
	}

	werr := sink.Wait()
	renderStop()

	rec.Written = progress.Written()
	rec.Failed = progress.Failed()
	rec.FinishedAt = time.Now()

	for _, f := range failures {
		d.recordFailure(rec.ID, f)
	}

	if werr != nil {
		rec.Status = domain.StatusFailed
		rec.Error = werr.Error()
		d.saveRun(rec)
		return rec, werr
	}

	if !d.Quiet {
		progress.Finish()
	}

	if len(failures) > 0 {
		d.log.Warn("%d segment(s) could not be downloaded:", len(failures))
		for _, f := range failures {
			d.log.Warn("  %s: %s", f.Name, f.Err)
		}
	}

	rec.Status = domain.StatusCompleted
	d.saveRun(rec)
	return rec, nil
}

// Snapshot exposes the live progress of the in-flight run to the status API.
func (d *Downloader) Snapshot() (string, Snapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.current == nil {
		return "", Snapshot{}, false
	}
	return d.currentID, d.current.Snapshot(), true
}

func (d *Downloader) setCurrent(id string, p *Progress) {
	d.mu.Lock()
	d.currentID = id
	d.current = p
	d.mu.Unlock()
}

func (d *Downloader) clearCurrent() {
	d.mu.Lock()
	d.currentID = ""
	d.current = nil
	d.mu.Unlock()
}

func (d *Downloader) saveRun(rec *domain.RunRecord) {
	if d.journal == nil {
		return
	}
	if err := d.journal.SaveRun(rec); err != nil {
		d.log.Warn("could not save run %s to journal: %v", rec.ID, err)
	}
}

func (d *Downloader) recordFailure(runID string, f domain.SegmentFailure) {
	if d.journal == nil {
		return
	}
	if err := d.journal.RecordFailure(runID, f.Name, f.Err); err != nil {
		d.log.Warn("could not record failure for %s: %v", f.Name, err)
	}
}

// filterExisting drops every segment whose file already exists under dir,
// preserving the order of the remainder. Existence only; a partially written
// file counts as done.
func filterExisting(dir string, list []string) []string {
	var kept []string
	for _, name := range list {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			continue
		}
		kept = append(kept, name)
	}
	return kept
}
