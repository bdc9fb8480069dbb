package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/Blameying/M3U8-Downloader/internal/domain"
)

func (j *Journal) SaveRun(rec *domain.RunRecord) error {
	query := `INSERT OR REPLACE INTO runs
		(id, playlist, base_url, dest, status, scheduled, written, skipped, failed, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := j.db.Exec(query,
		rec.ID,
		rec.Playlist,
		rec.BaseURL,
		rec.Dest,
		rec.Status,
		rec.Scheduled,
		rec.Written,
		rec.Skipped,
		rec.Failed,
		rec.Error,
		rec.StartedAt,
		rec.FinishedAt,
	)
	return err
}

func (j *Journal) RecordFailure(runID, segment, errMsg string) error {
	_, err := j.db.Exec(`INSERT INTO run_failures (run_id, segment, error) VALUES (?, ?, ?)`,
		runID, segment, errMsg)
	return err
}

// GetRun returns nil, nil when no run with the given id exists.
func (j *Journal) GetRun(id string) (*domain.RunRecord, error) {
	query := `SELECT id, playlist, base_url, dest, status, scheduled, written, skipped, failed, error, started_at, finished_at
		FROM runs WHERE id = ? LIMIT 1`

	rec, err := scanRun(j.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch run: %w", err)
	}
	return rec, nil
}

// RecentRuns lists the newest runs first. KSUIDs sort chronologically, so
// ordering by id is ordering by creation time.
func (j *Journal) RecentRuns(limit int) ([]*domain.RunRecord, error) {
	query := `SELECT id, playlist, base_url, dest, status, scheduled, written, skipped, failed, error, started_at, finished_at
		FROM runs ORDER BY id DESC LIMIT ?`

	rows, err := j.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch runs: %w", err)
	}
	defer rows.Close()

	var recs []*domain.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Failures returns the failed segments recorded for one run.
func (j *Journal) Failures(runID string) ([]domain.SegmentFailure, error) {
	rows, err := j.db.Query(`SELECT segment, error FROM run_failures WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fails []domain.SegmentFailure
	for rows.Next() {
		var f domain.SegmentFailure
		if err := rows.Scan(&f.Name, &f.Err); err != nil {
			return nil, err
		}
		fails = append(fails, f)
	}
	return fails, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.RunRecord, error) {
	rec := &domain.RunRecord{}
	var finished sql.NullTime

	err := row.Scan(
		&rec.ID,
		&rec.Playlist,
		&rec.BaseURL,
		&rec.Dest,
		&rec.Status,
		&rec.Scheduled,
		&rec.Written,
		&rec.Skipped,
		&rec.Failed,
		&rec.Error,
		&rec.StartedAt,
		&finished,
	)
	if err != nil {
		return nil, err
	}

	if finished.Valid {
		rec.FinishedAt = finished.Time
	}
	return rec, nil
}
