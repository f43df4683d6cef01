package review

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite review store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	// Create schema
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanReview scans a row into a VerdictReview struct.
func scanReview(s scanner) (*VerdictReview, error) {
	r := &VerdictReview{}
	var decision string

	err := s.Scan(
		&r.ID, &r.EpisodeID, &r.ReviewerID, &r.EngineEligible,
		&decision, &r.ClinicianAgreed, &r.PrimaryFailure,
		&r.EngineVersion, &r.Notes, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.ClinicianDecision = Decision(decision)
	return r, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS verdict_reviews (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		episode_id TEXT NOT NULL,
		reviewer_id TEXT NOT NULL,
		engine_eligible INTEGER NOT NULL DEFAULT 0,
		clinician_decision TEXT NOT NULL,
		clinician_agreed INTEGER NOT NULL DEFAULT 0,
		primary_failure TEXT DEFAULT '',
		engine_version TEXT DEFAULT '',
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(episode_id, reviewer_id)
	);

	CREATE INDEX IF NOT EXISTS idx_episode_id ON verdict_reviews(episode_id);
	CREATE INDEX IF NOT EXISTS idx_reviewer_id ON verdict_reviews(reviewer_id);
	CREATE INDEX IF NOT EXISTS idx_created_at ON verdict_reviews(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates a clinician review of a verdict.
func (s *SQLiteStore) Save(ctx context.Context, review *VerdictReview) error {
	now := time.Now()

	// Check if exists
	var existingID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM verdict_reviews WHERE episode_id = ? AND reviewer_id = ?",
		review.EpisodeID, review.ReviewerID,
	).Scan(&existingID)

	if err == nil {
		// Update existing
		review.ID = existingID
		review.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE verdict_reviews SET
				engine_eligible = ?,
				clinician_decision = ?,
				clinician_agreed = ?,
				primary_failure = ?,
				engine_version = ?,
				notes = ?,
				updated_at = ?
			WHERE id = ?
		`,
			review.EngineEligible,
			string(review.ClinicianDecision),
			review.ClinicianAgreed,
			review.PrimaryFailure,
			review.EngineVersion,
			review.Notes,
			now,
			existingID,
		)
		return err
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	// Insert new
	review.CreatedAt = now
	review.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO verdict_reviews (
			episode_id, reviewer_id, engine_eligible,
			clinician_decision, clinician_agreed, primary_failure,
			engine_version, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		review.EpisodeID,
		review.ReviewerID,
		review.EngineEligible,
		string(review.ClinicianDecision),
		review.ClinicianAgreed,
		review.PrimaryFailure,
		review.EngineVersion,
		review.Notes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	review.ID = id

	return nil
}

// Get retrieves the review for an episode by a specific reviewer.
func (s *SQLiteStore) Get(ctx context.Context, episodeID, reviewerID string) (*VerdictReview, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, episode_id, reviewer_id, engine_eligible,
			clinician_decision, clinician_agreed, primary_failure,
			engine_version, notes, created_at, updated_at
		FROM verdict_reviews
		WHERE episode_id = ? AND reviewer_id = ?
		LIMIT 1
	`, episodeID, reviewerID)

	r, err := scanReview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return r, nil
}

// List returns all reviews with pagination, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*VerdictReview, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, episode_id, reviewer_id, engine_eligible,
			clinician_decision, clinician_agreed, primary_failure,
			engine_version, notes, created_at, updated_at
		FROM verdict_reviews
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*VerdictReview
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// Count returns the total number of reviews.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM verdict_reviews").Scan(&count)
	return count, err
}

// Delete removes a review by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM verdict_reviews WHERE id = ?", id)
	return err
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON exports all reviews to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list reviews: %w", err)
	}

	export := &ReviewExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Reviews:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON imports reviews from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export ReviewExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, r := range export.Reviews {
		// Check if exists
		existing, err := s.Get(ctx, r.EpisodeID, r.ReviewerID)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}

		if existing != nil {
			skipped++
			continue
		}

		// Import
		if err := s.Save(ctx, r); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
