// Package archive persists sanitized eligibility verdicts for audit
// retention. Only results that have already passed through the PHI
// sanitizer are accepted; the archive never sees raw chart text.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/ctp-wound-eligibility-server/internal/database"
	"github.com/ctp-wound-eligibility-server/internal/domain"
)

// ArchivedVerdict is one retained verdict row.
type ArchivedVerdict struct {
	ID              uuid.UUID       `json:"id"`
	EpisodeID       string          `json:"episode_id"`
	OverallEligible bool            `json:"overall_eligible"`
	EngineVersion   string          `json:"engine_version"`
	PolicyID        string          `json:"policy_id"`
	Verdict         json.RawMessage `json:"verdict"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Store writes and reads archived verdicts through the shared pgx pool.
type Store struct {
	pool *database.Pool
	log  *logrus.Logger
}

// NewStore creates a verdict archive store.
func NewStore(pool *database.Pool, logger *logrus.Logger) *Store {
	return &Store{pool: pool, log: logger}
}

// SaveVerdict archives a completed pre-eligibility result and returns the
// archive record ID.
func (s *Store) SaveVerdict(ctx context.Context, result *domain.PreEligibilityCheckResult) (uuid.UUID, error) {
	if result == nil {
		return uuid.Nil, fmt.Errorf("result is required")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshaling verdict: %w", err)
	}

	id := uuid.New()
	_, err = s.pool.Pool.Exec(ctx, `
		INSERT INTO verdict_archive (
			id, episode_id, overall_eligible, engine_version, policy_id, verdict, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, result.EpisodeID, result.OverallEligible, result.EngineVersion, result.Policy.PolicyID, payload, time.Now().UTC())
	if err != nil {
		return uuid.Nil, fmt.Errorf("archiving verdict: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"archive_id": id.String(),
		"episode_id": result.EpisodeID,
		"eligible":   result.OverallEligible,
	}).Debug("Verdict archived")

	return id, nil
}

// GetVerdict retrieves one archived verdict by ID.
func (s *Store) GetVerdict(ctx context.Context, id uuid.UUID) (*ArchivedVerdict, error) {
	row := s.pool.Pool.QueryRow(ctx, `
		SELECT id, episode_id, overall_eligible, engine_version, policy_id, verdict, created_at
		FROM verdict_archive
		WHERE id = $1
	`, id)

	av := &ArchivedVerdict{}
	err := row.Scan(&av.ID, &av.EpisodeID, &av.OverallEligible, &av.EngineVersion, &av.PolicyID, &av.Verdict, &av.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading archived verdict: %w", err)
	}
	return av, nil
}

// ListByEpisode returns the archived verdicts for an episode, newest first.
func (s *Store) ListByEpisode(ctx context.Context, episodeID string, limit int) ([]*ArchivedVerdict, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Pool.Query(ctx, `
		SELECT id, episode_id, overall_eligible, engine_version, policy_id, verdict, created_at
		FROM verdict_archive
		WHERE episode_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, episodeID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing archived verdicts: %w", err)
	}
	defer rows.Close()

	var result []*ArchivedVerdict
	for rows.Next() {
		av := &ArchivedVerdict{}
		if err := rows.Scan(&av.ID, &av.EpisodeID, &av.OverallEligible, &av.EngineVersion, &av.PolicyID, &av.Verdict, &av.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning archived verdict: %w", err)
		}
		result = append(result, av)
	}
	return result, rows.Err()
}
