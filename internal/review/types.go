// Package review provides clinician review storage for eligibility verdicts.
// It stores clinician agreements and overrides so engine behavior can be
// audited against expert judgment over time.
package review

import (
	"context"
	"io"
	"time"
)

// Decision represents the clinician's disposition of an engine verdict.
type Decision string

const (
	DecisionAgree              Decision = "agree"
	DecisionOverrideEligible   Decision = "override_eligible"
	DecisionOverrideIneligible Decision = "override_ineligible"
	DecisionNeedsMoreData      Decision = "needs_more_data"
)

// VerdictReview represents a clinician's review of a pre-eligibility verdict.
type VerdictReview struct {
	ID                int64     `json:"id,omitempty"`
	EpisodeID         string    `json:"episode_id"`
	ReviewerID        string    `json:"reviewer_id"`
	EngineEligible    bool      `json:"engine_eligible"`           // Engine's verdict
	ClinicianDecision Decision  `json:"clinician_decision"`        // Reviewer's disposition
	ClinicianAgreed   bool      `json:"clinician_agreed"`          // Did the reviewer agree?
	PrimaryFailure    string    `json:"primary_failure,omitempty"` // Leading failure reason, sanitized
	EngineVersion     string    `json:"engine_version,omitempty"`
	Notes             string    `json:"notes,omitempty"` // Reviewer notes, sanitized upstream
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Store defines the interface for verdict review storage operations.
type Store interface {
	// Save stores or updates a review. If a review for the same
	// episode+reviewer exists, it will be updated.
	Save(ctx context.Context, review *VerdictReview) error

	// Get retrieves the review for an episode by a specific reviewer.
	Get(ctx context.Context, episodeID, reviewerID string) (*VerdictReview, error)

	// List returns all reviews with pagination, newest first.
	List(ctx context.Context, limit, offset int) ([]*VerdictReview, error)

	// Count returns the total number of reviews.
	Count(ctx context.Context) (int64, error)

	// Delete removes a review by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all reviews to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports reviews from a JSON reader.
	// Returns the number of imported and skipped entries.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// ReviewExport represents the JSON export format.
type ReviewExport struct {
	Version    string           `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Count      int              `json:"count"`
	Reviews    []*VerdictReview `json:"reviews"`
}
