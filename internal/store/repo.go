package store

import (
	"context"
	"errors"
	"time"

	"github.com/abhisek/quizflow/internal/analytics"
	"github.com/abhisek/quizflow/internal/telemetry"
)

// ErrNotFound is returned by Get for an unknown record id.
var ErrNotFound = errors.New("record not found")

// QueryOpts configures record queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // created_at >= From
	To     time.Time // created_at <= To

	UserID     string
	QuestionID string
	TypeID     string
}

// StoredRecord is an analytics record with its raw interaction log.
type StoredRecord struct {
	ID        string           `json:"id"`
	Sequence  int64            `json:"sequence"`
	CreatedAt time.Time        `json:"createdAt"`
	Record    analytics.Record `json:"record"`

	// Logs is only populated by Get.
	Logs []telemetry.Entry `json:"logs,omitempty"`
}

// RecordRepo stores completed sessions.
type RecordRepo interface {
	// Save stores rec and its log under the next global sequence number.
	Save(ctx context.Context, rec *analytics.Record, logs []telemetry.Entry) (*StoredRecord, error)

	// List returns records newest first.
	List(ctx context.Context, opts QueryOpts) ([]StoredRecord, error)

	// Get returns one record with its log.
	Get(ctx context.Context, id string) (*StoredRecord, error)

	// AtomHistory returns the most recent non-fallback mastery estimate per
	// atom for userID, ready for analytics.SessionContext.
	AtomHistory(ctx context.Context, userID string) (map[string]float64, error)

	// Prune deletes all but the keep most recent records.
	Prune(ctx context.Context, keep int) (int64, error)
}
