package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// FeedbackAuditRepository keeps a local trail of confirmed feedback
// submissions. Rows are pruned by the cleanup job after the retention period.
type FeedbackAuditRepository interface {
	Record(ctx context.Context, params RecordFeedbackParams) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type RecordFeedbackParams struct {
	UserID        string
	SourceUUID    string
	TargetUUID    string
	TransactionID string
	Stars         int
	Succeeded     bool
}

type feedbackAuditRepo struct {
	db *sqlx.DB
}

func NewFeedbackAuditRepository(db *sqlx.DB) FeedbackAuditRepository {
	return &feedbackAuditRepo{db: db}
}

func (r *feedbackAuditRepo) Record(ctx context.Context, params RecordFeedbackParams) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feedback_audit (user_id, source_uuid, target_uuid, transaction_id, stars, succeeded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (transaction_id) DO UPDATE SET
			stars = EXCLUDED.stars,
			succeeded = EXCLUDED.succeeded
	`, params.UserID, params.SourceUUID, params.TargetUUID, params.TransactionID, params.Stars, params.Succeeded)
	return err
}

func (r *feedbackAuditRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM feedback_audit WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
