package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rs24k/captracker/pkg/apperrors"
	"github.com/rs24k/captracker/pkg/database"
	"github.com/rs24k/captracker/pkg/models"
)

// ActivityRepository defines the interface for activity event access.
type ActivityRepository interface {
	// Insert stores the activity if its (member_id, hash) pair is new.
	// Returns false without error when the row already existed.
	Insert(ctx context.Context, activity *models.Activity) (bool, error)
	HashExists(ctx context.Context, memberID int64, hash string) (bool, error)
	// MarkerExistsInWindow reports whether an activity with exactly this
	// text exists for the member inside [startUTC, endUTC).
	MarkerExistsInWindow(ctx context.Context, memberID int64, text string, startUTC, endUTC time.Time) (bool, error)
	ListUnclassified(ctx context.Context, clanID int64, limit int) ([]*models.Activity, error)
	SetRule(ctx context.Context, activityID int64, ruleID int64) error
	AppendDetails(ctx context.Context, activityID int64, details string) error
	ListRecentByMember(ctx context.Context, memberID int64, limit int) ([]*models.Activity, error)
}

// activityRepository implements ActivityRepository using PostgreSQL.
type activityRepository struct {
	db *database.DB
}

// NewActivityRepository creates a new activity repository.
func NewActivityRepository(db *database.DB) ActivityRepository {
	return &activityRepository{db: db}
}

const activityColumns = `id, member_id, clan_id, activity_hash, occurred_at_utc,
	activity_text, activity_details, rule_id, created_at`

// Insert stores an activity. ON CONFLICT DO NOTHING carries the idempotence:
// re-ingesting the same upstream event is a silent no-op.
func (r *activityRepository) Insert(ctx context.Context, activity *models.Activity) (bool, error) {
	q := database.GetQuerier(ctx, r.db)

	activity.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO member_activities (member_id, clan_id, activity_hash,
			occurred_at_utc, activity_text, activity_details, rule_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (member_id, activity_hash) DO NOTHING
		RETURNING id`

	err := q.QueryRow(ctx, query,
		activity.MemberID,
		activity.ClanID,
		activity.Hash,
		activity.OccurredAt.UTC(),
		activity.Text,
		activity.Details,
		activity.RuleID,
		activity.CreatedAt,
	).Scan(&activity.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert activity: %w", err)
	}

	return true, nil
}

// HashExists reports whether the member already has an activity with hash.
func (r *activityRepository) HashExists(ctx context.Context, memberID int64, hash string) (bool, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT EXISTS (
		SELECT 1 FROM member_activities WHERE member_id = $1 AND activity_hash = $2)`

	var exists bool
	if err := q.QueryRow(ctx, query, memberID, hash).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check activity hash: %w", err)
	}
	return exists, nil
}

// MarkerExistsInWindow reports whether a marker row with this exact text
// falls inside the window. This is the at-most-once-per-week guard for
// promotion markers.
func (r *activityRepository) MarkerExistsInWindow(ctx context.Context, memberID int64, text string, startUTC, endUTC time.Time) (bool, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT EXISTS (
		SELECT 1 FROM member_activities
		WHERE member_id = $1 AND activity_text = $2
		  AND occurred_at_utc >= $3 AND occurred_at_utc < $4)`

	var exists bool
	if err := q.QueryRow(ctx, query, memberID, text, startUTC.UTC(), endUTC.UTC()).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check marker: %w", err)
	}
	return exists, nil
}

// ListUnclassified returns the clan's oldest activities that no rule has
// tagged yet, excluding marker rows which never match rules.
func (r *activityRepository) ListUnclassified(ctx context.Context, clanID int64, limit int) ([]*models.Activity, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT ` + activityColumns + ` FROM member_activities
		WHERE clan_id = $1 AND rule_id IS NULL
		  AND activity_text NOT IN ($2, $3)
		ORDER BY occurred_at_utc, id
		LIMIT $4`

	rows, err := q.Query(ctx, query, clanID,
		models.MarkerRankUpRequired, models.MarkerRankUpProcessed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unclassified activities: %w", err)
	}
	defer rows.Close()

	var activities []*models.Activity
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	return activities, rows.Err()
}

// SetRule tags an activity with the rule that classified it.
func (r *activityRepository) SetRule(ctx context.Context, activityID int64, ruleID int64) error {
	q := database.GetQuerier(ctx, r.db)

	query := `UPDATE member_activities SET rule_id = $2 WHERE id = $1`
	result, err := q.Exec(ctx, query, activityID, ruleID)
	if err != nil {
		return fmt.Errorf("failed to set activity rule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// AppendDetails adds a line to the activity's details, for annotating marker
// rows with delivery failures.
func (r *activityRepository) AppendDetails(ctx context.Context, activityID int64, details string) error {
	q := database.GetQuerier(ctx, r.db)

	query := `
		UPDATE member_activities
		SET activity_details = CASE
			WHEN activity_details = '' THEN $2
			ELSE activity_details || ' | ' || $2
		END
		WHERE id = $1`

	result, err := q.Exec(ctx, query, activityID, details)
	if err != nil {
		return fmt.Errorf("failed to append activity details: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ListRecentByMember returns the member's newest activities.
func (r *activityRepository) ListRecentByMember(ctx context.Context, memberID int64, limit int) ([]*models.Activity, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT ` + activityColumns + ` FROM member_activities
		WHERE member_id = $1
		ORDER BY occurred_at_utc DESC, id DESC
		LIMIT $2`

	rows, err := q.Query(ctx, query, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []*models.Activity
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	return activities, rows.Err()
}

func scanActivity(row pgx.Row) (*models.Activity, error) {
	var activity models.Activity
	err := row.Scan(
		&activity.ID,
		&activity.MemberID,
		&activity.ClanID,
		&activity.Hash,
		&activity.OccurredAt,
		&activity.Text,
		&activity.Details,
		&activity.RuleID,
		&activity.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan activity: %w", err)
	}
	return &activity, nil
}

// Ensure activityRepository implements ActivityRepository at compile time.
var _ ActivityRepository = (*activityRepository)(nil)
