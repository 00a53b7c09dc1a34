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

// CapRepository defines the interface for weekly cap and visit facts.
type CapRepository interface {
	UpsertCap(ctx context.Context, record *models.CapRecord) error
	UpsertVisit(ctx context.Context, visit *models.VisitRecord) error
	GetCap(ctx context.Context, clanID, memberID int64, weekStartUTC time.Time) (*models.CapRecord, error)
	ListCapsInWindow(ctx context.Context, clanID int64, weekStartUTC time.Time) ([]*models.CapRecord, error)
	CountVisitsInWindow(ctx context.Context, clanID int64, weekStartUTC time.Time) (int, error)
}

// capRepository implements CapRepository using PostgreSQL.
type capRepository struct {
	db *database.DB
}

// NewCapRepository creates a new cap repository.
func NewCapRepository(db *database.DB) CapRepository {
	return &capRepository{db: db}
}

// UpsertCap records a cap for the member's week. A repeat detection in the
// same window overwrites the timestamp: last write wins.
func (r *capRepository) UpsertCap(ctx context.Context, record *models.CapRecord) error {
	q := database.GetQuerier(ctx, r.db)

	record.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO member_caps (clan_id, member_id, week_start_utc, week_end_utc,
			capped_at_utc, rule_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (clan_id, member_id, week_start_utc) DO UPDATE
		SET capped_at_utc = EXCLUDED.capped_at_utc,
		    rule_id = EXCLUDED.rule_id`

	_, err := q.Exec(ctx, query,
		record.ClanID,
		record.MemberID,
		record.WeekStartUTC.UTC(),
		record.WeekEndUTC.UTC(),
		record.CappedAt.UTC(),
		record.RuleID,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cap: %w", err)
	}
	return nil
}

// UpsertVisit records a citadel visit for the member's week, same
// last-write-wins shape as caps.
func (r *capRepository) UpsertVisit(ctx context.Context, visit *models.VisitRecord) error {
	q := database.GetQuerier(ctx, r.db)

	visit.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO member_citadel_visits (clan_id, member_id, week_start_utc,
			week_end_utc, visited_at_utc, rule_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (clan_id, member_id, week_start_utc) DO UPDATE
		SET visited_at_utc = EXCLUDED.visited_at_utc,
		    rule_id = EXCLUDED.rule_id`

	_, err := q.Exec(ctx, query,
		visit.ClanID,
		visit.MemberID,
		visit.WeekStartUTC.UTC(),
		visit.WeekEndUTC.UTC(),
		visit.VisitedAt.UTC(),
		visit.RuleID,
		visit.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert visit: %w", err)
	}
	return nil
}

// GetCap retrieves the member's cap record for a given week.
func (r *capRepository) GetCap(ctx context.Context, clanID, memberID int64, weekStartUTC time.Time) (*models.CapRecord, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `
		SELECT clan_id, member_id, week_start_utc, week_end_utc, capped_at_utc, rule_id, created_at
		FROM member_caps
		WHERE clan_id = $1 AND member_id = $2 AND week_start_utc = $3`

	return scanCap(q.QueryRow(ctx, query, clanID, memberID, weekStartUTC.UTC()))
}

// ListCapsInWindow returns all caps recorded for a clan's week.
func (r *capRepository) ListCapsInWindow(ctx context.Context, clanID int64, weekStartUTC time.Time) ([]*models.CapRecord, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `
		SELECT clan_id, member_id, week_start_utc, week_end_utc, capped_at_utc, rule_id, created_at
		FROM member_caps
		WHERE clan_id = $1 AND week_start_utc = $2
		ORDER BY capped_at_utc`

	rows, err := q.Query(ctx, query, clanID, weekStartUTC.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list caps: %w", err)
	}
	defer rows.Close()

	var caps []*models.CapRecord
	for rows.Next() {
		record, err := scanCap(rows)
		if err != nil {
			return nil, err
		}
		caps = append(caps, record)
	}
	return caps, rows.Err()
}

// CountVisitsInWindow returns how many members visited the citadel in a
// clan's week.
func (r *capRepository) CountVisitsInWindow(ctx context.Context, clanID int64, weekStartUTC time.Time) (int, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT COUNT(*) FROM member_citadel_visits
		WHERE clan_id = $1 AND week_start_utc = $2`

	var count int
	if err := q.QueryRow(ctx, query, clanID, weekStartUTC.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count visits: %w", err)
	}
	return count, nil
}

func scanCap(row pgx.Row) (*models.CapRecord, error) {
	var record models.CapRecord
	err := row.Scan(
		&record.ClanID,
		&record.MemberID,
		&record.WeekStartUTC,
		&record.WeekEndUTC,
		&record.CappedAt,
		&record.RuleID,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan cap: %w", err)
	}
	return &record, nil
}

// Ensure capRepository implements CapRepository at compile time.
var _ CapRepository = (*capRepository)(nil)
