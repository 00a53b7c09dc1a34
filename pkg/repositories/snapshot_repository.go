package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rs24k/captracker/pkg/apperrors"
	"github.com/rs24k/captracker/pkg/database"
	"github.com/rs24k/captracker/pkg/models"
)

// SnapshotRepository defines the interface for XP snapshot access.
type SnapshotRepository interface {
	// Insert stores the snapshot if its (member_id, hash) pair is new.
	// Returns false without error when an identical snapshot exists.
	Insert(ctx context.Context, snapshot *models.XPSnapshot) (bool, error)
	Latest(ctx context.Context, memberID int64) (*models.XPSnapshot, error)
	LatestCapturedAt(ctx context.Context, memberID int64) (*time.Time, error)
}

// snapshotRepository implements SnapshotRepository using PostgreSQL.
type snapshotRepository struct {
	db *database.DB
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(db *database.DB) SnapshotRepository {
	return &snapshotRepository{db: db}
}

// Insert stores a snapshot unless a byte-identical one already exists for
// the member.
func (r *snapshotRepository) Insert(ctx context.Context, snapshot *models.XPSnapshot) (bool, error) {
	q := database.GetQuerier(ctx, r.db)

	snapshot.CreatedAt = time.Now().UTC()

	skills, err := json.Marshal(snapshot.Skills)
	if err != nil {
		return false, fmt.Errorf("failed to marshal skills: %w", err)
	}

	query := `
		INSERT INTO member_xp_snapshots (member_id, total_xp, skills, snapshot_hash,
			captured_at_utc, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (member_id, snapshot_hash) DO NOTHING
		RETURNING id`

	err = q.QueryRow(ctx, query,
		snapshot.MemberID,
		snapshot.TotalXP,
		skills,
		snapshot.Hash,
		snapshot.CapturedAt.UTC(),
		snapshot.CreatedAt,
	).Scan(&snapshot.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return true, nil
}

// Latest returns the member's most recent snapshot.
func (r *snapshotRepository) Latest(ctx context.Context, memberID int64) (*models.XPSnapshot, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `
		SELECT id, member_id, total_xp, skills, snapshot_hash, captured_at_utc, created_at
		FROM member_xp_snapshots
		WHERE member_id = $1
		ORDER BY captured_at_utc DESC, id DESC
		LIMIT 1`

	var snapshot models.XPSnapshot
	var skills []byte

	err := q.QueryRow(ctx, query, memberID).Scan(
		&snapshot.ID,
		&snapshot.MemberID,
		&snapshot.TotalXP,
		&skills,
		&snapshot.Hash,
		&snapshot.CapturedAt,
		&snapshot.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}

	if err := json.Unmarshal(skills, &snapshot.Skills); err != nil {
		return nil, fmt.Errorf("failed to unmarshal skills: %w", err)
	}
	return &snapshot, nil
}

// LatestCapturedAt returns when the member's newest snapshot was taken, or
// nil when no snapshot exists. Drives the refresh freshness check.
func (r *snapshotRepository) LatestCapturedAt(ctx context.Context, memberID int64) (*time.Time, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT MAX(captured_at_utc) FROM member_xp_snapshots WHERE member_id = $1`

	var capturedAt *time.Time
	if err := q.QueryRow(ctx, query, memberID).Scan(&capturedAt); err != nil {
		return nil, fmt.Errorf("failed to get latest capture time: %w", err)
	}
	return capturedAt, nil
}

// Ensure snapshotRepository implements SnapshotRepository at compile time.
var _ SnapshotRepository = (*snapshotRepository)(nil)
