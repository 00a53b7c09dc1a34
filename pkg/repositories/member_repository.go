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

// MemberRepository defines the interface for member data access.
type MemberRepository interface {
	Upsert(ctx context.Context, member *models.Member) error
	GetByID(ctx context.Context, id int64) (*models.Member, error)
	GetByRSN(ctx context.Context, clanID int64, rsnNormalised string) (*models.Member, error)
	ListActive(ctx context.Context, clanID int64) ([]*models.Member, error)
	UpdateRank(ctx context.Context, id int64, rankName string) error
	SetPrivacy(ctx context.Context, id int64, private bool) error
	SetLastPromotedAt(ctx context.Context, id int64, promotedAt time.Time) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// memberRepository implements MemberRepository using PostgreSQL.
type memberRepository struct {
	db *database.DB
}

// NewMemberRepository creates a new member repository.
func NewMemberRepository(db *database.DB) MemberRepository {
	return &memberRepository{db: db}
}

const memberColumns = `id, clan_id, rsn, rsn_normalised, rank_name, is_active,
	is_private, private_since_utc, last_promoted_at_utc, created_at, updated_at`

// Upsert inserts the member, or refreshes the display name and rank if the
// normalised name already exists for the clan.
func (r *memberRepository) Upsert(ctx context.Context, member *models.Member) error {
	q := database.GetQuerier(ctx, r.db)

	now := time.Now().UTC()
	member.CreatedAt = now
	member.UpdatedAt = now

	query := `
		INSERT INTO members (clan_id, rsn, rsn_normalised, rank_name, is_active,
			is_private, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (clan_id, rsn_normalised) DO UPDATE
		SET rsn = EXCLUDED.rsn,
		    rank_name = EXCLUDED.rank_name,
		    is_active = EXCLUDED.is_active,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`

	err := q.QueryRow(ctx, query,
		member.ClanID,
		member.RSN,
		member.RSNNormalised,
		member.RankName,
		member.IsActive,
		member.IsPrivate,
		member.CreatedAt,
		member.UpdatedAt,
	).Scan(&member.ID, &member.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert member: %w", err)
	}

	return nil
}

// GetByID retrieves a member by ID.
func (r *memberRepository) GetByID(ctx context.Context, id int64) (*models.Member, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`
	return scanMember(q.QueryRow(ctx, query, id))
}

// GetByRSN retrieves a member by normalised display name within a clan.
func (r *memberRepository) GetByRSN(ctx context.Context, clanID int64, rsnNormalised string) (*models.Member, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT ` + memberColumns + ` FROM members WHERE clan_id = $1 AND rsn_normalised = $2`
	return scanMember(q.QueryRow(ctx, query, clanID, rsnNormalised))
}

// ListActive returns all active members of a clan ordered by name.
func (r *memberRepository) ListActive(ctx context.Context, clanID int64) ([]*models.Member, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT ` + memberColumns + ` FROM members
		WHERE clan_id = $1 AND is_active
		ORDER BY rsn_normalised`

	rows, err := q.Query(ctx, query, clanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// UpdateRank records the member's current clan rank.
func (r *memberRepository) UpdateRank(ctx context.Context, id int64, rankName string) error {
	q := database.GetQuerier(ctx, r.db)

	query := `UPDATE members SET rank_name = $2, updated_at = NOW() WHERE id = $1`
	result, err := q.Exec(ctx, query, id, rankName)
	if err != nil {
		return fmt.Errorf("failed to update member rank: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// SetPrivacy records a profile visibility change. The private_since mark is
// set only on the transition to private and cleared when the profile opens
// up again, so it always reflects the start of the current private stretch.
func (r *memberRepository) SetPrivacy(ctx context.Context, id int64, private bool) error {
	q := database.GetQuerier(ctx, r.db)

	query := `
		UPDATE members
		SET is_private = $2,
			private_since_utc = CASE
				WHEN $2 AND NOT is_private THEN NOW()
				WHEN NOT $2 THEN NULL
				ELSE private_since_utc
			END,
			updated_at = NOW()
		WHERE id = $1`

	result, err := q.Exec(ctx, query, id, private)
	if err != nil {
		return fmt.Errorf("failed to set member privacy: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// SetLastPromotedAt records when the member was last promoted.
func (r *memberRepository) SetLastPromotedAt(ctx context.Context, id int64, promotedAt time.Time) error {
	q := database.GetQuerier(ctx, r.db)

	query := `UPDATE members SET last_promoted_at_utc = $2, updated_at = NOW() WHERE id = $1`
	result, err := q.Exec(ctx, query, id, promotedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to set member promotion time: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// SetActive marks a member as present in or absent from the clan roster.
func (r *memberRepository) SetActive(ctx context.Context, id int64, active bool) error {
	q := database.GetQuerier(ctx, r.db)

	query := `UPDATE members SET is_active = $2, updated_at = NOW() WHERE id = $1`
	result, err := q.Exec(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to set member active: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanMember(row pgx.Row) (*models.Member, error) {
	var member models.Member
	err := row.Scan(
		&member.ID,
		&member.ClanID,
		&member.RSN,
		&member.RSNNormalised,
		&member.RankName,
		&member.IsActive,
		&member.IsPrivate,
		&member.PrivateSince,
		&member.LastPromotedAt,
		&member.CreatedAt,
		&member.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan member: %w", err)
	}
	return &member, nil
}

// Ensure memberRepository implements MemberRepository at compile time.
var _ MemberRepository = (*memberRepository)(nil)
