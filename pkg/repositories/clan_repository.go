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

// ClanRepository defines the interface for clan data access.
type ClanRepository interface {
	Create(ctx context.Context, clan *models.Clan) error
	GetByID(ctx context.Context, id int64) (*models.Clan, error)
	GetByKey(ctx context.Context, clanKey string) (*models.Clan, error)
	ListEnabled(ctx context.Context) ([]*models.Clan, error)
	Update(ctx context.Context, clan *models.Clan) error
	SetEnabled(ctx context.Context, id int64, enabled bool) error
}

// clanRepository implements ClanRepository using PostgreSQL.
type clanRepository struct {
	db *database.DB
}

// NewClanRepository creates a new clan repository.
func NewClanRepository(db *database.DB) ClanRepository {
	return &clanRepository{db: db}
}

const clanColumns = `id, clan_key, clan_name, timezone, reset_weekday, reset_time,
	is_enabled, inactive_at_utc, rank_order, max_rank_by_capping,
	discord_channel_id, discord_role_ids, created_at, updated_at`

// Create inserts a new clan. The clan key must be unique.
func (r *clanRepository) Create(ctx context.Context, clan *models.Clan) error {
	q := database.GetQuerier(ctx, r.db)

	now := time.Now().UTC()
	clan.CreatedAt = now
	clan.UpdatedAt = now

	rankOrder, roleIDs, err := marshalClanLists(clan)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO clans (clan_key, clan_name, timezone, reset_weekday, reset_time,
			is_enabled, rank_order, max_rank_by_capping,
			discord_channel_id, discord_role_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	err = q.QueryRow(ctx, query,
		clan.ClanKey,
		clan.ClanName,
		clan.Timezone,
		clan.ResetWeekday,
		clan.ResetTime,
		clan.IsEnabled,
		rankOrder,
		clan.MaxRankByCapping,
		clan.DiscordChannelID,
		roleIDs,
		clan.CreatedAt,
		clan.UpdatedAt,
	).Scan(&clan.ID)
	if err != nil {
		return fmt.Errorf("failed to create clan: %w", err)
	}

	return nil
}

// GetByID retrieves a clan by its ID.
func (r *clanRepository) GetByID(ctx context.Context, id int64) (*models.Clan, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT ` + clanColumns + ` FROM clans WHERE id = $1`
	return scanClan(q.QueryRow(ctx, query, id))
}

// GetByKey retrieves a clan by its stable key.
func (r *clanRepository) GetByKey(ctx context.Context, clanKey string) (*models.Clan, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT ` + clanColumns + ` FROM clans WHERE clan_key = $1`
	return scanClan(q.QueryRow(ctx, query, clanKey))
}

// ListEnabled returns all clans that are currently being tracked.
func (r *clanRepository) ListEnabled(ctx context.Context) ([]*models.Clan, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT ` + clanColumns + ` FROM clans WHERE is_enabled ORDER BY id`
	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list clans: %w", err)
	}
	defer rows.Close()

	var clans []*models.Clan
	for rows.Next() {
		clan, err := scanClan(rows)
		if err != nil {
			return nil, err
		}
		clans = append(clans, clan)
	}
	return clans, rows.Err()
}

// Update rewrites the clan's configuration.
func (r *clanRepository) Update(ctx context.Context, clan *models.Clan) error {
	q := database.GetQuerier(ctx, r.db)

	clan.UpdatedAt = time.Now().UTC()
	rankOrder, roleIDs, err := marshalClanLists(clan)
	if err != nil {
		return err
	}

	query := `
		UPDATE clans
		SET clan_name = $2, timezone = $3, reset_weekday = $4, reset_time = $5,
			rank_order = $6, max_rank_by_capping = $7,
			discord_channel_id = $8, discord_role_ids = $9, updated_at = $10
		WHERE id = $1`

	result, err := q.Exec(ctx, query,
		clan.ID,
		clan.ClanName,
		clan.Timezone,
		clan.ResetWeekday,
		clan.ResetTime,
		rankOrder,
		clan.MaxRankByCapping,
		clan.DiscordChannelID,
		roleIDs,
		clan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update clan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// SetEnabled flips tracking on or off. Disabling records when the clan went
// inactive; enabling clears it.
func (r *clanRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	q := database.GetQuerier(ctx, r.db)

	query := `
		UPDATE clans
		SET is_enabled = $2,
			inactive_at_utc = CASE WHEN $2 THEN NULL ELSE NOW() END,
			updated_at = NOW()
		WHERE id = $1`

	result, err := q.Exec(ctx, query, id, enabled)
	if err != nil {
		return fmt.Errorf("failed to set clan enabled: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func marshalClanLists(clan *models.Clan) (rankOrder, roleIDs []byte, err error) {
	if clan.RankOrder == nil {
		clan.RankOrder = []string{}
	}
	if clan.DiscordRoleIDs == nil {
		clan.DiscordRoleIDs = []string{}
	}
	rankOrder, err = json.Marshal(clan.RankOrder)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal rank order: %w", err)
	}
	roleIDs, err = json.Marshal(clan.DiscordRoleIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal role ids: %w", err)
	}
	return rankOrder, roleIDs, nil
}

func scanClan(row pgx.Row) (*models.Clan, error) {
	var clan models.Clan
	var rankOrder, roleIDs []byte

	err := row.Scan(
		&clan.ID,
		&clan.ClanKey,
		&clan.ClanName,
		&clan.Timezone,
		&clan.ResetWeekday,
		&clan.ResetTime,
		&clan.IsEnabled,
		&clan.InactiveAt,
		&rankOrder,
		&clan.MaxRankByCapping,
		&clan.DiscordChannelID,
		&roleIDs,
		&clan.CreatedAt,
		&clan.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan clan: %w", err)
	}

	if err := json.Unmarshal(rankOrder, &clan.RankOrder); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rank order: %w", err)
	}
	if err := json.Unmarshal(roleIDs, &clan.DiscordRoleIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal role ids: %w", err)
	}
	return &clan, nil
}

// Ensure clanRepository implements ClanRepository at compile time.
var _ ClanRepository = (*clanRepository)(nil)
