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

// RuleRepository defines the interface for classification rule access.
type RuleRepository interface {
	Create(ctx context.Context, rule *models.Rule) error
	// ListForClan returns enabled rules in evaluation order: clan-specific
	// before global, cap before visit before anything else, oldest first.
	ListForClan(ctx context.Context, clanID int64) ([]*models.Rule, error)
	FindGlobal(ctx context.Context, purpose, matchKind, matchValue string) (*models.Rule, error)
	SetEnabled(ctx context.Context, id int64, enabled bool) error
}

// ruleRepository implements RuleRepository using PostgreSQL.
type ruleRepository struct {
	db *database.DB
}

// NewRuleRepository creates a new rule repository.
func NewRuleRepository(db *database.DB) RuleRepository {
	return &ruleRepository{db: db}
}

// Create inserts a new classification rule.
func (r *ruleRepository) Create(ctx context.Context, rule *models.Rule) error {
	q := database.GetQuerier(ctx, r.db)

	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	query := `
		INSERT INTO activity_rules (clan_id, purpose, match_kind, match_value,
			is_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := q.QueryRow(ctx, query,
		rule.ClanID,
		rule.Purpose,
		rule.MatchKind,
		rule.MatchValue,
		rule.IsEnabled,
		rule.CreatedAt,
		rule.UpdatedAt,
	).Scan(&rule.ID)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	return nil
}

// ListForClan returns the clan's effective rule list. The ordering here is
// the classification order: the first matching rule in this list wins.
func (r *ruleRepository) ListForClan(ctx context.Context, clanID int64) ([]*models.Rule, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `
		SELECT id, clan_id, purpose, match_kind, match_value, is_enabled, created_at, updated_at
		FROM activity_rules
		WHERE is_enabled AND (clan_id = $1 OR clan_id IS NULL)
		ORDER BY (clan_id IS NULL),
			CASE purpose WHEN $2 THEN 0 WHEN $3 THEN 1 ELSE 2 END,
			id`

	rows, err := q.Query(ctx, query, clanID, models.PurposeCapDetection, models.PurposeVisitDetection)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// FindGlobal looks up a global rule by its full definition. Used by the
// startup seeder to keep reruns idempotent.
func (r *ruleRepository) FindGlobal(ctx context.Context, purpose, matchKind, matchValue string) (*models.Rule, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `
		SELECT id, clan_id, purpose, match_kind, match_value, is_enabled, created_at, updated_at
		FROM activity_rules
		WHERE clan_id IS NULL AND purpose = $1 AND match_kind = $2 AND match_value = $3`

	return scanRule(q.QueryRow(ctx, query, purpose, matchKind, matchValue))
}

// SetEnabled flips a rule on or off without deleting its history links.
func (r *ruleRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	q := database.GetQuerier(ctx, r.db)

	query := `UPDATE activity_rules SET is_enabled = $2, updated_at = NOW() WHERE id = $1`
	result, err := q.Exec(ctx, query, id, enabled)
	if err != nil {
		return fmt.Errorf("failed to set rule enabled: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanRule(row pgx.Row) (*models.Rule, error) {
	var rule models.Rule
	err := row.Scan(
		&rule.ID,
		&rule.ClanID,
		&rule.Purpose,
		&rule.MatchKind,
		&rule.MatchValue,
		&rule.IsEnabled,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}
	return &rule, nil
}

// Ensure ruleRepository implements RuleRepository at compile time.
var _ RuleRepository = (*ruleRepository)(nil)
