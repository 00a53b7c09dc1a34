package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rs24k/captracker/pkg/capweek"
	"github.com/rs24k/captracker/pkg/database"
	"github.com/rs24k/captracker/pkg/models"
	"github.com/rs24k/captracker/pkg/repositories"
	"github.com/rs24k/captracker/pkg/rules"
)

// Batch limits for one backfill pass.
const (
	minBackfillLimit = 1
	maxBackfillLimit = 5000
)

// BackfillService re-runs classification over activities that were stored
// before their matching rule existed.
type BackfillService interface {
	Process(ctx context.Context, clanID int64, limit int) (*models.BackfillResult, error)
	ProcessAllClans(ctx context.Context, limit int) ([]*models.BackfillResult, error)
}

type backfillService struct {
	db         *database.DB
	clans      repositories.ClanRepository
	rules      repositories.RuleRepository
	activities repositories.ActivityRepository
	caps       repositories.CapRepository
	logger     *zap.Logger
}

// NewBackfillService creates the backfill service.
func NewBackfillService(
	db *database.DB,
	clans repositories.ClanRepository,
	ruleRepo repositories.RuleRepository,
	activities repositories.ActivityRepository,
	caps repositories.CapRepository,
	logger *zap.Logger,
) BackfillService {
	return &backfillService{
		db:         db,
		clans:      clans,
		rules:      ruleRepo,
		activities: activities,
		caps:       caps,
		logger:     logger,
	}
}

// Process classifies up to limit unclassified activities for one clan.
// The whole pass commits or rolls back together.
func (s *backfillService) Process(ctx context.Context, clanID int64, limit int) (*models.BackfillResult, error) {
	if limit < minBackfillLimit {
		limit = minBackfillLimit
	}
	if limit > maxBackfillLimit {
		limit = maxBackfillLimit
	}

	result := &models.BackfillResult{ClanID: clanID}

	clan, err := s.clans.GetByID(ctx, clanID)
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("failed to resolve clan %d: %w", clanID, err)
	}

	ruleList, err := s.rules.ListForClan(ctx, clanID)
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("failed to load rules: %w", err)
	}

	err = database.InTransaction(ctx, s.db, func(txCtx context.Context) error {
		pending, err := s.activities.ListUnclassified(txCtx, clanID, limit)
		if err != nil {
			return err
		}
		result.Fetched = len(pending)

		for _, activity := range pending {
			rule := rules.Match(activity.Text, activity.Details, ruleList)
			if rule == nil {
				continue
			}
			if err := s.activities.SetRule(txCtx, activity.ID, rule.ID); err != nil {
				return err
			}
			result.UpdatedRuleID++

			window := capweek.ForInstant(activity.OccurredAt, clan.Timezone, clan.ResetWeekday, clan.ResetTime)
			switch rule.Purpose {
			case models.PurposeCapDetection:
				err = s.caps.UpsertCap(txCtx, &models.CapRecord{
					ClanID:       clanID,
					MemberID:     activity.MemberID,
					WeekStartUTC: window.StartUTC,
					WeekEndUTC:   window.EndUTC,
					CappedAt:     activity.OccurredAt,
					RuleID:       &rule.ID,
				})
				if err != nil {
					return err
				}
				result.CapsUpserted++

			case models.PurposeVisitDetection:
				err = s.caps.UpsertVisit(txCtx, &models.VisitRecord{
					ClanID:       clanID,
					MemberID:     activity.MemberID,
					WeekStartUTC: window.StartUTC,
					WeekEndUTC:   window.EndUTC,
					VisitedAt:    activity.OccurredAt,
					RuleID:       &rule.ID,
				})
				if err != nil {
					return err
				}
				result.VisitsUpserted++
			}
		}
		return nil
	})
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("failed to backfill clan %d: %w", clanID, err)
	}

	result.OK = true
	s.logger.Info("backfill pass complete",
		zap.Int64("clan_id", clanID),
		zap.Int("fetched", result.Fetched),
		zap.Int("classified", result.UpdatedRuleID),
		zap.Int("caps", result.CapsUpserted),
		zap.Int("visits", result.VisitsUpserted))
	return result, nil
}

// ProcessAllClans runs a backfill pass for every enabled clan. One clan's
// failure does not stop the rest.
func (s *backfillService) ProcessAllClans(ctx context.Context, limit int) ([]*models.BackfillResult, error) {
	clans, err := s.clans.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clans: %w", err)
	}

	results := make([]*models.BackfillResult, 0, len(clans))
	for _, clan := range clans {
		result, err := s.Process(ctx, clan.ID, limit)
		if err != nil {
			s.logger.Warn("backfill failed for clan",
				zap.Int64("clan_id", clan.ID),
				zap.Error(err))
		}
		results = append(results, result)
	}
	return results, nil
}

// Ensure backfillService implements BackfillService at compile time.
var _ BackfillService = (*backfillService)(nil)
