// Package services holds the ingestion, promotion, and backfill pipelines.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rs24k/captracker/pkg/apperrors"
	"github.com/rs24k/captracker/pkg/capweek"
	"github.com/rs24k/captracker/pkg/database"
	"github.com/rs24k/captracker/pkg/models"
	"github.com/rs24k/captracker/pkg/repositories"
	"github.com/rs24k/captracker/pkg/rules"
	"github.com/rs24k/captracker/pkg/runemetrics"
)

// ProfileFetcher is the slice of the RuneMetrics client the ingester needs.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, rsn string, activities int) (*runemetrics.Profile, error)
}

// SyncService ingests one member's activity feed and XP snapshot.
type SyncService interface {
	Sync(ctx context.Context, memberID int64, maxActivities int) (*models.SyncResult, error)
}

type syncService struct {
	db         *database.DB
	clans      repositories.ClanRepository
	members    repositories.MemberRepository
	rules      repositories.RuleRepository
	activities repositories.ActivityRepository
	caps       repositories.CapRepository
	snapshots  repositories.SnapshotRepository
	profiles   ProfileFetcher
	logger     *zap.Logger
}

// NewSyncService creates the ingestion service.
func NewSyncService(
	db *database.DB,
	clans repositories.ClanRepository,
	members repositories.MemberRepository,
	rules repositories.RuleRepository,
	activities repositories.ActivityRepository,
	caps repositories.CapRepository,
	snapshots repositories.SnapshotRepository,
	profiles ProfileFetcher,
	logger *zap.Logger,
) SyncService {
	return &syncService{
		db:         db,
		clans:      clans,
		members:    members,
		rules:      rules,
		activities: activities,
		caps:       caps,
		snapshots:  snapshots,
		profiles:   profiles,
		logger:     logger,
	}
}

// Sync fetches the member's profile and folds it into storage. All activity
// writes of one sync share a transaction; the XP snapshot is written
// separately afterwards so a snapshot failure cannot roll back activities.
func (s *syncService) Sync(ctx context.Context, memberID int64, maxActivities int) (*models.SyncResult, error) {
	syncID := uuid.New().String()
	result := &models.SyncResult{MemberID: memberID}

	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("failed to resolve member %d: %w", memberID, err)
	}
	result.ClanID = member.ClanID
	result.RSN = member.RSN

	clan, err := s.clans.GetByID(ctx, member.ClanID)
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("failed to resolve clan %d: %w", member.ClanID, err)
	}

	logger := s.logger.With(
		zap.String("sync_id", syncID),
		zap.Int64("member_id", member.ID),
		zap.String("rsn", member.RSN))

	profile, err := s.profiles.FetchProfile(ctx, member.RSN, maxActivities)
	if err != nil {
		if errors.Is(err, apperrors.ErrPrivateProfile) {
			if err := s.members.SetPrivacy(ctx, member.ID, true); err != nil {
				result.Error = err.Error()
				return result, fmt.Errorf("failed to mark member private: %w", err)
			}
			logger.Info("profile is private, sync skipped")
			result.OK = true
			result.Status = models.SyncStatusPrivateProfile
			return result, nil
		}
		result.Error = err.Error()
		return result, fmt.Errorf("failed to fetch profile: %w", err)
	}

	if member.IsPrivate {
		if err := s.members.SetPrivacy(ctx, member.ID, false); err != nil {
			result.Error = err.Error()
			return result, fmt.Errorf("failed to clear private flag: %w", err)
		}
	}

	ruleList, err := s.rules.ListForClan(ctx, clan.ID)
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("failed to load rules: %w", err)
	}

	result.FetchedActivities = len(profile.Activities)

	err = database.InTransaction(ctx, s.db, func(txCtx context.Context) error {
		for _, raw := range profile.Activities {
			inserted, capped, err := s.ingestActivity(txCtx, clan, member, raw, ruleList, logger)
			if err != nil {
				return err
			}
			if inserted {
				result.InsertedActivities++
			}
			if capped {
				result.CapDetected = true
			}
		}
		return nil
	})
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("failed to ingest activities: %w", err)
	}

	snapshotInserted, err := s.storeSnapshot(ctx, member.ID, profile)
	if err != nil {
		// Activities are already committed; a snapshot failure only
		// costs us one data point.
		logger.Warn("failed to store xp snapshot", zap.Error(err))
	}
	result.XPSnapshotInserted = snapshotInserted

	result.OK = true
	result.Status = models.SyncStatusOK
	logger.Info("member sync complete",
		zap.Int("fetched", result.FetchedActivities),
		zap.Int("inserted", result.InsertedActivities),
		zap.Bool("cap_detected", result.CapDetected),
		zap.Bool("snapshot_inserted", result.XPSnapshotInserted))
	return result, nil
}

// ingestActivity stores one feed item. Malformed items are skipped, never
// fatal: one broken entry must not abort the rest of the batch.
func (s *syncService) ingestActivity(
	ctx context.Context,
	clan *models.Clan,
	member *models.Member,
	raw runemetrics.RawActivity,
	ruleList []*models.Rule,
	logger *zap.Logger,
) (inserted, capped bool, err error) {
	text := runemetrics.TrimActivityText(raw.Text)
	details := strings.TrimSpace(raw.Details)
	if text == "" {
		return false, false, nil
	}

	occurredAt, err := runemetrics.ParseActivityDate(raw.Date)
	if err != nil {
		logger.Debug("skipping activity with unparseable date",
			zap.String("date", raw.Date),
			zap.String("text", text))
		return false, false, nil
	}

	activity := &models.Activity{
		MemberID:   member.ID,
		ClanID:     clan.ID,
		Hash:       runemetrics.ActivityHash(member.ID, occurredAt, text, details),
		OccurredAt: occurredAt,
		Text:       text,
		Details:    details,
	}

	rule := rules.Match(text, details, ruleList)
	if rule != nil {
		activity.RuleID = &rule.ID
	}

	inserted, err = s.activities.Insert(ctx, activity)
	if err != nil {
		return false, false, err
	}
	if !inserted || rule == nil {
		return inserted, false, nil
	}

	// Weekly facts are keyed by the window the activity happened in, not
	// the window we ingested it in.
	window := capweek.ForInstant(occurredAt, clan.Timezone, clan.ResetWeekday, clan.ResetTime)

	switch rule.Purpose {
	case models.PurposeCapDetection:
		err = s.caps.UpsertCap(ctx, &models.CapRecord{
			ClanID:       clan.ID,
			MemberID:     member.ID,
			WeekStartUTC: window.StartUTC,
			WeekEndUTC:   window.EndUTC,
			CappedAt:     occurredAt,
			RuleID:       &rule.ID,
		})
		if err != nil {
			return false, false, err
		}
		return true, true, nil

	case models.PurposeVisitDetection:
		err = s.caps.UpsertVisit(ctx, &models.VisitRecord{
			ClanID:       clan.ID,
			MemberID:     member.ID,
			WeekStartUTC: window.StartUTC,
			WeekEndUTC:   window.EndUTC,
			VisitedAt:    occurredAt,
			RuleID:       &rule.ID,
		})
		if err != nil {
			return false, false, err
		}
	}

	return true, false, nil
}

func (s *syncService) storeSnapshot(ctx context.Context, memberID int64, profile *runemetrics.Profile) (bool, error) {
	snap, err := runemetrics.ParseSnapshot(profile)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}

	return s.snapshots.Insert(ctx, &models.XPSnapshot{
		MemberID:   memberID,
		TotalXP:    snap.TotalXP,
		Skills:     snap.Skills,
		Hash:       snap.Hash,
		CapturedAt: time.Now().UTC(),
	})
}

// Ensure syncService implements SyncService at compile time.
var _ SyncService = (*syncService)(nil)
