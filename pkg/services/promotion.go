package services

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/rs24k/captracker/pkg/capweek"
	"github.com/rs24k/captracker/pkg/discord"
	"github.com/rs24k/captracker/pkg/models"
	"github.com/rs24k/captracker/pkg/repositories"
	"github.com/rs24k/captracker/pkg/roster"
)

// RosterFetcher is the slice of the roster client the detector needs.
type RosterFetcher interface {
	Fetch(ctx context.Context, clanName string) ([]roster.Entry, error)
}

// PromotionService decides whether a member who capped qualifies for a
// rank-up, and notifies the clan's Discord channel at most once per reset
// window.
type PromotionService interface {
	Evaluate(ctx context.Context, memberID int64) error
}

type promotionService struct {
	clans      repositories.ClanRepository
	members    repositories.MemberRepository
	activities repositories.ActivityRepository
	rosters    RosterFetcher
	notifier   discord.Notifier
	logger     *zap.Logger
	now        func() time.Time
}

// NewPromotionService creates the promotion detector.
func NewPromotionService(
	clans repositories.ClanRepository,
	members repositories.MemberRepository,
	activities repositories.ActivityRepository,
	rosters RosterFetcher,
	notifier discord.Notifier,
	logger *zap.Logger,
) PromotionService {
	return &promotionService{
		clans:      clans,
		members:    members,
		activities: activities,
		rosters:    rosters,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// Evaluate runs the rank-up decision for one member against the current
// reset window. Every early return leaves the member eligible for
// re-evaluation on the next cycle; only a written marker consumes the
// week's single evaluation.
func (s *promotionService) Evaluate(ctx context.Context, memberID int64) error {
	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return fmt.Errorf("failed to resolve member %d: %w", memberID, err)
	}
	clan, err := s.clans.GetByID(ctx, member.ClanID)
	if err != nil {
		return fmt.Errorf("failed to resolve clan %d: %w", member.ClanID, err)
	}

	window := capweek.Current(s.now().UTC(), clan.Timezone, clan.ResetWeekday, clan.ResetTime)
	logger := s.logger.With(
		zap.Int64("member_id", member.ID),
		zap.String("rsn", member.RSN),
		zap.Stringer("window", window))

	// One evaluation per member per window, whatever its outcome was.
	for _, marker := range []string{models.MarkerRankUpRequired, models.MarkerRankUpProcessed} {
		exists, err := s.activities.MarkerExistsInWindow(ctx, member.ID, marker, window.StartUTC, window.EndUTC)
		if err != nil {
			return fmt.Errorf("failed to check weekly marker: %w", err)
		}
		if exists {
			return nil
		}
	}

	currentIdx := rankIndex(clan.RankOrder, member.RankName)
	if currentIdx < 0 {
		logger.Debug("member rank not in clan rank order", zap.String("rank", member.RankName))
		return nil
	}

	maxIdx := rankIndex(clan.RankOrder, clan.MaxRankByCapping)
	if maxIdx < 0 {
		maxIdx = len(clan.RankOrder) - 1
	}
	if currentIdx >= maxIdx {
		// Already at or above the promotion ceiling. No marker: the
		// member is re-evaluated next cycle in case the config changes.
		return nil
	}

	currentRank := clan.RankOrder[currentIdx]
	nextRank := clan.RankOrder[currentIdx+1]

	// The hiscores roster is the authority on the member's actual rank;
	// a promotion applied in-game but not yet synced must not notify.
	entries, err := s.rosters.Fetch(ctx, clan.ClanName)
	if err != nil {
		logger.Warn("roster fetch failed, promotion check skipped this cycle", zap.Error(err))
		return nil
	}
	if entry, found := roster.Lookup(entries, member.RSN); found {
		rosterIdx := rankIndex(clan.RankOrder, entry.Rank)
		if rosterIdx >= currentIdx+1 {
			if entry.Rank != member.RankName {
				if err := s.members.UpdateRank(ctx, member.ID, entry.Rank); err != nil {
					return fmt.Errorf("failed to update member rank: %w", err)
				}
			}
			logger.Info("promotion already applied on roster", zap.String("roster_rank", entry.Rank))
			return s.writeMarker(ctx, member, clan, window, models.MarkerRankUpProcessed,
				fmt.Sprintf("Roster already shows %s", entry.Rank), currentRank, nextRank)
		}
	}

	if member.LastPromotedAt != nil && window.Contains(*member.LastPromotedAt) {
		logger.Info("member already promoted this window")
		return s.writeMarker(ctx, member, clan, window, models.MarkerRankUpProcessed,
			"Promoted earlier this window", currentRank, nextRank)
	}

	promoHash := promotionHash(member.ID, window.StartUTC, currentRank, nextRank)
	exists, err := s.activities.HashExists(ctx, member.ID, promoHash)
	if err != nil {
		return fmt.Errorf("failed to check promotion hash: %w", err)
	}
	if exists {
		return nil
	}

	message := fmt.Sprintf("%s capped and qualifies for promotion: %s → %s", member.RSN, currentRank, nextRank)
	required := &models.Activity{
		MemberID:   member.ID,
		ClanID:     clan.ID,
		Hash:       promoHash,
		OccurredAt: s.now().UTC(),
		Text:       models.MarkerRankUpRequired,
		Details:    message,
	}
	if _, err := s.activities.Insert(ctx, required); err != nil {
		return fmt.Errorf("failed to write rank-up marker: %w", err)
	}

	content := message
	if mentions := discord.RoleMentions(clan.DiscordRoleIDs); mentions != "" {
		content = mentions + " " + message
	}
	result := s.notifier.Send(ctx, clan.DiscordChannelID, content)
	if result.OK {
		logger.Info("promotion notification sent", zap.String("next_rank", nextRank))
	} else {
		// Delivery failure is recorded on the marker, never escalated:
		// the weekly guard must still engage.
		note := fmt.Sprintf("Discord send failed (HTTP %d): %s", result.StatusCode, result.Err)
		logger.Warn("promotion notification failed",
			zap.Int("status", result.StatusCode),
			zap.String("error", result.Err))
		if err := s.activities.AppendDetails(ctx, required.ID, note); err != nil {
			logger.Warn("failed to annotate rank-up marker", zap.Error(err))
		}
	}

	return s.writeMarker(ctx, member, clan, window, models.MarkerRankUpProcessed,
		message, currentRank, nextRank)
}

// writeMarker inserts a marker activity for the window. The hash mixes in
// the marker text so required and processed markers never collide.
func (s *promotionService) writeMarker(
	ctx context.Context,
	member *models.Member,
	clan *models.Clan,
	window capweek.Window,
	text, details, currentRank, nextRank string,
) error {
	sum := sha256.Sum256(fmt.Appendf(nil, "%d|%s|%s>%s|%s",
		member.ID, capweek.Format(window.StartUTC), currentRank, nextRank, text))
	marker := &models.Activity{
		MemberID:   member.ID,
		ClanID:     clan.ID,
		Hash:       fmt.Sprintf("%x", sum),
		OccurredAt: s.now().UTC(),
		Text:       text,
		Details:    details,
	}
	if _, err := s.activities.Insert(ctx, marker); err != nil {
		return fmt.Errorf("failed to write %q marker: %w", text, err)
	}
	return nil
}

// promotionHash is the idempotence key for one member's rank-up within one
// window.
func promotionHash(memberID int64, windowStartUTC time.Time, currentRank, nextRank string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%d|%s|%s>%s",
		memberID, capweek.Format(windowStartUTC), currentRank, nextRank))
	return fmt.Sprintf("%x", sum)
}

// rankIndex finds rank in the clan's ordered rank list, comparing
// normalised forms. Returns -1 when absent.
func rankIndex(rankOrder []string, rank string) int {
	needle := normaliseRank(rank)
	if needle == "" {
		return -1
	}
	for i, candidate := range rankOrder {
		if normaliseRank(candidate) == needle {
			return i
		}
	}
	return -1
}

// normaliseRank folds a rank name for comparison: lowercase, runs of
// whitespace collapsed, anything that is not a letter, digit, or space
// dropped.
func normaliseRank(rank string) string {
	var b strings.Builder
	pendingSpace := false
	for _, r := range rank {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Ensure promotionService implements PromotionService at compile time.
var _ PromotionService = (*promotionService)(nil)
