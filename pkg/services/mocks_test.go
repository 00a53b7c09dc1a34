package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs24k/captracker/pkg/apperrors"
	"github.com/rs24k/captracker/pkg/discord"
	"github.com/rs24k/captracker/pkg/models"
	"github.com/rs24k/captracker/pkg/roster"
	"github.com/rs24k/captracker/pkg/runemetrics"
)

// mockClanRepo implements repositories.ClanRepository for testing.
type mockClanRepo struct {
	clans map[int64]*models.Clan
}

func (m *mockClanRepo) Create(_ context.Context, clan *models.Clan) error {
	m.clans[clan.ID] = clan
	return nil
}

func (m *mockClanRepo) GetByID(_ context.Context, id int64) (*models.Clan, error) {
	if clan, ok := m.clans[id]; ok {
		return clan, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockClanRepo) GetByKey(_ context.Context, clanKey string) (*models.Clan, error) {
	for _, clan := range m.clans {
		if clan.ClanKey == clanKey {
			return clan, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockClanRepo) ListEnabled(_ context.Context) ([]*models.Clan, error) {
	var out []*models.Clan
	for _, clan := range m.clans {
		if clan.IsEnabled {
			out = append(out, clan)
		}
	}
	return out, nil
}

func (m *mockClanRepo) Update(_ context.Context, clan *models.Clan) error {
	m.clans[clan.ID] = clan
	return nil
}

func (m *mockClanRepo) SetEnabled(_ context.Context, id int64, enabled bool) error {
	clan, ok := m.clans[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	clan.IsEnabled = enabled
	return nil
}

// mockMemberRepo implements repositories.MemberRepository for testing.
type mockMemberRepo struct {
	members      map[int64]*models.Member
	privacyCalls []bool
	rankUpdates  []string
}

func (m *mockMemberRepo) Upsert(_ context.Context, member *models.Member) error {
	if member.ID == 0 {
		member.ID = int64(len(m.members) + 1)
	}
	m.members[member.ID] = member
	return nil
}

func (m *mockMemberRepo) GetByID(_ context.Context, id int64) (*models.Member, error) {
	if member, ok := m.members[id]; ok {
		return member, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockMemberRepo) GetByRSN(_ context.Context, clanID int64, rsnNormalised string) (*models.Member, error) {
	for _, member := range m.members {
		if member.ClanID == clanID && member.RSNNormalised == rsnNormalised {
			return member, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockMemberRepo) ListActive(_ context.Context, clanID int64) ([]*models.Member, error) {
	var out []*models.Member
	for _, member := range m.members {
		if member.ClanID == clanID && member.IsActive {
			out = append(out, member)
		}
	}
	return out, nil
}

func (m *mockMemberRepo) UpdateRank(_ context.Context, id int64, rankName string) error {
	member, ok := m.members[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	member.RankName = rankName
	m.rankUpdates = append(m.rankUpdates, rankName)
	return nil
}

func (m *mockMemberRepo) SetPrivacy(_ context.Context, id int64, private bool) error {
	member, ok := m.members[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if private && !member.IsPrivate {
		now := time.Now().UTC()
		member.PrivateSince = &now
	}
	if !private {
		member.PrivateSince = nil
	}
	member.IsPrivate = private
	m.privacyCalls = append(m.privacyCalls, private)
	return nil
}

func (m *mockMemberRepo) SetLastPromotedAt(_ context.Context, id int64, promotedAt time.Time) error {
	member, ok := m.members[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	member.LastPromotedAt = &promotedAt
	return nil
}

func (m *mockMemberRepo) SetActive(_ context.Context, id int64, active bool) error {
	member, ok := m.members[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	member.IsActive = active
	return nil
}

// mockRuleRepo implements repositories.RuleRepository for testing. Rules
// are returned in the order given, mirroring the repository's ordering
// contract.
type mockRuleRepo struct {
	rules []*models.Rule
}

func (m *mockRuleRepo) Create(_ context.Context, rule *models.Rule) error {
	rule.ID = int64(len(m.rules) + 1)
	m.rules = append(m.rules, rule)
	return nil
}

func (m *mockRuleRepo) ListForClan(_ context.Context, clanID int64) ([]*models.Rule, error) {
	var out []*models.Rule
	for _, rule := range m.rules {
		if !rule.IsEnabled {
			continue
		}
		if rule.ClanID == nil || *rule.ClanID == clanID {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (m *mockRuleRepo) FindGlobal(_ context.Context, purpose, matchKind, matchValue string) (*models.Rule, error) {
	for _, rule := range m.rules {
		if rule.ClanID == nil && rule.Purpose == purpose &&
			rule.MatchKind == matchKind && rule.MatchValue == matchValue {
			return rule, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockRuleRepo) SetEnabled(_ context.Context, id int64, enabled bool) error {
	for _, rule := range m.rules {
		if rule.ID == id {
			rule.IsEnabled = enabled
			return nil
		}
	}
	return apperrors.ErrNotFound
}

// mockActivityRepo implements repositories.ActivityRepository for testing,
// with the same (member_id, hash) dedupe the real table enforces.
type mockActivityRepo struct {
	activities []*models.Activity
	nextID     int64
	insertErr  error
}

func (m *mockActivityRepo) Insert(_ context.Context, activity *models.Activity) (bool, error) {
	if m.insertErr != nil {
		return false, m.insertErr
	}
	for _, existing := range m.activities {
		if existing.MemberID == activity.MemberID && existing.Hash == activity.Hash {
			return false, nil
		}
	}
	m.nextID++
	activity.ID = m.nextID
	copied := *activity
	m.activities = append(m.activities, &copied)
	return true, nil
}

func (m *mockActivityRepo) HashExists(_ context.Context, memberID int64, hash string) (bool, error) {
	for _, a := range m.activities {
		if a.MemberID == memberID && a.Hash == hash {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockActivityRepo) MarkerExistsInWindow(_ context.Context, memberID int64, text string, startUTC, endUTC time.Time) (bool, error) {
	for _, a := range m.activities {
		if a.MemberID == memberID && a.Text == text &&
			!a.OccurredAt.Before(startUTC) && a.OccurredAt.Before(endUTC) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockActivityRepo) ListUnclassified(_ context.Context, clanID int64, limit int) ([]*models.Activity, error) {
	var out []*models.Activity
	for _, a := range m.activities {
		if a.ClanID != clanID || a.RuleID != nil {
			continue
		}
		if a.Text == models.MarkerRankUpRequired || a.Text == models.MarkerRankUpProcessed {
			continue
		}
		out = append(out, a)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockActivityRepo) SetRule(_ context.Context, activityID int64, ruleID int64) error {
	for _, a := range m.activities {
		if a.ID == activityID {
			a.RuleID = &ruleID
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockActivityRepo) AppendDetails(_ context.Context, activityID int64, details string) error {
	for _, a := range m.activities {
		if a.ID == activityID {
			if a.Details == "" {
				a.Details = details
			} else {
				a.Details = a.Details + " | " + details
			}
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockActivityRepo) ListRecentByMember(_ context.Context, memberID int64, limit int) ([]*models.Activity, error) {
	var out []*models.Activity
	for i := len(m.activities) - 1; i >= 0 && len(out) < limit; i-- {
		if m.activities[i].MemberID == memberID {
			out = append(out, m.activities[i])
		}
	}
	return out, nil
}

func (m *mockActivityRepo) byText(memberID int64, text string) []*models.Activity {
	var out []*models.Activity
	for _, a := range m.activities {
		if a.MemberID == memberID && a.Text == text {
			out = append(out, a)
		}
	}
	return out
}

// mockCapRepo implements repositories.CapRepository for testing.
type mockCapRepo struct {
	caps   map[string]*models.CapRecord
	visits map[string]*models.VisitRecord
}

func newMockCapRepo() *mockCapRepo {
	return &mockCapRepo{
		caps:   make(map[string]*models.CapRecord),
		visits: make(map[string]*models.VisitRecord),
	}
}

func weekKey(clanID, memberID int64, weekStartUTC time.Time) string {
	return fmt.Sprintf("%d|%d|%d", clanID, memberID, weekStartUTC.UTC().Unix())
}

func (m *mockCapRepo) UpsertCap(_ context.Context, record *models.CapRecord) error {
	copied := *record
	m.caps[weekKey(record.ClanID, record.MemberID, record.WeekStartUTC)] = &copied
	return nil
}

func (m *mockCapRepo) UpsertVisit(_ context.Context, visit *models.VisitRecord) error {
	copied := *visit
	m.visits[weekKey(visit.ClanID, visit.MemberID, visit.WeekStartUTC)] = &copied
	return nil
}

func (m *mockCapRepo) GetCap(_ context.Context, clanID, memberID int64, weekStartUTC time.Time) (*models.CapRecord, error) {
	if record, ok := m.caps[weekKey(clanID, memberID, weekStartUTC)]; ok {
		return record, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockCapRepo) ListCapsInWindow(_ context.Context, clanID int64, weekStartUTC time.Time) ([]*models.CapRecord, error) {
	var out []*models.CapRecord
	for _, record := range m.caps {
		if record.ClanID == clanID && record.WeekStartUTC.Equal(weekStartUTC) {
			out = append(out, record)
		}
	}
	return out, nil
}

func (m *mockCapRepo) CountVisitsInWindow(_ context.Context, clanID int64, weekStartUTC time.Time) (int, error) {
	count := 0
	for _, visit := range m.visits {
		if visit.ClanID == clanID && visit.WeekStartUTC.Equal(weekStartUTC) {
			count++
		}
	}
	return count, nil
}

// mockSnapshotRepo implements repositories.SnapshotRepository for testing.
type mockSnapshotRepo struct {
	snapshots []*models.XPSnapshot
	insertErr error
}

func (m *mockSnapshotRepo) Insert(_ context.Context, snapshot *models.XPSnapshot) (bool, error) {
	if m.insertErr != nil {
		return false, m.insertErr
	}
	for _, existing := range m.snapshots {
		if existing.MemberID == snapshot.MemberID && existing.Hash == snapshot.Hash {
			return false, nil
		}
	}
	snapshot.ID = int64(len(m.snapshots) + 1)
	copied := *snapshot
	m.snapshots = append(m.snapshots, &copied)
	return true, nil
}

func (m *mockSnapshotRepo) Latest(_ context.Context, memberID int64) (*models.XPSnapshot, error) {
	var latest *models.XPSnapshot
	for _, s := range m.snapshots {
		if s.MemberID == memberID && (latest == nil || s.CapturedAt.After(latest.CapturedAt)) {
			latest = s
		}
	}
	if latest == nil {
		return nil, apperrors.ErrNotFound
	}
	return latest, nil
}

func (m *mockSnapshotRepo) LatestCapturedAt(_ context.Context, memberID int64) (*time.Time, error) {
	latest, err := m.Latest(context.Background(), memberID)
	if err != nil {
		return nil, nil
	}
	capturedAt := latest.CapturedAt
	return &capturedAt, nil
}

// mockProfileFetcher implements ProfileFetcher for testing.
type mockProfileFetcher struct {
	profile *runemetrics.Profile
	err     error
	calls   int
}

func (m *mockProfileFetcher) FetchProfile(_ context.Context, _ string, _ int) (*runemetrics.Profile, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.profile, nil
}

// mockRosterFetcher implements RosterFetcher for testing.
type mockRosterFetcher struct {
	entries []roster.Entry
	err     error
}

func (m *mockRosterFetcher) Fetch(_ context.Context, _ string) ([]roster.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

// mockNotifier implements discord.Notifier for testing.
type mockNotifier struct {
	result discord.SendResult
	sent   []string
}

func (m *mockNotifier) Send(_ context.Context, _, content string) discord.SendResult {
	m.sent = append(m.sent, content)
	return m.result
}
