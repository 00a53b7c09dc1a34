package handlers

import (
	"context"
	"time"

	"github.com/rs24k/captracker/pkg/apperrors"
	"github.com/rs24k/captracker/pkg/models"
)

// stubClanRepo implements repositories.ClanRepository for testing.
type stubClanRepo struct {
	clan *models.Clan
}

func (s *stubClanRepo) Create(context.Context, *models.Clan) error { return nil }

func (s *stubClanRepo) GetByID(_ context.Context, id int64) (*models.Clan, error) {
	if s.clan != nil && s.clan.ID == id {
		return s.clan, nil
	}
	return nil, apperrors.ErrNotFound
}

func (s *stubClanRepo) GetByKey(_ context.Context, clanKey string) (*models.Clan, error) {
	if s.clan != nil && s.clan.ClanKey == clanKey {
		return s.clan, nil
	}
	return nil, apperrors.ErrNotFound
}

func (s *stubClanRepo) ListEnabled(context.Context) ([]*models.Clan, error) {
	if s.clan == nil {
		return nil, nil
	}
	return []*models.Clan{s.clan}, nil
}

func (s *stubClanRepo) Update(context.Context, *models.Clan) error { return nil }
func (s *stubClanRepo) SetEnabled(context.Context, int64, bool) error { return nil }

// stubMemberRepo implements repositories.MemberRepository for testing.
type stubMemberRepo struct {
	member  *models.Member
	actives []*models.Member
}

func (s *stubMemberRepo) Upsert(context.Context, *models.Member) error { return nil }

func (s *stubMemberRepo) GetByID(_ context.Context, id int64) (*models.Member, error) {
	if s.member != nil && s.member.ID == id {
		return s.member, nil
	}
	return nil, apperrors.ErrNotFound
}

func (s *stubMemberRepo) GetByRSN(_ context.Context, clanID int64, rsnNormalised string) (*models.Member, error) {
	if s.member != nil && s.member.ClanID == clanID && s.member.RSNNormalised == rsnNormalised {
		return s.member, nil
	}
	return nil, apperrors.ErrNotFound
}

func (s *stubMemberRepo) ListActive(context.Context, int64) ([]*models.Member, error) {
	return s.actives, nil
}

func (s *stubMemberRepo) UpdateRank(context.Context, int64, string) error { return nil }
func (s *stubMemberRepo) SetPrivacy(context.Context, int64, bool) error { return nil }
func (s *stubMemberRepo) SetLastPromotedAt(context.Context, int64, time.Time) error { return nil }
func (s *stubMemberRepo) SetActive(context.Context, int64, bool) error { return nil }

// stubSnapshotRepo implements repositories.SnapshotRepository for testing.
type stubSnapshotRepo struct {
	capturedAt *time.Time
}

func (s *stubSnapshotRepo) Insert(context.Context, *models.XPSnapshot) (bool, error) {
	return true, nil
}

func (s *stubSnapshotRepo) Latest(context.Context, int64) (*models.XPSnapshot, error) {
	return nil, apperrors.ErrNotFound
}

func (s *stubSnapshotRepo) LatestCapturedAt(context.Context, int64) (*time.Time, error) {
	return s.capturedAt, nil
}

// stubCapRepo implements repositories.CapRepository for testing.
type stubCapRepo struct {
	caps   []*models.CapRecord
	visits int
}

func (s *stubCapRepo) UpsertCap(context.Context, *models.CapRecord) error { return nil }
func (s *stubCapRepo) UpsertVisit(context.Context, *models.VisitRecord) error { return nil }

func (s *stubCapRepo) GetCap(context.Context, int64, int64, time.Time) (*models.CapRecord, error) {
	return nil, apperrors.ErrNotFound
}

func (s *stubCapRepo) ListCapsInWindow(context.Context, int64, time.Time) ([]*models.CapRecord, error) {
	return s.caps, nil
}

func (s *stubCapRepo) CountVisitsInWindow(context.Context, int64, time.Time) (int, error) {
	return s.visits, nil
}

// stubSyncService implements services.SyncService for testing.
type stubSyncService struct {
	result *models.SyncResult
	err    error
	calls  int
}

func (s *stubSyncService) Sync(_ context.Context, memberID int64, _ int) (*models.SyncResult, error) {
	s.calls++
	if s.err != nil {
		return &models.SyncResult{MemberID: memberID, Error: s.err.Error()}, s.err
	}
	return s.result, nil
}

// stubPromotionService implements PromotionEvaluator for testing.
type stubPromotionService struct {
	calls int
	err   error
}

func (s *stubPromotionService) Evaluate(context.Context, int64) error {
	s.calls++
	return s.err
}
