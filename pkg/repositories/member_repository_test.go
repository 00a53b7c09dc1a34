package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rs24k/captracker/pkg/apperrors"
	"github.com/rs24k/captracker/pkg/models"
	"github.com/rs24k/captracker/pkg/testhelpers"
)

func TestMemberRepository_UpsertRefreshesExisting(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	clan := createTestClan(t, db)
	repo := NewMemberRepository(db.DB)
	ctx := context.Background()

	member := createTestMember(t, db, clan.ID)

	// Same normalised name with a new display casing and rank refreshes
	// the row instead of creating a second one.
	updated := &models.Member{
		ClanID:        clan.ID,
		RSN:           member.RSN + " ", // display name may drift
		RSNNormalised: member.RSNNormalised,
		RankName:      "Corporal",
		IsActive:      true,
	}
	require.NoError(t, repo.Upsert(ctx, updated))
	assert.Equal(t, member.ID, updated.ID)

	fetched, err := repo.GetByRSN(ctx, clan.ID, member.RSNNormalised)
	require.NoError(t, err)
	assert.Equal(t, "Corporal", fetched.RankName)
}

func TestMemberRepository_PrivacyTransitions(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	clan := createTestClan(t, db)
	member := createTestMember(t, db, clan.ID)
	repo := NewMemberRepository(db.DB)
	ctx := context.Background()

	require.NoError(t, repo.SetPrivacy(ctx, member.ID, true))
	fetched, err := repo.GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.True(t, fetched.IsPrivate)
	require.NotNil(t, fetched.PrivateSince)
	firstSince := *fetched.PrivateSince

	// Re-flagging an already private profile keeps the original mark.
	require.NoError(t, repo.SetPrivacy(ctx, member.ID, true))
	fetched, err = repo.GetByID(ctx, member.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.PrivateSince)
	assert.True(t, fetched.PrivateSince.Equal(firstSince))

	// Opening up again clears the mark entirely.
	require.NoError(t, repo.SetPrivacy(ctx, member.ID, false))
	fetched, err = repo.GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.False(t, fetched.IsPrivate)
	assert.Nil(t, fetched.PrivateSince)
}

func TestMemberRepository_RankAndPromotion(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	clan := createTestClan(t, db)
	member := createTestMember(t, db, clan.ID)
	repo := NewMemberRepository(db.DB)
	ctx := context.Background()

	require.NoError(t, repo.UpdateRank(ctx, member.ID, "Sergeant"))

	promotedAt := time.Date(2026, 8, 26, 15, 30, 0, 0, time.UTC)
	require.NoError(t, repo.SetLastPromotedAt(ctx, member.ID, promotedAt))

	fetched, err := repo.GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sergeant", fetched.RankName)
	require.NotNil(t, fetched.LastPromotedAt)
	assert.True(t, fetched.LastPromotedAt.Equal(promotedAt))
}

func TestMemberRepository_ListActiveExcludesDeparted(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	clan := createTestClan(t, db)
	staying := createTestMember(t, db, clan.ID)
	leaving := createTestMember(t, db, clan.ID)
	repo := NewMemberRepository(db.DB)
	ctx := context.Background()

	require.NoError(t, repo.SetActive(ctx, leaving.ID, false))

	members, err := repo.ListActive(ctx, clan.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, staying.ID, members[0].ID)
}

func TestMemberRepository_NotFound(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewMemberRepository(db.DB)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, 999999999)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.ErrorIs(t, repo.UpdateRank(ctx, 999999999, "Recruit"), apperrors.ErrNotFound)
	assert.ErrorIs(t, repo.SetPrivacy(ctx, 999999999, true), apperrors.ErrNotFound)
}
