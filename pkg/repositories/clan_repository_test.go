package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rs24k/captracker/pkg/apperrors"
	"github.com/rs24k/captracker/pkg/testhelpers"
)

func TestClanRepository_RoundTrip(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewClanRepository(db.DB)
	ctx := context.Background()

	clan := createTestClan(t, db)
	require.NotZero(t, clan.ID)

	fetched, err := repo.GetByKey(ctx, clan.ClanKey)
	require.NoError(t, err)
	assert.Equal(t, clan.ID, fetched.ID)
	assert.Equal(t, []string{"Recruit", "Corporal", "Sergeant"}, fetched.RankOrder)
	assert.Equal(t, "Sergeant", fetched.MaxRankByCapping)
	assert.Nil(t, fetched.InactiveAt)

	fetched.ClanName = "Renamed Clan"
	fetched.RankOrder = append(fetched.RankOrder, "Lieutenant")
	require.NoError(t, repo.Update(ctx, fetched))

	fetched, err = repo.GetByID(ctx, clan.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed Clan", fetched.ClanName)
	assert.Len(t, fetched.RankOrder, 4)
}

func TestClanRepository_SetEnabled(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewClanRepository(db.DB)
	ctx := context.Background()

	clan := createTestClan(t, db)

	require.NoError(t, repo.SetEnabled(ctx, clan.ID, false))
	fetched, err := repo.GetByID(ctx, clan.ID)
	require.NoError(t, err)
	assert.False(t, fetched.IsEnabled)
	assert.NotNil(t, fetched.InactiveAt)

	enabled, err := repo.ListEnabled(ctx)
	require.NoError(t, err)
	for _, c := range enabled {
		assert.NotEqual(t, clan.ID, c.ID, "disabled clans are not tracked")
	}

	require.NoError(t, repo.SetEnabled(ctx, clan.ID, true))
	fetched, err = repo.GetByID(ctx, clan.ID)
	require.NoError(t, err)
	assert.True(t, fetched.IsEnabled)
	assert.Nil(t, fetched.InactiveAt)
}

func TestClanRepository_NotFound(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewClanRepository(db.DB)
	ctx := context.Background()

	_, err := repo.GetByKey(ctx, "no-such-clan")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.ErrorIs(t, repo.SetEnabled(ctx, 999999999, true), apperrors.ErrNotFound)
}
