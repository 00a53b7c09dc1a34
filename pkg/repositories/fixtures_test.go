package repositories

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rs24k/captracker/pkg/models"
	"github.com/rs24k/captracker/pkg/testhelpers"
)

var fixtureSeq atomic.Int64

// createTestClan inserts a clan with a unique key.
func createTestClan(t *testing.T, db *testhelpers.TestDB) *models.Clan {
	t.Helper()
	seq := fixtureSeq.Add(1)

	clan := &models.Clan{
		ClanKey:          fmt.Sprintf("test-clan-%d", seq),
		ClanName:         fmt.Sprintf("Test Clan %d", seq),
		Timezone:         "UTC",
		ResetWeekday:     1,
		ResetTime:        "00:00:00",
		IsEnabled:        true,
		RankOrder:        []string{"Recruit", "Corporal", "Sergeant"},
		MaxRankByCapping: "Sergeant",
	}
	require.NoError(t, NewClanRepository(db.DB).Create(context.Background(), clan))
	return clan
}

// createTestMember inserts a member of the given clan.
func createTestMember(t *testing.T, db *testhelpers.TestDB, clanID int64) *models.Member {
	t.Helper()
	seq := fixtureSeq.Add(1)

	member := &models.Member{
		ClanID:        clanID,
		RSN:           fmt.Sprintf("Player %d", seq),
		RSNNormalised: fmt.Sprintf("player %d", seq),
		RankName:      "Recruit",
		IsActive:      true,
	}
	require.NoError(t, NewMemberRepository(db.DB).Upsert(context.Background(), member))
	return member
}
