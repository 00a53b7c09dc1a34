package models

// Sync statuses. A private profile is a normal outcome, not an error.
const (
	SyncStatusOK             = "ok"
	SyncStatusPrivateProfile = "private_profile"
)

// SyncResult aggregates the outcome of one member sync.
type SyncResult struct {
	OK                 bool   `json:"ok"`
	MemberID           int64  `json:"member_id"`
	ClanID             int64  `json:"clan_id"`
	RSN                string `json:"rsn"`
	FetchedActivities  int    `json:"fetched_activities"`
	InsertedActivities int    `json:"inserted_activities"`
	XPSnapshotInserted bool   `json:"xp_snapshot_inserted"`
	CapDetected        bool   `json:"cap_detected"`
	Status             string `json:"status,omitempty"`
	Error              string `json:"error,omitempty"`
}

// BackfillResult aggregates one catch-up classification pass for a clan.
type BackfillResult struct {
	OK             bool   `json:"ok"`
	ClanID         int64  `json:"clan_id"`
	Fetched        int    `json:"fetched"`
	UpdatedRuleID  int    `json:"updated_rule_id"`
	CapsUpserted   int    `json:"caps_upserted"`
	VisitsUpserted int    `json:"visits_upserted"`
	Error          string `json:"error,omitempty"`
}
