package models

import "time"

// Marker texts layered on Activity uniqueness by the promotion detector.
// They are ordinary activity rows distinguished only by their text.
const (
	MarkerRankUpRequired  = "Rank-up required"
	MarkerRankUpProcessed = "Rank-up processed"
)

// Activity is a single ingested activity event. (MemberID, Hash) is unique
// and is the sole idempotence key for repeated ingestion of the same
// upstream event.
type Activity struct {
	ID         int64     `json:"id"`
	MemberID   int64     `json:"member_id"`
	ClanID     int64     `json:"clan_id"`
	Hash       string    `json:"activity_hash"`
	OccurredAt time.Time `json:"occurred_at_utc"`
	Text       string    `json:"activity_text"`
	Details    string    `json:"activity_details,omitempty"`
	RuleID     *int64    `json:"rule_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
