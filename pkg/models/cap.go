package models

import "time"

// CapRecord marks that a member capped within one reset window.
// (ClanID, MemberID, WeekStartUTC) is unique; repeated detections within
// the same window overwrite CappedAt (last write wins).
type CapRecord struct {
	ClanID       int64     `json:"clan_id"`
	MemberID     int64     `json:"member_id"`
	WeekStartUTC time.Time `json:"week_start_utc"`
	WeekEndUTC   time.Time `json:"week_end_utc"`
	CappedAt     time.Time `json:"capped_at_utc"`
	RuleID       *int64    `json:"rule_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// VisitRecord marks a citadel visit within one reset window. Same shape and
// uniqueness as CapRecord, independent namespace.
type VisitRecord struct {
	ClanID       int64     `json:"clan_id"`
	MemberID     int64     `json:"member_id"`
	WeekStartUTC time.Time `json:"week_start_utc"`
	WeekEndUTC   time.Time `json:"week_end_utc"`
	VisitedAt    time.Time `json:"visited_at_utc"`
	RuleID       *int64    `json:"rule_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
