package models

import "time"

// SkillXP is one skill's state inside a snapshot.
type SkillXP struct {
	Level int    `json:"level"`
	XP    int64  `json:"xp"`
	Rank  string `json:"rank,omitempty"`
}

// XPSnapshot is a point-in-time XP capture for a member. (MemberID, Hash)
// is unique so byte-identical repeats are rejected even when CapturedAt
// differs.
type XPSnapshot struct {
	ID         int64              `json:"id"`
	MemberID   int64              `json:"member_id"`
	TotalXP    int64              `json:"total_xp"`
	Skills     map[string]SkillXP `json:"skills"`
	Hash       string             `json:"snapshot_hash"`
	CapturedAt time.Time          `json:"captured_at_utc"`
	CreatedAt  time.Time          `json:"created_at"`
}
