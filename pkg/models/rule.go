package models

import "time"

// Rule purposes. Cap/visit rules trigger weekly fact upserts; any other
// purpose only tags the activity.
const (
	PurposeCapDetection   = "cap_detection"
	PurposeVisitDetection = "visit_detection"
)

// Rule is one classification rule. ClanID nil means global; global rules
// always evaluate after clan-specific rules of equal purpose priority.
type Rule struct {
	ID         int64     `json:"id"`
	ClanID     *int64    `json:"clan_id,omitempty"`
	Purpose    string    `json:"purpose"`
	MatchKind  string    `json:"match_kind"`
	MatchValue string    `json:"match_value"`
	IsEnabled  bool      `json:"is_enabled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
