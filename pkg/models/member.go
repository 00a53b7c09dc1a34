package models

import "time"

// Member is a clan member tracked by the ingester.
// RSNNormalised is the lookup form of the display name (lowercase,
// whitespace folded).
type Member struct {
	ID             int64      `json:"id"`
	ClanID         int64      `json:"clan_id"`
	RSN            string     `json:"rsn"`
	RSNNormalised  string     `json:"rsn_normalised"`
	RankName       string     `json:"rank_name"`
	IsActive       bool       `json:"is_active"`
	IsPrivate      bool       `json:"is_private"`
	PrivateSince   *time.Time `json:"private_since_utc,omitempty"`
	LastPromotedAt *time.Time `json:"last_promoted_at_utc,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
