package models

import "time"

// Clan is a tracked clan with its weekly reset configuration.
// ResetWeekday uses 0=Sunday..6=Saturday; ResetTime is "HH:MM:SS" clock time
// in the clan's IANA timezone.
type Clan struct {
	ID           int64      `json:"id"`
	ClanKey      string     `json:"clan_key"`
	ClanName     string     `json:"clan_name"`
	Timezone     string     `json:"timezone"`
	ResetWeekday int        `json:"reset_weekday"`
	ResetTime    string     `json:"reset_time"`
	IsEnabled    bool       `json:"is_enabled"`
	InactiveAt   *time.Time `json:"inactive_at,omitempty"`

	// Promotion configuration
	RankOrder        []string `json:"rank_order"`
	MaxRankByCapping string   `json:"max_rank_by_capping"`

	// Discord notification configuration
	DiscordChannelID string   `json:"discord_channel_id"`
	DiscordRoleIDs   []string `json:"discord_role_ids"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
