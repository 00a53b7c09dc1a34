package runemetrics

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/rs24k/captracker/pkg/jsonutil"
	"github.com/rs24k/captracker/pkg/models"
)

// xpScaleDivisor normalises the feed's tenth-of-a-point XP representation
// into whole points (integer floor).
const xpScaleDivisor = 10

// skillNames maps the feed's skill ids onto names. Ids outside the table
// are ignored until the table learns about them.
var skillNames = map[int]string{
	0:  "Attack",
	1:  "Defence",
	2:  "Strength",
	3:  "Constitution",
	4:  "Ranged",
	5:  "Prayer",
	6:  "Magic",
	7:  "Cooking",
	8:  "Woodcutting",
	9:  "Fletching",
	10: "Fishing",
	11: "Firemaking",
	12: "Crafting",
	13: "Smithing",
	14: "Mining",
	15: "Herblore",
	16: "Agility",
	17: "Thieving",
	18: "Slayer",
	19: "Farming",
	20: "Runecrafting",
	21: "Hunter",
	22: "Construction",
	23: "Summoning",
	24: "Dungeoneering",
	25: "Divination",
	26: "Invention",
	27: "Archaeology",
	28: "Necromancy",
}

// SkillOrder lists skills in display order for the reporting layer.
var SkillOrder = []string{
	"Attack", "Defence", "Strength", "Constitution", "Ranged", "Prayer", "Magic",
	"Cooking", "Woodcutting", "Fletching", "Fishing", "Firemaking", "Crafting", "Smithing", "Mining",
	"Herblore", "Agility", "Thieving", "Slayer", "Farming", "Runecrafting", "Hunter", "Construction",
	"Summoning", "Dungeoneering", "Divination", "Invention", "Archaeology", "Necromancy",
}

// Snapshot is a parsed, scale-corrected XP snapshot ready for persistence.
type Snapshot struct {
	TotalXP    int64
	Skills     map[string]models.SkillXP
	SkillsJSON string
	Hash       string
}

func correctXP(xp int64) int64 {
	if xp <= 0 {
		return 0
	}
	return xp / xpScaleDivisor
}

// ParseSnapshot normalises a profile's skill values into the storage
// representation: unknown skill ids dropped, negative values clamped to
// zero, every XP value divided by the feed scale, a synthetic "total"
// entry merged in, and a change-detection hash over total + serialised map.
// Returns nil when the profile carries no skill data.
func ParseSnapshot(profile *Profile) (*Snapshot, error) {
	if profile == nil || len(profile.SkillValues) == 0 {
		return nil, nil
	}

	skills := make(map[string]models.SkillXP, len(profile.SkillValues)+1)
	var totalLevel int64

	for _, sv := range profile.SkillValues {
		name, known := skillNames[sv.ID]
		if !known {
			continue
		}

		level, _ := jsonutil.FlexibleInt64(sv.Level)
		if level < 0 {
			level = 0
		}
		xp, _ := jsonutil.FlexibleInt64(sv.XP)
		if xp < 0 {
			xp = 0
		}

		skills[name] = models.SkillXP{
			Level: int(level),
			XP:    correctXP(xp),
			Rank:  jsonutil.FlexibleString(sv.Rank),
		}
		totalLevel += level
	}

	if len(skills) == 0 {
		return nil, nil
	}

	var totalXP int64
	if v, ok := jsonutil.FlexibleInt64(profile.TotalXP); ok {
		totalXP = correctXP(v)
	} else {
		for _, s := range skills {
			totalXP += s.XP
		}
	}

	if v, ok := jsonutil.FlexibleInt64(profile.TotalSkill); ok {
		totalLevel = v
	}

	skills["total"] = models.SkillXP{
		Level: int(totalLevel),
		XP:    totalXP,
	}

	// encoding/json writes map keys sorted, which keeps the hash stable.
	raw, err := json.Marshal(skills)
	if err != nil {
		return nil, fmt.Errorf("failed to serialise skills: %w", err)
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s", totalXP, raw)))

	return &Snapshot{
		TotalXP:    totalXP,
		Skills:     skills,
		SkillsJSON: string(raw),
		Hash:       hex.EncodeToString(sum[:]),
	}, nil
}
