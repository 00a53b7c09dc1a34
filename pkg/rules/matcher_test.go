package rules

import (
	"testing"

	"github.com/rs24k/captracker/pkg/models"
)

func rule(id int64, kind, value string) *models.Rule {
	return &models.Rule{ID: id, Purpose: models.PurposeCapDetection, MatchKind: kind, MatchValue: value, IsEnabled: true}
}

func TestMatch_FirstMatchWins(t *testing.T) {
	// Repository ordering puts clan-specific rules first; the matcher must
	// honour list order, so the clan rule's id is recorded over the global.
	clanRule := rule(5, "text_contains", "capped")
	globalRule := rule(2, "text_contains", "capped")

	got := Match("Capped at the Clan Citadel.", "", []*models.Rule{clanRule, globalRule})
	if got == nil {
		t.Fatal("expected a match")
	}
	if got.ID != 5 {
		t.Errorf("expected clan rule id 5, got %d", got.ID)
	}
}

func TestMatch_Kinds(t *testing.T) {
	text := "Visited the Clan Citadel."
	details := "I visited the clan citadel today"

	tests := []struct {
		name  string
		kind  string
		value string
		want  bool
	}{
		{"text equals exact", "text_equals", "Visited the Clan Citadel.", true},
		{"text equals is case sensitive", "text_equals", "visited the clan citadel.", false},
		{"text contains folds case", "text_contains", "CLAN CITADEL", true},
		{"details contains", "details_contains", "today", true},
		{"details equals", "details_equals", "I visited the clan citadel today", true},
		{"combined contains spans newline join", "contains", "citadel today", true},
		{"text regex", "text_regex", "^visited .+ citadel\\.$", true},
		{"details regex no match", "details_regex", "^nothing", false},
		{"combined regex across the newline join", "regex", "citadel\\.\\n.*today", true},
		{"combined regex needs s flag to span lines", "combined_regex", "citadel\\..today", false},
		{"combined regex with s flag spans lines", "combined_regex", "/citadel\\..*today/s", true},
		{"unknown kind skipped", "fuzzy", "citadel", false},
		{"empty value skipped", "text_contains", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rule(1, tt.kind, tt.value)
			got := Match(text, details, []*models.Rule{r}) != nil
			if got != tt.want {
				t.Errorf("kind=%q value=%q: match=%v, want %v", tt.kind, tt.value, got, tt.want)
			}
		})
	}
}

func TestMatch_DelimitedRegexKeepsFlags(t *testing.T) {
	r := rule(1, "text_regex", "/^CAPPED/")
	if Match("capped at the citadel", "", []*models.Rule{r}) != nil {
		t.Error("delimited pattern without i flag should be case sensitive")
	}

	r = rule(1, "text_regex", "/^CAPPED/i")
	if Match("capped at the citadel", "", []*models.Rule{r}) == nil {
		t.Error("delimited pattern with i flag should match")
	}
}

func TestMatch_UndelimitedRegexIsCaseInsensitive(t *testing.T) {
	r := rule(1, "text_regex", "^CAPPED")
	if Match("capped at the citadel", "", []*models.Rule{r}) == nil {
		t.Error("bare pattern should default to case-insensitive")
	}
}

func TestMatch_EscapedSlashInDelimitedPattern(t *testing.T) {
	r := rule(1, "text_regex", `/and\/or/i`)
	if Match("either AND/OR both", "", []*models.Rule{r}) == nil {
		t.Error("escaped slash inside delimiters should match a literal slash")
	}
}

func TestMatch_MalformedRegexSkipsToNextRule(t *testing.T) {
	broken := rule(1, "text_regex", "([unbalanced")
	fallback := rule(2, "text_contains", "citadel")

	got := Match("Visited the Clan Citadel.", "", []*models.Rule{broken, fallback})
	if got == nil {
		t.Fatal("expected the fallback rule to match")
	}
	if got.ID != 2 {
		t.Errorf("expected rule 2, got %d", got.ID)
	}
}

func TestMatch_NoRules(t *testing.T) {
	if Match("anything", "", nil) != nil {
		t.Error("nil rule list must not match")
	}
}
