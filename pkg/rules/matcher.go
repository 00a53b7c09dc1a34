// Package rules classifies activity events against an ordered rule list.
// First match wins; ordering (clan-specific before global, cap before visit
// before everything else, id ascending) is the responsibility of the rule
// repository query.
package rules

import (
	"regexp"
	"strings"

	"github.com/rs24k/captracker/pkg/models"
)

// MatchKind is the closed set of rule predicates. Values stored outside
// this set never match (and never panic).
type MatchKind string

const (
	TextEquals       MatchKind = "text_equals"
	TextContains     MatchKind = "text_contains"
	TextRegex        MatchKind = "text_regex"
	DetailsEquals    MatchKind = "details_equals"
	DetailsContains  MatchKind = "details_contains"
	DetailsRegex     MatchKind = "details_regex"
	CombinedEquals   MatchKind = "combined_equals"
	CombinedContains MatchKind = "combined_contains"
	CombinedRegex    MatchKind = "combined_regex"
)

// parseKind folds the legacy bare aliases onto the combined kinds.
func parseKind(s string) (MatchKind, bool) {
	switch MatchKind(strings.ToLower(strings.TrimSpace(s))) {
	case TextEquals:
		return TextEquals, true
	case TextContains:
		return TextContains, true
	case TextRegex:
		return TextRegex, true
	case DetailsEquals:
		return DetailsEquals, true
	case DetailsContains:
		return DetailsContains, true
	case DetailsRegex:
		return DetailsRegex, true
	case CombinedEquals, "equals":
		return CombinedEquals, true
	case CombinedContains, "contains":
		return CombinedContains, true
	case CombinedRegex, "regex":
		return CombinedRegex, true
	}
	return "", false
}

// Match returns the first rule whose predicate holds for the event, or nil.
// Rules with empty patterns, unknown kinds, or malformed regexes are
// skipped; evaluation always continues to the next rule.
func Match(text, details string, ruleList []*models.Rule) *models.Rule {
	combined := text + "\n" + details

	for _, r := range ruleList {
		val := r.MatchValue
		if val == "" {
			continue
		}

		kind, ok := parseKind(r.MatchKind)
		if !ok {
			continue
		}

		matched := false
		switch kind {
		case TextEquals:
			matched = text == val
		case TextContains:
			matched = containsFold(text, val)
		case TextRegex:
			matched = regexMatch(val, text)
		case DetailsEquals:
			matched = details == val
		case DetailsContains:
			matched = containsFold(details, val)
		case DetailsRegex:
			matched = regexMatch(val, details)
		case CombinedEquals:
			matched = strings.TrimSpace(combined) == strings.TrimSpace(val)
		case CombinedContains:
			matched = containsFold(combined, val)
		case CombinedRegex:
			matched = regexMatch(val, combined)
		}

		if matched {
			return r
		}
	}

	return nil
}

// containsFold is a case-insensitive substring test.
func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// regexMatch compiles the stored pattern (normalised first) and tests it.
// A pattern that fails to compile is treated as no-match.
func regexMatch(pattern, subject string) bool {
	re, err := compilePattern(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(subject)
}

// compilePattern normalises a stored regex. Patterns saved in delimited
// form ("/body/flags") keep their own flags; anything else is wrapped as a
// case-insensitive pattern with literal slashes left intact.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	pattern = strings.TrimSpace(pattern)

	if body, flags, ok := splitDelimited(pattern); ok {
		expr := body
		if flags != "" {
			expr = "(?" + flags + ")" + body
		}
		return regexp.Compile(expr)
	}

	return regexp.Compile("(?i)" + pattern)
}

// splitDelimited detects "/body/flags" form: a leading slash with a later
// unescaped closing slash. Only the i, m and s flags are honoured.
func splitDelimited(pattern string) (body, flags string, ok bool) {
	if len(pattern) < 2 || pattern[0] != '/' {
		return "", "", false
	}

	last := -1
	for i := len(pattern) - 1; i > 0; i-- {
		if pattern[i] != '/' {
			continue
		}
		// Count preceding backslashes; an odd run means the slash is escaped.
		n := 0
		for j := i - 1; j > 0 && pattern[j] == '\\'; j-- {
			n++
		}
		if n%2 == 0 {
			last = i
		}
		break
	}
	if last <= 0 {
		return "", "", false
	}

	body = strings.ReplaceAll(pattern[1:last], `\/`, "/")
	for _, f := range pattern[last+1:] {
		switch f {
		case 'i', 'm', 's':
			flags += string(f)
		}
	}
	return body, flags, true
}
