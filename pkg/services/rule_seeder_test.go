package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const seedYAML = `rules:
  - purpose: cap_detection
    match_kind: combined_contains
    match_value: capped
  - purpose: visit_detection
    match_kind: combined_regex
    match_value: /visited the clan citadel/i
  - purpose: cap_detection
    match_kind: combined_contains
    match_value: ""
`

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSeedRules_CreatesMissingRules(t *testing.T) {
	repo := &mockRuleRepo{}
	path := writeSeedFile(t, seedYAML)

	require.NoError(t, SeedRules(context.Background(), path, repo, zap.NewNop()))

	assert.Len(t, repo.rules, 2, "incomplete seeds are skipped")
	assert.Equal(t, "cap_detection", repo.rules[0].Purpose)
	assert.True(t, repo.rules[0].IsEnabled)
	assert.Nil(t, repo.rules[0].ClanID, "seeded rules are global")
}

func TestSeedRules_Idempotent(t *testing.T) {
	repo := &mockRuleRepo{}
	path := writeSeedFile(t, seedYAML)

	require.NoError(t, SeedRules(context.Background(), path, repo, zap.NewNop()))
	require.NoError(t, SeedRules(context.Background(), path, repo, zap.NewNop()))

	assert.Len(t, repo.rules, 2, "rerun must not duplicate rules")
}

func TestSeedRules_EmptyPathDisables(t *testing.T) {
	repo := &mockRuleRepo{}
	require.NoError(t, SeedRules(context.Background(), "", repo, zap.NewNop()))
	assert.Empty(t, repo.rules)
}

func TestSeedRules_BadYAML(t *testing.T) {
	repo := &mockRuleRepo{}
	path := writeSeedFile(t, "rules: [not valid")

	assert.Error(t, SeedRules(context.Background(), path, repo, zap.NewNop()))
}
