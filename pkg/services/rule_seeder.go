package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rs24k/captracker/pkg/apperrors"
	"github.com/rs24k/captracker/pkg/models"
	"github.com/rs24k/captracker/pkg/repositories"
)

// ruleSeedFile is the shape of the optional rules.yaml seed file.
type ruleSeedFile struct {
	Rules []ruleSeed `yaml:"rules"`
}

type ruleSeed struct {
	Purpose    string `yaml:"purpose"`
	MatchKind  string `yaml:"match_kind"`
	MatchValue string `yaml:"match_value"`
}

// SeedRules inserts global classification rules from a YAML file, skipping
// any rule that already exists with the same definition. Reruns are
// idempotent; an empty path disables seeding.
func SeedRules(ctx context.Context, path string, ruleRepo repositories.RuleRepository, logger *zap.Logger) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rule seed file: %w", err)
	}

	var seedFile ruleSeedFile
	if err := yaml.Unmarshal(data, &seedFile); err != nil {
		return fmt.Errorf("failed to parse rule seed file: %w", err)
	}

	created := 0
	for _, seed := range seedFile.Rules {
		if seed.Purpose == "" || seed.MatchValue == "" {
			logger.Warn("skipping incomplete rule seed",
				zap.String("purpose", seed.Purpose),
				zap.String("match_value", seed.MatchValue))
			continue
		}

		_, err := ruleRepo.FindGlobal(ctx, seed.Purpose, seed.MatchKind, seed.MatchValue)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("failed to check existing rule: %w", err)
		}

		rule := &models.Rule{
			Purpose:    seed.Purpose,
			MatchKind:  seed.MatchKind,
			MatchValue: seed.MatchValue,
			IsEnabled:  true,
		}
		if err := ruleRepo.Create(ctx, rule); err != nil {
			return fmt.Errorf("failed to seed rule: %w", err)
		}
		created++
	}

	if created > 0 {
		logger.Info("seeded global rules", zap.Int("created", created), zap.String("path", path))
	}
	return nil
}
