package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the process logger. Production config (JSON, info level)
// everywhere except local, which gets the human-readable development encoder.
func NewLogger(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "local" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
