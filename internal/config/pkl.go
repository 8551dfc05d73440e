package config

import (
	"context"
	"fmt"

	"github.com/apple/pkl-go/pkl"
)

// LoadFile evaluates a PKL module into a Config. Fields the module leaves out stay empty.
func LoadFile(ctx context.Context, path string) (*Config, error) {
	evaluator, err := pkl.NewEvaluator(ctx, pkl.PreconfiguredOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create PKL evaluator: %w", err)
	}
	defer evaluator.Close()

	var cfg Config
	if err := evaluator.EvaluateModule(ctx, pkl.FileSource(path), &cfg); err != nil {
		return nil, fmt.Errorf("failed to evaluate config %s: %w", path, err)
	}
	return &cfg, nil
}
