package commands

import (
	"context"

	cliconfig "github.com/leapstack-labs/leapdiff/internal/cli/config"
	"github.com/leapstack-labs/leapdiff/internal/history"
)

// historicalDefinition fetches a model's defining SQL at a git revision.
func historicalDefinition(ctx context.Context, cfg *cliconfig.Config, revision, path string) (string, error) {
	repo := history.NewRepo(cfg.ProjectRoot)
	return repo.Show(ctx, revision, path)
}
