package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
)

// CacheStats prints the number of persisted responses.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	n, err := r.responses.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count cached responses: %w", err)
	}
	return r.writePlain("Cached responses: %d\n", n)
}

// CacheClear removes persisted responses, optionally limited to one scope or key.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	scope := cmd.String("scope")
	n, err := r.responses.Delete(ctx, scope)
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	r.logger.Info("cache cleared", "scope", scope, "deleted", n)
	return r.writePlain("✓ Deleted %d cached response(s)\n", n)
}

// CachePrune removes persisted responses fetched before now minus --older-than.
func (r *Runner) CachePrune(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(ctx); err != nil {
		return err
	}

	age := cmd.Duration("older-than")
	n, err := r.responses.Prune(ctx, time.Now().Add(-age))
	if err != nil {
		return fmt.Errorf("failed to prune cache: %w", err)
	}
	return r.writePlain("✓ Pruned %d cached response(s) older than %s\n", n, age)
}
