package db

import (
	"context"
	"time"

	"github.com/atinyakov/vultsync/internal/metrics"
	"go.uber.org/zap"
)

// CachePruner trims a user's mutation cache to its newest batches.
type CachePruner interface {
	// Prune deletes all but the keep newest batches of alias and reports how many were removed.
	Prune(ctx context.Context, alias string, keep int) (int64, error)
}

// StartCachePruner trims the cache of every alias to keep batches once per
// interval until ctx is done. A keep of zero or less disables pruning.
func StartCachePruner(
	ctx context.Context,
	pruner CachePruner,
	aliases []string,
	interval time.Duration,
	keep int,
	log *zap.Logger,
) {
	if keep <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				PruneOnce(ctx, pruner, aliases, keep, log)
			}
		}
	}()
}

// PruneOnce runs one retention pass over aliases.
func PruneOnce(ctx context.Context, pruner CachePruner, aliases []string, keep int, log *zap.Logger) {
	for _, alias := range aliases {
		removed, err := pruner.Prune(ctx, alias, keep)
		if err != nil {
			log.Error("failed to prune mutation cache", zap.String("alias", alias), zap.Error(err))
			continue
		}
		if removed > 0 {
			metrics.CachePrunedBatchesTotal.Add(float64(removed))
			log.Info("pruned mutation cache", zap.String("alias", alias), zap.Int64("removed", removed))
		}
	}
}
