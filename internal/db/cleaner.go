package db

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"
)

// StartHistoryCleaner prunes old sync-history rows with interval
func StartHistoryCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-retention).UnixMilli()
				res, err := db.ExecContext(ctx, `
                    DELETE FROM sync_history
                     WHERE created_at < $1
                `, cutoff)
				if err != nil {
					log.Error("failed to clean sync history", zap.Error(err))
					continue
				}
				if rows, _ := res.RowsAffected(); rows > 0 {
					log.Info("cleaned sync history", zap.Int64("removed", rows))
				}
			}
		}
	}()
}
