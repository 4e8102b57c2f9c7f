package cache

import (
	"context"
	"time"

	"ato_site/internal/logger"
)

// StartPolling перезагружает все коллекции каждые interval, пока не отменён ctx.
func StartPolling(ctx context.Context, store *Store, interval time.Duration) {
	log := logger.Log.WithFields(map[string]interface{}{
		"service":  "poller",
		"interval": interval.String(),
	})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Info("Starting new refresh cycle")
			if failed := store.Load(ctx); failed > 0 {
				log.Warnf("Refresh cycle finished with %d failed collections", failed)
			}

		case <-ctx.Done():
			log.Info("Stopping poller by context")
			return
		}
	}
}
