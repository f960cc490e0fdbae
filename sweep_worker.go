package resonance

import (
	"context"
	"log"
	"time"
)

// startSweepWorker runs a background goroutine that periodically trims the
// offer/evolution journal down to the configured row cap.
func (e *Engine) startSweepWorker(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancelSweep = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				trimmed, err := e.store.TrimJournal(e.config.MaxJournalRows)
				if err != nil {
					log.Printf("[resonance] Journal sweep error: %v", err)
				} else if trimmed > 0 {
					log.Printf("[resonance] Journal sweep: %d rows trimmed", trimmed)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
