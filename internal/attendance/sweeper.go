package attendance

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper drives the expiry and retention sweeps on fixed intervals.
// Both calls serialize on the service mutex, so the tickers never
// mutate shared state concurrently with request handlers.
type Sweeper struct {
	svc               *Service
	log               *zap.Logger
	expiryInterval    time.Duration
	retentionInterval time.Duration
}

// NewSweeper builds a sweeper; zero intervals get the reference
// cadence (10 s expiry, hourly retention).
func NewSweeper(svc *Service, log *zap.Logger, expiryInterval, retentionInterval time.Duration) *Sweeper {
	if expiryInterval <= 0 {
		expiryInterval = 10 * time.Second
	}
	if retentionInterval <= 0 {
		retentionInterval = time.Hour
	}
	return &Sweeper{
		svc:               svc,
		log:               log,
		expiryInterval:    expiryInterval,
		retentionInterval: retentionInterval,
	}
}

// Run blocks until ctx is cancelled. The caller runs the startup
// retention sweep before accepting traffic; Run only handles the
// periodic cadence.
func (w *Sweeper) Run(ctx context.Context) {
	expiry := time.NewTicker(w.expiryInterval)
	defer expiry.Stop()
	retention := time.NewTicker(w.retentionInterval)
	defer retention.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("sweeper stopped")
			return
		case now := <-expiry.C:
			if _, err := w.svc.ExpireSweep(ctx, now); err != nil {
				w.log.Error("expiry sweep failed", zap.Error(err))
			}
		case now := <-retention.C:
			if _, err := w.svc.RetentionSweep(ctx, now); err != nil {
				w.log.Error("retention sweep failed", zap.Error(err))
			}
		}
	}
}
