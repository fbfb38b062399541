package app

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerdesk/ledgerdesk/ports"
	"github.com/rs/zerolog"
)

// Pruner drops expired entries and reports how many were removed.
type Pruner interface {
	Prune(now time.Time) int
}

// Janitor runs the periodic housekeeping passes: expiring partner cache
// entries, flagging billings that went past due without a webhook, and
// pruning expired sessions.
type Janitor struct {
	reconciler *ReconcileService
	partner    *PartnerService
	sessions   Pruner
	clock      ports.Clock
	logger     zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewJanitor creates a new janitor. Any collaborator may be nil; its pass
// is skipped.
func NewJanitor(reconciler *ReconcileService, partner *PartnerService, sessions Pruner, clk ports.Clock, logger zerolog.Logger) *Janitor {
	return &Janitor{
		reconciler: reconciler,
		partner:    partner,
		sessions:   sessions,
		clock:      clk,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the housekeeping loop. A non-positive interval falls back
// to 5 minutes.
func (j *Janitor) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.mu.Unlock()

	j.logger.Info().Dur("interval", interval).Msg("starting janitor")

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-j.stopCh:
				return
			case <-ticker.C:
				j.runOnce(ctx)
			}
		}
	}()
}

// Stop halts the housekeeping loop.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		close(j.stopCh)
		j.running = false
	}
}

// RunOnce executes one housekeeping pass immediately.
func (j *Janitor) RunOnce(ctx context.Context) {
	j.runOnce(ctx)
}

func (j *Janitor) runOnce(ctx context.Context) {
	if j.partner != nil {
		swept, err := j.partner.Sweep(ctx)
		if err != nil {
			j.logger.Error().Err(err).Msg("partner cache sweep failed")
		} else if swept > 0 {
			j.logger.Debug().Int("swept", swept).Msg("partner cache entries expired")
		}
	}

	if j.reconciler != nil {
		overdue, err := j.reconciler.MarkOverdue(ctx)
		if err != nil {
			j.logger.Error().Err(err).Msg("overdue sweep failed")
		} else if overdue > 0 {
			j.logger.Info().Int("count", overdue).Msg("billings marked overdue")
		}
	}

	if j.sessions != nil && j.clock != nil {
		if pruned := j.sessions.Prune(j.clock.Now()); pruned > 0 {
			j.logger.Debug().Int("pruned", pruned).Msg("expired sessions removed")
		}
	}
}
