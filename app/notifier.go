package app

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerdesk/ledgerdesk/domain/notify"
	"github.com/ledgerdesk/ledgerdesk/ports"
	"github.com/rs/zerolog"
)

// NotifyService dispatches signed CRM notifications and records every
// delivery attempt for audit and retry.
type NotifyService struct {
	crm         ports.CRMNotifier
	deliveries  ports.DeliveryStore
	clock       ports.Clock
	idGen       ports.IDGenerator
	secret      string
	maxAttempts int
	logger      zerolog.Logger

	onDelivery func(status notify.DeliveryStatus)

	mu          sync.Mutex
	stopCh      chan struct{}
	running     bool
	shutdownCtx context.Context    // For graceful shutdown of spawned goroutines
	shutdownFn  context.CancelFunc // Cancel function for shutdown
}

// SetDeliveryHook registers a callback invoked with the outcome of every
// delivery attempt. Used for metrics.
func (s *NotifyService) SetDeliveryHook(fn func(status notify.DeliveryStatus)) {
	s.onDelivery = fn
}

// NewNotifyService creates a new CRM notify service.
func NewNotifyService(
	crm ports.CRMNotifier,
	deliveries ports.DeliveryStore,
	clock ports.Clock,
	idGen ports.IDGenerator,
	secret string,
	maxAttempts int,
	logger zerolog.Logger,
) *NotifyService {
	shutdownCtx, shutdownFn := context.WithCancel(context.Background())

	return &NotifyService{
		crm:         crm,
		deliveries:  deliveries,
		clock:       clock,
		idGen:       idGen,
		secret:      secret,
		maxAttempts: maxAttempts,
		logger:      logger,
		stopCh:      make(chan struct{}),
		shutdownCtx: shutdownCtx,
		shutdownFn:  shutdownFn,
	}
}

// Notify queues an event for delivery. Non-blocking: the delivery record
// is created synchronously, the HTTP send happens in a goroutine.
func (s *NotifyService) Notify(ctx context.Context, eventType notify.EventType, data map[string]interface{}) {
	now := s.clock.Now()
	event := notify.Event{
		ID:        s.idGen.New(),
		Type:      eventType,
		Timestamp: now,
		Data:      data,
	}

	payloadBytes, err := notify.SerializePayload(notify.BuildPayload(event))
	if err != nil {
		s.logger.Error().Err(err).
			Str("event_type", string(eventType)).
			Msg("failed to serialize notification payload")
		return
	}

	delivery := notify.NewDelivery(s.idGen.New(), event, string(payloadBytes), s.maxAttempts, now)
	if err := s.deliveries.Create(ctx, delivery); err != nil {
		s.logger.Error().Err(err).
			Str("event_id", event.ID).
			Msg("failed to create delivery record")
		return
	}

	sendCtx, cancel := context.WithTimeout(s.shutdownCtx, 30*time.Second)
	go func() {
		defer cancel()
		s.send(sendCtx, delivery, payloadBytes)
	}()
}

// send delivers one payload and updates the delivery record.
func (s *NotifyService) send(ctx context.Context, d notify.Delivery, payload []byte) {
	start := s.clock.Now()
	signature := notify.Sign(payload, s.secret)

	status, body, err := s.crm.Send(ctx, payload, signature)
	durationMS := int(time.Since(start).Milliseconds())

	d.StatusCode = status
	d.ResponseBody = body
	d.DurationMS = durationMS
	d.UpdatedAt = s.clock.Now()

	switch {
	case err != nil:
		d.Error = err.Error()
		s.scheduleRetry(&d)
	case status >= 200 && status < 300:
		d.Status = notify.DeliverySuccess
		d.Error = ""
		d.NextRetry = nil
	case notify.ShouldRetry(status):
		s.scheduleRetry(&d)
	default:
		// Client errors do not retry: the payload will not improve.
		d.Status = notify.DeliveryFailed
		d.NextRetry = nil
	}

	if s.onDelivery != nil {
		s.onDelivery(d.Status)
	}

	if updErr := s.deliveries.Update(ctx, d); updErr != nil {
		s.logger.Error().Err(updErr).
			Str("delivery_id", d.ID).
			Msg("failed to update delivery status")
	}

	switch d.Status {
	case notify.DeliverySuccess:
		s.logger.Debug().
			Str("delivery_id", d.ID).
			Int("status_code", status).
			Int("duration_ms", durationMS).
			Msg("notification delivered")
	case notify.DeliveryPending:
		s.logger.Info().
			Str("delivery_id", d.ID).
			Int("attempt", d.Attempt).
			Time("next_retry", *d.NextRetry).
			Msg("notification delivery scheduled for retry")
	default:
		s.logger.Warn().
			Str("delivery_id", d.ID).
			Int("status_code", status).
			Str("error", d.Error).
			Msg("notification delivery failed permanently")
	}
}

func (s *NotifyService) scheduleRetry(d *notify.Delivery) {
	if d.Attempt >= d.MaxAttempts {
		d.Status = notify.DeliveryFailed
		d.NextRetry = nil
		return
	}
	next := notify.NextRetry(d.Attempt, s.clock.Now())
	d.Status = notify.DeliveryPending
	d.NextRetry = &next
}

// StartRetryWorker starts a background worker that re-sends due retries.
func (s *NotifyService) StartRetryWorker(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info().Dur("interval", interval).Msg("starting notification retry worker")

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.processRetries(ctx)
			}
		}
	}()
}

// StopRetryWorker stops the retry worker and cancels in-flight sends.
func (s *NotifyService) StopRetryWorker() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		close(s.stopCh)
		s.running = false
	}

	if s.shutdownFn != nil {
		s.shutdownFn()
	}
}

// processRetries re-sends deliveries whose retry time has arrived.
func (s *NotifyService) processRetries(ctx context.Context) {
	now := s.clock.Now()
	due, err := s.deliveries.ListRetryable(ctx, now, 100)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list retryable deliveries")
		return
	}
	if len(due) == 0 {
		return
	}

	s.logger.Debug().Int("count", len(due)).Msg("processing notification retries")

	for _, d := range due {
		d.Attempt++
		d.NextRetry = nil
		d.UpdatedAt = now
		if err := s.deliveries.Update(ctx, d); err != nil {
			s.logger.Error().Err(err).
				Str("delivery_id", d.ID).
				Msg("failed to increment delivery attempt")
			continue
		}

		retryCtx, cancel := context.WithTimeout(s.shutdownCtx, 30*time.Second)
		go func(d notify.Delivery) {
			defer cancel()
			s.send(retryCtx, d, []byte(d.Payload))
		}(d)
	}
}

// RecentDeliveries returns the latest delivery records for inspection.
func (s *NotifyService) RecentDeliveries(ctx context.Context, limit int) ([]notify.Delivery, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.deliveries.ListRecent(ctx, limit)
}

// Ensure interface compliance.
var _ ports.Notifier = (*NotifyService)(nil)
