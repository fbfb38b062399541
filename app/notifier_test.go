package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgerdesk/ledgerdesk/adapters/clock"
	"github.com/ledgerdesk/ledgerdesk/adapters/idgen"
	"github.com/ledgerdesk/ledgerdesk/domain/notify"
	"github.com/rs/zerolog"
)

const testSecret = "shared-secret"

func newNotifyFixture(crm *mockCRMNotifier, maxAttempts int) (*NotifyService, *mockDeliveryStore, *clock.Fake) {
	deliveries := &mockDeliveryStore{}
	fakeClock := clock.NewFake(testTime)

	svc := NewNotifyService(
		crm, deliveries, fakeClock,
		idgen.NewSequential("d_"),
		testSecret, maxAttempts,
		zerolog.Nop(),
	)
	return svc, deliveries, fakeClock
}

// waitForSend blocks until the CRM mock records a send or the test times out.
func waitForSend(t *testing.T, crm *mockCRMNotifier) {
	t.Helper()
	select {
	case <-crm.received:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

// waitForStatus polls the delivery record until it reaches the wanted status.
func waitForStatus(t *testing.T, deliveries *mockDeliveryStore, id string, want notify.DeliveryStatus) notify.Delivery {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d, ok := deliveries.get(id); ok && d.Status == want && d.StatusCode != 0 {
			return d
		}
		time.Sleep(10 * time.Millisecond)
	}
	d, _ := deliveries.get(id)
	t.Fatalf("delivery status = %q (code %d), want %q", d.Status, d.StatusCode, want)
	return notify.Delivery{}
}

func TestNotify_DeliversSignedPayload(t *testing.T) {
	crm := newMockCRMNotifier(200)
	svc, deliveries, _ := newNotifyFixture(crm, 3)

	svc.Notify(context.Background(), notify.EventContractSigned, map[string]interface{}{
		"contract_id": "ct_1",
	})
	waitForSend(t, crm)

	d := waitForStatus(t, deliveries, "d_2", notify.DeliverySuccess)
	if d.EventType != notify.EventContractSigned {
		t.Errorf("event type = %q, want contract.signed", d.EventType)
	}
	if d.StatusCode != 200 {
		t.Errorf("status code = %d, want 200", d.StatusCode)
	}

	crm.mu.Lock()
	payload, signature := crm.payloads[0], crm.signatures[0]
	crm.mu.Unlock()
	if !notify.VerifySignature(payload, signature, testSecret) {
		t.Error("payload signature does not verify")
	}
}

func TestNotify_ServerErrorSchedulesRetry(t *testing.T) {
	crm := newMockCRMNotifier(503)
	svc, deliveries, _ := newNotifyFixture(crm, 3)

	svc.Notify(context.Background(), notify.EventPaymentOverdue, nil)
	waitForSend(t, crm)

	d := waitForStatus(t, deliveries, "d_2", notify.DeliveryPending)
	if d.NextRetry == nil {
		t.Fatal("next retry not scheduled")
	}
	if !d.NextRetry.After(testTime) {
		t.Errorf("next retry = %v, want after %v", d.NextRetry, testTime)
	}
}

func TestNotify_ClientErrorFailsPermanently(t *testing.T) {
	crm := newMockCRMNotifier(422)
	svc, deliveries, _ := newNotifyFixture(crm, 3)

	svc.Notify(context.Background(), notify.EventPaymentReceived, nil)
	waitForSend(t, crm)

	d := waitForStatus(t, deliveries, "d_2", notify.DeliveryFailed)
	if d.NextRetry != nil {
		t.Error("client errors must not retry")
	}
}

func TestNotify_NetworkErrorSchedulesRetry(t *testing.T) {
	crm := newMockCRMNotifier(0)
	crm.err = errors.New("connection refused")
	svc, deliveries, _ := newNotifyFixture(crm, 3)

	svc.Notify(context.Background(), notify.EventPaymentConfirmed, nil)
	waitForSend(t, crm)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d, ok := deliveries.get("d_2"); ok && d.Status == notify.DeliveryPending && d.Error != "" {
			if d.NextRetry == nil {
				t.Fatal("next retry not scheduled")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("delivery never recorded the network error")
}

func TestNotify_RetrySucceeds(t *testing.T) {
	crm := newMockCRMNotifier(500)
	svc, deliveries, fakeClock := newNotifyFixture(crm, 3)

	svc.Notify(context.Background(), notify.EventPaymentOverdue, nil)
	waitForSend(t, crm)
	waitForStatus(t, deliveries, "d_2", notify.DeliveryPending)

	// Endpoint recovers before the retry fires.
	crm.mu.Lock()
	crm.status = 200
	crm.mu.Unlock()

	fakeClock.Advance(2 * time.Minute)
	svc.processRetries(context.Background())
	waitForSend(t, crm)

	d := waitForStatus(t, deliveries, "d_2", notify.DeliverySuccess)
	if d.Attempt != 2 {
		t.Errorf("attempt = %d, want 2", d.Attempt)
	}
}

func TestNotify_RetriesExhaust(t *testing.T) {
	crm := newMockCRMNotifier(500)
	svc, deliveries, fakeClock := newNotifyFixture(crm, 2)

	svc.Notify(context.Background(), notify.EventPaymentOverdue, nil)
	waitForSend(t, crm)
	waitForStatus(t, deliveries, "d_2", notify.DeliveryPending)

	fakeClock.Advance(2 * time.Minute)
	svc.processRetries(context.Background())
	waitForSend(t, crm)

	d := waitForStatus(t, deliveries, "d_2", notify.DeliveryFailed)
	if d.Attempt != 2 {
		t.Errorf("attempt = %d, want 2", d.Attempt)
	}
	if d.NextRetry != nil {
		t.Error("exhausted delivery must not schedule another retry")
	}
}

func TestNotifyStopRetryWorkerIsIdempotent(t *testing.T) {
	crm := newMockCRMNotifier(200)
	svc, _, _ := newNotifyFixture(crm, 3)

	svc.StartRetryWorker(context.Background(), time.Hour)
	svc.StopRetryWorker()
	svc.StopRetryWorker()
}
