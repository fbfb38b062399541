package web

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/ledgerdesk/ledgerdesk/app"
	"github.com/ledgerdesk/ledgerdesk/domain/billing"
)

// asaasWebhook is the envelope Asaas posts on payment and subscription
// events. Monetary values arrive as floating-point BRL.
type asaasWebhook struct {
	Event   string `json:"event"`
	Payment struct {
		ID           string  `json:"id"`
		Customer     string  `json:"customer"`
		Subscription string  `json:"subscription"`
		Status       string  `json:"status"`
		Value        float64 `json:"value"`
		DueDate      string  `json:"dueDate"`
		PaymentDate  string  `json:"paymentDate"`
		InvoiceURL   string  `json:"invoiceUrl"`
		BillingType  string  `json:"billingType"`
		Description  string  `json:"description"`
	} `json:"payment"`
	Subscription struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"subscription"`
}

// AsaasWebhook receives provider payment and subscription events. The
// provider retries on non-2xx, so events this system cannot match still
// return 200 to stop redelivery.
func (h *Handler) AsaasWebhook(w http.ResponseWriter, r *http.Request) {
	if !h.payments.VerifyWebhookToken(r.Header.Get("asaas-access-token")) {
		h.metrics.WebhookFailures.WithLabelValues("bad_token").Inc()
		writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid webhook token")
		return
	}

	var hook asaasWebhook
	if err := json.NewDecoder(r.Body).Decode(&hook); err != nil {
		h.metrics.WebhookFailures.WithLabelValues("bad_payload").Inc()
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if hook.Event == "" {
		h.metrics.WebhookFailures.WithLabelValues("bad_payload").Inc()
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing event field")
		return
	}

	switch billing.ClassifyEvent(hook.Event) {
	case billing.EventKindPayment:
		h.handlePaymentEvent(w, r, hook)
	case billing.EventKindSubscription:
		h.handleSubscriptionEvent(w, r, hook)
	default:
		h.metrics.WebhookEvents.WithLabelValues(hook.Event, "ignored").Inc()
		h.logger.Debug().Str("event", hook.Event).Msg("ignoring unhandled webhook event")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	}
}

func (h *Handler) handlePaymentEvent(w http.ResponseWriter, r *http.Request, hook asaasWebhook) {
	if hook.Payment.ID == "" {
		h.metrics.WebhookFailures.WithLabelValues("bad_payload").Inc()
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing payment data")
		return
	}

	dueDate, err := time.Parse("2006-01-02", hook.Payment.DueDate)
	if err != nil {
		h.metrics.WebhookFailures.WithLabelValues("bad_payload").Inc()
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid payment due date")
		return
	}
	var paymentDate *time.Time
	if hook.Payment.PaymentDate != "" {
		if t, err := time.Parse("2006-01-02", hook.Payment.PaymentDate); err == nil {
			paymentDate = &t
		}
	}

	evt := app.PaymentEvent{
		Event:          hook.Event,
		ProviderID:     hook.Payment.ID,
		CustomerID:     hook.Payment.Customer,
		SubscriptionID: hook.Payment.Subscription,
		Status:         hook.Payment.Status,
		Value:          int64(math.Round(hook.Payment.Value * 100)),
		DueDate:        dueDate,
		PaymentDate:    paymentDate,
		InvoiceURL:     hook.Payment.InvoiceURL,
		BillingType:    hook.Payment.BillingType,
		Description:    hook.Payment.Description,
	}

	if err := h.reconciler.HandlePaymentEvent(r.Context(), evt); err != nil {
		// Unmatched or failed events return 200 so the provider stops
		// redelivering; failures are visible in logs and metrics.
		if errors.Is(err, app.ErrUnmatchedPayment) {
			h.metrics.WebhookEvents.WithLabelValues(hook.Event, "unmatched").Inc()
			h.logger.Warn().
				Str("event", hook.Event).
				Str("payment_id", hook.Payment.ID).
				Str("customer_id", hook.Payment.Customer).
				Msg("payment event matched no contract")
			writeJSON(w, http.StatusOK, map[string]string{"status": "unmatched"})
			return
		}
		h.metrics.WebhookEvents.WithLabelValues(hook.Event, "error").Inc()
		h.logger.Error().Err(err).
			Str("event", hook.Event).
			Str("payment_id", hook.Payment.ID).
			Msg("payment event reconciliation failed")
		writeJSON(w, http.StatusOK, map[string]string{"status": "error"})
		return
	}

	h.metrics.WebhookEvents.WithLabelValues(hook.Event, "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

func (h *Handler) handleSubscriptionEvent(w http.ResponseWriter, r *http.Request, hook asaasWebhook) {
	if hook.Subscription.ID == "" {
		h.metrics.WebhookFailures.WithLabelValues("bad_payload").Inc()
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing subscription data")
		return
	}

	err := h.reconciler.HandleSubscriptionEvent(r.Context(), hook.Event, hook.Subscription.ID, hook.Subscription.Status)
	if err != nil {
		if errors.Is(err, app.ErrUnmatchedPayment) {
			h.metrics.WebhookEvents.WithLabelValues(hook.Event, "unmatched").Inc()
			h.logger.Warn().
				Str("event", hook.Event).
				Str("subscription_id", hook.Subscription.ID).
				Msg("subscription event matched no contract")
			writeJSON(w, http.StatusOK, map[string]string{"status": "unmatched"})
			return
		}
		h.metrics.WebhookEvents.WithLabelValues(hook.Event, "error").Inc()
		h.logger.Error().Err(err).
			Str("event", hook.Event).
			Str("subscription_id", hook.Subscription.ID).
			Msg("subscription event reconciliation failed")
		writeJSON(w, http.StatusOK, map[string]string{"status": "error"})
		return
	}

	h.metrics.WebhookEvents.WithLabelValues(hook.Event, "ok").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}
