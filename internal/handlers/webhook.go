package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"

	"github.com/coursebuilder/backend/internal/events"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/services"
)

const maxWebhookBody = 1 << 16

// WebhookHandler receives inbound events from external providers.
//
// The generic provider endpoint is deliberately fail-open: a request
// with a bad shared secret gets a 200 and is dropped without side
// effects, so secret guessing learns nothing and providers do not retry-storm.
type WebhookHandler struct {
	log          *logger.Logger
	jobs         services.JobService
	commerce     services.CommerceService
	sharedSecret string
	stripeSecret string
}

func NewWebhookHandler(baseLog *logger.Logger, jobs services.JobService, commerce services.CommerceService, sharedSecret, stripeSecret string) *WebhookHandler {
	return &WebhookHandler{
		log:          baseLog.With("handler", "WebhookHandler"),
		jobs:         jobs,
		commerce:     commerce,
		sharedSecret: sharedSecret,
		stripeSecret: stripeSecret,
	}
}

type providerEvent struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// POST /webhooks/:provider
func (h *WebhookHandler) HandleProvider(c *gin.Context) {
	secret := c.GetHeader("X-Webhook-Secret")
	if h.sharedSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.sharedSecret)) != 1 {
		h.log.Warn("Webhook with invalid secret dropped", "provider", c.Param("provider"))
		RespondOK(c, gin.H{"status": "ok"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	var evt providerEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_event", err)
		return
	}

	payload, err := decodeEventPayload(evt)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_event", err)
		return
	}
	job, err := h.jobs.Dispatch(c.Request.Context(), uuid.Nil, payload)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "accepted", "job_id": job.ID})
}

// decodeEventPayload maps a named provider event onto its typed payload.
func decodeEventPayload(evt providerEvent) (events.Payload, error) {
	var payload events.Payload
	switch evt.Name {
	case events.VideoAssetAttached:
		p := events.VideoAssetAttachedPayload{}
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return nil, err
		}
		payload = p
	case events.SyncProductEntitlements:
		p := events.SyncProductEntitlementsPayload{}
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return nil, err
		}
		payload = p
	case events.ResourceIndexRequested:
		p := events.ResourceIndexRequestedPayload{}
		if err := json.Unmarshal(evt.Data, &p); err != nil {
			return nil, err
		}
		payload = p
	default:
		return nil, &events.UnknownEventError{Name: evt.Name}
	}
	return payload, payload.Validate()
}

// POST /webhooks/stripe
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	event, err := webhook.ConstructEventWithOptions(
		body,
		c.GetHeader("Stripe-Signature"),
		h.stripeSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_signature", err)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_event", err)
			return
		}
		purchase, err := h.commerce.HandleCheckoutCompleted(c.Request.Context(), checkoutFromSession(&session))
		if err != nil {
			RespondServiceError(c, err)
			return
		}
		RespondOK(c, gin.H{"status": "received", "purchase_id": purchase.ID})
	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_event", err)
			return
		}
		sessionID := charge.Metadata["checkout_session_id"]
		if err := h.commerce.HandleRefund(c.Request.Context(), sessionID); err != nil {
			RespondServiceError(c, err)
			return
		}
		RespondOK(c, gin.H{"status": "received"})
	default:
		// Unhandled event types are acknowledged so Stripe stops retrying.
		RespondOK(c, gin.H{"status": "ignored"})
	}
}

func checkoutFromSession(session *stripe.CheckoutSession) services.CheckoutCompleted {
	out := services.CheckoutCompleted{
		SessionID:   session.ID,
		AmountTotal: session.AmountTotal,
		Currency:    string(session.Currency),
		PriceID:     session.Metadata["price_id"],
	}
	if session.Customer != nil {
		out.CustomerID = session.Customer.ID
	}
	if session.CustomerDetails != nil {
		out.CustomerEmail = session.CustomerDetails.Email
	}
	if out.CustomerEmail == "" {
		out.CustomerEmail = session.CustomerEmail
	}
	return out
}
