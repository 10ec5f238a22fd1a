package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"tekmax-dispatch/internal/apperr"
	"tekmax-dispatch/internal/logx"
	"tekmax-dispatch/internal/provider"
	"tekmax-dispatch/internal/repository"
)

// WebhookHandler ingests order webhooks. Authentication happens against
// the webhook configuration store; the payload itself is opaque here and
// decoded by the order source.
type WebhookHandler struct {
	resolver webhookResolver
	events   inboundNormalizer
	dispatch dispatcher
	rejected prometheus.Counter
	logger   logx.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(logger logx.Logger, resolver webhookResolver, events inboundNormalizer, dispatch dispatcher, rejected prometheus.Counter) *WebhookHandler {
	return &WebhookHandler{
		resolver: resolver,
		events:   events,
		dispatch: dispatch,
		rejected: rejected,
		logger:   logger,
	}
}

// sourceNames maps URL slugs onto order source names.
var sourceNames = map[string]string{
	"gloria-food": provider.NameGloriaFood,
}

// Receive handles POST /api/webhooks/{source}.
//
// 202 once the event is durably applied; re-delivery of an already
// processed payload is also 202. 401 for unknown, inactive or mismatched
// keys, 400 for undecodable payloads, 404 for a cancellation of an order
// never seen, 409 for updates that would move a finished delivery.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	source, ok := sourceNames[chi.URLParam(r, "source")]
	if !ok {
		writeError(h.logger, w, r, http.StatusNotFound, "unknown webhook source")
		return
	}

	cfg, status := h.authenticate(r, source)
	if status != 0 {
		h.reject(w, r, status, "unauthorized")
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		h.reject(w, r, http.StatusBadRequest, "unreadable body")
		return
	}

	ev, err := h.events.Inbound(source, body)
	if err != nil {
		h.logger.Warn("webhook rejected",
			logx.String("req_id", reqID(r.Context())),
			logx.String("source", source),
			logx.Err(err),
		)
		h.reject(w, r, http.StatusBadRequest, "invalid payload")
		return
	}

	err = h.dispatch.HandleInbound(r.Context(), cfg.RestaurantID, ev)
	switch {
	case err == nil:
		writeJSON(h.logger, w, r, http.StatusAccepted, map[string]string{"status": "accepted"})
	case errors.Is(err, apperr.ErrValidation):
		h.reject(w, r, http.StatusBadRequest, "invalid payload")
	case errors.Is(err, apperr.ErrNotFound):
		writeError(h.logger, w, r, http.StatusNotFound, "order not found")
	case errors.Is(err, apperr.ErrStateConflict):
		writeError(h.logger, w, r, http.StatusConflict, "delivery already finished")
	default:
		h.logger.Error("webhook processing failed",
			logx.String("req_id", reqID(r.Context())),
			logx.String("source", source),
			logx.Err(err),
		)
		writeError(h.logger, w, r, http.StatusInternalServerError, "internal error")
	}
}

// authenticate resolves the caller's API key and, when a secret is
// configured, verifies it in constant time. Returns the matched config or
// the HTTP status to reject with.
func (h *WebhookHandler) authenticate(r *http.Request, source string) (*repository.WebhookConfig, int) {
	apiKey := r.Header.Get("X-API-Key")
	if apiKey == "" {
		// Gloria Food can also send the key in Authorization.
		apiKey = r.Header.Get("Authorization")
	}
	if apiKey == "" {
		return nil, http.StatusUnauthorized
	}

	cfg, err := h.resolver.ResolveWebhook(r.Context(), apiKey)
	if err != nil {
		h.logger.Error("webhook config lookup failed", logx.Err(err))
		return nil, http.StatusInternalServerError
	}
	if cfg == nil || !cfg.Active || cfg.Platform != source {
		return nil, http.StatusUnauthorized
	}

	if cfg.APISecret != "" {
		got := r.Header.Get("X-API-Secret")
		if len(got) != len(cfg.APISecret) ||
			subtle.ConstantTimeCompare([]byte(got), []byte(cfg.APISecret)) != 1 {
			return nil, http.StatusUnauthorized
		}
	}
	return cfg, 0
}

func (h *WebhookHandler) reject(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if h.rejected != nil {
		h.rejected.Inc()
	}
	writeError(h.logger, w, r, status, msg)
}
