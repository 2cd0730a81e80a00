// Package server implements the HTTP surface of the gateway: the
// generation endpoint behind the admission pipeline, the quota and
// auxiliary routes, health, and the admin breaker controls.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/capgate/capgate/internal/admission"
	"github.com/capgate/capgate/internal/breaker"
	"github.com/capgate/capgate/internal/config"
	"github.com/capgate/capgate/internal/counter"
	"github.com/capgate/capgate/internal/identity"
	"github.com/capgate/capgate/internal/quota"
	"github.com/capgate/capgate/internal/ratelimit"
	"github.com/capgate/capgate/internal/upstream"
)

// Handler serves the gateway routes.
type Handler struct {
	admission *admission.Controller
	breakers  *breaker.Registry
	store     counter.Store
	runtime   config.RuntimeConfig
	version   string
}

// NewHandler creates the route handler.
func NewHandler(
	ctrl *admission.Controller,
	breakers *breaker.Registry,
	store counter.Store,
	runtime config.RuntimeConfig,
	version string,
) *Handler {
	return &Handler{
		admission: ctrl,
		breakers:  breakers,
		store:     store,
		runtime:   runtime,
		version:   version,
	}
}

type captionRequest struct {
	Prompt    string `json:"prompt"`
	ImageData string `json:"image_data"`
	Mode      string `json:"mode"`
}

type captionResponse struct {
	Caption   string       `json:"caption"`
	Model     string       `json:"model"`
	RequestID string       `json:"request_id,omitempty"`
	Quota     quota.Status `json:"quota"`
}

// quotaExceededResponse is the error envelope plus the caller's quota
// snapshot, so rejected clients can self-throttle until the day rolls over.
type quotaExceededResponse struct {
	Type  string       `json:"type"`
	Error ErrorDetail  `json:"error"`
	Quota quota.Status `json:"quota"`
}

// handleCaptions drives a generation request through admission. Rate limit
// headers are set on every response where the limiter was consulted, so
// rejected callers can see their window.
func (h *Handler) handleCaptions(w http.ResponseWriter, r *http.Request) {
	var req captionRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		WriteError(w, http.StatusBadRequest, ErrTypeInvalidRequest, "prompt is required")
		return
	}

	caller := identity.FromRequest(r)

	decision := h.admission.Admit(r.Context(), admission.Request{
		Caller:    caller,
		Prompt:    req.Prompt,
		ImageData: req.ImageData,
		Mode:      req.Mode,
	})

	if decision.Outcome != admission.OutcomeIdentityUnresolvable {
		decision.RateLimit.Apply(w.Header())
	}

	switch decision.Outcome {
	case admission.OutcomeAllowed:
		writeJSON(w, http.StatusOK, captionResponse{
			Caption:   decision.Result.Caption,
			Model:     decision.Result.Model,
			RequestID: decision.Result.RequestID,
			Quota:     decision.Quota,
		})

	case admission.OutcomeIdentityUnresolvable:
		WriteError(w, http.StatusBadRequest, ErrTypeInvalidRequest,
			"caller identity could not be determined")

	case admission.OutcomeRateLimited:
		retryAfter := time.Until(decision.RateLimit.ResetAt)
		WriteRetryAfterError(w, http.StatusTooManyRequests, ErrTypeRateLimit,
			"too many requests, slow down", retryAfter)

	case admission.OutcomeQuotaExceeded:
		writeJSON(w, http.StatusTooManyRequests, quotaExceededResponse{
			Type: "error",
			Error: ErrorDetail{
				Type:    ErrTypeQuotaExceeded,
				Message: "daily generation allowance exhausted",
			},
			Quota: decision.Quota,
		})

	case admission.OutcomePermissionDenied:
		WriteError(w, http.StatusForbidden, ErrTypePermission,
			"this feature requires a pro plan")

	case admission.OutcomeCircuitOpen:
		WriteRetryAfterError(w, http.StatusServiceUnavailable, ErrTypeOverloaded,
			"generation is temporarily unavailable", decision.RetryAfter)

	case admission.OutcomeUpstreamFailure:
		h.writeUpstreamFailure(w, r, decision.Err)
	}
}

func (h *Handler) writeUpstreamFailure(w http.ResponseWriter, r *http.Request, err error) {
	var ue *upstream.Error
	if errors.As(err, &ue) {
		zerolog.Ctx(r.Context()).Warn().Err(err).Int("upstream_status", ue.Status).
			Msg("upstream generation failed")
		WriteError(w, http.StatusBadGateway, ErrTypeUpstream, ue.Message)
		return
	}

	zerolog.Ctx(r.Context()).Error().Err(err).Msg("generation failed")
	WriteError(w, http.StatusInternalServerError, ErrTypeInternal, "generation failed")
}

// handleQuota reports the caller's allowance without consuming any.
func (h *Handler) handleQuota(w http.ResponseWriter, r *http.Request) {
	caller := identity.FromRequest(r)
	if !caller.Resolvable() {
		WriteError(w, http.StatusBadRequest, ErrTypeInvalidRequest,
			"caller identity could not be determined")
		return
	}

	writeJSON(w, http.StatusOK, h.admission.QuotaStatus(r.Context(), caller))
}

type feedbackRequest struct {
	RequestID string `json:"request_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

// handleFeedback accepts a caption rating. Feedback is fire-and-forget:
// it is logged for offline analysis, not persisted here.
func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	caller := identity.FromRequest(r)
	if !h.throttle(w, r, ratelimit.ScopeFeedback, caller) {
		return
	}

	var req feedbackRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		WriteError(w, http.StatusBadRequest, ErrTypeInvalidRequest,
			"rating must be between 1 and 5")
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Stringer("caller", caller).
		Str("caption_request_id", req.RequestID).
		Int("rating", req.Rating).
		Msg("feedback received")

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

type eventsRequest struct {
	Events []event `json:"events"`
}

type event struct {
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties,omitempty"`
}

// handleEvents accepts a batch of client analytics events.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	caller := identity.FromRequest(r)
	if !h.throttle(w, r, ratelimit.ScopeEvents, caller) {
		return
	}

	var req eventsRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if len(req.Events) == 0 {
		WriteError(w, http.StatusBadRequest, ErrTypeInvalidRequest, "events must not be empty")
		return
	}
	for _, ev := range req.Events {
		if ev.Name == "" {
			WriteError(w, http.StatusBadRequest, ErrTypeInvalidRequest, "event name is required")
			return
		}
	}

	zerolog.Ctx(r.Context()).Info().
		Stringer("caller", caller).
		Int("count", len(req.Events)).
		Msg("events received")

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "accepted",
		"accepted": len(req.Events),
	})
}

// handleHealth reports liveness and whether the counter store is currently
// authoritative across instances.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	mode := counter.ModeLocal
	if mr, ok := h.store.(counter.ModeReporter); ok {
		mode = mr.Mode()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.version,
		"store": map[string]string{
			"mode": mode,
		},
	})
}

// throttle applies the fixed-window limit for an auxiliary route, writing
// the 429 itself when the caller is over. Unresolvable callers are
// rejected before touching the limiter.
func (h *Handler) throttle(w http.ResponseWriter, r *http.Request, scope ratelimit.Scope, caller identity.Caller) bool {
	if !caller.Resolvable() {
		WriteError(w, http.StatusBadRequest, ErrTypeInvalidRequest,
			"caller identity could not be determined")
		return false
	}

	result := h.admission.Throttle(r.Context(), scope, caller)
	result.Apply(w.Header())
	if !result.Allowed {
		WriteRetryAfterError(w, http.StatusTooManyRequests, ErrTypeRateLimit,
			"too many requests, slow down", time.Until(result.ResetAt))
		return false
	}
	return true
}

// decodeBody parses the JSON request body into dst with the configured
// size cap, writing the error response itself on failure.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.runtime.Get().Server.GetMaxBodyBytes())

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if IsBodyTooLargeError(err) {
			WriteError(w, http.StatusRequestEntityTooLarge, ErrTypeInvalidRequest,
				"request body exceeds the maximum allowed size")
			return false
		}
		WriteError(w, http.StatusBadRequest, ErrTypeInvalidRequest, "invalid JSON body")
		return false
	}
	return true
}
