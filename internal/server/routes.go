package server

import "net/http"

// Routes builds the HTTP handler with all gateway routes and middleware.
// Middleware order: request ID first so log lines carry it, then request
// logging.
func Routes(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/captions", h.handleCaptions)
	mux.HandleFunc("GET /v1/quota", h.handleQuota)
	mux.HandleFunc("POST /v1/feedback", h.handleFeedback)
	mux.HandleFunc("POST /v1/events", h.handleEvents)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /admin/circuits", h.handleCircuits)
	mux.HandleFunc("POST /admin/circuits/reset", h.handleCircuitsReset)

	var handler http.Handler = mux
	handler = LoggingMiddleware()(handler)
	handler = RequestIDMiddleware()(handler)

	return handler
}
