package server

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/capgate/capgate/internal/breaker"
)

type circuitEntry struct {
	Operation string `json:"operation"`
	breaker.Stats
}

// handleCircuits lists every breaker the registry has created, sorted by
// operation name for stable output.
func (h *Handler) handleCircuits(w http.ResponseWriter, _ *http.Request) {
	all := h.breakers.StatsAll()

	entries := lo.MapToSlice(all, func(op string, stats breaker.Stats) circuitEntry {
		return circuitEntry{Operation: op, Stats: stats}
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].Operation < entries[j].Operation })

	open := lo.CountBy(entries, func(e circuitEntry) bool { return e.IsOpen })

	writeJSON(w, http.StatusOK, map[string]any{
		"circuits": entries,
		"open":     open,
	})
}

type circuitResetRequest struct {
	Operation string `json:"operation"`
}

// handleCircuitsReset forcibly closes a breaker. Operator escape hatch for
// when the upstream is known healthy again and waiting out the open window
// is not acceptable.
func (h *Handler) handleCircuitsReset(w http.ResponseWriter, r *http.Request) {
	var req circuitResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrTypeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Operation == "" {
		WriteError(w, http.StatusBadRequest, ErrTypeInvalidRequest, "operation is required")
		return
	}

	h.breakers.Reset(req.Operation)

	zerolog.Ctx(r.Context()).Info().
		Str("operation", req.Operation).
		Msg("circuit breaker reset")

	writeJSON(w, http.StatusOK, map[string]any{
		"operation": req.Operation,
		"stats":     h.breakers.Stats(req.Operation),
	})
}
