package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/metapantry/internal/apperror"
)

// Pinger is anything that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

const pingTimeout = 2 * time.Second

// HealthHandler answers GET /healthz with 200 {"status":"ok"} while the
// store responds and 503 otherwise.
type HealthHandler struct {
	store  Pinger
	logger *slog.Logger
}

func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, logger: logger}
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		writeError(w, h.logger, apperror.StorageUnavailable("checking health", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
