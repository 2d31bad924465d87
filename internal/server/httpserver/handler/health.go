package handler

import (
	"net/http"
	"time"

	"github.com/nguyendn/wwwhisper/internal/infra/buildinfo"
	"github.com/nguyendn/wwwhisper/internal/telemetry/logger"
)

// Health handles GET /health. It only reports that the process serves.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: buildinfo.Get().Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready. It answers 503 while the store is unreachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ready", Time: time.Now().UTC().Format(time.RFC3339)}
	if h.store != nil {
		ctx, cancel := h.storeCtx(r)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			logger.L(r.Context()).Warn("readiness check failed", "error", err)
			resp.Status = "unavailable"
			resp.Error = "store unavailable"
			h.writeJSON(w, r, http.StatusServiceUnavailable, resp)
			return
		}
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}
