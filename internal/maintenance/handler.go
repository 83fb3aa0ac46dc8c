package maintenance

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"bookshelf/internal/auth"
	"bookshelf/internal/observability"
)

// CleanupHandler clears account block timestamps that have already expired.
// Lockout correctness never depends on it (the login gate compares
// timestamps lazily); it exists so operators don't see stale blocks when
// inspecting the accounts table. Registered under /internal and guarded by
// CRON_SECRET.
type CleanupHandler struct {
	repo       *auth.Repository
	logger     *observability.Logger
	cronSecret string
	batchSize  int
}

func NewCleanupHandler(repo *auth.Repository, logger *observability.Logger, cronSecret string, batchSize int) *CleanupHandler {
	return &CleanupHandler{
		repo:       repo,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		batchSize:  batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") ||
		subtle.ConstantTimeCompare([]byte(strings.TrimSpace(parts[1])), []byte(h.cronSecret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	cleared, err := h.repo.ClearExpiredBlocks(r.Context(), h.batchSize)
	if err != nil {
		h.logger.Error("block_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("block_cleanup_completed", map[string]any{"cleared_blocks": cleared})
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"cleared_blocks": cleared,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
