package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/pavelanni/adaptest/internal/i18n"
	"github.com/pavelanni/adaptest/internal/model"
)

const maxImportBytes = 10 << 20

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.engine.EndSession(userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	slog.Info("session ended by admin", "user_id", userID)
	writeJSON(w, http.StatusOK, map[string]string{"message": appI18n.T(r.Context(), "SessionEnded")})
}

func (h *Handler) handleImportItems(w http.ResponseWriter, r *http.Request) {
	var items []model.ItemImport
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImportBytes)).Decode(&items); err != nil {
		h.writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}

	n, err := h.items.ImportItems(items)
	if err != nil {
		slog.Error("failed to import items", "error", err)
		h.writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}

	slog.Info("imported items via admin", "count", n)
	writeJSON(w, http.StatusOK, map[string]any{
		"imported": n,
		"message":  appI18n.Tp(r.Context(), "ItemsImported", n),
	})
}
