package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bethesda/readingplan/internal/auth"
	"github.com/bethesda/readingplan/internal/progress"
	"github.com/bethesda/readingplan/internal/store"
	ws "github.com/bethesda/readingplan/internal/websocket"
)

// RecordsHandler exposes the raw record store for remote engines. Writes
// here bypass the caller's server-side engine, so it is dropped and rebuilt
// on the next dashboard request.
type RecordsHandler struct {
	records  *store.ProgressStore
	registry *progress.Registry
	hub      *ws.Hub
	now      func() time.Time
	logger   *slog.Logger
}

func NewRecordsHandler(records *store.ProgressStore, registry *progress.Registry, hub *ws.Hub, now func() time.Time, logger *slog.Logger) *RecordsHandler {
	if now == nil {
		now = time.Now
	}
	return &RecordsHandler{records: records, registry: registry, hub: hub, now: now, logger: logger}
}

func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	days, err := h.records.FetchProgress(r.Context(), userID)
	if err != nil {
		h.logger.Error("fetch records", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load reading progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

func (h *RecordsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	day, err := parseDayParam(r)
	if err != nil {
		dayParamError(w, err)
		return
	}

	var req struct {
		CompletedAt *time.Time `json:"completed_at"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := decodeOptional(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	completedAt := h.now()
	if req.CompletedAt != nil {
		completedAt = *req.CompletedAt
	}

	userID := auth.UserID(r.Context())
	if err := h.records.UpsertProgress(r.Context(), userID, day, completedAt); err != nil {
		h.logger.Error("upsert record", "user_id", userID, "day", day, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save progress")
		return
	}
	h.changed(userID, "marked", day)
	w.WriteHeader(http.StatusNoContent)
}

func (h *RecordsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	day, err := parseDayParam(r)
	if err != nil {
		dayParamError(w, err)
		return
	}

	userID := auth.UserID(r.Context())
	if err := h.records.DeleteProgress(r.Context(), userID, day); err != nil {
		h.logger.Error("delete record", "user_id", userID, "day", day, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete progress")
		return
	}
	h.changed(userID, "unmarked", day)
	w.WriteHeader(http.StatusNoContent)
}

func (h *RecordsHandler) changed(userID, action string, day int) {
	h.registry.Remove(userID)
	h.hub.SendToUser(userID, ws.NewMessage("progress", action, userID, day, nil))
}

// decodeOptional decodes a JSON body, treating an empty body as {}.
func decodeOptional(body io.Reader, v any) error {
	err := json.NewDecoder(body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
