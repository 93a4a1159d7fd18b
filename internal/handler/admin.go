package handler

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bethesda/readingplan/internal/auth"
	"github.com/bethesda/readingplan/internal/model"
	"github.com/bethesda/readingplan/internal/progress"
	"github.com/bethesda/readingplan/internal/report"
	"github.com/bethesda/readingplan/internal/store"
	ws "github.com/bethesda/readingplan/internal/websocket"
)

type AdminHandler struct {
	profiles *store.ProfileStore
	progress *store.ProgressStore
	roles    *store.RoleStore
	registry *progress.Registry
	hub      *ws.Hub
	mailer   Mailer
	now      func() time.Time
	logger   *slog.Logger
}

func NewAdminHandler(
	ps *store.ProfileStore,
	prog *store.ProgressStore,
	rs *store.RoleStore,
	registry *progress.Registry,
	hub *ws.Hub,
	mailer Mailer,
	now func() time.Time,
	logger *slog.Logger,
) *AdminHandler {
	if now == nil {
		now = time.Now
	}
	return &AdminHandler{
		profiles: ps,
		progress: prog,
		roles:    rs,
		registry: registry,
		hub:      hub,
		mailer:   mailer,
		now:      now,
		logger:   logger,
	}
}

func (h *AdminHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	status := model.ApprovalStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "status must be pending, approved or rejected")
		return
	}

	profiles, err := h.profiles.List(r.Context(), store.ProfileFilter{Status: status})
	if err != nil {
		h.logger.Error("list profiles", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list profiles")
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	var req struct {
		Status model.ApprovalStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "status must be pending, approved or rejected")
		return
	}

	err := h.profiles.UpdateApprovalStatus(r.Context(), userID, req.Status)
	if errors.Is(err, store.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		h.logger.Error("update approval status", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update status")
		return
	}

	h.logger.Info("approval status changed", "user_id", userID, "status", req.Status, "by", auth.UserID(r.Context()))
	h.statusChanged(userID, req.Status)

	profile, err := h.profiles.Get(r.Context(), userID)
	if err != nil || profile == nil {
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if h.mailer != nil {
		if err := h.mailer.SendStatusChange(r.Context(), profile.Email, profile.FullName, req.Status); err != nil {
			h.logger.Warn("send status email", "user_id", userID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, profile)
}

// RemoveUser deletes a member's progress and rejects their profile.
func (h *AdminHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == auth.UserID(r.Context()) {
		writeError(w, http.StatusBadRequest, "you cannot remove your own account")
		return
	}

	err := h.profiles.Remove(r.Context(), userID)
	if errors.Is(err, store.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		h.logger.Error("remove user", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove user")
		return
	}

	h.logger.Info("user removed", "user_id", userID, "by", auth.UserID(r.Context()))
	h.statusChanged(userID, model.StatusRejected)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) statusChanged(userID string, status model.ApprovalStatus) {
	h.registry.Remove(userID)
	h.hub.SendToUser(userID, ws.NewMessage("profile", "status_changed", userID, 0, map[string]any{
		"status": status,
	}))
}

func (h *AdminHandler) Summary(w http.ResponseWriter, r *http.Request) {
	rows, err := h.progress.Summary(r.Context())
	if err != nil {
		h.logger.Error("progress summary", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load summary")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		writeError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}

	snap, err := report.Collect(r.Context(), h.profiles, h.progress, h.roles)
	if err != nil {
		h.logger.Error("collect export", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build export")
		return
	}

	// render fully before writing headers so a failure can still be a 500
	var buf bytes.Buffer
	contentType := report.CSVContentType
	if format == "xlsx" {
		contentType = report.XLSXContentType
		err = report.WriteXLSX(&buf, snap)
	} else {
		err = report.WriteCSV(&buf, snap)
	}
	if err != nil {
		h.logger.Error("render export", "format", format, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build export")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(h.now(), format)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
