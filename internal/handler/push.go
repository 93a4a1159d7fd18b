package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bethesda/readingplan/internal/auth"
	"github.com/bethesda/readingplan/internal/push"
	"github.com/bethesda/readingplan/internal/store"
)

type PushHandler struct {
	pushStore *store.PushStore
	sender    push.Sender
	publicKey string
	logger    *slog.Logger
}

func NewPushHandler(ps *store.PushStore, sender push.Sender, publicKey string, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, sender: sender, publicKey: publicKey, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
}

// Subscribe handles POST /api/push/subscriptions
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req subscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint, p256dh, and auth are required")
		return
	}

	sub, err := h.pushStore.Create(r.Context(), userID, req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		h.logger.Error("create push subscription", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// List handles GET /api/push/subscriptions
func (h *PushHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	subs, err := h.pushStore.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("list push subscriptions", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	removed, err := h.pushStore.Delete(r.Context(), id, userID)
	if err != nil {
		h.logger.Error("delete push subscription", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// VAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.publicKey})
}

// Test handles POST /api/push/test
func (h *PushHandler) Test(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	subs, err := h.pushStore.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}

	payload := push.Payload{
		Title: "Test notification",
		Body:  "Reading reminders are working.",
		URL:   "/",
		Tag:   "test",
	}

	sent := 0
	for i := range subs {
		err := h.sender.Send(r.Context(), &subs[i], payload)
		if errors.Is(err, push.ErrExpired) {
			if err := h.pushStore.DeleteByEndpoint(r.Context(), subs[i].Endpoint); err != nil {
				h.logger.Error("remove expired subscription", "id", subs[i].ID, "error", err)
			}
			continue
		}
		if err != nil {
			h.logger.Warn("test push send", "id", subs[i].ID, "error", err)
			continue
		}
		sent++
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
