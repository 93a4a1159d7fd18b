package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/bethesda/readingplan/internal/auth"
	"github.com/bethesda/readingplan/internal/middleware"
	"github.com/bethesda/readingplan/internal/model"
	"github.com/bethesda/readingplan/internal/store"
	ws "github.com/bethesda/readingplan/internal/websocket"
)

// BcryptCost is the work factor for new password hashes.
var BcryptCost = bcrypt.DefaultCost

type AuthHandler struct {
	users    *store.UserStore
	profiles *store.ProfileStore
	roles    *store.RoleStore
	sessions *store.SessionStore
	resets   *store.PasswordResetStore
	hub      *ws.Hub
	mailer   Mailer
	logger   *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	ps *store.ProfileStore,
	rs *store.RoleStore,
	ss *store.SessionStore,
	prs *store.PasswordResetStore,
	hub *ws.Hub,
	mailer Mailer,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:    us,
		profiles: ps,
		roles:    rs,
		sessions: ss,
		resets:   prs,
		hub:      hub,
		mailer:   mailer,
		logger:   logger,
	}
}

// HashPassword hashes a plain-text password with BcryptCost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.normalize()
	if errs := req.validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": errs})
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	user, err := h.users.Register(store.Registration{
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Phone:        req.Phone,
	})
	if errors.Is(err, store.ErrDuplicateEmail) {
		writeError(w, http.StatusConflict, "an account with that email already exists")
		return
	}
	if err != nil {
		h.logger.Error("register", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	profile, err := h.profiles.Get(r.Context(), user.ID)
	if err != nil || profile == nil {
		h.logger.Error("load new profile", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	h.logger.Info("member registered", "user_id", user.ID)
	if h.mailer != nil {
		if err := h.mailer.SendWelcome(r.Context(), profile.Email, profile.FullName); err != nil {
			h.logger.Warn("send welcome email", "user_id", user.ID, "error", err)
		}
	}
	h.hub.SendToAdmins(ws.NewMessage("profile", "registered", user.ID, 0, map[string]any{
		"full_name": profile.FullName,
	}))
	writeJSON(w, http.StatusCreated, profile)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.users.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	sess, err := h.sessions.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sign in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      sess.Token,
		"expires_at": sess.ExpiresAt,
		"user":       user,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessions.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	User       *model.User    `json:"user"`
	Profile    *model.Profile `json:"profile"`
	Roles      []string       `json:"roles"`
	IsAdmin    bool           `json:"is_admin"`
	Approved   bool           `json:"approved"`
	NeedsPhone bool           `json:"needs_phone"`
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.GetByID(ac.UserID)
	if err != nil || user == nil {
		h.logger.Error("me user lookup", "user_id", ac.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	profile, err := h.profiles.Get(r.Context(), ac.UserID)
	if err != nil {
		h.logger.Error("me profile lookup", "user_id", ac.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	roles := ac.Roles
	if roles == nil {
		roles = []string{}
	}
	writeJSON(w, http.StatusOK, meResponse{
		User:       user,
		Profile:    profile,
		Roles:      roles,
		IsAdmin:    auth.IsAdmin(r.Context()),
		Approved:   auth.IsApproved(r.Context()),
		NeedsPhone: profile != nil && profile.NeedsPhone(),
	})
}

func (h *AuthHandler) UpdatePhone(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req struct {
		Phone string `json:"phone"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if msg := phoneError(req.Phone); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.profiles.UpdatePhone(r.Context(), userID, req.Phone); err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		h.logger.Error("update phone", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update phone")
		return
	}

	profile, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
