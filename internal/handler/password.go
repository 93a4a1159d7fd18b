package handler

import (
	"net/http"
	"strings"

	"github.com/bethesda/readingplan/internal/model"
)

const maxResetAttempts = 5

// ForgotPassword handles POST /api/auth/forgot. The response is the same
// whether or not the address has an account.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	email := strings.TrimSpace(req.Email)
	if !validEmail(email) {
		writeError(w, http.StatusBadRequest, "Please enter a valid email address")
		return
	}

	user, err := h.users.GetByEmail(email)
	if err != nil {
		h.logger.Error("forgot password lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start password reset")
		return
	}
	if user != nil {
		h.sendResetCode(r, user)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (h *AuthHandler) sendResetCode(r *http.Request, user *model.User) {
	pr, err := h.resets.Create(user.ID, user.Email)
	if err != nil {
		h.logger.Error("create password reset", "user_id", user.ID, "error", err)
		return
	}
	if h.mailer == nil {
		h.logger.Warn("password reset requested but email is disabled", "user_id", user.ID)
		return
	}

	name := user.Email
	if profile, err := h.profiles.Get(r.Context(), user.ID); err == nil && profile != nil {
		name = profile.FullName
	}
	if err := h.mailer.SendPasswordReset(r.Context(), user.Email, name, pr.Code); err != nil {
		h.logger.Warn("send password reset email", "user_id", user.ID, "error", err)
	}
}

type resetRequest struct {
	Email           string `json:"email"`
	Code            string `json:"code"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ResetPassword handles POST /api/auth/reset. A successful reset signs the
// user out everywhere.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Code = strings.TrimSpace(req.Code)

	if len(req.Password) < minPasswordLen {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": map[string]string{
			"password": "Password must be at least 6 characters",
		}})
		return
	}
	if req.Password != req.ConfirmPassword {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": map[string]string{
			"confirm_password": "Passwords don't match",
		}})
		return
	}

	pr, msg := h.validateResetCode(req.Email, req.Code)
	if pr == nil {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}
	if err := h.users.UpdatePassword(pr.UserID, hash); err != nil {
		h.logger.Error("update password", "user_id", pr.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}
	if err := h.sessions.DeleteByUserID(pr.UserID); err != nil {
		h.logger.Error("delete sessions after reset", "user_id", pr.UserID, "error", err)
	}

	h.logger.Info("password reset", "user_id", pr.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// validateResetCode consumes the pending code for email. It returns the
// reset on success, or a user-facing message.
func (h *AuthHandler) validateResetCode(email, code string) (*model.PasswordReset, string) {
	if email == "" || code == "" {
		return nil, "Email and code are required"
	}

	latest, err := h.resets.GetLatestByEmail(email)
	if err != nil {
		h.logger.Error("reset code lookup", "error", err)
		return nil, "Internal error"
	}
	if latest == nil {
		return nil, "Code has expired or already been used. Please request a new one."
	}

	if latest.Attempts >= maxResetAttempts {
		h.resets.MarkUsed(latest.ID)
		return nil, "Too many incorrect attempts. Please request a new code."
	}

	if latest.Code != code {
		attempts, err := h.resets.IncrementAttempts(latest.ID)
		if err != nil {
			h.logger.Error("increment reset attempts", "error", err)
		}
		if attempts >= maxResetAttempts {
			h.resets.MarkUsed(latest.ID)
			return nil, "Too many incorrect attempts. Please request a new code."
		}
		return nil, "Incorrect code. Please try again."
	}

	if err := h.resets.MarkUsed(latest.ID); err != nil {
		h.logger.Error("mark reset used", "error", err)
		return nil, "Internal error"
	}
	return latest, ""
}
