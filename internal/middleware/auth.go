package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bethesda/readingplan/internal/auth"
	"github.com/bethesda/readingplan/internal/store"
)

// SessionCookieName is the cookie that carries the session token.
const SessionCookieName = "readingplan_session"

// SessionToken returns the token from the session cookie, or from an
// "Authorization: Bearer" header when there is no cookie.
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireAuth validates the session and populates AuthContext with the
// caller's roles and approval state.
func RequireAuth(sessions *store.SessionStore, roles *store.RoleStore, profiles *store.ProfileStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				unauthorized(w, "missing session")
				return
			}

			sess, err := sessions.GetByToken(token)
			if err != nil || sess == nil {
				unauthorized(w, "invalid or expired session")
				return
			}

			userRoles, err := roles.ListForUser(sess.UserID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to load roles")
				return
			}
			profile, err := profiles.Get(r.Context(), sess.UserID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to load profile")
				return
			}

			ac := auth.AuthContext{
				UserID:    sess.UserID,
				Roles:     userRoles,
				SessionID: sess.ID,
				Approved:  profile != nil && profile.Approved(),
			}
			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the authenticated user has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireApproved rejects members whose profile is still pending or was
// rejected.
func RequireApproved(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsApproved(r.Context()) {
			writeError(w, http.StatusForbidden, "account pending approval")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="readingplan"`)
	writeError(w, http.StatusUnauthorized, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
