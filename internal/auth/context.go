package auth

import (
	"context"
	"slices"
)

type contextKey struct{}

type AuthContext struct {
	UserID    string
	Roles     []string
	SessionID int64
	Approved  bool
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func (ac AuthContext) HasRole(role string) bool {
	return slices.Contains(ac.Roles, role)
}

func UserID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.UserID
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.HasRole("admin")
}

// IsApproved reports whether the caller's profile has been approved.
// Administrators always count as approved.
func IsApproved(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Approved || ac.HasRole("admin")
}
