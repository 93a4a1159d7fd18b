package auth

import (
	"context"
	"testing"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		UserID:    "u-1",
		Roles:     []string{"member"},
		SessionID: 3,
		Approved:  true,
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.UserID != "u-1" {
		t.Errorf("UserID = %q, want %q", got.UserID, "u-1")
	}
	if !got.HasRole("member") {
		t.Errorf("Roles = %v, want member", got.Roles)
	}
	if got.SessionID != 3 {
		t.Errorf("SessionID = %d, want 3", got.SessionID)
	}
	if !got.Approved {
		t.Error("expected Approved = true")
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestUserID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{UserID: "u-7"})
	if UserID(ctx) != "u-7" {
		t.Errorf("UserID = %q, want %q", UserID(ctx), "u-7")
	}
}

func TestUserIDMissing(t *testing.T) {
	if UserID(context.Background()) != "" {
		t.Error("expected empty ID for missing context")
	}
}

func TestIsAdmin(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{Roles: []string{"admin", "member"}})
	if !IsAdmin(ctx) {
		t.Error("expected IsAdmin = true for admin role")
	}
}

func TestIsAdminMember(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{Roles: []string{"member"}})
	if IsAdmin(ctx) {
		t.Error("expected IsAdmin = false for member role")
	}
}

func TestIsApproved(t *testing.T) {
	tests := []struct {
		name string
		ac   AuthContext
		want bool
	}{
		{"approved member", AuthContext{Roles: []string{"member"}, Approved: true}, true},
		{"pending member", AuthContext{Roles: []string{"member"}}, false},
		{"admin", AuthContext{Roles: []string{"admin"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithAuth(context.Background(), tt.ac)
			if got := IsApproved(ctx); got != tt.want {
				t.Errorf("IsApproved = %v, want %v", got, tt.want)
			}
		})
	}
	if IsApproved(context.Background()) {
		t.Error("expected false for missing context")
	}
}
