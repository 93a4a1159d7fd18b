package store

import (
	"context"
	"errors"
	"testing"

	"github.com/bethesda/readingplan/internal/model"
)

func TestUserRegister(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)

	u, err := us.Register(Registration{
		Email:        "  Alice@Example.com ",
		PasswordHash: "hash",
		FullName:     "Alice Smith",
		Phone:        "555-0100",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.ID == "" {
		t.Error("expected non-empty ID")
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}

	p, err := NewProfileStore(db).Get(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p == nil {
		t.Fatal("expected profile, got nil")
	}
	if p.ApprovalStatus != model.StatusPending {
		t.Errorf("status = %q, want %q", p.ApprovalStatus, model.StatusPending)
	}
	if p.FullName != "Alice Smith" {
		t.Errorf("full_name = %q, want %q", p.FullName, "Alice Smith")
	}
	if p.Phone == nil || *p.Phone != "555-0100" {
		t.Errorf("phone = %v, want 555-0100", p.Phone)
	}

	isMember, err := NewRoleStore(db).HasRole(u.ID, model.RoleMember)
	if err != nil {
		t.Fatalf("has role: %v", err)
	}
	if !isMember {
		t.Error("expected member role after registration")
	}
}

func TestUserRegisterDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)

	registerUser(t, us, "alice@example.com", "Alice")
	_, err := us.Register(Registration{Email: "ALICE@example.com", PasswordHash: "x", FullName: "Other"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("err = %v, want ErrDuplicateEmail", err)
	}

	profiles, err := NewProfileStore(db).List(context.Background(), ProfileFilter{})
	if err != nil {
		t.Fatalf("list profiles: %v", err)
	}
	if len(profiles) != 1 {
		t.Errorf("profiles = %d, want 1 (failed registration must not leave rows)", len(profiles))
	}
}

func TestUserGetByEmail(t *testing.T) {
	us := NewUserStore(setupTestDB(t))
	created := registerUser(t, us, "bob@example.com", "Bob")

	u, err := us.GetByEmail("BOB@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u == nil || u.ID != created.ID {
		t.Errorf("got %v, want user %s", u, created.ID)
	}

	missing, err := us.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown email")
	}
}

func TestUserUpdatePassword(t *testing.T) {
	us := NewUserStore(setupTestDB(t))
	u := registerUser(t, us, "carol@example.com", "Carol")

	if err := us.UpdatePassword(u.ID, "newhash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	got, _ := us.GetByID(u.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("password_hash = %q, want %q", got.PasswordHash, "newhash")
	}
}

func TestUserDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	ps := NewProgressStore(db)
	ctx := context.Background()

	u := registerUser(t, us, "dave@example.com", "Dave")
	if err := ps.UpsertProgress(ctx, u.ID, 1, fixedTime); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := us.Delete(u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, _ := us.GetByID(u.ID)
	if got != nil {
		t.Error("expected user to be gone")
	}
	p, _ := NewProfileStore(db).Get(ctx, u.ID)
	if p != nil {
		t.Error("expected profile to be deleted with user")
	}
	all, _ := ps.ListAll(ctx)
	if len(all) != 0 {
		t.Errorf("records = %d, want 0", len(all))
	}
}
