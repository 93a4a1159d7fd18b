package store

import (
	"testing"
	"time"
)

func TestPasswordResetCreate(t *testing.T) {
	db := setupTestDB(t)
	rs := NewPasswordResetStore(db)
	u := registerUser(t, NewUserStore(db), "alice@example.com", "Alice")

	pr, err := rs.Create(u.ID, u.Email)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(pr.Code) != 6 {
		t.Errorf("code = %q, want 6 digits", pr.Code)
	}
	if pr.UsedAt != nil || pr.Attempts != 0 {
		t.Errorf("new reset = %+v", pr)
	}
	if d := time.Until(pr.ExpiresAt); d < ResetTTL-time.Minute || d > ResetTTL+time.Minute {
		t.Errorf("expires in %v, want about %v", d, ResetTTL)
	}
}

func TestPasswordResetNewCodeReplacesOld(t *testing.T) {
	db := setupTestDB(t)
	rs := NewPasswordResetStore(db)
	u := registerUser(t, NewUserStore(db), "alice@example.com", "Alice")

	first, _ := rs.Create(u.ID, u.Email)
	second, _ := rs.Create(u.ID, u.Email)

	latest, err := rs.GetLatestByEmail(u.Email)
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest == nil || latest.ID != second.ID {
		t.Fatalf("latest = %+v, want id %d", latest, second.ID)
	}
	if latest.ID == first.ID {
		t.Error("first code should no longer be pending")
	}
}

func TestPasswordResetExpiredAndUsed(t *testing.T) {
	db := setupTestDB(t)
	rs := NewPasswordResetStore(db)
	u := registerUser(t, NewUserStore(db), "alice@example.com", "Alice")

	pr, _ := rs.Create(u.ID, u.Email)
	if err := rs.MarkUsed(pr.ID); err != nil {
		t.Fatalf("mark used: %v", err)
	}
	if got, _ := rs.GetLatestByEmail(u.Email); got != nil {
		t.Error("used code should be hidden")
	}

	pr, _ = rs.Create(u.ID, u.Email)
	past := time.Now().UTC().Add(-time.Minute)
	if _, err := db.Exec(`UPDATE password_resets SET expires_at = ? WHERE id = ?`, past, pr.ID); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if got, _ := rs.GetLatestByEmail(u.Email); got != nil {
		t.Error("expired code should be hidden")
	}

	n, err := rs.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestPasswordResetAttempts(t *testing.T) {
	db := setupTestDB(t)
	rs := NewPasswordResetStore(db)
	u := registerUser(t, NewUserStore(db), "alice@example.com", "Alice")
	pr, _ := rs.Create(u.ID, u.Email)

	for want := 1; want <= 3; want++ {
		got, err := rs.IncrementAttempts(pr.ID)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if got != want {
			t.Errorf("attempts = %d, want %d", got, want)
		}
	}
}
