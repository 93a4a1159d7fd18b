package store

import (
	"database/sql"
	"testing"

	"github.com/bethesda/readingplan/internal/database"
	"github.com/bethesda/readingplan/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func registerUser(t *testing.T, us *UserStore, email, name string) *model.User {
	t.Helper()
	u, err := us.Register(Registration{Email: email, PasswordHash: "hash", FullName: name})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u
}
