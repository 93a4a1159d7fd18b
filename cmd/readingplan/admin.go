package main

import (
	"context"
	"fmt"

	"github.com/bethesda/readingplan/internal/handler"
	"github.com/bethesda/readingplan/internal/model"
	"github.com/bethesda/readingplan/internal/store"
)

type CreateAdminCmd struct {
	Email    string `arg:"" help:"Admin email address."`
	FullName string `help:"Display name for a new account." default:"Administrator"`
	Password string `help:"Password for a new account." env:"READINGPLAN_ADMIN_PASSWORD"`
}

// Run registers the account when it does not exist yet, then grants the
// admin role and approves it. An existing account keeps its password.
func (c *CreateAdminCmd) Run(g *Globals) error {
	db, err := g.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	users := store.NewUserStore(db)
	user, err := users.GetByEmail(c.Email)
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if user == nil {
		if len(c.Password) < 6 {
			return fmt.Errorf("a password of at least 6 characters is required for a new account")
		}
		hash, err := handler.HashPassword(c.Password)
		if err != nil {
			return err
		}
		user, err = users.Register(store.Registration{
			Email:        c.Email,
			PasswordHash: hash,
			FullName:     c.FullName,
		})
		if err != nil {
			return fmt.Errorf("register admin: %w", err)
		}
	}

	if err := store.NewRoleStore(db).Grant(user.ID, model.RoleAdmin); err != nil {
		return fmt.Errorf("grant admin: %w", err)
	}
	if err := store.NewProfileStore(db).UpdateApprovalStatus(context.Background(), user.ID, model.StatusApproved); err != nil {
		return fmt.Errorf("approve admin: %w", err)
	}

	g.logger.Info("admin ready", "user_id", user.ID, "email", user.Email)
	return nil
}

type ApproveCmd struct {
	Email  string `arg:"" help:"Member email address."`
	Status string `help:"New approval status." enum:"approved,pending,rejected" default:"approved"`
}

func (c *ApproveCmd) Run(g *Globals) error {
	db, err := g.openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := store.NewUserStore(db).GetByEmail(c.Email)
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("no account for %s", c.Email)
	}

	status := model.ApprovalStatus(c.Status)
	if err := store.NewProfileStore(db).UpdateApprovalStatus(context.Background(), user.ID, status); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	g.logger.Info("approval status changed", "user_id", user.ID, "status", status)
	return nil
}
