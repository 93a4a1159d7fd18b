package handler

import (
	"context"

	"github.com/bethesda/readingplan/internal/model"
)

// Mailer sends account emails. Handlers skip mail when it is nil, and a
// failed send is logged without failing the request.
type Mailer interface {
	SendWelcome(ctx context.Context, toEmail, fullName string) error
	SendStatusChange(ctx context.Context, toEmail, fullName string, status model.ApprovalStatus) error
	SendPasswordReset(ctx context.Context, toEmail, fullName, code string) error
}
