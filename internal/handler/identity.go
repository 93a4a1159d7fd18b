package handler

import (
	"context"

	"github.com/bethesda/readingplan/internal/auth"
	"github.com/bethesda/readingplan/internal/progress"
)

// requestIdentity resolves the engine's current user from the request's
// AuthContext, so approval changes take effect on the next request.
type requestIdentity struct{}

func (requestIdentity) CurrentUser(ctx context.Context) (progress.Identity, bool) {
	ac, ok := auth.FromContext(ctx)
	if !ok || ac.UserID == "" {
		return progress.Identity{}, false
	}
	return progress.Identity{UserID: ac.UserID, Approved: auth.IsApproved(ctx)}, true
}
