package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/bethesda/readingplan/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and runs it as a Hub
// client bound to the caller's user ID. An empty originPatterns list only
// accepts same-origin connections.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept", "user_id", ac.UserID, "error", err)
			return
		}
		defer conn.CloseNow()

		client := NewClient(hub, conn, ac.UserID, auth.IsAdmin(r.Context()))
		client.Run(r.Context())
	}
}
