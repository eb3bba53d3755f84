package uisync

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	ws "github.com/coder/websocket"

	"github.com/axyra/membership/pkg/observability"
)

// TokenQueryParam carries the bearer token for browsers, which cannot set
// headers on a websocket handshake.
const TokenQueryParam = "access_token"

// HandlerOptions configures the websocket endpoint.
type HandlerOptions struct {
	// Tokens maps each bearer token to the one user it may watch. With no
	// tokens every request is refused.
	Tokens map[string]string
	// OriginPatterns lists browser origins allowed besides the endpoint's
	// own host.
	OriginPatterns []string
	Logger         *slog.Logger
}

// HandleWebSocket upgrades authenticated /ws requests and streams the
// caller's membership view, starting with the current one. The optional
// user parameter must name the authenticated user.
func HandleWebSocket(hub *Hub, syncer *Syncer, opts HandlerOptions) http.HandlerFunc {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userForToken(opts.Tokens, bearerToken(r))
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="axyra"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if requested := r.URL.Query().Get("user"); requested != "" && requested != userID {
			logger.Warn("websocket user mismatch", "user_id", userID, "requested", requested)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: opts.OriginPatterns})
		if err != nil {
			logger.Warn("websocket accept failed", "user_id", userID, "error", err)
			return
		}
		defer conn.CloseNow()

		ctx := observability.WithUserID(r.Context(), userID)

		var initial []byte
		if syncer != nil {
			if view, err := syncer.View(ctx, userID); err == nil {
				initial, _ = json.Marshal(Message{Type: MessageTypeView, View: view})
			} else {
				logger.Warn("initial view unavailable", "user_id", userID, "error", err)
			}
		}

		NewClient(hub, conn, userID).Run(ctx, initial)
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return r.URL.Query().Get(TokenQueryParam)
}

func userForToken(tokens map[string]string, token string) (string, bool) {
	if token == "" {
		return "", false
	}
	for candidate, userID := range tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			return userID, userID != ""
		}
	}
	return "", false
}
