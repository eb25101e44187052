package httpapi

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey int

const peerIDKey ctxKey = iota

// PeerIDFromContext returns the verified peer ID that RequireToken stored
// on the request context.
func PeerIDFromContext(ctx context.Context) (string, bool) {
	peerID, ok := ctx.Value(peerIDKey).(string)
	return peerID, ok
}

// RequireToken is the admission gate relays put in front of routes that
// grant network services. It accepts a live token as a bearer credential,
// checking liveness against the session store on every request; a token
// past its TTL is refused even if a sweep has not removed it yet.
func (s *Server) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing agent token")
			return
		}

		status := s.store.CheckToken(token)
		if !status.Valid {
			writeError(w, http.StatusUnauthorized, "invalid or expired agent token")
			return
		}

		ctx := context.WithValue(r.Context(), peerIDKey, status.PeerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
