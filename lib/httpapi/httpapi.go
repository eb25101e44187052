// Package httpapi binds the Isnad handshake to HTTP. The protocol itself
// is defined against the plain data structures in lib/task and the session
// store's operations; this package only does JSON en/decoding, status
// mapping, and admission middleware, so the transport stays swappable.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/harbormesh/isnad"
	"github.com/harbormesh/isnad/internal"
	"github.com/harbormesh/isnad/lib/session"
	"github.com/harbormesh/isnad/lib/task"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var tokenChecks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "isnad_token_checks_total",
	Help: "The total number of token liveness checks by result",
}, []string{"valid"})

type Server struct {
	store *session.Store
}

func New(store *session.Store) *Server {
	return &Server{store: store}
}

// Handler builds the full auth router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s.RegisterRoutes(r)

	return r
}

// RegisterRoutes mounts the auth endpoints on an existing router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post(isnad.ChallengePath, s.requestChallenge)
	r.Post(isnad.VerifyPath, s.verifyResponse)
	r.Post(isnad.CheckPath, s.checkToken)
}

type challengeRequest struct {
	PeerID string `json:"peerId"`
}

type challengeResponse struct {
	Challenge *task.Challenge `json:"challenge"`
}

type verifyRequest struct {
	PeerID   string        `json:"peerId"`
	Response task.Response `json:"response"`
}

type verifyResponse struct {
	Token            string `json:"token"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
	PeerID           string `json:"peerId"`
}

type checkTokenRequest struct {
	Token string `json:"token"`
}

type checkTokenResponse struct {
	Valid            bool   `json:"valid"`
	PeerID           string `json:"peerId,omitempty"`
	RemainingSeconds int64  `json:"remainingSeconds"`
}

type authError struct {
	Error string `json:"error"`
}

func (s *Server) requestChallenge(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.PeerID == "" {
		writeError(w, http.StatusBadRequest, "peerId is required")
		return
	}

	ch, err := s.store.RequestChallenge(req.PeerID)
	if err != nil {
		writeSessionError(w, lg, err)
		return
	}

	writeJSON(w, http.StatusOK, challengeResponse{Challenge: ch})
}

func (s *Server) verifyResponse(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tok, err := s.store.VerifyResponse(&req.Response, req.PeerID)
	if err != nil {
		writeSessionError(w, lg, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		Token:            tok.Token,
		ExpiresInSeconds: int64(tok.ExpiresIn.Seconds()),
		PeerID:           tok.PeerID,
	})
}

func (s *Server) checkToken(w http.ResponseWriter, r *http.Request) {
	var req checkTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status := s.store.CheckToken(req.Token)
	if status.Valid {
		tokenChecks.WithLabelValues("true").Inc()
	} else {
		tokenChecks.WithLabelValues("false").Inc()
	}

	writeJSON(w, http.StatusOK, checkTokenResponse{
		Valid:            status.Valid,
		PeerID:           status.PeerID,
		RemainingSeconds: status.RemainingSeconds,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, authError{Error: msg})
}

func writeSessionError(w http.ResponseWriter, lg *slog.Logger, err error) {
	var serr *session.Error
	if errors.As(err, &serr) {
		if serr.StatusCode >= http.StatusInternalServerError {
			lg.Error("internal auth error", "verb", serr.Verb, "err", serr.PrivateReason)
		}
		writeError(w, serr.StatusCode, serr.PublicReason)
		return
	}

	lg.Error("unexpected auth error", "err", err)
	writeError(w, http.StatusInternalServerError, "Internal error")
}
