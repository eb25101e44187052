// Package session manages the server side of the Isnad handshake: pending
// challenges and verified-agent tokens, both with TTL lifecycles.
//
// A challenge is single-use. The lookup on verification is an atomic
// remove, so a challenge ID reaches the scoring path at most once no
// matter how many submissions race for it; every loser observes absence
// and fails as not-found. Token liveness is always computed from the
// verification timestamp, never from map presence alone.
package session

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/harbormesh/isnad"
	"github.com/harbormesh/isnad/decaymap"
	"github.com/harbormesh/isnad/internal"
	"github.com/harbormesh/isnad/lib/oracle"
	"github.com/harbormesh/isnad/lib/task"
)

const DefaultSweepInterval = time.Minute

// Options configures a Store. Zero values fall back to the protocol
// defaults.
type Options struct {
	// Oracle generates and scores challenges. Required.
	Oracle oracle.Interface

	// ChallengeTTL bounds how long a pending challenge stays solvable.
	ChallengeTTL time.Duration

	// TokenTTL bounds how long a verified-agent token stays valid.
	TokenTTL time.Duration

	// SweepInterval is how often StartSweeper purges expired entries.
	SweepInterval time.Duration

	// Clock overrides the time source. Tests use this to simulate expiry.
	Clock func() time.Time
}

// pendingChallenge is exclusively owned by the store, keyed by challenge
// ID, and destroyed on the single verification attempt or by TTL sweep,
// whichever comes first.
type pendingChallenge struct {
	Expected     []task.Answer
	RawChallenge json.RawMessage
	PeerID       string
	IssuedAt     time.Time
}

type verifiedAgent struct {
	PeerID     string
	VerifiedAt time.Time
}

// Token is the credential minted on successful verification.
type Token struct {
	Token     string
	PeerID    string
	ExpiresIn time.Duration
}

// TokenStatus is the result of a token liveness check.
type TokenStatus struct {
	Valid            bool
	PeerID           string
	RemainingSeconds int64
}

// Store holds pending challenges and verified tokens. The two regions are
// independently locked; neither lock is ever held across the oracle call.
type Store struct {
	oracle        oracle.Interface
	challengeTTL  time.Duration
	tokenTTL      time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	pending *decaymap.Impl[string, pendingChallenge]
	tokens  *decaymap.Impl[string, verifiedAgent]
}

func New(opts Options) (*Store, error) {
	if opts.Oracle == nil {
		return nil, fmt.Errorf("session: options has no oracle")
	}

	if opts.ChallengeTTL == 0 {
		opts.ChallengeTTL = isnad.DefaultChallengeTTL
	}
	if opts.TokenTTL == 0 {
		opts.TokenTTL = isnad.DefaultTokenTTL
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Store{
		oracle:        opts.Oracle,
		challengeTTL:  opts.ChallengeTTL,
		tokenTTL:      opts.TokenTTL,
		sweepInterval: opts.SweepInterval,
		now:           opts.Clock,
		pending:       decaymap.NewWithClock[string, pendingChallenge](opts.Clock),
		tokens:        decaymap.NewWithClock[string, verifiedAgent](opts.Clock),
	}, nil
}

// TokenTTL reports the configured token lifetime.
func (s *Store) TokenTTL() time.Duration { return s.tokenTTL }

// RequestChallenge generates a challenge for peerID and registers it as
// pending. The expected answers stay server-side.
func (s *Store) RequestChallenge(peerID string) (*task.Challenge, error) {
	s.Cleanup()

	ch, expected, err := s.oracle.Generate()
	if err != nil {
		return nil, internalError("challenge", fmt.Errorf("oracle can't generate challenge: %w", err))
	}

	raw, err := json.Marshal(ch)
	if err != nil {
		return nil, internalError("challenge", fmt.Errorf("can't encode challenge: %w", err))
	}

	s.pending.Set(ch.ID, pendingChallenge{
		Expected:     expected,
		RawChallenge: raw,
		PeerID:       peerID,
		IssuedAt:     s.now(),
	}, s.challengeTTL)

	challengesIssued.Inc()
	slog.Info("issued challenge",
		"challenge_id", ch.ID,
		"peer_id", peerID,
		"tasks", len(ch.Tasks))

	return ch, nil
}

// VerifyResponse consumes the pending challenge named by resp and scores
// the response. Consumption happens before any other check, so a failed
// attempt can never be retried under the same challenge ID.
func (s *Store) VerifyResponse(resp *task.Response, peerID string) (*Token, error) {
	pending, ok := s.pending.Pop(resp.ChallengeID)
	if !ok {
		verificationsTotal.WithLabelValues("not_found").Inc()
		return nil, notFound("verify", fmt.Errorf("%w: %q", ErrChallengeNotFound, resp.ChallengeID))
	}

	if pending.PeerID != peerID {
		// The challenge is already consumed; a mismatched peer burns it.
		verificationsTotal.WithLabelValues("peer_mismatch").Inc()
		return nil, forbidden("verify", "Peer ID mismatch",
			fmt.Errorf("%w: challenge %q was issued to another peer", ErrPeerMismatch, resp.ChallengeID))
	}

	var ch task.Challenge
	if err := json.Unmarshal(pending.RawChallenge, &ch); err != nil {
		verificationsTotal.WithLabelValues("internal").Inc()
		return nil, internalError("verify", fmt.Errorf("%w: %w", ErrReconstruction, err))
	}

	if err := task.MatchAnswers(&ch, resp); err != nil {
		verificationsTotal.WithLabelValues("rejected").Inc()
		return nil, forbidden("verify", fmt.Sprintf("Verification failed: %v", err),
			fmt.Errorf("%w: %w", ErrVerificationFailed, err))
	}

	// Scoring may be CPU-bound; it runs outside both region locks.
	verification, err := s.oracle.Verify(&ch, resp, pending.Expected)
	if err != nil {
		verificationsTotal.WithLabelValues("rejected").Inc()
		slog.Warn("verification failed",
			"challenge_id", resp.ChallengeID,
			"peer_id", peerID,
			"err", err)
		return nil, forbidden("verify", fmt.Sprintf("Verification failed: %v", err),
			fmt.Errorf("%w: %w", ErrVerificationFailed, err))
	}

	verificationsTotal.WithLabelValues("ok").Inc()
	timeTaken.Observe(float64(verification.ElapsedMs))

	token := s.mintToken(peerID)
	s.tokens.Set(token, verifiedAgent{
		PeerID:     peerID,
		VerifiedAt: s.now(),
	}, s.tokenTTL)

	slog.Info("agent verified",
		"challenge_id", resp.ChallengeID,
		"peer_id", peerID,
		"elapsed_ms", verification.ElapsedMs,
		"tasks_correct", verification.TasksCorrect,
		"tasks_total", verification.TasksTotal,
		"token_hash", internal.FastHash(token))

	return &Token{
		Token:     token,
		PeerID:    peerID,
		ExpiresIn: s.tokenTTL,
	}, nil
}

// IsPeerVerified reports whether any live token belongs to peerID. A peer
// may hold several live tokens at once; a linear scan over live entries is
// the source of truth, never a cache.
func (s *Store) IsPeerVerified(peerID string) bool {
	found := false
	s.tokens.Range(func(_ string, agent verifiedAgent) bool {
		if agent.PeerID == peerID && s.now().Sub(agent.VerifiedAt) < s.tokenTTL {
			found = true
			return false
		}
		return true
	})

	return found
}

// CheckToken reports token liveness without mutating anything. Expiry here
// is logical: an entry past its TTL reads as invalid even before a sweep
// physically removes it.
func (s *Store) CheckToken(token string) TokenStatus {
	agent, ok := s.tokens.Peek(token)
	if !ok {
		return TokenStatus{Valid: false}
	}

	age := s.now().Sub(agent.VerifiedAt)
	if age >= s.tokenTTL {
		return TokenStatus{Valid: false}
	}

	return TokenStatus{
		Valid:            true,
		PeerID:           agent.PeerID,
		RemainingSeconds: int64((s.tokenTTL - age).Seconds()),
	}
}

// Cleanup purges pending challenges and tokens past their TTLs. It runs
// opportunistically on every RequestChallenge and from the sweeper.
func (s *Store) Cleanup() {
	s.pending.Cleanup()
	s.tokens.Cleanup()
}

// StartSweeper purges expired entries in the background until ctx is done.
// Opportunistic cleanup alone lets entries pile up when challenges are
// requested but never verified and no further requests arrive.
func (s *Store) StartSweeper(ctx context.Context) {
	go func() {
		t := time.NewTicker(s.sweepInterval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}

// mintToken derives an unpredictable credential from the peer ID, 128 bits
// of fresh randomness, and the mint time.
func (s *Store) mintToken(peerID string) string {
	u := uuid.New()

	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(s.now().Unix()))

	return isnad.TokenPrefix + internal.SHA256sum(peerID+string(u[:])+string(ts[:]))
}
