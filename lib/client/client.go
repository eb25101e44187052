// Package client implements the agent side of the Isnad handshake: request
// a challenge, solve it, submit the response, keep the token. The exchange
// is a strict two round trips with no retry; any failure is terminal for
// the attempt and the caller must start over with a fresh challenge.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/harbormesh/isnad"
	"github.com/harbormesh/isnad/internal"
	"github.com/harbormesh/isnad/lib/solver"
	"github.com/harbormesh/isnad/lib/task"
)

var (
	// ErrChallengeRequest means the relay refused to issue a challenge.
	ErrChallengeRequest = errors.New("client: challenge request failed")

	// ErrVerification means the relay rejected the submitted response.
	ErrVerification = errors.New("client: verification failed")

	// ErrDecode means a relay payload did not parse.
	ErrDecode = errors.New("client: can't decode relay response")
)

// StatusError carries the HTTP status and raw body of a failed round trip
// so operators can diagnose rejections without relay-side access.
type StatusError struct {
	Kind       error
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: status %d: %s", e.Kind, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.Kind
}

// Token is the credential returned by a successful handshake.
type Token struct {
	Token            string `json:"token"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
	PeerID           string `json:"peerId"`
}

type Client struct {
	http *http.Client
}

// New builds a Client around cli. Pass nil to use http.DefaultClient;
// timeouts and transport policy belong to the injected client.
func New(cli *http.Client) *Client {
	if cli == nil {
		cli = http.DefaultClient
	}

	return &Client{http: cli}
}

type challengeRequest struct {
	PeerID string `json:"peerId"`
}

type challengeResponse struct {
	Challenge task.Challenge `json:"challenge"`
}

type verifyRequest struct {
	PeerID   string         `json:"peerId"`
	Response *task.Response `json:"response"`
}

// Authenticate runs the full handshake against the relay at authURL and
// returns the minted token.
func (c *Client) Authenticate(ctx context.Context, authURL, peerID string) (*Token, error) {
	slog.Info("requesting challenge", "auth_url", authURL, "peer_id", peerID)

	var chResp challengeResponse
	if err := c.post(ctx, authURL+isnad.ChallengePath, challengeRequest{PeerID: peerID}, &chResp, ErrChallengeRequest); err != nil {
		return nil, err
	}

	ch := &chResp.Challenge
	slog.Info("received challenge", "challenge_id", ch.ID, "tasks", len(ch.Tasks))

	resp := solver.SolveChallenge(ch)

	var result Token
	if err := c.post(ctx, authURL+isnad.VerifyPath, verifyRequest{PeerID: peerID, Response: resp}, &result, ErrVerification); err != nil {
		return nil, err
	}

	slog.Info("agent verified",
		"peer_id", result.PeerID,
		"expires_in_seconds", result.ExpiresInSeconds,
		"token_hash", internal.FastHash(result.Token))

	return &result, nil
}

// post runs one round trip: JSON out, JSON in. Non-2xx statuses become a
// StatusError of the given kind carrying the raw body.
func (c *Client) post(ctx context.Context, url string, in, out any, kind error) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("client: can't encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("client: can't build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "isnad/"+isnad.Version)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: can't read body: %w", kind, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return nil
}
