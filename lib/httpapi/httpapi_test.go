package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"slices"
	"testing"
	"time"

	"github.com/harbormesh/isnad"
	"github.com/harbormesh/isnad/internal"
	"github.com/harbormesh/isnad/lib/client"
	"github.com/harbormesh/isnad/lib/oracle"
	"github.com/harbormesh/isnad/lib/session"
	"github.com/harbormesh/isnad/lib/task"
)

func init() {
	internal.InitSlog("debug")
}

var tokenRegexp = regexp.MustCompile(`^isnad_[0-9a-f]{64}$`)

// patternOracle issues the fixed pattern-completion challenge used by the
// end-to-end flow: given [10 20 30], predict two.
type patternOracle struct {
	nextID int
}

func (o *patternOracle) Generate() (*task.Challenge, []task.Answer, error) {
	o.nextID++

	ch := &task.Challenge{
		ID:       fmt.Sprintf("pattern-%d", o.nextID),
		IssuedAt: time.Now().UTC(),
		Tasks: []task.Task{
			task.PatternCompletion{Sequences: []task.PatternSequence{
				{Given: []int64{10, 20, 30}, PredictCount: 2},
			}},
		},
	}

	return ch, []task.Answer{task.PatternAnswer{Predictions: [][]int64{{40, 50}}}}, nil
}

func (o *patternOracle) Verify(ch *task.Challenge, resp *task.Response, expected []task.Answer) (*oracle.Verification, error) {
	want := expected[0].(task.PatternAnswer)
	got, ok := resp.Answers[0].(task.PatternAnswer)
	if !ok || len(got.Predictions) != 1 || !slices.Equal(got.Predictions[0], want.Predictions[0]) {
		return nil, fmt.Errorf("%w: 0/1", oracle.ErrScoreTooLow)
	}

	return &oracle.Verification{ElapsedMs: 1, TasksCorrect: 1, TasksTotal: 1}, nil
}

func spawnServer(t *testing.T, clock func() time.Time) (*Server, *httptest.Server) {
	t.Helper()

	store, err := session.New(session.Options{
		Oracle: &patternOracle{},
		Clock:  clock,
	})
	if err != nil {
		t.Fatalf("can't construct session store: %v", err)
	}

	srv := New(store)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return srv, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}

	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var result T
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}

	return result
}

func TestEndToEnd(t *testing.T) {
	// Frozen clock: the reported remaining lifetime is exactly the TTL.
	frozen := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	_, ts := spawnServer(t, func() time.Time { return frozen })

	const peerID = "12D3KooWabc"

	cli := client.New(ts.Client())
	tok, err := cli.Authenticate(t.Context(), ts.URL, peerID)
	if err != nil {
		t.Fatalf("handshake failed: %v", err)
	}

	if !tokenRegexp.MatchString(tok.Token) {
		t.Errorf("token %q does not match isnad_[0-9a-f]{64}", tok.Token)
	}
	if tok.PeerID != peerID {
		t.Errorf("wanted peer %q, got: %q", peerID, tok.PeerID)
	}
	if tok.ExpiresInSeconds != 3600 {
		t.Errorf("wanted 3600 expiry seconds, got: %d", tok.ExpiresInSeconds)
	}

	resp := postJSON(t, ts.URL+isnad.CheckPath, checkTokenRequest{Token: tok.Token})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("wanted 200, got: %d", resp.StatusCode)
	}

	status := decodeJSON[checkTokenResponse](t, resp)
	if !status.Valid {
		t.Error("wanted the token to check as valid")
	}
	if status.PeerID != peerID {
		t.Errorf("wanted peer %q, got: %q", peerID, status.PeerID)
	}
	if status.RemainingSeconds != 3600 {
		t.Errorf("wanted 3600 remaining seconds, got: %d", status.RemainingSeconds)
	}
}

func TestEndToEndBuiltinOracle(t *testing.T) {
	store, err := session.New(session.Options{Oracle: oracle.NewBuiltin(oracle.DefaultPolicy())})
	if err != nil {
		t.Fatal(err)
	}

	ts := httptest.NewServer(New(store).Handler())
	t.Cleanup(ts.Close)

	cli := client.New(ts.Client())
	tok, err := cli.Authenticate(t.Context(), ts.URL, "peer-builtin")
	if err != nil {
		t.Fatalf("handshake against the builtin oracle failed: %v", err)
	}

	if !tokenRegexp.MatchString(tok.Token) {
		t.Errorf("token %q does not match isnad_[0-9a-f]{64}", tok.Token)
	}
}

func TestVerifyStatusCodes(t *testing.T) {
	_, ts := spawnServer(t, time.Now)

	challenge := func(peerID string) task.Challenge {
		t.Helper()
		resp := postJSON(t, ts.URL+isnad.ChallengePath, challengeRequest{PeerID: peerID})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("wanted 200, got: %d", resp.StatusCode)
		}
		return *decodeJSON[challengeResponse](t, resp).Challenge
	}

	solved := func(ch task.Challenge) task.Response {
		return task.Response{
			ChallengeID: ch.ID,
			SubmittedAt: time.Now().UTC(),
			Answers:     []task.Answer{task.PatternAnswer{Predictions: [][]int64{{40, 50}}}},
		}
	}

	t.Run("unknown-challenge-404", func(t *testing.T) {
		resp := postJSON(t, ts.URL+isnad.VerifyPath, verifyRequest{
			PeerID:   "peer-a",
			Response: task.Response{ChallengeID: "no-such-challenge", SubmittedAt: time.Now()},
		})
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("wanted 404, got: %d", resp.StatusCode)
		}
	})

	t.Run("peer-mismatch-403", func(t *testing.T) {
		ch := challenge("peer-a")

		resp := postJSON(t, ts.URL+isnad.VerifyPath, verifyRequest{PeerID: "peer-b", Response: solved(ch)})
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("wanted 403, got: %d", resp.StatusCode)
		}

		// The mismatch consumed the challenge: the right peer now gets 404.
		retry := postJSON(t, ts.URL+isnad.VerifyPath, verifyRequest{PeerID: "peer-a", Response: solved(ch)})
		defer retry.Body.Close()

		if retry.StatusCode != http.StatusNotFound {
			t.Errorf("wanted 404 after consumption, got: %d", retry.StatusCode)
		}
	})

	t.Run("wrong-answers-403", func(t *testing.T) {
		ch := challenge("peer-a")

		wrong := solved(ch)
		wrong.Answers = []task.Answer{task.PatternAnswer{Predictions: [][]int64{{0, 0}}}}

		resp := postJSON(t, ts.URL+isnad.VerifyPath, verifyRequest{PeerID: "peer-a", Response: wrong})
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("wanted 403, got: %d", resp.StatusCode)
		}

		body := decodeJSON[authError](t, resp)
		if body.Error == "" {
			t.Error("wanted an error body for operator diagnosis")
		}
	})

	t.Run("bad-json-400", func(t *testing.T) {
		resp, err := http.Post(ts.URL+isnad.VerifyPath, "application/json", bytes.NewReader([]byte("{")))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("wanted 400, got: %d", resp.StatusCode)
		}
	})

	t.Run("missing-peer-id-400", func(t *testing.T) {
		resp := postJSON(t, ts.URL+isnad.ChallengePath, challengeRequest{})
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("wanted 400, got: %d", resp.StatusCode)
		}
	})
}

func TestCheckUnknownToken(t *testing.T) {
	_, ts := spawnServer(t, time.Now)

	resp := postJSON(t, ts.URL+isnad.CheckPath, checkTokenRequest{Token: "isnad_bogus"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("wanted 200, got: %d", resp.StatusCode)
	}

	status := decodeJSON[checkTokenResponse](t, resp)
	if status.Valid || status.PeerID != "" || status.RemainingSeconds != 0 {
		t.Errorf("wanted an invalid zero status, got: %+v", status)
	}
}

func TestRequireToken(t *testing.T) {
	srv, ts := spawnServer(t, time.Now)

	protected := srv.RequireToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		peerID, ok := PeerIDFromContext(r.Context())
		if !ok {
			t.Error("wanted the peer id on the request context")
		}
		fmt.Fprint(w, peerID)
	}))

	pts := httptest.NewServer(protected)
	t.Cleanup(pts.Close)

	cli := client.New(ts.Client())
	tok, err := cli.Authenticate(t.Context(), ts.URL, "peer-a")
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name   string
		header string
		status int
	}{
		{"valid-token", "Bearer " + tok.Token, http.StatusOK},
		{"missing-token", "", http.StatusUnauthorized},
		{"garbage-token", "Bearer isnad_garbage", http.StatusUnauthorized},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, pts.URL, nil)
			if err != nil {
				t.Fatal(err)
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.status {
				t.Errorf("wanted %d, got: %d", tt.status, resp.StatusCode)
			}
		})
	}
}
