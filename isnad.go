// Package isnad contains the constants shared between the Isnad relay
// daemon, the session store, and the agent-side client.
//
// Isnad is a reverse CAPTCHA: a challenge engineered to be trivial for
// automated reasoning and awkward for manual interaction. Relays use it
// to check that a connecting peer is an autonomous agent before granting
// network services.
package isnad

import "time"

const (
	// Version is reported by the daemon and in client User-Agent strings.
	Version = "devel"

	// TokenPrefix starts every verified-agent token.
	TokenPrefix = "isnad_"

	// DefaultChallengeTTL is how long a pending challenge stays solvable.
	DefaultChallengeTTL = 60 * time.Second

	// DefaultTokenTTL is how long a verified-agent token stays valid.
	DefaultTokenTTL = 3600 * time.Second

	// API paths, relative to the auth base URL.
	ChallengePath = "/auth/challenge"
	VerifyPath    = "/auth/verify"
	CheckPath     = "/auth/check"
)
