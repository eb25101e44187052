// Package oracle defines the challenge oracle: the component that produces
// challenges with their expected answers and later scores a submitted
// response. The session store treats it as opaque; deployments can swap in
// another scorer through the registry.
package oracle

import (
	"errors"
	"sort"
	"sync"

	"github.com/harbormesh/isnad/lib/task"
)

var (
	// ErrRejected is the base error for every scoring failure.
	ErrRejected = errors.New("oracle: response rejected")

	ErrTooFast     = errors.New("oracle: response submitted implausibly fast")
	ErrTooSlow     = errors.New("oracle: response submitted after the deadline")
	ErrScoreTooLow = errors.New("oracle: too few tasks answered correctly")
)

// Verification is the outcome of a successful scoring pass.
type Verification struct {
	ElapsedMs    int64
	TasksCorrect int
	TasksTotal   int
}

// Interface is the contract between the session store and a challenge
// scorer. Expected answers never leave the server: Generate hands them to
// the store, which holds them until the single verification attempt.
type Interface interface {
	// Generate produces a fresh challenge and its expected answers.
	Generate() (*task.Challenge, []task.Answer, error)

	// Verify scores a response against the challenge it was issued for.
	// The caller guarantees the answers already match the tasks in arity
	// and kind.
	Verify(ch *task.Challenge, resp *task.Response, expected []task.Answer) (*Verification, error)
}

var (
	registry map[string]Interface = map[string]Interface{}
	regLock  sync.RWMutex
)

func Register(name string, impl Interface) {
	regLock.Lock()
	defer regLock.Unlock()

	registry[name] = impl
}

func Get(name string) (Interface, bool) {
	regLock.RLock()
	defer regLock.RUnlock()
	result, ok := registry[name]
	return result, ok
}

func Methods() []string {
	regLock.RLock()
	defer regLock.RUnlock()
	var result []string
	for method := range registry {
		result = append(result, method)
	}
	sort.Strings(result)
	return result
}
