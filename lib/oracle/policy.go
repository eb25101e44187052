package oracle

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrBadPolicy is returned when an acceptance policy fails validation.
var ErrBadPolicy = errors.New("oracle: acceptance policy is invalid")

// Policy is the acceptance policy for submitted responses. The thresholds
// are deployment decisions, not protocol constants, so they load from a
// YAML document and default permissively.
type Policy struct {
	// MinSolveMs rejects responses submitted faster than an agent could
	// plausibly have solved the challenge. Zero disables the check.
	MinSolveMs int64 `yaml:"minSolveMs"`

	// MaxSolveMs rejects responses submitted after this many milliseconds.
	MaxSolveMs int64 `yaml:"maxSolveMs"`

	// MinCorrectRatio is the fraction of tasks that must score correct,
	// in [0, 1].
	MinCorrectRatio float64 `yaml:"minCorrectRatio"`

	// TaskCount is how many tasks each generated challenge carries.
	TaskCount int `yaml:"taskCount"`
}

// DefaultPolicy matches the challenge TTL and requires every task correct.
func DefaultPolicy() Policy {
	return Policy{
		MinSolveMs:      0,
		MaxSolveMs:      60_000,
		MinCorrectRatio: 1.0,
		TaskCount:       3,
	}
}

func (p Policy) Valid() error {
	if p.MinSolveMs < 0 {
		return fmt.Errorf("%w: minSolveMs %d is negative", ErrBadPolicy, p.MinSolveMs)
	}

	if p.MaxSolveMs <= p.MinSolveMs {
		return fmt.Errorf("%w: maxSolveMs %d must exceed minSolveMs %d", ErrBadPolicy, p.MaxSolveMs, p.MinSolveMs)
	}

	if p.MinCorrectRatio < 0 || p.MinCorrectRatio > 1 {
		return fmt.Errorf("%w: minCorrectRatio %f is not in [0, 1]", ErrBadPolicy, p.MinCorrectRatio)
	}

	if p.TaskCount < 1 {
		return fmt.Errorf("%w: taskCount %d must be at least 1", ErrBadPolicy, p.TaskCount)
	}

	return nil
}

// LoadPolicyFile reads an acceptance policy from a YAML file. Fields left
// unset keep their defaults.
func LoadPolicyFile(fname string) (Policy, error) {
	result := DefaultPolicy()

	fin, err := os.Open(fname)
	if err != nil {
		return result, fmt.Errorf("can't open policy file %s: %w", fname, err)
	}
	defer fin.Close()

	dec := yaml.NewDecoder(fin)
	dec.KnownFields(true)
	if err := dec.Decode(&result); err != nil {
		return result, fmt.Errorf("can't parse policy file %s: %w", fname, err)
	}

	if err := result.Valid(); err != nil {
		return result, err
	}

	return result, nil
}
