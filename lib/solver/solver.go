// Package solver produces deterministic answers for Isnad challenge tasks.
// Everything here is a pure function over its arguments: no I/O, no shared
// state, so each rule can be unit-tested in isolation from any transport.
package solver

import (
	"strconv"
	"strings"
	"time"

	"github.com/harbormesh/isnad/lib/task"
)

// SolveChallenge answers every task of ch in order and stamps the
// submission time.
func SolveChallenge(ch *task.Challenge) *task.Response {
	answers := make([]task.Answer, len(ch.Tasks))
	for i, t := range ch.Tasks {
		answers[i] = Solve(t)
	}

	return &task.Response{
		ChallengeID: ch.ID,
		SubmittedAt: time.Now().UTC(),
		Answers:     answers,
	}
}

// Solve maps one task variant to its answer variant.
func Solve(t task.Task) task.Answer {
	switch t := t.(type) {
	case task.PatternCompletion:
		predictions := make([][]int64, len(t.Sequences))
		for i, seq := range t.Sequences {
			predictions[i] = SolvePattern(seq)
		}
		return task.PatternAnswer{Predictions: predictions}

	case task.TextTransformation:
		result := t.Input
		for _, op := range t.Operations {
			result = task.ApplyTextOp(result, op)
		}
		return task.TextAnswer{Result: result}

	case task.ParallelQuestions:
		answers := make([]string, len(t.Questions))
		for i, q := range t.Questions {
			answers[i] = AnswerQuestion(q)
		}
		return task.ParallelAnswer{Answers: answers}

	case task.ReadingComprehension:
		// Best effort only: no passage understanding is attempted.
		answers := make([]string, len(t.Questions))
		for i := range answers {
			answers[i] = "unknown"
		}
		return task.ReadingAnswer{Answers: answers}

	case task.MetaQuestion:
		// Deliberately self-identifying: assert agent status by echoing
		// the recognition keyword instead of solving a puzzle.
		return task.MetaAnswer{Answer: t.ExpectedKeyword}

	default:
		return task.MetaAnswer{Answer: "unknown"}
	}
}

// SolvePattern infers the generating rule of an integer sequence and
// extrapolates it. Rules are tried in a fixed order and the first one that
// holds over the entire given run wins: constant first difference, constant
// second difference, constant ratio, Fibonacci-like. If none match, the
// last observed first difference is continued.
func SolvePattern(seq task.PatternSequence) []int64 {
	given := seq.Given
	n := seq.PredictCount

	if len(given) < 2 {
		return make([]int64, n)
	}

	diffs := make([]int64, len(given)-1)
	for i := range diffs {
		diffs[i] = given[i+1] - given[i]
	}

	// Arithmetic: constant first difference.
	if allEqual(diffs) {
		out := make([]int64, n)
		last := given[len(given)-1]
		for i := range out {
			last += diffs[0]
			out[i] = last
		}
		return out
	}

	// Quadratic: constant second difference, e.g. squares.
	secondDiffs := make([]int64, len(diffs)-1)
	for i := range secondDiffs {
		secondDiffs[i] = diffs[i+1] - diffs[i]
	}
	if allEqual(secondDiffs) {
		out := make([]int64, n)
		last := given[len(given)-1]
		lastDiff := diffs[len(diffs)-1]
		for i := range out {
			lastDiff += secondDiffs[0]
			last += lastDiff
			out[i] = last
		}
		return out
	}

	// Geometric: constant ratio within tolerance, extrapolated in floating
	// point and rounded back to the nearest integer.
	if allNonZero(given) {
		ratios := make([]float64, len(given)-1)
		for i := range ratios {
			ratios[i] = float64(given[i+1]) / float64(given[i])
		}
		constant := true
		for i := 1; i < len(ratios); i++ {
			d := ratios[i] - ratios[i-1]
			if d <= -0.001 || d >= 0.001 {
				constant = false
				break
			}
		}
		if constant {
			out := make([]int64, n)
			last := float64(given[len(given)-1])
			for i := range out {
				last *= ratios[0]
				out[i] = int64(roundHalfAway(last))
			}
			return out
		}
	}

	// Fibonacci-like: every window satisfies a[i+2] = a[i] + a[i+1].
	if len(given) >= 3 {
		isFib := true
		for i := 0; i+2 < len(given); i++ {
			if given[i+2] != given[i]+given[i+1] {
				isFib = false
				break
			}
		}
		if isFib {
			out := make([]int64, n)
			a, b := given[len(given)-2], given[len(given)-1]
			for i := range out {
				a, b = b, a+b
				out[i] = b
			}
			return out
		}
	}

	// Fallback: continue with the last observed first difference.
	d := diffs[len(diffs)-1]
	out := make([]int64, n)
	last := given[len(given)-1]
	for i := range out {
		last += d
		out[i] = last
	}
	return out
}

func allEqual(xs []int64) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] != xs[0] {
			return false
		}
	}
	return true
}

func allNonZero(xs []int64) bool {
	for _, x := range xs {
		if x == 0 {
			return false
		}
	}
	return true
}

func roundHalfAway(x float64) float64 {
	if x < 0 {
		return float64(int64(x - 0.5))
	}
	return float64(int64(x + 0.5))
}

// fact is one entry of the small knowledge table used for parallel
// questions. Every needle must appear in the lowercased question.
type fact struct {
	needles []string
	answer  string
}

var facts = []fact{
	{[]string{"capital of france"}, "Paris"},
	{[]string{"capital of germany"}, "Berlin"},
	{[]string{"capital of japan"}, "Tokyo"},
	{[]string{"hexagon", "sides"}, "6"},
	{[]string{"pentagon", "sides"}, "5"},
	{[]string{"octagon", "sides"}, "8"},
	{[]string{"chemical symbol", "gold"}, "Au"},
	{[]string{"chemical symbol", "silver"}, "Ag"},
	{[]string{"chemical symbol", "iron"}, "Fe"},
}

// AnswerQuestion answers a single free-form question: arithmetic first,
// then the fact table, then the literal "unknown".
func AnswerQuestion(q string) string {
	qLower := strings.ToLower(q)

	if result, ok := tryArithmetic(qLower); ok {
		return strconv.FormatInt(result, 10)
	}

	for _, f := range facts {
		matched := true
		for _, needle := range f.needles {
			if !strings.Contains(qLower, needle) {
				matched = false
				break
			}
		}
		if matched {
			return f.answer
		}
	}

	return "unknown"
}

// tryArithmetic strips interrogative framing and evaluates a single binary
// operation between two integers. Division by zero yields no answer so the
// question falls through to the fact table.
func tryArithmetic(q string) (int64, bool) {
	q = strings.ReplaceAll(q, "what is", "")
	q = strings.ReplaceAll(q, "?", "")
	q = strings.TrimSpace(q)

	type binop struct {
		sep   string
		apply func(a, b int64) (int64, bool)
	}

	for _, op := range []binop{
		{"*", func(a, b int64) (int64, bool) { return a * b, true }},
		{"×", func(a, b int64) (int64, bool) { return a * b, true }},
		{"/", func(a, b int64) (int64, bool) {
			if b == 0 {
				return 0, false
			}
			return a / b, true
		}},
		{"+", func(a, b int64) (int64, bool) { return a + b, true }},
		{"-", func(a, b int64) (int64, bool) { return a - b, true }},
	} {
		lhs, rhs, found := strings.Cut(q, op.sep)
		if !found {
			continue
		}

		a, errA := strconv.ParseInt(strings.TrimSpace(lhs), 10, 64)
		b, errB := strconv.ParseInt(strings.TrimSpace(rhs), 10, 64)
		if errA != nil || errB != nil {
			continue
		}

		if result, ok := op.apply(a, b); ok {
			return result, true
		}
	}

	return 0, false
}
