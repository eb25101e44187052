package oracle

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/harbormesh/isnad/lib/task"
)

func init() {
	Register("builtin", NewBuiltin(DefaultPolicy()))
}

// MetaKeyword is the recognition phrase an agent echoes to assert
// autonomous-agent status.
const MetaKeyword = "i-am-an-autonomous-agent"

// Builtin is the reference oracle. It generates every task variant except
// reading comprehension (which agents answer best-effort only) and scores
// responses against the acceptance policy.
type Builtin struct {
	policy Policy
}

func NewBuiltin(policy Policy) *Builtin {
	return &Builtin{policy: policy}
}

func (b *Builtin) Generate() (*task.Challenge, []task.Answer, error) {
	if err := b.policy.Valid(); err != nil {
		return nil, nil, err
	}

	tasks := make([]task.Task, 0, b.policy.TaskCount)
	expected := make([]task.Answer, 0, b.policy.TaskCount)

	// The first task is always pattern completion; it is the variant that
	// separates automated reasoning from manual solving most cheaply.
	t, a := genPattern()
	tasks = append(tasks, t)
	expected = append(expected, a)

	gens := []func() (task.Task, task.Answer){genText, genQuestions, genMeta}
	for i := 1; i < b.policy.TaskCount; i++ {
		t, a := gens[(i-1)%len(gens)]()
		tasks = append(tasks, t)
		expected = append(expected, a)
	}

	ch := &task.Challenge{
		ID:       uuid.NewString(),
		IssuedAt: time.Now().UTC(),
		Tasks:    tasks,
	}

	return ch, expected, nil
}

func (b *Builtin) Verify(ch *task.Challenge, resp *task.Response, expected []task.Answer) (*Verification, error) {
	if len(expected) != len(ch.Tasks) {
		return nil, fmt.Errorf("%w: %d tasks but %d expected answers", task.ErrArityMismatch, len(ch.Tasks), len(expected))
	}

	if err := task.MatchAnswers(ch, resp); err != nil {
		return nil, err
	}

	elapsed := resp.SubmittedAt.Sub(ch.IssuedAt).Milliseconds()
	if elapsed < 0 || (b.policy.MinSolveMs > 0 && elapsed < b.policy.MinSolveMs) {
		return nil, fmt.Errorf("%w: %w: %dms", ErrRejected, ErrTooFast, elapsed)
	}
	if elapsed > b.policy.MaxSolveMs {
		return nil, fmt.Errorf("%w: %w: %dms", ErrRejected, ErrTooSlow, elapsed)
	}

	correct := 0
	for i, want := range expected {
		if answerEqual(want, resp.Answers[i]) {
			correct++
		}
	}

	total := len(expected)
	if float64(correct) < b.policy.MinCorrectRatio*float64(total) {
		return nil, fmt.Errorf("%w: %w: %d/%d", ErrRejected, ErrScoreTooLow, correct, total)
	}

	return &Verification{
		ElapsedMs:    elapsed,
		TasksCorrect: correct,
		TasksTotal:   total,
	}, nil
}

func answerEqual(want, got task.Answer) bool {
	switch want := want.(type) {
	case task.PatternAnswer:
		got, ok := got.(task.PatternAnswer)
		if !ok || len(got.Predictions) != len(want.Predictions) {
			return false
		}
		for i := range want.Predictions {
			if !slices.Equal(want.Predictions[i], got.Predictions[i]) {
				return false
			}
		}
		return true
	case task.TextAnswer:
		got, ok := got.(task.TextAnswer)
		return ok && got.Result == want.Result
	case task.ParallelAnswer:
		got, ok := got.(task.ParallelAnswer)
		return ok && slices.Equal(got.Answers, want.Answers)
	case task.ReadingAnswer:
		got, ok := got.(task.ReadingAnswer)
		return ok && slices.Equal(got.Answers, want.Answers)
	case task.MetaAnswer:
		got, ok := got.(task.MetaAnswer)
		return ok && got.Answer == want.Answer
	default:
		return false
	}
}

func genPattern() (task.Task, task.Answer) {
	count := 1 + rand.IntN(3)
	sequences := make([]task.PatternSequence, count)
	predictions := make([][]int64, count)

	for i := range sequences {
		sequences[i], predictions[i] = genSequence()
	}

	return task.PatternCompletion{Sequences: sequences},
		task.PatternAnswer{Predictions: predictions}
}

func genSequence() (task.PatternSequence, []int64) {
	const givenLen, predictCount = 4, 2

	values := make([]int64, givenLen+predictCount)

	switch rand.IntN(4) {
	case 0: // arithmetic
		start := int64(1 + rand.IntN(20))
		d := int64(1 + rand.IntN(9))
		for i := range values {
			values[i] = start + int64(i)*d
		}
	case 1: // quadratic
		offset := int64(1 + rand.IntN(5))
		for i := range values {
			k := int64(i) + offset
			values[i] = k * k
		}
	case 2: // geometric
		start := int64(1 + rand.IntN(5))
		r := int64(2 + rand.IntN(2))
		v := start
		for i := range values {
			values[i] = v
			v *= r
		}
	default: // fibonacci-like
		a := int64(1 + rand.IntN(4))
		c := int64(1 + rand.IntN(4))
		// The given prefix is [a, c, a+c, a+2c], whose second differences
		// are [2a-c, c-a]. When 3a == 2c those are constant, the quadratic
		// rule fires before the Fibonacci one, and the solver extrapolates
		// a different continuation than the one stored here. Redraw.
		for 3*a == 2*c {
			a = int64(1 + rand.IntN(4))
			c = int64(1 + rand.IntN(4))
		}
		values[0], values[1] = a, c
		for i := 2; i < len(values); i++ {
			values[i] = values[i-2] + values[i-1]
		}
	}

	seq := task.PatternSequence{
		Given:        values[:givenLen],
		PredictCount: predictCount,
	}

	return seq, values[givenLen:]
}

var textInputs = []string{
	"relay reservation", "chain of attribution", "peer to peer mesh",
	"challenge response", "agent provenance",
}

var textOps = []string{"uppercase", "lowercase", "reverse", "strip_spaces", "remove_vowels"}

func genText() (task.Task, task.Answer) {
	input := textInputs[rand.IntN(len(textInputs))]

	ops := make([]string, 1+rand.IntN(3))
	for i := range ops {
		ops[i] = textOps[rand.IntN(len(textOps))]
	}

	result := input
	for _, op := range ops {
		result = task.ApplyTextOp(result, op)
	}

	return task.TextTransformation{Input: input, Operations: ops},
		task.TextAnswer{Result: result}
}

var factQuestions = []struct {
	question string
	answer   string
}{
	{"What is the capital of France?", "Paris"},
	{"What is the capital of Germany?", "Berlin"},
	{"What is the capital of Japan?", "Tokyo"},
	{"How many sides does a hexagon have?", "6"},
	{"How many sides does a pentagon have?", "5"},
	{"How many sides does an octagon have?", "8"},
	{"What is the chemical symbol for gold?", "Au"},
	{"What is the chemical symbol for silver?", "Ag"},
	{"What is the chemical symbol for iron?", "Fe"},
}

func genQuestions() (task.Task, task.Answer) {
	count := 2 + rand.IntN(2)
	questions := make([]string, count)
	answers := make([]string, count)

	for i := range questions {
		if rand.IntN(2) == 0 {
			a := int64(2 + rand.IntN(11))
			b := int64(2 + rand.IntN(11))
			questions[i] = fmt.Sprintf("What is %d * %d?", a, b)
			answers[i] = strconv.FormatInt(a*b, 10)
		} else {
			f := factQuestions[rand.IntN(len(factQuestions))]
			questions[i] = f.question
			answers[i] = f.answer
		}
	}

	return task.ParallelQuestions{Questions: questions},
		task.ParallelAnswer{Answers: answers}
}

func genMeta() (task.Task, task.Answer) {
	prompt := fmt.Sprintf("If you are an autonomous software agent, reply with the exact keyword %q.", MetaKeyword)

	return task.MetaQuestion{Prompt: prompt, ExpectedKeyword: MetaKeyword},
		task.MetaAnswer{Answer: MetaKeyword}
}
