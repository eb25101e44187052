// Package task defines the Isnad challenge wire format: the closed set of
// task variants a relay may pose and the matching answer variants an agent
// submits. The types here are shared verbatim between the server-side
// session store, the built-in oracle, and the agent-side solver.
package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownType is returned when a payload names a task or answer
	// variant outside the closed set.
	ErrUnknownType = errors.New("task: unknown variant type")

	// ErrArityMismatch is returned when a response's answers do not line up
	// one-to-one, in order and in kind, with a challenge's tasks.
	ErrArityMismatch = errors.New("task: answers do not match tasks")
)

// Type discriminates the task/answer union on the wire.
type Type string

const (
	TypePatternCompletion    Type = "patternCompletion"
	TypeTextTransformation   Type = "textTransformation"
	TypeParallelQuestions    Type = "parallelQuestions"
	TypeReadingComprehension Type = "readingComprehension"
	TypeMetaQuestion         Type = "metaQuestion"
)

// Challenge is one issued challenge. Immutable once generated; the
// expected answers never ride along with it.
type Challenge struct {
	ID       string    `json:"challengeId"`
	IssuedAt time.Time `json:"issuedAt"`
	Tasks    []Task    `json:"tasks"`
}

// Response is an agent's submission for a challenge. Answers[i] answers
// Tasks[i] of the matching challenge; the ordering is load-bearing.
type Response struct {
	ChallengeID string    `json:"challengeId"`
	SubmittedAt time.Time `json:"submittedAt"`
	Answers     []Answer  `json:"answers"`
}

// PatternSequence is one integer sequence inside a pattern-completion
// task: the given prefix and how many further values to predict.
type PatternSequence struct {
	Given        []int64 `json:"given"`
	PredictCount int     `json:"predictCount"`
}

// Task is the closed union of challenge task variants.
type Task interface {
	// TaskType names the variant for wire tagging and arity checks.
	TaskType() Type
}

// Answer is the closed union of answer variants. Every Answer kind mirrors
// exactly one Task kind.
type Answer interface {
	// AnswerType names the variant; it must equal the matching task's type.
	AnswerType() Type
}

type PatternCompletion struct {
	Sequences []PatternSequence `json:"sequences"`
}

type TextTransformation struct {
	Input      string   `json:"input"`
	Operations []string `json:"operations"`
}

type ParallelQuestions struct {
	Questions []string `json:"questions"`
}

type ReadingComprehension struct {
	Passage   string   `json:"passage"`
	Questions []string `json:"questions"`
}

type MetaQuestion struct {
	Prompt          string `json:"prompt"`
	ExpectedKeyword string `json:"expectedKeyword"`
}

func (PatternCompletion) TaskType() Type    { return TypePatternCompletion }
func (TextTransformation) TaskType() Type   { return TypeTextTransformation }
func (ParallelQuestions) TaskType() Type    { return TypeParallelQuestions }
func (ReadingComprehension) TaskType() Type { return TypeReadingComprehension }
func (MetaQuestion) TaskType() Type         { return TypeMetaQuestion }

type PatternAnswer struct {
	Predictions [][]int64 `json:"predictions"`
}

type TextAnswer struct {
	Result string `json:"result"`
}

type ParallelAnswer struct {
	Answers []string `json:"answers"`
}

type ReadingAnswer struct {
	Answers []string `json:"answers"`
}

type MetaAnswer struct {
	Answer string `json:"answer"`
}

func (PatternAnswer) AnswerType() Type  { return TypePatternCompletion }
func (TextAnswer) AnswerType() Type     { return TypeTextTransformation }
func (ParallelAnswer) AnswerType() Type { return TypeParallelQuestions }
func (ReadingAnswer) AnswerType() Type  { return TypeReadingComprehension }
func (MetaAnswer) AnswerType() Type     { return TypeMetaQuestion }

// MatchAnswers checks that resp answers ch one-to-one: same length and the
// variant at every index agrees. Callers must reject mismatches before any
// scoring happens.
func MatchAnswers(ch *Challenge, resp *Response) error {
	if len(resp.Answers) != len(ch.Tasks) {
		return fmt.Errorf("%w: %d tasks but %d answers", ErrArityMismatch, len(ch.Tasks), len(resp.Answers))
	}

	for i, t := range ch.Tasks {
		if resp.Answers[i].AnswerType() != t.TaskType() {
			return fmt.Errorf("%w: index %d: task is %s but answer is %s", ErrArityMismatch, i, t.TaskType(), resp.Answers[i].AnswerType())
		}
	}

	return nil
}

// taskEnvelope is the internally tagged wire form of every Task variant.
type taskEnvelope struct {
	Type            Type              `json:"type"`
	Sequences       []PatternSequence `json:"sequences,omitempty"`
	Input           string            `json:"input,omitempty"`
	Operations      []string          `json:"operations,omitempty"`
	Passage         string            `json:"passage,omitempty"`
	Questions       []string          `json:"questions,omitempty"`
	Prompt          string            `json:"prompt,omitempty"`
	ExpectedKeyword string            `json:"expectedKeyword,omitempty"`
}

type answerEnvelope struct {
	Type        Type      `json:"type"`
	Predictions [][]int64 `json:"predictions,omitempty"`
	Result      string    `json:"result,omitempty"`
	Answers     []string  `json:"answers,omitempty"`
	Answer      string    `json:"answer,omitempty"`
}

func marshalTask(t Task) taskEnvelope {
	env := taskEnvelope{Type: t.TaskType()}

	switch t := t.(type) {
	case PatternCompletion:
		env.Sequences = t.Sequences
	case TextTransformation:
		env.Input = t.Input
		env.Operations = t.Operations
	case ParallelQuestions:
		env.Questions = t.Questions
	case ReadingComprehension:
		env.Passage = t.Passage
		env.Questions = t.Questions
	case MetaQuestion:
		env.Prompt = t.Prompt
		env.ExpectedKeyword = t.ExpectedKeyword
	}

	return env
}

func (env taskEnvelope) decode() (Task, error) {
	switch env.Type {
	case TypePatternCompletion:
		return PatternCompletion{Sequences: env.Sequences}, nil
	case TypeTextTransformation:
		return TextTransformation{Input: env.Input, Operations: env.Operations}, nil
	case TypeParallelQuestions:
		return ParallelQuestions{Questions: env.Questions}, nil
	case TypeReadingComprehension:
		return ReadingComprehension{Passage: env.Passage, Questions: env.Questions}, nil
	case TypeMetaQuestion:
		return MetaQuestion{Prompt: env.Prompt, ExpectedKeyword: env.ExpectedKeyword}, nil
	default:
		return nil, fmt.Errorf("%w: task %q", ErrUnknownType, env.Type)
	}
}

func marshalAnswer(a Answer) answerEnvelope {
	env := answerEnvelope{Type: a.AnswerType()}

	switch a := a.(type) {
	case PatternAnswer:
		env.Predictions = a.Predictions
	case TextAnswer:
		env.Result = a.Result
	case ParallelAnswer:
		env.Answers = a.Answers
	case ReadingAnswer:
		env.Answers = a.Answers
	case MetaAnswer:
		env.Answer = a.Answer
	}

	return env
}

func (env answerEnvelope) decode() (Answer, error) {
	switch env.Type {
	case TypePatternCompletion:
		return PatternAnswer{Predictions: env.Predictions}, nil
	case TypeTextTransformation:
		return TextAnswer{Result: env.Result}, nil
	case TypeParallelQuestions:
		return ParallelAnswer{Answers: env.Answers}, nil
	case TypeReadingComprehension:
		return ReadingAnswer{Answers: env.Answers}, nil
	case TypeMetaQuestion:
		return MetaAnswer{Answer: env.Answer}, nil
	default:
		return nil, fmt.Errorf("%w: answer %q", ErrUnknownType, env.Type)
	}
}

func (c Challenge) MarshalJSON() ([]byte, error) {
	envs := make([]taskEnvelope, len(c.Tasks))
	for i, t := range c.Tasks {
		envs[i] = marshalTask(t)
	}

	type alias struct {
		ID       string         `json:"challengeId"`
		IssuedAt time.Time      `json:"issuedAt"`
		Tasks    []taskEnvelope `json:"tasks"`
	}

	return json.Marshal(alias{ID: c.ID, IssuedAt: c.IssuedAt, Tasks: envs})
}

func (c *Challenge) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID       string         `json:"challengeId"`
		IssuedAt time.Time      `json:"issuedAt"`
		Tasks    []taskEnvelope `json:"tasks"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	tasks := make([]Task, len(raw.Tasks))
	for i, env := range raw.Tasks {
		t, err := env.decode()
		if err != nil {
			return fmt.Errorf("task %d: %w", i, err)
		}
		tasks[i] = t
	}

	c.ID = raw.ID
	c.IssuedAt = raw.IssuedAt
	c.Tasks = tasks

	return nil
}

func (r Response) MarshalJSON() ([]byte, error) {
	envs := make([]answerEnvelope, len(r.Answers))
	for i, a := range r.Answers {
		envs[i] = marshalAnswer(a)
	}

	type alias struct {
		ChallengeID string           `json:"challengeId"`
		SubmittedAt time.Time        `json:"submittedAt"`
		Answers     []answerEnvelope `json:"answers"`
	}

	return json.Marshal(alias{ChallengeID: r.ChallengeID, SubmittedAt: r.SubmittedAt, Answers: envs})
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var raw struct {
		ChallengeID string           `json:"challengeId"`
		SubmittedAt time.Time        `json:"submittedAt"`
		Answers     []answerEnvelope `json:"answers"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	answers := make([]Answer, len(raw.Answers))
	for i, env := range raw.Answers {
		a, err := env.decode()
		if err != nil {
			return fmt.Errorf("answer %d: %w", i, err)
		}
		answers[i] = a
	}

	r.ChallengeID = raw.ChallengeID
	r.SubmittedAt = raw.SubmittedAt
	r.Answers = answers

	return nil
}
