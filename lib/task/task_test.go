package task

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestChallengeRoundTrip(t *testing.T) {
	ch := Challenge{
		ID:       "ch-1",
		IssuedAt: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		Tasks: []Task{
			PatternCompletion{Sequences: []PatternSequence{{Given: []int64{2, 4, 6}, PredictCount: 2}}},
			TextTransformation{Input: "hello there", Operations: []string{"uppercase", "strip_spaces"}},
			ParallelQuestions{Questions: []string{"What is 7 * 8?"}},
			ReadingComprehension{Passage: "The relay mints tokens.", Questions: []string{"Who mints tokens?"}},
			MetaQuestion{Prompt: "Say the keyword.", ExpectedKeyword: "kw"},
		},
	}

	data, err := json.Marshal(ch)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(string(data), `"type":"patternCompletion"`) {
		t.Errorf("wanted tagged task variant in payload: %s", data)
	}

	var got Challenge
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}

	if got.ID != ch.ID || len(got.Tasks) != len(ch.Tasks) {
		t.Fatalf("round trip mangled the challenge: %+v", got)
	}

	for i, want := range ch.Tasks {
		if got.Tasks[i].TaskType() != want.TaskType() {
			t.Errorf("task %d: wanted %s, got: %s", i, want.TaskType(), got.Tasks[i].TaskType())
		}
	}

	meta, ok := got.Tasks[4].(MetaQuestion)
	if !ok || meta.ExpectedKeyword != "kw" {
		t.Errorf("meta task lost its keyword: %+v", got.Tasks[4])
	}
}

func TestResponseRoundTrip(t *testing.T) {
	resp := Response{
		ChallengeID: "ch-1",
		SubmittedAt: time.Date(2025, time.January, 1, 0, 0, 1, 0, time.UTC),
		Answers: []Answer{
			PatternAnswer{Predictions: [][]int64{{8, 10}}},
			TextAnswer{Result: "HELLOTHERE"},
			ParallelAnswer{Answers: []string{"56"}},
			ReadingAnswer{Answers: []string{"unknown"}},
			MetaAnswer{Answer: "kw"},
		},
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}

	var got Response
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}

	if len(got.Answers) != len(resp.Answers) {
		t.Fatalf("wanted %d answers, got: %d", len(resp.Answers), len(got.Answers))
	}

	pa, ok := got.Answers[0].(PatternAnswer)
	if !ok || pa.Predictions[0][1] != 10 {
		t.Errorf("pattern answer mangled: %+v", got.Answers[0])
	}
}

func TestUnknownVariant(t *testing.T) {
	payload := `{"challengeId":"x","issuedAt":"2025-01-01T00:00:00Z","tasks":[{"type":"mindReading"}]}`

	var ch Challenge
	err := json.Unmarshal([]byte(payload), &ch)
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("wanted ErrUnknownType, got: %v", err)
	}
}

func TestMatchAnswers(t *testing.T) {
	ch := &Challenge{
		ID: "ch-1",
		Tasks: []Task{
			PatternCompletion{},
			MetaQuestion{ExpectedKeyword: "kw"},
		},
	}

	for _, tt := range []struct {
		name    string
		answers []Answer
		err     error
	}{
		{
			name:    "matching",
			answers: []Answer{PatternAnswer{}, MetaAnswer{Answer: "kw"}},
			err:     nil,
		},
		{
			name:    "too-few",
			answers: []Answer{PatternAnswer{}},
			err:     ErrArityMismatch,
		},
		{
			name:    "too-many",
			answers: []Answer{PatternAnswer{}, MetaAnswer{}, MetaAnswer{}},
			err:     ErrArityMismatch,
		},
		{
			name:    "wrong-variant-order",
			answers: []Answer{MetaAnswer{}, PatternAnswer{}},
			err:     ErrArityMismatch,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			err := MatchAnswers(ch, &Response{ChallengeID: ch.ID, Answers: tt.answers})
			if !errors.Is(err, tt.err) {
				t.Errorf("wanted %v, got: %v", tt.err, err)
			}
		})
	}
}

func TestApplyTextOp(t *testing.T) {
	for _, tt := range []struct {
		op    string
		input string
		want  string
	}{
		{"uppercase", "peer mesh", "PEER MESH"},
		{"lowercase", "PEER", "peer"},
		{"reverse", "relay", "yaler"},
		{"strip_spaces", "a b c", "abc"},
		{"remove_vowels", "attribution", "ttrbtn"},
		{"no_such_op", "peer", "peer"},
	} {
		t.Run(tt.op, func(t *testing.T) {
			if got := ApplyTextOp(tt.input, tt.op); got != tt.want {
				t.Errorf("wanted %q, got: %q", tt.want, got)
			}
		})
	}
}
