package grading

import (
	"errors"
	"fmt"
)

// ErrMalformedQuestion reports authoring data the engine cannot grade against.
var ErrMalformedQuestion = errors.New("malformed question")

// Question types understood by the default grader.
const (
	TypeSingleChoice = "single_choice"
	TypeMultiChoice  = "multi_choice"
	TypeShortText    = "short_text"
	TypeLongText     = "long_text"
)

// Q is a minimal view of a question needed for grading.
// Keep this in sync with assessment.Question.
type Q struct {
	ID        string
	Type      string
	Points    float64
	AnswerKey []string
}

// Result is the outcome of grading a single question response.
// IsCorrect and Points are nil while the answer waits for a human grader.
type Result struct {
	IsCorrect   *bool
	Points      *float64
	MaxPoints   float64
	NeedsManual bool
}

// Strategy grades a single question.
type Strategy interface {
	Grade(q Q, answer Answer) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(q Q, answer Answer) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(q Q, answer Answer) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{}, fmt.Errorf("%w: question %s: unknown type %q", ErrMalformedQuestion, q.ID, q.Type)
	}
	return s.Grade(q, answer)
}

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[string]Strategy{
			TypeSingleChoice: singleChoiceStrategy{},
			TypeMultiChoice:  multiChoiceStrategy{},
			TypeShortText:    manualStrategy{},
			TypeLongText:     manualStrategy{},
		},
	}
}

var std = NewDefaultGrader()

// Grade grades with the default strategies.
func Grade(q Q, answer Answer) (Result, error) { return std.Grade(q, answer) }

// IsAutoGradable reports whether questions of type t are graded without a human.
func IsAutoGradable(t string) bool {
	return t == TypeSingleChoice || t == TypeMultiChoice
}

// --- Strategies ---

// singleChoiceStrategy compares the text answer against the key byte for byte.
// No trimming or case folding is applied.
type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Grade(q Q, answer Answer) (Result, error) {
	switch len(q.AnswerKey) {
	case 0:
		return Result{}, fmt.Errorf("%w: question %s: missing answer key", ErrMalformedQuestion, q.ID)
	case 1:
	default:
		return Result{}, fmt.Errorf("%w: question %s: single choice with %d keys", ErrMalformedQuestion, q.ID, len(q.AnswerKey))
	}
	return verdict(q, answer.Text == q.AnswerKey[0]), nil
}

// multiChoiceStrategy awards full points only for an exact set match.
type multiChoiceStrategy struct{}

func (multiChoiceStrategy) Grade(q Q, answer Answer) (Result, error) {
	if len(q.AnswerKey) == 0 {
		return Result{}, fmt.Errorf("%w: question %s: missing answer key", ErrMalformedQuestion, q.ID)
	}
	return verdict(q, setEqual(toSet(q.AnswerKey), toSet(answer.Choices))), nil
}

type manualStrategy struct{}

func (manualStrategy) Grade(q Q, _ Answer) (Result, error) {
	return Result{MaxPoints: q.Points, NeedsManual: true}, nil
}

// helpers

func verdict(q Q, correct bool) Result {
	pts := 0.0
	if correct {
		pts = q.Points
	}
	return Result{IsCorrect: &correct, Points: &pts, MaxPoints: q.Points}
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
