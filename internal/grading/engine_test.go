package grading

import (
	"encoding/json"
	"errors"
	"testing"
)

func assertVerdict(t *testing.T, res Result, wantCorrect bool, wantPoints float64) {
	t.Helper()
	if res.IsCorrect == nil || res.Points == nil {
		t.Fatalf("expected a verdict, got unknown (%+v)", res)
	}
	if *res.IsCorrect != wantCorrect {
		t.Fatalf("isCorrect=%v, want %v", *res.IsCorrect, wantCorrect)
	}
	if *res.Points != wantPoints {
		t.Fatalf("points=%v, want %v", *res.Points, wantPoints)
	}
	if res.NeedsManual {
		t.Fatalf("auto-graded result flagged for manual grading")
	}
}

func TestGrade_SingleChoice(t *testing.T) {
	q := Q{ID: "q1", Type: TypeSingleChoice, Points: 4, AnswerKey: []string{"2x"}}
	tests := []struct {
		name    string
		answer  Answer
		correct bool
		points  float64
	}{
		{"exact key", TextAnswer("2x"), true, 4},
		{"other option", TextAnswer("x"), false, 0},
		{"case differs", TextAnswer("2X"), false, 0},
		{"surrounding space", TextAnswer(" 2x"), false, 0},
		{"empty", TextAnswer(""), false, 0},
		{"out of range option", TextAnswer("banana"), false, 0},
		{"array sent for single", ChoicesAnswer("2x"), false, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Grade(q, tc.answer)
			if err != nil {
				t.Fatalf("grade: %v", err)
			}
			assertVerdict(t, res, tc.correct, tc.points)
			if res.MaxPoints != 4 {
				t.Fatalf("max=%v, want 4", res.MaxPoints)
			}
		})
	}
}

func TestGrade_MultiChoiceNoPartialCredit(t *testing.T) {
	q := Q{ID: "q2", Type: TypeMultiChoice, Points: 10, AnswerKey: []string{"Stack", "Queue", "Linked List"}}
	tests := []struct {
		name    string
		answer  Answer
		correct bool
		points  float64
	}{
		{"same order", ChoicesAnswer("Stack", "Queue", "Linked List"), true, 10},
		{"shuffled", ChoicesAnswer("Linked List", "Stack", "Queue"), true, 10},
		{"duplicates collapse", ChoicesAnswer("Stack", "Queue", "Queue", "Linked List"), true, 10},
		{"missing one", ChoicesAnswer("Stack", "Queue"), false, 0},
		{"extra one", ChoicesAnswer("Stack", "Queue", "Linked List", "Tree"), false, 0},
		{"disjoint", ChoicesAnswer("Tree"), false, 0},
		{"empty set", ChoicesAnswer(), false, 0},
		{"text sent for multi", TextAnswer("Stack"), false, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Grade(q, tc.answer)
			if err != nil {
				t.Fatalf("grade: %v", err)
			}
			assertVerdict(t, res, tc.correct, tc.points)
		})
	}
}

func TestGrade_FreeTextIsAlwaysUnknown(t *testing.T) {
	for _, typ := range []string{TypeShortText, TypeLongText} {
		for _, ans := range []Answer{TextAnswer(""), TextAnswer("x^3"), ChoicesAnswer("a")} {
			res, err := Grade(Q{ID: "q", Type: typ, Points: 6}, ans)
			if err != nil {
				t.Fatalf("%s: grade: %v", typ, err)
			}
			if res.IsCorrect != nil || res.Points != nil {
				t.Fatalf("%s: expected unknown verdict, got %+v", typ, res)
			}
			if !res.NeedsManual || res.MaxPoints != 6 {
				t.Fatalf("%s: unexpected result %+v", typ, res)
			}
		}
	}
}

func TestGrade_MalformedQuestion(t *testing.T) {
	cases := []Q{
		{ID: "a", Type: "essay", Points: 1},
		{ID: "b", Type: TypeSingleChoice, Points: 1},
		{ID: "c", Type: TypeMultiChoice, Points: 1, AnswerKey: []string{}},
		{ID: "d", Type: TypeSingleChoice, Points: 1, AnswerKey: []string{"a", "b"}},
	}
	for _, q := range cases {
		if _, err := Grade(q, TextAnswer("a")); !errors.Is(err, ErrMalformedQuestion) {
			t.Fatalf("question %s: err=%v, want ErrMalformedQuestion", q.ID, err)
		}
	}
}

func TestAnswerJSON(t *testing.T) {
	var a Answer
	if err := json.Unmarshal([]byte(`"2x"`), &a); err != nil || a.Text != "2x" || a.IsMulti() {
		t.Fatalf("string decode: %+v %v", a, err)
	}
	if err := json.Unmarshal([]byte(`["Stack","Queue"]`), &a); err != nil || len(a.Choices) != 2 || a.Text != "" {
		t.Fatalf("array decode: %+v %v", a, err)
	}
	if err := json.Unmarshal([]byte(`[]`), &a); err != nil || !a.IsMulti() || !a.IsEmpty() {
		t.Fatalf("empty array decode: %+v %v", a, err)
	}
	if err := json.Unmarshal([]byte(`42`), &a); err == nil {
		t.Fatalf("expected error for number")
	}
	b, _ := json.Marshal(ChoicesAnswer())
	if string(b) != "[]" {
		t.Fatalf("empty choices encode = %s", b)
	}
	b, _ = json.Marshal(TextAnswer(""))
	if string(b) != `""` {
		t.Fatalf("empty text encode = %s", b)
	}
}
