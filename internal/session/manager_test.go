package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-assess/internal/assessment"
	"github.com/mind-engage/mindengage-assess/internal/grading"
)

// manualTicker hands each session a channel the test drives.
type manualTicker struct{ ch chan chan time.Time }

func newManualTicker() *manualTicker { return &manualTicker{ch: make(chan chan time.Time, 8)} }

func (m *manualTicker) fn() (<-chan time.Time, func()) {
	c := make(chan time.Time)
	m.ch <- c
	return c, func() {}
}

func collect() (SubmitFunc, chan assessment.Submission) {
	out := make(chan assessment.Submission, 4)
	return func(_ context.Context, sub assessment.Submission) (assessment.Submission, error) {
		sub.ID = "sub-" + sub.StudentID
		out <- sub
		return sub, nil
	}, out
}

func TestManager_ForcedSubmitCallsOnSubmit(t *testing.T) {
	tk := newManualTicker()
	onSubmit, got := collect()
	m := NewManager(onSubmit, WithTicker(tk.fn))
	defer m.Close()

	s, err := m.Start(quiz(1), "stu", "John")
	if err != nil {
		t.Fatal(err)
	}
	_ = s.SetDraft("q1", grading.TextAnswer("Array"))
	ticks := <-tk.ch
	for i := 0; i < 60; i++ {
		ticks <- time.Now()
	}

	select {
	case sub := <-got:
		if !sub.AutoSubmitted || sub.ID != "sub-stu" || sub.TotalScore != 5 {
			t.Fatalf("forced submission: %+v", sub)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnSubmit not called")
	}
	if _, err := m.Get(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("session still registered: %v", err)
	}
}

func TestManager_OneLiveSessionPerStudent(t *testing.T) {
	tk := newManualTicker()
	onSubmit, _ := collect()
	m := NewManager(onSubmit, WithTicker(tk.fn))
	defer m.Close()

	s, err := m.Start(quiz(10), "stu", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Start(quiz(10), "stu", ""); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("second start: %v", err)
	}
	if _, err := m.Start(quiz(10), "other", ""); err != nil {
		t.Fatalf("other student: %v", err)
	}
	if err := m.Discard(s.ID()); err != nil {
		t.Fatal(err)
	}
	if s.State() != Closed {
		t.Fatalf("discarded session state %v", s.State())
	}
	if _, err := m.Start(quiz(10), "stu", ""); err != nil {
		t.Fatalf("start after discard: %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("live sessions %d", m.Len())
	}
}

func TestManager_ExplicitSubmit(t *testing.T) {
	tk := newManualTicker()
	onSubmit, got := collect()
	m := NewManager(onSubmit, WithTicker(tk.fn))
	defer m.Close()

	s, _ := m.Start(quiz(10), "stu", "John")
	_ = s.SetDraft("q3", grading.TextAnswer("A queue is FIFO."))
	sub, err := m.Submit(context.Background(), s.ID())
	if err != nil {
		t.Fatal(err)
	}
	if sub.ID != "sub-stu" || sub.Status != assessment.SubmissionPending || sub.AutoSubmitted {
		t.Fatalf("submission: %+v", sub)
	}
	<-got
	if _, err := m.Submit(context.Background(), s.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second submit: %v", err)
	}
}

func TestManager_StartChecks(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(nil, WithTicker(newManualTicker().fn), WithClock(func() time.Time { return now }))
	defer m.Close()

	draft := quiz(10)
	draft.Status = assessment.StatusDraft
	past := now.Add(-time.Hour)
	late := quiz(10)
	late.Deadline = &past
	future := now.Add(time.Hour)
	early := quiz(10)
	early.ScheduledAt = &future
	closed := quiz(10)
	closed.EnrolledStudents = []string{"someone-else"}

	for name, tc := range map[string]struct {
		a    assessment.Assessment
		want error
	}{
		"draft":        {draft, ErrNotOpen},
		"past due":     {late, ErrNotOpen},
		"not yet open": {early, ErrNotOpen},
		"not enrolled": {closed, ErrNotEnrolled},
	} {
		if _, err := m.Start(tc.a, "stu", ""); !errors.Is(err, tc.want) {
			t.Errorf("%s: %v, want %v", name, err, tc.want)
		}
	}
}
