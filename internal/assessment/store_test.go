package assessment_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-assess/internal/assessment"
	"github.com/mind-engage/mindengage-assess/internal/db"
	"github.com/mind-engage/mindengage-assess/internal/grading"
)

func openSQLite(t *testing.T) *assessment.SQLStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return assessment.NewSQLStore(dbh)
}

func stores(t *testing.T) map[string]assessment.Store {
	return map[string]assessment.Store{
		"memory": assessment.NewInMemoryStore(),
		"sqlite": openSQLite(t),
	}
}

func seedAssessment(t *testing.T, st assessment.Store, mut func(a *assessment.Assessment)) assessment.Assessment {
	t.Helper()
	deadline := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	a := assessment.Assessment{
		Title:           "Calculus Fundamentals",
		Subject:         "Mathematics",
		InstructorID:    "inst-1",
		Kind:            assessment.KindExam,
		DurationMinutes: 120,
		PassingScore:    75,
		Status:          assessment.StatusActive,
		Deadline:        &deadline,
		Questions: []assessment.Question{
			{ID: "q1", Type: assessment.SingleChoice, Options: []string{"x", "2x"}, AnswerKey: []string{"2x"}, Points: 4},
			{ID: "q2", Type: assessment.ShortText, Points: 6},
		},
		EnrolledStudents: []string{"stu-1"},
	}
	if mut != nil {
		mut(&a)
	}
	got, err := st.CreateAssessment(context.Background(), a)
	if err != nil {
		t.Fatalf("create assessment: %v", err)
	}
	return got
}

func TestStore_AssessmentCRUD(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := seedAssessment(t, st, nil)
			if a.ID == "" || a.CreatedAt.IsZero() {
				t.Fatalf("id/created_at not assigned: %+v", a)
			}

			got, err := st.GetAssessment(ctx, a.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if len(got.Questions) != 2 || got.Questions[0].AnswerKey[0] != "2x" || got.Deadline == nil || !got.Deadline.Equal(*a.Deadline) {
				t.Fatalf("round trip lost data: %+v", got)
			}

			title := "Calculus II"
			closed := assessment.StatusClosed
			upd, err := st.UpdateAssessment(ctx, a.ID, assessment.Patch{Title: &title, Status: &closed})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if upd.Title != title || upd.Status != closed || upd.PassingScore != 75 {
				t.Fatalf("patch applied wrongly: %+v", upd)
			}

			if _, err := st.UpdateAssessment(ctx, "missing", assessment.Patch{}); !errors.Is(err, assessment.ErrNotFound) {
				t.Fatalf("update missing: %v", err)
			}
			if err := st.DeleteAssessment(ctx, a.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, err := st.GetAssessment(ctx, a.ID); !errors.Is(err, assessment.ErrNotFound) {
				t.Fatalf("get after delete: %v", err)
			}
			if err := st.DeleteAssessment(ctx, a.ID); !errors.Is(err, assessment.ErrNotFound) {
				t.Fatalf("double delete: %v", err)
			}
		})
	}
}

func TestStore_ListAssessmentsFilters(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedAssessment(t, st, nil)
			seedAssessment(t, st, func(a *assessment.Assessment) {
				a.Title = "Data Structures"
				a.Subject = "Computer Science"
				a.InstructorID = "inst-2"
				a.Status = assessment.StatusDraft
				a.EnrolledStudents = nil
			})

			cases := []struct {
				opts assessment.ListOpts
				want int
			}{
				{assessment.ListOpts{}, 2},
				{assessment.ListOpts{InstructorID: "inst-2"}, 1},
				{assessment.ListOpts{Status: assessment.StatusActive}, 1},
				{assessment.ListOpts{StudentID: "stu-9"}, 1}, // open enrollment only
				{assessment.ListOpts{StudentID: "stu-1"}, 2},
				{assessment.ListOpts{Q: "computer"}, 1},
				{assessment.ListOpts{Limit: 1}, 1},
				{assessment.ListOpts{Offset: 5}, 0},
			}
			for i, c := range cases {
				got, err := st.ListAssessments(ctx, c.opts)
				if err != nil {
					t.Fatalf("case %d: %v", i, err)
				}
				if len(got) != c.want {
					t.Fatalf("case %d (%+v): got %d, want %d", i, c.opts, len(got), c.want)
				}
			}
		})
	}
}

func TestStore_SubmissionRoundTrip(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := seedAssessment(t, st, nil)

			built, err := assessment.BuildSubmission(a, "stu-1", map[string]assessment.Answer{
				"q1": grading.TextAnswer("2x"),
				"q2": grading.TextAnswer("x^3 + C"),
			}, 600)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			built.StudentName = "John Doe"
			built.AutoSubmitted = true
			sub, err := st.CreateSubmission(ctx, built)
			if err != nil {
				t.Fatalf("create submission: %v", err)
			}

			got, err := st.GetSubmission(ctx, sub.ID)
			if err != nil {
				t.Fatalf("get submission: %v", err)
			}
			if got.Status != assessment.SubmissionPending || got.TotalScore != 4 || got.Percentage != 40 || !got.AutoSubmitted {
				t.Fatalf("unexpected %+v", got)
			}
			if got.Answers[1].IsCorrect != nil || got.Answers[1].PointsAwarded != nil {
				t.Fatalf("unknown verdict did not survive storage: %+v", got.Answers[1])
			}
			if got.Answers[1].Answer.Text != "x^3 + C" {
				t.Fatalf("answer text lost: %+v", got.Answers[1])
			}

			ev, err := assessment.ApplyManualGrades(got, assessment.Evaluation{
				Grades:      []assessment.ManualGrade{{Points: 6, Feedback: "ok"}},
				EvaluatedBy: "inst-1",
			})
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if _, err := st.UpdateSubmission(ctx, ev); err != nil {
				t.Fatalf("update: %v", err)
			}
			got, _ = st.GetSubmission(ctx, sub.ID)
			if got.Status != assessment.SubmissionEvaluated || got.TotalScore != 10 || got.EvaluatedAt == nil || got.EvaluatedBy != "inst-1" {
				t.Fatalf("evaluation not persisted: %+v", got)
			}

			pending, _ := st.ListSubmissions(ctx, assessment.SubmissionListOpts{Status: assessment.SubmissionPending})
			evaluated, _ := st.ListSubmissions(ctx, assessment.SubmissionListOpts{StudentID: "stu-1", Status: assessment.SubmissionEvaluated})
			if len(pending) != 0 || len(evaluated) != 1 {
				t.Fatalf("list filters: pending=%d evaluated=%d", len(pending), len(evaluated))
			}
			mine, _ := st.ListSubmissions(ctx, assessment.SubmissionListOpts{InstructorID: "inst-1"})
			theirs, _ := st.ListSubmissions(ctx, assessment.SubmissionListOpts{InstructorID: "inst-2"})
			if len(mine) != 1 || len(theirs) != 0 {
				t.Fatalf("instructor scope: mine=%d theirs=%d", len(mine), len(theirs))
			}

			if _, err := st.GetSubmission(ctx, "nope"); !errors.Is(err, assessment.ErrNotFound) {
				t.Fatalf("get missing: %v", err)
			}
			if _, err := st.UpdateSubmission(ctx, assessment.Submission{ID: "nope"}); !errors.Is(err, assessment.ErrNotFound) {
				t.Fatalf("update missing: %v", err)
			}
		})
	}
}

func TestStore_DeleteCascadesSubmissions(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := seedAssessment(t, st, nil)
			built, _ := assessment.BuildSubmission(a, "stu-1", nil, 0)
			if _, err := st.CreateSubmission(ctx, built); err != nil {
				t.Fatalf("create: %v", err)
			}
			if err := st.DeleteAssessment(ctx, a.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			left, _ := st.ListSubmissions(ctx, assessment.SubmissionListOpts{AssessmentID: a.ID})
			if len(left) != 0 {
				t.Fatalf("submissions survived assessment delete: %d", len(left))
			}
		})
	}
}
