package assessment

import (
	"fmt"
	"math"
	"time"

	"github.com/mind-engage/mindengage-assess/internal/grading"
)

const (
	feedbackCorrect   = "Correct!"
	feedbackIncorrect = "Incorrect"
)

// BuildSubmission grades drafts against every question of a, in question
// order. Missing drafts are graded as empty answers. Free-text answers stay
// ungraded and leave the submission pending with a provisional score.
//
// The returned submission has no ID or SubmittedAt; the store assigns them.
func BuildSubmission(a Assessment, studentID string, drafts map[string]Answer, timeTakenSeconds int) (Submission, error) {
	records := make([]AnswerRecord, 0, len(a.Questions))
	total := 0.0
	pending := false
	for _, q := range a.Questions {
		ans := drafts[q.ID]
		res, err := grading.Grade(q.gradingView(), ans)
		if err != nil {
			return Submission{}, fmt.Errorf("assessment %s: %w", a.ID, err)
		}
		rec := AnswerRecord{
			QuestionID:    q.ID,
			Type:          q.Type,
			MaxPoints:     q.Points,
			Answer:        ans,
			IsCorrect:     res.IsCorrect,
			PointsAwarded: res.Points,
		}
		if res.NeedsManual {
			pending = true
		} else {
			total += *res.Points
			rec.Feedback = feedbackIncorrect
			if *res.IsCorrect {
				rec.Feedback = feedbackCorrect
			}
		}
		records = append(records, rec)
	}

	s := Submission{
		AssessmentID:     a.ID,
		StudentID:        studentID,
		Status:           SubmissionEvaluated,
		TotalScore:       total,
		MaxScore:         a.MaxScore(),
		TimeTakenSeconds: timeTakenSeconds,
		Answers:          records,
	}
	s.Percentage = percentage(s.TotalScore, s.MaxScore)
	if pending {
		s.Status = SubmissionPending
	}
	return s, nil
}

// ManualGrade is an instructor's verdict on one free-text answer.
type ManualGrade struct {
	Points   float64 `json:"points"`
	Feedback string  `json:"feedback,omitempty"`
}

// Evaluation is everything an instructor supplies when grading a submission.
// Grades pair positionally with the ungraded answers.
type Evaluation struct {
	Grades      []ManualGrade `json:"grades"`
	Feedback    string        `json:"feedback,omitempty"`
	EvaluatedBy string        `json:"-"`
	EvaluatedAt time.Time     `json:"-"`
}

// ApplyManualGrades merges ev into a copy of s and marks it evaluated.
// s itself is never modified, so a rejected evaluation leaves no trace.
// Points are not clamped here; callers enforce [0, MaxPoints].
func ApplyManualGrades(s Submission, ev Evaluation) (Submission, error) {
	if s.Status == SubmissionEvaluated {
		return s, ErrAlreadyEvaluated
	}
	if want := s.Ungraded(); len(ev.Grades) != want {
		return s, fmt.Errorf("%w: got %d, want %d", ErrGradeCountMismatch, len(ev.Grades), want)
	}

	out := s.clone()
	next := 0
	total := 0.0
	for i := range out.Answers {
		r := &out.Answers[i]
		if !r.Graded() {
			g := ev.Grades[next]
			next++
			pts := g.Points
			correct := pts >= float64(r.MaxPoints)
			r.PointsAwarded = &pts
			r.IsCorrect = &correct
			r.Feedback = g.Feedback
		}
		total += *r.PointsAwarded
	}

	at := ev.EvaluatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	out.TotalScore = total
	out.Percentage = percentage(total, out.MaxScore)
	out.Status = SubmissionEvaluated
	out.InstructorFeedback = ev.Feedback
	out.EvaluatedBy = ev.EvaluatedBy
	out.EvaluatedAt = &at
	return out, nil
}

func percentage(total float64, max int) int {
	if max <= 0 {
		return 0
	}
	return int(math.Round(total / float64(max) * 100))
}
