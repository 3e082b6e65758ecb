package assessment

import (
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-assess/internal/grading"
)

// Answer is a submitted or drafted response value.
type Answer = grading.Answer

type QuestionType string

const (
	SingleChoice QuestionType = grading.TypeSingleChoice
	MultiChoice  QuestionType = grading.TypeMultiChoice
	ShortText    QuestionType = grading.TypeShortText
	LongText     QuestionType = grading.TypeLongText
)

func (t QuestionType) IsChoice() bool { return t == SingleChoice || t == MultiChoice }

type Question struct {
	ID        string       `json:"id"`
	Type      QuestionType `json:"type"`
	Prompt    string       `json:"prompt"`
	Options   []string     `json:"options,omitempty"`
	AnswerKey []string     `json:"answer_key,omitempty"` // single_choice: one value; multi_choice: set
	Points    int          `json:"points"`
}

func (q Question) gradingView() grading.Q {
	return grading.Q{ID: q.ID, Type: string(q.Type), Points: float64(q.Points), AnswerKey: q.AnswerKey}
}

type Kind string

const (
	KindQuiz       Kind = "quiz"
	KindExam       Kind = "exam"
	KindAssignment Kind = "assignment"
)

type Status string

const (
	StatusDraft  Status = "draft"
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

type Assessment struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Subject          string     `json:"subject,omitempty"`
	InstructorID     string     `json:"instructor_id"`
	InstructorName   string     `json:"instructor_name,omitempty"`
	Kind             Kind       `json:"kind"`
	DurationMinutes  int        `json:"duration_minutes"` // 0 = untimed
	PassingScore     int        `json:"passing_score"`    // percentage
	Difficulty       string     `json:"difficulty,omitempty"`
	Status           Status     `json:"status"`
	ScheduledAt      *time.Time `json:"scheduled_at,omitempty"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	Questions        []Question `json:"questions"`
	EnrolledStudents []string   `json:"enrolled_students,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// MaxScore is the sum of all question points.
func (a Assessment) MaxScore() int {
	n := 0
	for _, q := range a.Questions {
		n += q.Points
	}
	return n
}

func (a Assessment) DurationSeconds() int { return a.DurationMinutes * 60 }

// IsEnrolled reports whether studentID may take the assessment.
// An empty enrollment list admits everyone.
func (a Assessment) IsEnrolled(studentID string) bool {
	if len(a.EnrolledStudents) == 0 {
		return true
	}
	for _, s := range a.EnrolledStudents {
		if s == studentID {
			return true
		}
	}
	return false
}

// Redacted returns a copy without answer keys, safe to hand to students.
func (a Assessment) Redacted() Assessment {
	qs := make([]Question, len(a.Questions))
	for i, q := range a.Questions {
		q.AnswerKey = nil
		qs[i] = q
	}
	a.Questions = qs
	return a
}

// Validate checks authoring invariants: unique ids, known types, positive
// points and answer keys drawn from the options.
func (a Assessment) Validate() error {
	if a.Title == "" {
		return fmt.Errorf("%w: title required", ErrInvalid)
	}
	if a.DurationMinutes < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalid)
	}
	if a.PassingScore < 0 || a.PassingScore > 100 {
		return fmt.Errorf("%w: passing score must be within 0..100", ErrInvalid)
	}
	switch a.Status {
	case StatusDraft, StatusActive, StatusClosed:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, a.Status)
	}
	seen := make(map[string]bool, len(a.Questions))
	for i, q := range a.Questions {
		if q.ID == "" {
			return fmt.Errorf("%w: question %d has no id", ErrInvalid, i)
		}
		if seen[q.ID] {
			return fmt.Errorf("%w: duplicate question id %q", ErrInvalid, q.ID)
		}
		seen[q.ID] = true
		if q.Points <= 0 {
			return fmt.Errorf("%w: question %s: points must be positive", ErrInvalid, q.ID)
		}
		switch q.Type {
		case SingleChoice, MultiChoice:
			if len(q.AnswerKey) == 0 {
				return fmt.Errorf("%w: question %s: answer key required", ErrInvalid, q.ID)
			}
			if q.Type == SingleChoice && len(q.AnswerKey) != 1 {
				return fmt.Errorf("%w: question %s: single choice takes exactly one key", ErrInvalid, q.ID)
			}
			opts := make(map[string]bool, len(q.Options))
			for _, o := range q.Options {
				opts[o] = true
			}
			for _, k := range q.AnswerKey {
				if !opts[k] {
					return fmt.Errorf("%w: question %s: key %q is not an option", ErrInvalid, q.ID, k)
				}
			}
		case ShortText, LongText:
		default:
			return fmt.Errorf("%w: question %s: unknown type %q", ErrInvalid, q.ID, q.Type)
		}
	}
	return nil
}

// AnswerRecord is the graded copy of one answer inside a Submission.
// IsCorrect and PointsAwarded stay nil until the record is graded.
type AnswerRecord struct {
	QuestionID    string       `json:"question_id"`
	Type          QuestionType `json:"type"`
	MaxPoints     int          `json:"max_points"`
	Answer        Answer       `json:"answer"`
	IsCorrect     *bool        `json:"is_correct"`
	PointsAwarded *float64     `json:"points_awarded"`
	Feedback      string       `json:"feedback,omitempty"`
}

func (r AnswerRecord) Graded() bool { return r.IsCorrect != nil && r.PointsAwarded != nil }

type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionEvaluated SubmissionStatus = "evaluated"
)

type Submission struct {
	ID                 string           `json:"id"`
	AssessmentID       string           `json:"assessment_id"`
	StudentID          string           `json:"student_id"`
	StudentName        string           `json:"student_name,omitempty"`
	Status             SubmissionStatus `json:"status"`
	TotalScore         float64          `json:"total_score"` // provisional while pending
	MaxScore           int              `json:"max_score"`
	Percentage         int              `json:"percentage"`
	TimeTakenSeconds   int              `json:"time_taken_seconds"`
	AutoSubmitted      bool             `json:"auto_submitted"`
	Answers            []AnswerRecord   `json:"answers"`
	SubmittedAt        time.Time        `json:"submitted_at"`
	InstructorFeedback string           `json:"instructor_feedback,omitempty"`
	EvaluatedBy        string           `json:"evaluated_by,omitempty"`
	EvaluatedAt        *time.Time       `json:"evaluated_at,omitempty"`
}

// Ungraded counts the records still waiting for a manual grade.
func (s Submission) Ungraded() int {
	n := 0
	for _, r := range s.Answers {
		if !r.Graded() {
			n++
		}
	}
	return n
}

func (s Submission) clone() Submission {
	s.Answers = append([]AnswerRecord(nil), s.Answers...)
	return s
}
