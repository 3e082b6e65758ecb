package assessment

import (
	"context"
	"time"
)

type ListOpts struct {
	Q            string
	InstructorID string
	Status       Status
	StudentID    string // only assessments this student is enrolled in
	Limit        int
	Offset       int
}

type SubmissionListOpts struct {
	AssessmentID string
	StudentID    string
	InstructorID string // only submissions to this instructor's assessments
	Status       SubmissionStatus
	Limit        int
	Offset       int
}

// Patch carries the fields an update may change; nil fields are left alone.
type Patch struct {
	Title            *string     `json:"title,omitempty"`
	Description      *string     `json:"description,omitempty"`
	Subject          *string     `json:"subject,omitempty"`
	Kind             *Kind       `json:"kind,omitempty"`
	DurationMinutes  *int        `json:"duration_minutes,omitempty"`
	PassingScore     *int        `json:"passing_score,omitempty"`
	Difficulty       *string     `json:"difficulty,omitempty"`
	Status           *Status     `json:"status,omitempty"`
	ScheduledAt      *time.Time  `json:"scheduled_at,omitempty"`
	Deadline         *time.Time  `json:"deadline,omitempty"`
	Questions        *[]Question `json:"questions,omitempty"`
	EnrolledStudents *[]string   `json:"enrolled_students,omitempty"`
}

// Apply returns a with p applied.
func (p Patch) Apply(a Assessment) Assessment {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.Subject != nil {
		a.Subject = *p.Subject
	}
	if p.Kind != nil {
		a.Kind = *p.Kind
	}
	if p.DurationMinutes != nil {
		a.DurationMinutes = *p.DurationMinutes
	}
	if p.PassingScore != nil {
		a.PassingScore = *p.PassingScore
	}
	if p.Difficulty != nil {
		a.Difficulty = *p.Difficulty
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.ScheduledAt != nil {
		a.ScheduledAt = p.ScheduledAt
	}
	if p.Deadline != nil {
		a.Deadline = p.Deadline
	}
	if p.Questions != nil {
		a.Questions = *p.Questions
	}
	if p.EnrolledStudents != nil {
		a.EnrolledStudents = *p.EnrolledStudents
	}
	return a
}

// Store is the persistence collaborator for assessments and submissions.
// Get methods return full records (answer keys included); callers redact.
type Store interface {
	CreateAssessment(ctx context.Context, a Assessment) (Assessment, error)
	GetAssessment(ctx context.Context, id string) (Assessment, error)
	ListAssessments(ctx context.Context, opts ListOpts) ([]Assessment, error)
	UpdateAssessment(ctx context.Context, id string, p Patch) (Assessment, error)
	DeleteAssessment(ctx context.Context, id string) error

	CreateSubmission(ctx context.Context, s Submission) (Submission, error)
	GetSubmission(ctx context.Context, id string) (Submission, error)
	ListSubmissions(ctx context.Context, opts SubmissionListOpts) ([]Submission, error)
	UpdateSubmission(ctx context.Context, s Submission) (Submission, error)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func page[T any](items []T, limit, offset int) []T {
	limit, offset = clampPage(limit, offset)
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
