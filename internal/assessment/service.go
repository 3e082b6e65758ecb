package assessment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-assess/internal/eventlog"
	"github.com/mind-engage/mindengage-assess/internal/metrics"
)

// Service wraps a Store with validation, activity logging and metrics.
type Service struct {
	store  Store
	events eventlog.Appender
	log    *zap.Logger

	// serializes evaluate read-modify-write so a submission is finalized once
	evalMu sync.Mutex
}

func NewService(store Store, events eventlog.Appender, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, events: events, log: log}
}

func (s *Service) Store() Store { return s.store }

// Create validates a and stores it on behalf of the instructor.
func (s *Service) Create(ctx context.Context, instructorID, instructorName string, a Assessment) (Assessment, error) {
	a.Title = strings.TrimSpace(a.Title)
	a.InstructorID = instructorID
	a.InstructorName = instructorName
	if a.Status == "" {
		a.Status = StatusDraft
	}
	if a.Kind == "" {
		a.Kind = KindQuiz
	}
	if err := a.Validate(); err != nil {
		return Assessment{}, err
	}
	out, err := s.store.CreateAssessment(ctx, a)
	if err != nil {
		return Assessment{}, fmt.Errorf("create assessment: %w", err)
	}
	s.record(ctx, eventlog.AssessmentCreated, out.ID, instructorID, map[string]any{
		"title":     out.Title,
		"questions": len(out.Questions),
	})
	return out, nil
}

func (s *Service) Update(ctx context.Context, actorID, id string, p Patch) (Assessment, error) {
	cur, err := s.store.GetAssessment(ctx, id)
	if err != nil {
		return Assessment{}, err
	}
	if err := p.Apply(cur).Validate(); err != nil {
		return Assessment{}, err
	}
	out, err := s.store.UpdateAssessment(ctx, id, p)
	if err != nil {
		return Assessment{}, err
	}
	s.record(ctx, eventlog.AssessmentUpdated, id, actorID, map[string]any{"status": out.Status})
	return out, nil
}

func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	if err := s.store.DeleteAssessment(ctx, id); err != nil {
		return err
	}
	s.record(ctx, eventlog.AssessmentDeleted, id, actorID, nil)
	return nil
}

// RecordSubmission stores a finished attempt. It is the session manager's
// submit callback.
func (s *Service) RecordSubmission(ctx context.Context, sub Submission) (Submission, error) {
	out, err := s.store.CreateSubmission(ctx, sub)
	if err != nil {
		return Submission{}, fmt.Errorf("store submission: %w", err)
	}
	metrics.Submissions.WithLabelValues(string(out.Status)).Inc()
	s.record(ctx, eventlog.AssessmentSubmitted, out.ID, out.StudentID, map[string]any{
		"assessment_id":  out.AssessmentID,
		"percentage":     out.Percentage,
		"status":         out.Status,
		"auto_submitted": out.AutoSubmitted,
	})
	return out, nil
}

// Evaluate applies an instructor's grades to a pending submission. Every
// grade must lie within its question's [0, max] range.
func (s *Service) Evaluate(ctx context.Context, id string, ev Evaluation) (Submission, error) {
	s.evalMu.Lock()
	defer s.evalMu.Unlock()

	cur, err := s.store.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if cur.Status == SubmissionEvaluated {
		return cur, ErrAlreadyEvaluated
	}
	if err := checkGradeRange(cur, ev.Grades); err != nil {
		return cur, err
	}
	next, err := ApplyManualGrades(cur, ev)
	if err != nil {
		return cur, err
	}
	out, err := s.store.UpdateSubmission(ctx, next)
	if err != nil {
		return cur, fmt.Errorf("update submission: %w", err)
	}
	metrics.Evaluations.Inc()
	s.record(ctx, eventlog.AssessmentEvaluated, out.ID, ev.EvaluatedBy, map[string]any{
		"student_id": out.StudentID,
		"percentage": out.Percentage,
	})
	return out, nil
}

func checkGradeRange(sub Submission, grades []ManualGrade) error {
	i := 0
	for _, r := range sub.Answers {
		if r.Graded() {
			continue
		}
		if i >= len(grades) {
			return nil // count mismatch reported by ApplyManualGrades
		}
		if p := grades[i].Points; p < 0 || p > float64(r.MaxPoints) {
			return fmt.Errorf("%w: question %s: %g not within 0..%d", ErrInvalidGrade, r.QuestionID, p, r.MaxPoints)
		}
		i++
	}
	return nil
}

// Stats summarizes every submission matching opts.
func (s *Service) Stats(ctx context.Context, opts SubmissionListOpts) (Stats, error) {
	const batch = 500
	var all []Submission
	opts.Limit = batch
	for opts.Offset = 0; ; opts.Offset += batch {
		subs, err := s.store.ListSubmissions(ctx, opts)
		if err != nil {
			return Stats{}, err
		}
		all = append(all, subs...)
		if len(subs) < batch {
			break
		}
	}
	passing := map[string]int{}
	for _, sub := range all {
		if _, ok := passing[sub.AssessmentID]; ok {
			continue
		}
		a, err := s.store.GetAssessment(ctx, sub.AssessmentID)
		if err != nil {
			continue
		}
		passing[a.ID] = a.PassingScore
	}
	return Summarize(all, passing), nil
}

func (s *Service) record(ctx context.Context, typ, key, actor string, data any) {
	if s.events == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	if err := s.events.Append(ctx, eventlog.Event{Type: typ, Key: key, Actor: actor, Data: eventlog.JSON(data)}); err != nil {
		s.log.Warn("append event", zap.String("type", typ), zap.String("key", key), zap.Error(err))
	}
}
