package assessment

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu          sync.RWMutex
	assessments map[string]Assessment
	submissions map[string]Submission
	now         func() time.Time
}

// NewInMemoryStore returns a Store backed by process-local maps.
func NewInMemoryStore() Store {
	return &memoryStore{
		assessments: map[string]Assessment{},
		submissions: map[string]Submission{},
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (m *memoryStore) CreateAssessment(_ context.Context, a Assessment) (Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = m.now()
	}
	m.assessments[a.ID] = a
	return a, nil
}

func (m *memoryStore) GetAssessment(_ context.Context, id string) (Assessment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assessments[id]
	if !ok {
		return Assessment{}, ErrNotFound
	}
	return a, nil
}

func (m *memoryStore) ListAssessments(_ context.Context, opts ListOpts) ([]Assessment, error) {
	m.mu.RLock()
	out := make([]Assessment, 0, len(m.assessments))
	q := strings.ToLower(strings.TrimSpace(opts.Q))
	for _, a := range m.assessments {
		if opts.InstructorID != "" && a.InstructorID != opts.InstructorID {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		if opts.StudentID != "" && !a.IsEnrolled(opts.StudentID) {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(a.Title), q) && !strings.Contains(strings.ToLower(a.Subject), q) {
			continue
		}
		out = append(out, a)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, opts.Limit, opts.Offset), nil
}

func (m *memoryStore) UpdateAssessment(_ context.Context, id string, p Patch) (Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assessments[id]
	if !ok {
		return Assessment{}, ErrNotFound
	}
	a = p.Apply(a)
	m.assessments[id] = a
	return a, nil
}

func (m *memoryStore) DeleteAssessment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assessments[id]; !ok {
		return ErrNotFound
	}
	delete(m.assessments, id)
	for sid, s := range m.submissions {
		if s.AssessmentID == id {
			delete(m.submissions, sid)
		}
	}
	return nil
}

func (m *memoryStore) CreateSubmission(_ context.Context, s Submission) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assessments[s.AssessmentID]; !ok {
		return Submission{}, ErrNotFound
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.SubmittedAt.IsZero() {
		s.SubmittedAt = m.now()
	}
	m.submissions[s.ID] = s.clone()
	return s, nil
}

func (m *memoryStore) GetSubmission(_ context.Context, id string) (Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.submissions[id]
	if !ok {
		return Submission{}, ErrNotFound
	}
	return s.clone(), nil
}

func (m *memoryStore) ListSubmissions(_ context.Context, opts SubmissionListOpts) ([]Submission, error) {
	m.mu.RLock()
	out := make([]Submission, 0, len(m.submissions))
	for _, s := range m.submissions {
		if opts.AssessmentID != "" && s.AssessmentID != opts.AssessmentID {
			continue
		}
		if opts.StudentID != "" && s.StudentID != opts.StudentID {
			continue
		}
		if opts.Status != "" && s.Status != opts.Status {
			continue
		}
		if opts.InstructorID != "" && m.assessments[s.AssessmentID].InstructorID != opts.InstructorID {
			continue
		}
		out = append(out, s.clone())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, opts.Limit, opts.Offset), nil
}

func (m *memoryStore) UpdateSubmission(_ context.Context, s Submission) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.submissions[s.ID]; !ok {
		return Submission{}, ErrNotFound
	}
	m.submissions[s.ID] = s.clone()
	return s, nil
}
