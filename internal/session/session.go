package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mind-engage/mindengage-assess/internal/assessment"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrClosed          = errors.New("session closed")
	ErrUnknownQuestion = errors.New("question not in assessment")
	ErrAlreadyActive   = errors.New("an attempt is already in progress for this assessment")
	ErrNotOpen         = errors.New("assessment is not open")
	ErrNotEnrolled     = errors.New("student not enrolled")
)

type State int

const (
	Active State = iota
	Submitting
	Closed
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Submitting:
		return "submitting"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Session is one student's attempt at an assessment. It lives only in
// memory; nothing is persisted until it is submitted.
type Session struct {
	mu sync.Mutex

	id          string
	studentID   string
	studentName string
	a           assessment.Assessment
	startedAt   time.Time

	duration  int // seconds, 0 = untimed
	remaining int
	elapsed   int
	current   int
	drafts    map[string]assessment.Answer
	index     map[string]int

	state State
	auto  bool
	err   error
}

func New(id string, a assessment.Assessment, studentID, studentName string, now time.Time) *Session {
	index := make(map[string]int, len(a.Questions))
	for i, q := range a.Questions {
		index[q.ID] = i
	}
	return &Session{
		id:          id,
		studentID:   studentID,
		studentName: studentName,
		a:           a,
		startedAt:   now,
		duration:    a.DurationSeconds(),
		remaining:   a.DurationSeconds(),
		drafts:      map[string]assessment.Answer{},
		index:       index,
	}
}

func (s *Session) ID() string           { return s.id }
func (s *Session) StudentID() string    { return s.studentID }
func (s *Session) AssessmentID() string { return s.a.ID }

// Next moves to the following question; a no-op on the last one.
func (s *Session) Next() (int, error) { return s.move(func(i int) int { return i + 1 }) }

// Previous moves back one question; a no-op on the first one.
func (s *Session) Previous() (int, error) { return s.move(func(i int) int { return i - 1 }) }

// JumpTo moves to question i, clamped to the question list.
func (s *Session) JumpTo(i int) (int, error) { return s.move(func(int) int { return i }) }

func (s *Session) move(f func(int) int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active {
		return s.current, ErrClosed
	}
	next := f(s.current)
	if last := len(s.a.Questions) - 1; next > last {
		next = last
	}
	if next < 0 {
		next = 0
	}
	s.current = next
	return s.current, nil
}

// SetDraft records the student's current answer for a question.
func (s *Session) SetDraft(questionID string, ans assessment.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active {
		return ErrClosed
	}
	if _, ok := s.index[questionID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	s.drafts[questionID] = ans
	return nil
}

// Tick advances the clock by one second. When a timed session runs out it
// is submitted on the student's behalf and the submission is returned.
func (s *Session) Tick() (*assessment.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active {
		return nil, ErrClosed
	}
	s.elapsed++
	if s.duration == 0 {
		return nil, nil
	}
	s.remaining--
	if s.remaining > 0 {
		return nil, nil
	}
	s.remaining = 0
	sub, err := s.submitLocked(true)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Submit is the student's explicit hand-in.
func (s *Session) Submit() (assessment.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active {
		return assessment.Submission{}, ErrClosed
	}
	return s.submitLocked(false)
}

func (s *Session) submitLocked(auto bool) (assessment.Submission, error) {
	s.state = Submitting
	drafts := make(map[string]assessment.Answer, len(s.drafts))
	for k, v := range s.drafts {
		drafts[k] = v
	}
	taken := s.elapsed
	if s.duration > 0 {
		taken = s.duration - s.remaining
	}
	sub, err := assessment.BuildSubmission(s.a, s.studentID, drafts, taken)
	s.state = Closed
	s.auto = auto
	if err != nil {
		s.err = err
		return assessment.Submission{}, err
	}
	sub.StudentName = s.studentName
	sub.AutoSubmitted = auto
	return sub, nil
}

// View is a read-only snapshot for clients. The current question carries no
// answer key.
type View struct {
	ID               string                       `json:"id"`
	AssessmentID     string                       `json:"assessment_id"`
	StudentID        string                       `json:"student_id"`
	State            string                       `json:"state"`
	StartedAt        time.Time                    `json:"started_at"`
	DurationSeconds  int                          `json:"duration_seconds"`
	RemainingSeconds int                          `json:"remaining_seconds"`
	ElapsedSeconds   int                          `json:"elapsed_seconds"`
	CurrentIndex     int                          `json:"current_index"`
	QuestionCount    int                          `json:"question_count"`
	Current          *assessment.Question         `json:"current,omitempty"`
	Drafts           map[string]assessment.Answer `json:"drafts"`
	AutoSubmitted    bool                         `json:"auto_submitted,omitempty"`
	Error            string                       `json:"error,omitempty"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:               s.id,
		AssessmentID:     s.a.ID,
		StudentID:        s.studentID,
		State:            s.state.String(),
		StartedAt:        s.startedAt,
		DurationSeconds:  s.duration,
		RemainingSeconds: s.remaining,
		ElapsedSeconds:   s.elapsed,
		CurrentIndex:     s.current,
		QuestionCount:    len(s.a.Questions),
		Drafts:           make(map[string]assessment.Answer, len(s.drafts)),
		AutoSubmitted:    s.auto,
	}
	for k, d := range s.drafts {
		v.Drafts[k] = d
	}
	if s.current < len(s.a.Questions) {
		q := s.a.Questions[s.current]
		q.AnswerKey = nil
		v.Current = &q
	}
	if s.err != nil {
		v.Error = s.err.Error()
	}
	return v
}

// State reports the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
