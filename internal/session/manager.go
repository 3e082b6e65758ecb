package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-assess/internal/assessment"
	"github.com/mind-engage/mindengage-assess/internal/metrics"
)

// SubmitFunc persists a finished attempt and returns the stored submission.
type SubmitFunc func(ctx context.Context, sub assessment.Submission) (assessment.Submission, error)

// TickerFunc returns a tick channel and a stop function.
type TickerFunc func() (<-chan time.Time, func())

func secondTicker() (<-chan time.Time, func()) {
	t := time.NewTicker(time.Second)
	return t.C, t.Stop
}

type Option func(*Manager)

func WithTicker(f TickerFunc) Option { return func(m *Manager) { m.ticker = f } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.log = l } }

func WithPersistTimeout(d time.Duration) Option { return func(m *Manager) { m.persistTimeout = d } }

type pairKey struct{ assessmentID, studentID string }

type entry struct {
	s      *Session
	cancel context.CancelFunc
}

// Manager owns the live sessions and the ticker goroutine driving each one.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]entry
	byPair   map[pairKey]string

	onSubmit       SubmitFunc
	ticker         TickerFunc
	now            func() time.Time
	log            *zap.Logger
	persistTimeout time.Duration

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

func NewManager(onSubmit SubmitFunc, opts ...Option) *Manager {
	base, stop := context.WithCancel(context.Background())
	m := &Manager{
		sessions:       map[string]entry{},
		byPair:         map[pairKey]string{},
		onSubmit:       onSubmit,
		ticker:         secondTicker,
		now:            func() time.Time { return time.Now().UTC() },
		log:            zap.NewNop(),
		persistTimeout: 10 * time.Second,
		base:           base,
		stop:           stop,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start opens a new attempt. Only one live attempt per (assessment, student)
// pair is allowed.
func (m *Manager) Start(a assessment.Assessment, studentID, studentName string) (*Session, error) {
	now := m.now()
	switch {
	case a.Status != assessment.StatusActive:
		return nil, ErrNotOpen
	case a.ScheduledAt != nil && now.Before(*a.ScheduledAt):
		return nil, ErrNotOpen
	case a.Deadline != nil && now.After(*a.Deadline):
		return nil, ErrNotOpen
	case !a.IsEnrolled(studentID):
		return nil, ErrNotEnrolled
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey{a.ID, studentID}
	if _, ok := m.byPair[key]; ok {
		return nil, ErrAlreadyActive
	}
	s := New(uuid.NewString(), a, studentID, studentName, now)
	ctx, cancel := context.WithCancel(m.base)
	m.sessions[s.id] = entry{s: s, cancel: cancel}
	m.byPair[key] = s.id
	metrics.SessionsActive.Inc()

	m.wg.Add(1)
	go m.run(ctx, s)

	m.log.Info("session started",
		zap.String("session_id", s.id),
		zap.String("assessment_id", a.ID),
		zap.String("student_id", studentID),
		zap.Int("duration_seconds", s.duration))
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.s, nil
}

// Submit hands in the attempt explicitly and persists it.
func (m *Manager) Submit(ctx context.Context, id string) (assessment.Submission, error) {
	s, err := m.Get(id)
	if err != nil {
		return assessment.Submission{}, err
	}
	sub, err := s.Submit()
	if errors.Is(err, ErrClosed) {
		// lost the race against the forced submit; the ticker goroutine owns it
		return assessment.Submission{}, err
	}
	m.remove(s)
	if err != nil {
		m.log.Error("session submit failed", zap.String("session_id", id), zap.Error(err))
		return assessment.Submission{}, err
	}
	return m.persist(ctx, s, sub)
}

// Discard drops an attempt without submitting anything.
func (m *Manager) Discard(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.state == Active {
		s.state = Closed
	}
	s.mu.Unlock()
	m.remove(s)
	m.log.Info("session discarded", zap.String("session_id", id))
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops every ticker and drops all live sessions.
func (m *Manager) Close() {
	m.stop()
	m.wg.Wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.sessions {
		e.cancel()
		delete(m.sessions, id)
		metrics.SessionsActive.Dec()
	}
	m.byPair = map[pairKey]string{}
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[s.id]
	if !ok {
		return
	}
	e.cancel()
	delete(m.sessions, s.id)
	delete(m.byPair, pairKey{s.a.ID, s.studentID})
	metrics.SessionsActive.Dec()
}

func (m *Manager) run(ctx context.Context, s *Session) {
	defer m.wg.Done()
	ticks, stop := m.ticker()
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			sub, err := s.Tick()
			if errors.Is(err, ErrClosed) {
				return
			}
			if err != nil {
				m.remove(s)
				m.log.Error("forced submit failed", zap.String("session_id", s.id), zap.Error(err))
				return
			}
			if sub == nil {
				continue
			}
			m.remove(s)
			metrics.AutoSubmits.Inc()
			pctx, cancel := context.WithTimeout(context.Background(), m.persistTimeout)
			if _, err := m.persist(pctx, s, *sub); err != nil {
				m.log.Error("persist forced submission", zap.String("session_id", s.id), zap.Error(err))
			}
			cancel()
			return
		}
	}
}

func (m *Manager) persist(ctx context.Context, s *Session, sub assessment.Submission) (assessment.Submission, error) {
	if m.onSubmit == nil {
		return sub, nil
	}
	stored, err := m.onSubmit(ctx, sub)
	if err != nil {
		return assessment.Submission{}, err
	}
	m.log.Info("session submitted",
		zap.String("session_id", s.id),
		zap.String("submission_id", stored.ID),
		zap.Bool("auto_submitted", stored.AutoSubmitted),
		zap.String("status", string(stored.Status)))
	return stored, nil
}
