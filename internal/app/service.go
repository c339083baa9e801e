package app

import (
	"context"
	"errors"
	"time"

	"quizhost-service/internal/domain"
)

var (
	// ErrNotFound is returned when an aggregate does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned by repositories when a concurrent save won.
	ErrVersionConflict = errors.New("version conflict")
	// ErrAnswerWindowClosed rejects answers outside the countdown window.
	ErrAnswerWindowClosed = errors.New("answer window is closed")
	// ErrNotProducer rejects producer operations from a non-owner.
	ErrNotProducer = errors.New("not the quiz producer")
)

// saveRetries bounds the optimistic-concurrency retry loop. Transitions are
// pure and deterministic, so replaying one on a fresh snapshot is safe.
const saveRetries = 3

// QuizRepository persists quiz aggregates with compare-and-swap semantics:
// Save succeeds only when the stored version still matches the snapshot the
// transition was computed from, and returns the bumped aggregate.
type QuizRepository interface {
	Load(ctx context.Context, quizID string) (domain.Quiz, error)
	Save(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error)
}

// TeamRepository persists team aggregates, keyed by quiz and team.
type TeamRepository interface {
	Load(ctx context.Context, quizID, teamID string) (domain.Team, error)
	Save(ctx context.Context, team domain.Team) (domain.Team, error)
	ListIDs(ctx context.Context, quizID string) ([]string, error)
	ListNames(ctx context.Context, quizID string) ([]string, error)
}

// PackRepository persists authored question packs.
type PackRepository interface {
	Load(ctx context.Context, packID string) (domain.Pack, error)
	Save(ctx context.Context, pack domain.Pack) (domain.Pack, error)
}

// ExpertRepository persists producer accounts.
type ExpertRepository interface {
	Load(ctx context.Context, expertID string) (domain.Expert, error)
	Save(ctx context.Context, expert domain.Expert) (domain.Expert, error)
}

// StateNotice is the change notification pushed to subscribed connections.
// It carries enough to let subscribers detect staleness.
type StateNotice struct {
	QuizID      string            `json:"quizId"`
	QuizStatus  domain.QuizStatus `json:"quizStatus"`
	TourStatus  domain.TourStatus `json:"tourStatus,omitempty"`
	QuestionIdx int               `json:"questionIdx"`
	Version     int64             `json:"version"`
}

// Publisher fans a state notice out to subscribed team and producer
// connections. Publishing is best-effort; the save already happened.
type Publisher interface {
	Publish(ctx context.Context, notice StateNotice) error
}

// SessionRegistry is the fast-path marker for single-device enforcement.
type SessionRegistry interface {
	Put(ctx context.Context, quizID, teamID, sessionID string) error
	Get(ctx context.Context, quizID, teamID string) (string, error)
}

// Scheduler lets the service arm a countdown-expiry callback; the core never
// polls the clock itself.
type Scheduler interface {
	Schedule(quizID string, at time.Time)
	Cancel(quizID string)
}

// Service hosts the quiz use cases: producer operations on the quiz
// aggregate, team registration and answer submission, and judging.
type Service struct {
	quizzes   QuizRepository
	teams     TeamRepository
	packs     PackRepository
	experts   ExpertRepository
	publisher Publisher
	sessions  SessionRegistry
	scheduler Scheduler

	tokens domain.TokenSource
	now    func() time.Time
}

func NewService(quizzes QuizRepository, teams TeamRepository, packs PackRepository, experts ExpertRepository, publisher Publisher, tokens domain.TokenSource) *Service {
	return &Service{
		quizzes:   quizzes,
		teams:     teams,
		packs:     packs,
		experts:   experts,
		publisher: publisher,
		tokens:    tokens,
		now:       time.Now,
	}
}

// WithClock overrides the wall clock for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SetScheduler wires the countdown watcher after construction.
func (s *Service) SetScheduler(scheduler Scheduler) {
	s.scheduler = scheduler
}

// SetSessionRegistry wires the fast-path session marker after construction.
func (s *Service) SetSessionRegistry(sessions SessionRegistry) {
	s.sessions = sessions
}

// packProvider adapts the pack repository to the core's lookup contract.
// ErrNotFound is absence and the core falls back to an empty slip; any other
// load failure is captured in loadErr so the caller can abort the transition
// instead of materializing a blank tour.
func (s *Service) packProvider(ctx context.Context, loadErr *error) domain.PackProvider {
	return func(packID string) (domain.Pack, bool) {
		pack, err := s.packs.Load(ctx, packID)
		if errors.Is(err, ErrNotFound) {
			return domain.Pack{}, false
		}
		if err != nil {
			*loadErr = err
			return domain.Pack{}, false
		}
		return pack, true
	}
}

// mutateQuiz runs the load-transition-save loop for the quiz aggregate,
// retrying on version conflicts, and publishes the resulting state.
func (s *Service) mutateQuiz(ctx context.Context, quizID string, fn func(domain.Quiz) (domain.Quiz, error)) (domain.Quiz, error) {
	var lastErr error
	for attempt := 0; attempt < saveRetries; attempt++ {
		quiz, err := s.quizzes.Load(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		next, err := fn(quiz)
		if err != nil {
			return domain.Quiz{}, err
		}
		saved, err := s.quizzes.Save(ctx, next)
		if err == nil {
			s.publishState(ctx, saved)
			return saved, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return domain.Quiz{}, err
		}
		lastErr = err
	}
	return domain.Quiz{}, lastErr
}

func (s *Service) mutateTeam(ctx context.Context, quizID, teamID string, fn func(domain.Team) (domain.Team, error)) (domain.Team, error) {
	var lastErr error
	for attempt := 0; attempt < saveRetries; attempt++ {
		team, err := s.teams.Load(ctx, quizID, teamID)
		if err != nil {
			return domain.Team{}, err
		}
		next, err := fn(team)
		if err != nil {
			return domain.Team{}, err
		}
		saved, err := s.teams.Save(ctx, next)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return domain.Team{}, err
		}
		lastErr = err
	}
	return domain.Team{}, lastErr
}

func (s *Service) publishState(ctx context.Context, quiz domain.Quiz) {
	if s.publisher == nil {
		return
	}
	notice := StateNotice{
		QuizID:     quiz.Descriptor.ID,
		QuizStatus: quiz.Descriptor.Status,
		Version:    quiz.Version,
	}
	if tour, ok := quiz.CurrentTour(); ok {
		notice.TourStatus = tour.Status
		notice.QuestionIdx = tour.NextQwIdx
	}
	_ = s.publisher.Publish(ctx, notice)
}
