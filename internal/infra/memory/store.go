package memory

import (
	"context"
	"sync"

	"quizhost-service/internal/app"
	"quizhost-service/internal/domain"
)

// QuizStore is an in-memory implementation of app.QuizRepository with
// compare-and-swap version semantics, used for tests and demo mode.
type QuizStore struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewQuizStore() *QuizStore {
	return &QuizStore{quizzes: make(map[string]domain.Quiz)}
}

func (s *QuizStore) Load(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, app.ErrNotFound
	}
	return quiz, nil
}

func (s *QuizStore) Save(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.quizzes[quiz.Descriptor.ID]
	if ok && current.Version != quiz.Version {
		return domain.Quiz{}, app.ErrVersionConflict
	}
	if !ok && quiz.Version != 0 {
		return domain.Quiz{}, app.ErrVersionConflict
	}
	quiz.Version++
	s.quizzes[quiz.Descriptor.ID] = quiz
	return quiz, nil
}

// TeamStore is the in-memory app.TeamRepository, keyed by quiz and team.
type TeamStore struct {
	mu    sync.RWMutex
	teams map[string]map[string]domain.Team
}

func NewTeamStore() *TeamStore {
	return &TeamStore{teams: make(map[string]map[string]domain.Team)}
}

func (s *TeamStore) Load(_ context.Context, quizID, teamID string) (domain.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	team, ok := s.teams[quizID][teamID]
	if !ok {
		return domain.Team{}, app.ErrNotFound
	}
	return team, nil
}

func (s *TeamStore) Save(_ context.Context, team domain.Team) (domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quizID, teamID := team.Descriptor.QuizID, team.Descriptor.TeamID
	current, ok := s.teams[quizID][teamID]
	if ok && current.Version != team.Version {
		return domain.Team{}, app.ErrVersionConflict
	}
	if !ok && team.Version != 0 {
		return domain.Team{}, app.ErrVersionConflict
	}
	team.Version++
	if s.teams[quizID] == nil {
		s.teams[quizID] = make(map[string]domain.Team)
	}
	s.teams[quizID][teamID] = team
	return team, nil
}

func (s *TeamStore) ListIDs(_ context.Context, quizID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.teams[quizID]))
	for id := range s.teams[quizID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *TeamStore) ListNames(_ context.Context, quizID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.teams[quizID]))
	for _, team := range s.teams[quizID] {
		names = append(names, team.Descriptor.Name)
	}
	return names, nil
}

// PackStore is the in-memory app.PackRepository.
type PackStore struct {
	mu    sync.RWMutex
	packs map[string]domain.Pack
}

func NewPackStore() *PackStore {
	return &PackStore{packs: make(map[string]domain.Pack)}
}

func (s *PackStore) Load(_ context.Context, packID string) (domain.Pack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pack, ok := s.packs[packID]
	if !ok {
		return domain.Pack{}, app.ErrNotFound
	}
	return pack, nil
}

func (s *PackStore) Save(_ context.Context, pack domain.Pack) (domain.Pack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.packs[pack.ID]
	if ok && current.Version != pack.Version {
		return domain.Pack{}, app.ErrVersionConflict
	}
	if !ok && pack.Version != 0 {
		return domain.Pack{}, app.ErrVersionConflict
	}
	pack.Version++
	s.packs[pack.ID] = pack
	return pack, nil
}

// ExpertStore is the in-memory app.ExpertRepository.
type ExpertStore struct {
	mu      sync.RWMutex
	experts map[string]domain.Expert
}

func NewExpertStore() *ExpertStore {
	return &ExpertStore{experts: make(map[string]domain.Expert)}
}

func (s *ExpertStore) Load(_ context.Context, expertID string) (domain.Expert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	expert, ok := s.experts[expertID]
	if !ok {
		return domain.Expert{}, app.ErrNotFound
	}
	return expert, nil
}

func (s *ExpertStore) Save(_ context.Context, expert domain.Expert) (domain.Expert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.experts[expert.ID]
	if ok && current.Version != expert.Version {
		return domain.Expert{}, app.ErrVersionConflict
	}
	if !ok && expert.Version != 0 {
		return domain.Expert{}, app.ErrVersionConflict
	}
	expert.Version++
	s.experts[expert.ID] = expert
	return expert, nil
}
