package app

import (
	"context"
	"errors"
	"log"

	"quizhost-service/internal/domain"
)

// RegisterTeam validates and registers a new team in a quiz.
func (s *Service) RegisterTeam(ctx context.Context, quizID, name string) (domain.Team, error) {
	quiz, err := s.quizzes.Load(ctx, quizID)
	if err != nil {
		return domain.Team{}, err
	}
	existing, err := s.teams.ListNames(ctx, quizID)
	if err != nil {
		return domain.Team{}, err
	}
	if err := domain.ValidateRegistration(true, name, existing, quiz.Descriptor); err != nil {
		return domain.Team{}, err
	}
	status := domain.TeamAdmitted
	if quiz.Descriptor.Moderated {
		status = domain.TeamNew
	}
	team := domain.NewTeam(quizID, s.tokens(), name, s.tokens, s.now()).SetStatus(status)
	return s.teams.Save(ctx, team)
}

// RenameTeam changes a team's name while the quiz is still published.
func (s *Service) RenameTeam(ctx context.Context, quizID, teamID, name string) (domain.Team, error) {
	quiz, err := s.quizzes.Load(ctx, quizID)
	if err != nil {
		return domain.Team{}, err
	}
	existing, err := s.teams.ListNames(ctx, quizID)
	if err != nil {
		return domain.Team{}, err
	}
	if err := domain.ValidateRegistration(false, name, existing, quiz.Descriptor); err != nil {
		return domain.Team{}, err
	}
	return s.mutateTeam(ctx, quizID, teamID, func(t domain.Team) (domain.Team, error) {
		t.Descriptor.Name = name
		return t, nil
	})
}

// ClaimSession makes the caller the team's single active device. Any session
// claimed earlier becomes stale and is terminated on its next interaction.
func (s *Service) ClaimSession(ctx context.Context, quizID, teamID, entryToken string) (string, domain.Team, error) {
	sessionID := s.tokens()
	team, err := s.mutateTeam(ctx, quizID, teamID, func(t domain.Team) (domain.Team, error) {
		if t.Descriptor.EntryToken != entryToken {
			return domain.Team{}, domain.ErrInvalidToken
		}
		return t.ClaimSession(sessionID), nil
	})
	if err != nil {
		return "", domain.Team{}, err
	}
	if s.sessions != nil {
		if err := s.sessions.Put(ctx, quizID, teamID, sessionID); err != nil {
			log.Printf("session marker for %s/%s: %v", quizID, teamID, err)
		}
	}
	return sessionID, team, nil
}

// CheckSession verifies that sessionID is still the team's active session.
// A stale session is a terminal condition for that connection.
func (s *Service) CheckSession(ctx context.Context, quizID, teamID, sessionID string) error {
	if s.sessions != nil {
		current, err := s.sessions.Get(ctx, quizID, teamID)
		if err == nil && current != "" {
			if current != sessionID {
				return domain.ErrSessionNotActive
			}
			return nil
		}
	}
	team, err := s.teams.Load(ctx, quizID, teamID)
	if err != nil {
		return err
	}
	if team.Descriptor.ActiveSessionID != sessionID {
		return domain.ErrSessionNotActive
	}
	return nil
}

// SubmitAnswer records a team's answer for the question currently counting
// down. The write-once rule and truncation live in the core; the window gate
// lives here because it needs the quiz aggregate and the clock.
func (s *Service) SubmitAnswer(ctx context.Context, quizID, teamID, sessionID, text string) (domain.Team, domain.QwKey, error) {
	if err := s.CheckSession(ctx, quizID, teamID, sessionID); err != nil {
		return domain.Team{}, domain.QwKey{}, err
	}
	quiz, err := s.quizzes.Load(ctx, quizID)
	if err != nil {
		return domain.Team{}, domain.QwKey{}, err
	}
	now := s.now()
	tour, ok := quiz.CurrentTour()
	if !ok || quiz.Descriptor.Status != domain.QuizLive {
		return domain.Team{}, domain.QwKey{}, ErrAnswerWindowClosed
	}
	if tour.Status != domain.TourCountdown || tour.IsCountdownExpired(now) {
		return domain.Team{}, domain.QwKey{}, ErrAnswerWindowClosed
	}
	key := domain.QwKey{TourIdx: len(quiz.Tours) - 1, QwIdx: tour.NextQwIdx - 1}
	team, err := s.mutateTeam(ctx, quizID, teamID, func(t domain.Team) (domain.Team, error) {
		return t.RegisterAnswer(key, text, now)
	})
	if err != nil {
		return domain.Team{}, key, err
	}
	return team, key, nil
}

// TeamPoints returns the team's judged total.
func (s *Service) TeamPoints(ctx context.Context, quizID, teamID string) (float64, error) {
	team, err := s.teams.Load(ctx, quizID, teamID)
	if err != nil {
		return 0, err
	}
	return team.Points(), nil
}

// GetQuiz exposes the current aggregate to transports.
func (s *Service) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.quizzes.Load(ctx, quizID)
}

// GetTeam exposes the team aggregate to transports.
func (s *Service) GetTeam(ctx context.Context, quizID, teamID string) (domain.Team, error) {
	return s.teams.Load(ctx, quizID, teamID)
}

// IsConflict reports whether err is a recoverable submission conflict the
// client should be shown rather than disconnected over.
func IsConflict(err error) bool {
	var already domain.AlreadyAnsweredError
	return errors.As(err, &already)
}
