package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"quizhost-service/internal/domain"
)

// CreateQuiz creates a draft quiz and links it to the producer's account.
func (s *Service) CreateQuiz(ctx context.Context, producerID, name string) (domain.Quiz, error) {
	quiz := domain.NewQuiz(s.tokens(), producerID, name, s.tokens)
	saved, err := s.quizzes.Save(ctx, quiz)
	if err != nil {
		return domain.Quiz{}, err
	}
	if err := s.linkExpert(ctx, producerID, func(e domain.Expert) domain.Expert {
		return e.AddQuiz(saved.Descriptor.ID)
	}); err != nil {
		log.Printf("link quiz %s to expert %s: %v", saved.Descriptor.ID, producerID, err)
	}
	return saved, nil
}

// SetQuizDescriptor edits quiz settings (name, texts, pack link, privacy).
// Identity and status are kept; lifecycle moves only through SetQuizStatus.
func (s *Service) SetQuizDescriptor(ctx context.Context, quizID string, desc domain.Descriptor) (domain.Quiz, error) {
	return s.mutateQuiz(ctx, quizID, func(q domain.Quiz) (domain.Quiz, error) {
		desc.ID = q.Descriptor.ID
		desc.Status = q.Descriptor.Status
		q.Descriptor = desc
		return q, nil
	})
}

// SetQuizStatus drives the quiz lifecycle. Going live materializes the first
// tour from the linked pack.
func (s *Service) SetQuizStatus(ctx context.Context, quizID string, status domain.QuizStatus) (domain.Quiz, error) {
	return s.mutateQuiz(ctx, quizID, func(q domain.Quiz) (domain.Quiz, error) {
		var loadErr error
		next := q.SetStatus(status, s.packProvider(ctx, &loadErr))
		if loadErr != nil {
			return domain.Quiz{}, fmt.Errorf("resolve pack: %w", loadErr)
		}
		return next, nil
	})
}

// StartCountdown opens the answer window and arms the expiry watcher.
func (s *Service) StartCountdown(ctx context.Context, quizID string) (domain.Quiz, error) {
	now := s.now()
	quiz, err := s.mutateQuiz(ctx, quizID, func(q domain.Quiz) (domain.Quiz, error) {
		return q.StartCountdown(now), nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	if s.scheduler != nil {
		if tour, ok := quiz.CurrentTour(); ok {
			if deadline, ok := tour.Deadline(); ok {
				s.scheduler.Schedule(quizID, deadline)
			}
		}
	}
	return quiz, nil
}

// PauseCountdown reverts the head tour to announcing and disarms the watcher.
func (s *Service) PauseCountdown(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := s.mutateQuiz(ctx, quizID, func(q domain.Quiz) (domain.Quiz, error) {
		return q.PauseCountdown(), nil
	})
	if err == nil && s.scheduler != nil {
		s.scheduler.Cancel(quizID)
	}
	return quiz, err
}

// SettleTour freezes the head tour and auto-judges every submitted answer
// for the question that was just played.
func (s *Service) SettleTour(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := s.mutateQuiz(ctx, quizID, func(q domain.Quiz) (domain.Quiz, error) {
		return q.Settle(), nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	if s.scheduler != nil {
		s.scheduler.Cancel(quizID)
	}
	if err := s.autoJudgeCurrent(ctx, quiz); err != nil {
		log.Printf("auto-judge quiz %s: %v", quizID, err)
	}
	return quiz, nil
}

// NextTour appends the next tour from the pack cursor.
func (s *Service) NextTour(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.mutateQuiz(ctx, quizID, func(q domain.Quiz) (domain.Quiz, error) {
		var loadErr error
		next := q.Next(s.packProvider(ctx, &loadErr))
		if loadErr != nil {
			return domain.Quiz{}, fmt.Errorf("resolve pack: %w", loadErr)
		}
		return next, nil
	})
}

// SetQuestionIdx moves the question cursor within the head tour.
func (s *Service) SetQuestionIdx(ctx context.Context, quizID string, idx int) (domain.Quiz, error) {
	return s.mutateQuiz(ctx, quizID, func(q domain.Quiz) (domain.Quiz, error) {
		return q.SetQuestionIdx(idx), nil
	})
}

// UpdateTour replaces the head tour's content during play.
func (s *Service) UpdateTour(ctx context.Context, quizID, name string, seconds, packSlipIdx int, slip domain.Slip) (domain.Quiz, error) {
	return s.mutateQuiz(ctx, quizID, func(q domain.Quiz) (domain.Quiz, error) {
		return q.UpdateTour(name, seconds, packSlipIdx, slip), nil
	})
}

// NextQuestion pushes new content into the current tour.
func (s *Service) NextQuestion(ctx context.Context, quizID, name string, seconds, packSlipIdx int, slip domain.Slip) (domain.Quiz, error) {
	return s.mutateQuiz(ctx, quizID, func(q domain.Quiz) (domain.Quiz, error) {
		return q.NextQuestion(name, seconds, packSlipIdx, slip), nil
	})
}

// CreatePack creates an empty pack owned by the producer.
func (s *Service) CreatePack(ctx context.Context, producerID, name string) (domain.Pack, error) {
	pack := domain.NewPack(s.tokens(), producerID, name, s.tokens)
	saved, err := s.packs.Save(ctx, pack)
	if err != nil {
		return domain.Pack{}, err
	}
	if err := s.linkExpert(ctx, producerID, func(e domain.Expert) domain.Expert {
		return e.AddPack(saved.ID)
	}); err != nil {
		log.Printf("link pack %s to expert %s: %v", saved.ID, producerID, err)
	}
	return saved, nil
}

// SetSlip appends or replaces a slip; only the owning producer may edit.
func (s *Service) SetSlip(ctx context.Context, packID, producerID string, idx int, slip domain.Slip) (domain.Pack, error) {
	return s.mutatePack(ctx, packID, func(p domain.Pack) (domain.Pack, error) {
		if p.ProducerID != producerID {
			return domain.Pack{}, ErrNotProducer
		}
		return p.SetSlip(idx, slip), nil
	})
}

// TransferPack reassigns pack ownership given the current transfer token and
// moves the ownership links between the two expert accounts.
func (s *Service) TransferPack(ctx context.Context, packID, toExpertID, candidateToken string) (domain.Pack, error) {
	var fromExpertID string
	pack, err := s.mutatePack(ctx, packID, func(p domain.Pack) (domain.Pack, error) {
		fromExpertID = p.ProducerID
		return p.Transfer(toExpertID, candidateToken, s.tokens)
	})
	if err != nil {
		return domain.Pack{}, err
	}
	if err := s.linkExpert(ctx, toExpertID, func(e domain.Expert) domain.Expert {
		return e.AddPack(packID)
	}); err != nil {
		log.Printf("link pack %s to expert %s: %v", packID, toExpertID, err)
	}
	if err := s.linkExpert(ctx, fromExpertID, func(e domain.Expert) domain.Expert {
		return e.RemovePack(packID)
	}); err != nil {
		log.Printf("unlink pack %s from expert %s: %v", packID, fromExpertID, err)
	}
	return pack, nil
}

// UpdateAnswerResult is the producer's manual-judgment escape hatch.
func (s *Service) UpdateAnswerResult(ctx context.Context, quizID, teamID string, key domain.QwKey, result *float64) (domain.Team, error) {
	now := s.now()
	return s.mutateTeam(ctx, quizID, teamID, func(t domain.Team) (domain.Team, error) {
		return t.UpdateResult(key, result, now), nil
	})
}

// AdmitTeam moves a team through moderation.
func (s *Service) AdmitTeam(ctx context.Context, quizID, teamID string, status domain.TeamStatus) (domain.Team, error) {
	return s.mutateTeam(ctx, quizID, teamID, func(t domain.Team) (domain.Team, error) {
		return t.SetStatus(status), nil
	})
}

// autoJudgeCurrent applies automatic scoring for the question the settled
// tour just played, across all registered teams.
func (s *Service) autoJudgeCurrent(ctx context.Context, quiz domain.Quiz) error {
	tour, ok := quiz.CurrentTour()
	if !ok {
		return nil
	}
	qwIdx := tour.NextQwIdx - 1
	question, ok := tour.Slip.QuestionAt(qwIdx)
	if !ok || strings.TrimSpace(question.Answer) == "" {
		return nil
	}
	key := domain.QwKey{TourIdx: len(quiz.Tours) - 1, QwIdx: qwIdx}
	jury := answerMatcher(question.Answer)
	now := s.now()

	teamIDs, err := s.teams.ListIDs(ctx, quiz.Descriptor.ID)
	if err != nil {
		return err
	}
	var errs []error
	for _, teamID := range teamIDs {
		_, err := s.mutateTeam(ctx, quiz.Descriptor.ID, teamID, func(t domain.Team) (domain.Team, error) {
			return t.SettleAnswer(key, jury, question.Points, question.Jeopardy, now), nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// answerMatcher is the default jury predicate: case-insensitive comparison
// of trimmed text against the expected answer.
func answerMatcher(expected string) func(string) bool {
	want := strings.TrimSpace(expected)
	return func(text string) bool {
		return strings.EqualFold(strings.TrimSpace(text), want)
	}
}

func (s *Service) mutatePack(ctx context.Context, packID string, fn func(domain.Pack) (domain.Pack, error)) (domain.Pack, error) {
	var lastErr error
	for attempt := 0; attempt < saveRetries; attempt++ {
		pack, err := s.packs.Load(ctx, packID)
		if err != nil {
			return domain.Pack{}, err
		}
		next, err := fn(pack)
		if err != nil {
			return domain.Pack{}, err
		}
		saved, err := s.packs.Save(ctx, next)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return domain.Pack{}, err
		}
		lastErr = err
	}
	return domain.Pack{}, lastErr
}

// linkExpert applies a bookkeeping change to a producer account, creating
// the account on first touch.
func (s *Service) linkExpert(ctx context.Context, expertID string, fn func(domain.Expert) domain.Expert) error {
	var lastErr error
	for attempt := 0; attempt < saveRetries; attempt++ {
		expert, err := s.experts.Load(ctx, expertID)
		if errors.Is(err, ErrNotFound) {
			expert = domain.Expert{ID: expertID, IsProducer: true}
		} else if err != nil {
			return err
		}
		if _, err := s.experts.Save(ctx, fn(expert)); err == nil {
			return nil
		} else if !errors.Is(err, ErrVersionConflict) {
			return err
		} else {
			lastErr = err
		}
	}
	return lastErr
}
