package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TeamStatus is the admission state of a registered team.
type TeamStatus string

const (
	TeamNew      TeamStatus = "new"
	TeamAdmitted TeamStatus = "admitted"
	TeamRejected TeamStatus = "rejected"
)

const maxAnswerLen = 256

// QwKey addresses one question of one tour. It marshals as "tour.qw" so
// answer maps survive JSON round-trips.
type QwKey struct {
	TourIdx int
	QwIdx   int
}

func (k QwKey) MarshalText() ([]byte, error) {
	return []byte(strconv.Itoa(k.TourIdx) + "." + strconv.Itoa(k.QwIdx)), nil
}

func (k *QwKey) UnmarshalText(data []byte) error {
	tour, qw, ok := strings.Cut(string(data), ".")
	if !ok {
		return fmt.Errorf("malformed question key %q", data)
	}
	var err error
	if k.TourIdx, err = strconv.Atoi(tour); err != nil {
		return fmt.Errorf("malformed question key %q", data)
	}
	if k.QwIdx, err = strconv.Atoi(qw); err != nil {
		return fmt.Errorf("malformed question key %q", data)
	}
	return nil
}

// Answer is a team's submission for one question. A nil Result means the
// answer has not been judged yet and contributes nothing to the score.
type Answer struct {
	Text       string     `json:"text"`
	ReceivedAt time.Time  `json:"receivedAt"`
	Result     *float64   `json:"result,omitempty"`
	AutoResult bool       `json:"autoResult"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

// TeamDescriptor carries team identity and session state within one quiz.
type TeamDescriptor struct {
	QuizID          string     `json:"quizId"`
	TeamID          string     `json:"teamId"`
	Name            string     `json:"name"`
	Status          TeamStatus `json:"status"`
	EntryToken      string     `json:"entryToken"`
	RegisteredAt    time.Time  `json:"registeredAt"`
	ActiveSessionID string     `json:"activeSessionId"`
}

// Team is the aggregate: descriptor plus answers keyed by question.
type Team struct {
	Descriptor TeamDescriptor   `json:"descriptor"`
	Answers    map[QwKey]Answer `json:"answers,omitempty"`
	Version    int64            `json:"version"`
}

// NewTeam registers a team in a quiz with a fresh entry token.
func NewTeam(quizID, teamID, name string, tokens TokenSource, now time.Time) Team {
	return Team{
		Descriptor: TeamDescriptor{
			QuizID:       quizID,
			TeamID:       teamID,
			Name:         name,
			Status:       TeamNew,
			EntryToken:   tokens(),
			RegisteredAt: now,
		},
	}
}

// ValidateRegistration returns the first applicable violation, or nil when
// the registration is permitted.
func ValidateRegistration(isNewTeam bool, name string, existingNames []string, quiz Descriptor) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrEmptyTeamName
	}
	if isNewTeam && quiz.Status != QuizPublished && quiz.Status != QuizLive {
		return ErrRegistrationClosed
	}
	if !isNewTeam && quiz.Status != QuizPublished {
		return ErrRenameClosed
	}
	for _, existing := range existingNames {
		if strings.EqualFold(strings.TrimSpace(existing), trimmed) {
			return ErrTeamNameTaken
		}
	}
	return nil
}

// ClaimSession marks sessionID as the team's only active session,
// invalidating any other connected device.
func (t Team) ClaimSession(sessionID string) Team {
	t.Descriptor.ActiveSessionID = sessionID
	return t
}

// SetStatus updates the admission state.
func (t Team) SetStatus(status TeamStatus) Team {
	t.Descriptor.Status = status
	return t
}

func (t Team) withAnswers() map[QwKey]Answer {
	answers := make(map[QwKey]Answer, len(t.Answers)+1)
	for k, v := range t.Answers {
		answers[k] = v
	}
	return answers
}

// RegisterAnswer stores write-once answer text for a question, truncated to
// 256 characters. A second submission fails carrying the first answer's text.
func (t Team) RegisterAnswer(key QwKey, text string, now time.Time) (Team, error) {
	if strings.TrimSpace(text) == "" {
		return t, ErrEmptyAnswer
	}
	if prior, ok := t.Answers[key]; ok {
		return t, AlreadyAnsweredError{PriorText: prior.Text}
	}
	if runes := []rune(text); len(runes) > maxAnswerLen {
		text = string(runes[:maxAnswerLen])
	}
	answers := t.withAnswers()
	answers[key] = Answer{Text: text, ReceivedAt: now}
	t.Answers = answers
	return t, nil
}

// SettleAnswer applies automatic judging to an answer. Manually judged
// answers are never re-judged. A predicate miss on a non-jeopardy question
// leaves the answer unjudged so a later manual override starts clean.
func (t Team) SettleAnswer(key QwKey, jury func(string) bool, points float64, jeopardy bool, now time.Time) Team {
	answer, ok := t.Answers[key]
	if !ok {
		return t
	}
	if answer.Result != nil && !answer.AutoResult {
		return t
	}
	var result float64
	switch {
	case jury(answer.Text):
		result = points
	case jeopardy:
		result = -points
	default:
		return t
	}
	answer.Result = &result
	answer.AutoResult = true
	answer.UpdatedAt = &now
	answers := t.withAnswers()
	answers[key] = answer
	t.Answers = answers
	return t
}

// UpdateResult is the producer's manual override; it always wins over any
// prior or future auto judgment. A nil result reverts to unjudged.
func (t Team) UpdateResult(key QwKey, result *float64, now time.Time) Team {
	answer, ok := t.Answers[key]
	if !ok {
		return t
	}
	answer.Result = result
	answer.AutoResult = false
	answer.UpdatedAt = &now
	answers := t.withAnswers()
	answers[key] = answer
	t.Answers = answers
	return t
}

// GetAnswer looks up the submission for a question key.
func (t Team) GetAnswer(key QwKey) (Answer, bool) {
	answer, ok := t.Answers[key]
	return answer, ok
}

// Points is the sum of all judged results; unjudged answers contribute zero.
func (t Team) Points() float64 {
	total := 0.0
	for _, answer := range t.Answers {
		if answer.Result != nil {
			total += *answer.Result
		}
	}
	return total
}
