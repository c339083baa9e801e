package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

var anchor = time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

func testTeam() Team {
	return NewTeam("quiz-1", "team-1", "Night Owls", fixedTokens("entry"), anchor)
}

func TestRegisterAnswerWriteOnce(t *testing.T) {
	team := testTeam()
	key := QwKey{TourIdx: 0, QwIdx: 0}

	team, err := team.RegisterAnswer(key, "Paris", anchor)
	if err != nil {
		t.Fatalf("first answer failed: %v", err)
	}

	_, err = team.RegisterAnswer(key, "London", anchor.Add(time.Second))
	var conflict AlreadyAnsweredError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected AlreadyAnsweredError, got %v", err)
	}
	if conflict.PriorText != "Paris" {
		t.Fatalf("conflict must carry first answer, got %q", conflict.PriorText)
	}
	if answer, _ := team.GetAnswer(key); answer.Text != "Paris" {
		t.Fatalf("first answer must never be overwritten, got %q", answer.Text)
	}
}

func TestRegisterAnswerValidation(t *testing.T) {
	team := testTeam()
	if _, err := team.RegisterAnswer(QwKey{}, "   ", anchor); err != ErrEmptyAnswer {
		t.Fatalf("expected ErrEmptyAnswer, got %v", err)
	}

	long := strings.Repeat("x", 300)
	team, err := team.RegisterAnswer(QwKey{}, long, anchor)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	answer, _ := team.GetAnswer(QwKey{})
	if len(answer.Text) != 256 {
		t.Fatalf("expected truncation to 256 chars, got %d", len(answer.Text))
	}
	if answer.Result != nil || answer.AutoResult {
		t.Fatalf("fresh answer must be unjudged, got %+v", answer)
	}
}

func TestSettleAnswerJudging(t *testing.T) {
	key := QwKey{TourIdx: 1, QwIdx: 0}
	matches := func(expected string) func(string) bool {
		return func(text string) bool { return strings.EqualFold(strings.TrimSpace(text), expected) }
	}

	team, _ := testTeam().RegisterAnswer(key, "Paris", anchor)

	judged := team.SettleAnswer(key, matches("paris"), 5, false, anchor)
	answer, _ := judged.GetAnswer(key)
	if answer.Result == nil || *answer.Result != 5 || !answer.AutoResult {
		t.Fatalf("expected auto +5, got %+v", answer)
	}

	// Wrong answer on a jeopardy question subtracts points.
	wrong := judged.SettleAnswer(key, matches("lyon"), 5, true, anchor)
	answer, _ = wrong.GetAnswer(key)
	if answer.Result == nil || *answer.Result != -5 || !answer.AutoResult {
		t.Fatalf("expected auto -5, got %+v", answer)
	}

	// Wrong answer without jeopardy stays unjudged for a later manual pass.
	fresh, _ := testTeam().RegisterAnswer(key, "Lyon", anchor)
	miss := fresh.SettleAnswer(key, matches("paris"), 5, false, anchor)
	if answer, _ = miss.GetAnswer(key); answer.Result != nil {
		t.Fatalf("non-jeopardy miss must stay unjudged, got %+v", answer)
	}

	// A question never answered is a no-op.
	if out := team.SettleAnswer(QwKey{TourIdx: 9}, matches("x"), 1, false, anchor); len(out.Answers) != len(team.Answers) {
		t.Fatalf("settling a missing answer must not create one")
	}
}

func TestManualResultAlwaysWins(t *testing.T) {
	key := QwKey{TourIdx: 0, QwIdx: 0}
	team, _ := testTeam().RegisterAnswer(key, "Paris", anchor)
	team = team.SettleAnswer(key, func(string) bool { return true }, 5, false, anchor)

	two := 2.0
	team = team.UpdateResult(key, &two, anchor.Add(time.Minute))
	answer, _ := team.GetAnswer(key)
	if answer.Result == nil || *answer.Result != 2 || answer.AutoResult {
		t.Fatalf("expected manual 2, got %+v", answer)
	}

	// Auto judging must never touch a manual result again.
	team = team.SettleAnswer(key, func(string) bool { return true }, 5, false, anchor.Add(2*time.Minute))
	if answer, _ = team.GetAnswer(key); *answer.Result != 2 {
		t.Fatalf("auto judging overrode a manual result: %+v", answer)
	}

	// Reverting to unjudged is allowed.
	team = team.UpdateResult(key, nil, anchor.Add(3*time.Minute))
	if answer, _ = team.GetAnswer(key); answer.Result != nil || answer.AutoResult {
		t.Fatalf("expected reverted answer, got %+v", answer)
	}
}

func TestPointsSumsJudgedResults(t *testing.T) {
	team := testTeam()
	team, _ = team.RegisterAnswer(QwKey{TourIdx: 0, QwIdx: 0}, "a", anchor)
	team, _ = team.RegisterAnswer(QwKey{TourIdx: 1, QwIdx: 0}, "b", anchor)
	team, _ = team.RegisterAnswer(QwKey{TourIdx: 2, QwIdx: 0}, "c", anchor)

	five, minusTwo := 5.0, -2.0
	team = team.UpdateResult(QwKey{TourIdx: 0, QwIdx: 0}, &five, anchor)
	team = team.UpdateResult(QwKey{TourIdx: 1, QwIdx: 0}, &minusTwo, anchor)

	if got := team.Points(); got != 3 {
		t.Fatalf("expected 3 points, got %v", got)
	}
}

func TestValidateRegistrationOrder(t *testing.T) {
	desc := Descriptor{Status: QuizPublished}
	existing := []string{"Night Owls"}

	if err := ValidateRegistration(true, "  ", existing, desc); err != ErrEmptyTeamName {
		t.Fatalf("expected ErrEmptyTeamName, got %v", err)
	}
	if err := ValidateRegistration(true, "Larks", existing, Descriptor{Status: QuizDraft}); err != ErrRegistrationClosed {
		t.Fatalf("expected ErrRegistrationClosed, got %v", err)
	}
	if err := ValidateRegistration(false, "Larks", existing, Descriptor{Status: QuizLive}); err != ErrRenameClosed {
		t.Fatalf("expected ErrRenameClosed, got %v", err)
	}
	if err := ValidateRegistration(true, "night owls", existing, desc); err != ErrTeamNameTaken {
		t.Fatalf("expected case-insensitive collision, got %v", err)
	}
	if err := ValidateRegistration(true, "Larks", existing, desc); err != nil {
		t.Fatalf("expected permitted registration, got %v", err)
	}
	if err := ValidateRegistration(true, "Larks", existing, Descriptor{Status: QuizLive}); err != nil {
		t.Fatalf("new teams may register while live, got %v", err)
	}
}

func TestTeamJSONRoundTrip(t *testing.T) {
	team, _ := testTeam().RegisterAnswer(QwKey{TourIdx: 2, QwIdx: 1}, "Paris", anchor)

	data, err := json.Marshal(team)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Team
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	answer, ok := decoded.GetAnswer(QwKey{TourIdx: 2, QwIdx: 1})
	if !ok || answer.Text != "Paris" {
		t.Fatalf("answer lost in round trip: %+v", decoded.Answers)
	}
}
