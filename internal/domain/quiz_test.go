package domain

import (
	"reflect"
	"testing"
	"time"
)

func testQuiz() Quiz {
	return NewQuiz("quiz-1", "exp-1", "Friday Night Quiz", fixedTokens("tok"))
}

func packProvider(pack Pack) PackProvider {
	return func(id string) (Pack, bool) {
		if id == pack.ID {
			return pack, true
		}
		return Pack{}, false
	}
}

func TestGoLiveMaterializesFirstTour(t *testing.T) {
	pack := NewPack("pkg-1", "exp-1", "Opener", fixedTokens("tok"))
	pack = pack.SetSlip(0, SingleSlip(SolidQuestion("Q1", "A1", 1)))

	quiz := testQuiz()
	quiz.Descriptor.PackID = "pkg-1"
	quiz = quiz.SetStatus(QuizLive, packProvider(pack))

	if len(quiz.Tours) != 1 {
		t.Fatalf("expected exactly one tour, got %d", len(quiz.Tours))
	}
	tour := quiz.Tours[0]
	if tour.NextQwIdx != 0 {
		t.Fatalf("expected cursor 0, got %d", tour.NextQwIdx)
	}
	if tour.Slip.Question.Text != "Q1" {
		t.Fatalf("expected slip from pack, got %+v", tour.Slip)
	}
	if tour.Seconds != 60 || tour.Name != "Round 1" {
		t.Fatalf("unexpected tour defaults: %+v", tour)
	}
}

func TestGoLiveWithoutPackUsesEmptySlip(t *testing.T) {
	quiz := testQuiz().SetStatus(QuizLive, nil)
	if len(quiz.Tours) != 1 {
		t.Fatalf("expected one tour, got %d", len(quiz.Tours))
	}
	if got := quiz.Tours[0].Slip.QuestionsCount(); got != 1 {
		t.Fatalf("empty slip must hold one question, got %d", got)
	}
}

func TestTourMutationIsNoopUnlessLive(t *testing.T) {
	quiz := testQuiz().SetStatus(QuizLive, nil)
	quiz.Descriptor.Status = QuizFinished

	now := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)
	for name, mutated := range map[string]Quiz{
		"setQuestionIdx": quiz.SetQuestionIdx(1),
		"startCountdown": quiz.StartCountdown(now),
		"settle":         quiz.Settle(),
		"next":           quiz.Next(nil),
		"update":         quiz.UpdateTour("x", 30, 2, EmptySlip()),
	} {
		if !reflect.DeepEqual(quiz, mutated) {
			t.Fatalf("%s on a non-live quiz must be a structural no-op", name)
		}
	}
}

func TestStartPauseSettle(t *testing.T) {
	now := time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)
	quiz := testQuiz().SetStatus(QuizLive, nil)

	quiz = quiz.StartCountdown(now)
	tour, _ := quiz.CurrentTour()
	if tour.Status != TourCountdown || tour.StartTime == nil || !tour.StartTime.Equal(now) {
		t.Fatalf("expected counting tour, got %+v", tour)
	}
	if tour.NextQwIdx != 1 {
		t.Fatalf("countdown start must advance the cursor, got %d", tour.NextQwIdx)
	}
	deadline, ok := tour.Deadline()
	if !ok || !deadline.Equal(now.Add(60*time.Second)) {
		t.Fatalf("unexpected deadline %v %v", deadline, ok)
	}
	if tour.IsCountdownExpired(now.Add(59 * time.Second)) {
		t.Fatalf("countdown expired too early")
	}
	if !tour.IsCountdownExpired(now.Add(60 * time.Second)) {
		t.Fatalf("countdown should expire at the deadline")
	}

	quiz = quiz.PauseCountdown()
	tour, _ = quiz.CurrentTour()
	if tour.Status != TourAnnouncing || tour.StartTime != nil {
		t.Fatalf("pause must revert to announcing, got %+v", tour)
	}
	if tour.NextQwIdx != 1 {
		t.Fatalf("pause must not reset the cursor, got %d", tour.NextQwIdx)
	}

	quiz = quiz.Settle()
	if tour, _ = quiz.CurrentTour(); tour.Status != TourSettled {
		t.Fatalf("expected settled tour, got %+v", tour)
	}
}

func TestSetQuestionIdxClamps(t *testing.T) {
	pack := NewPack("pkg-1", "exp-1", "Opener", fixedTokens("tok"))
	pack = pack.SetSlip(0, MultipleSlip("Blitz", []Question{
		SolidQuestion("Q1", "A1", 1),
		SolidQuestion("Q2", "A2", 1),
	}))

	quiz := testQuiz()
	quiz.Descriptor.PackID = "pkg-1"
	quiz = quiz.SetStatus(QuizLive, packProvider(pack))

	quiz = quiz.SetQuestionIdx(10)
	if tour, _ := quiz.CurrentTour(); tour.NextQwIdx != 2 {
		t.Fatalf("expected clamp to 2, got %d", tour.NextQwIdx)
	}
	quiz = quiz.SetQuestionIdx(-5)
	if tour, _ := quiz.CurrentTour(); tour.NextQwIdx != 0 {
		t.Fatalf("expected clamp to 0, got %d", tour.NextQwIdx)
	}
}

func TestNextAppendsTourFromPackCursor(t *testing.T) {
	pack := NewPack("pkg-1", "exp-1", "Opener", fixedTokens("tok"))
	pack = pack.SetSlip(0, SingleSlip(SolidQuestion("Q1", "A1", 1)))
	pack = pack.SetSlip(1, SingleSlip(SolidQuestion("Q2", "A2", 1)))

	quiz := testQuiz()
	quiz.Descriptor.PackID = "pkg-1"
	quiz = quiz.SetStatus(QuizLive, packProvider(pack))
	quiz = quiz.Next(packProvider(pack))

	if len(quiz.Tours) != 2 {
		t.Fatalf("expected 2 tours, got %d", len(quiz.Tours))
	}
	head, _ := quiz.CurrentTour()
	if head.Slip.Question.Text != "Q2" {
		t.Fatalf("expected second pack slip, got %+v", head.Slip)
	}
	if head.Name != "Round 2" {
		t.Fatalf("expected derived name Round 2, got %q", head.Name)
	}
	if quiz.Descriptor.PackSlipIdx != 1 {
		t.Fatalf("expected pack cursor 1, got %d", quiz.Descriptor.PackSlipIdx)
	}

	// Past the end of the pack: empty slip, cursor keeps walking.
	quiz = quiz.Next(packProvider(pack))
	head, _ = quiz.CurrentTour()
	if head.Slip.Question.Text != "" {
		t.Fatalf("expected empty slip past pack end, got %+v", head.Slip)
	}
}

func TestNextTourName(t *testing.T) {
	cases := []struct{ prev, want string }{
		{"Round3", "Round4"},
		{"Final", "Final1"},
		{"", "Round 1"},
		{"Round 1", "Round 2"},
		{"9", "10"},
	}
	for _, c := range cases {
		if got := NextTourName(c.prev); got != c.want {
			t.Fatalf("NextTourName(%q) = %q, want %q", c.prev, got, c.want)
		}
	}
}

func TestVisibleTextAndListing(t *testing.T) {
	d := Descriptor{WelcomeText: "welcome", FarewellText: "bye", Status: QuizLive}
	if d.VisibleText() != "welcome" {
		t.Fatalf("live quiz shows welcome text")
	}
	d.Status = QuizFinished
	if d.VisibleText() != "bye" {
		t.Fatalf("finished quiz shows farewell text")
	}
	if !d.IsPublicListable() {
		t.Fatalf("finished public quiz should be listable")
	}
	d.IsPrivate = true
	if d.IsPublicListable() {
		t.Fatalf("private quiz must not be listable")
	}
	d.IsPrivate = false
	d.Status = QuizDraft
	if d.IsPublicListable() {
		t.Fatalf("draft quiz must not be listable")
	}
}
