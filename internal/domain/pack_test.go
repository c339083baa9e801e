package domain

import "testing"

func TestQuestionsCount(t *testing.T) {
	single := SingleSlip(SolidQuestion("Capital of France?", "Paris", 1))
	if single.QuestionsCount() != 1 {
		t.Fatalf("expected 1 question, got %d", single.QuestionsCount())
	}

	multi := MultipleSlip("Blitz", []Question{
		SolidQuestion("2+2?", "4", 1),
		SolidQuestion("3+3?", "6", 1),
		SplitQuestion([]string{"First clue", "Second clue"}, "42", 2),
	})
	if multi.QuestionsCount() != 3 {
		t.Fatalf("expected 3 questions, got %d", multi.QuestionsCount())
	}

	if EmptySlip().QuestionsCount() == 0 {
		t.Fatalf("questions count must never be zero")
	}
}

func TestGetSlipBounds(t *testing.T) {
	pack := NewPack("pkg-1", "exp-1", "Season opener", fixedTokens("tok-1"))
	pack = pack.SetSlip(0, SingleSlip(SolidQuestion("Q1", "A1", 1)))

	if _, ok := pack.GetSlip(0); !ok {
		t.Fatalf("expected slip at 0")
	}
	if _, ok := pack.GetSlip(1); ok {
		t.Fatalf("expected absence past the end")
	}
	if _, ok := pack.GetSlip(-1); ok {
		t.Fatalf("expected absence for negative index")
	}
}

func TestSetSlipReplacesOrAppends(t *testing.T) {
	pack := NewPack("pkg-1", "exp-1", "Season opener", fixedTokens("tok-1"))
	pack = pack.SetSlip(5, SingleSlip(SolidQuestion("Q1", "A1", 1)))
	if len(pack.Slips) != 1 {
		t.Fatalf("out-of-range set should append, got %d slips", len(pack.Slips))
	}

	pack = pack.SetSlip(0, SingleSlip(SolidQuestion("Q1 edited", "A1", 2)))
	if len(pack.Slips) != 1 || pack.Slips[0].Question.Text != "Q1 edited" {
		t.Fatalf("expected in-place replace, got %+v", pack.Slips)
	}
}

func TestTransferToken(t *testing.T) {
	pack := NewPack("pkg-1", "exp-1", "Season opener", fixedTokens("tok-1"))

	if _, err := pack.Transfer("exp-2", "   ", fixedTokens("tok-2")); err != ErrEmptyToken {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
	if _, err := pack.Transfer("exp-2", "wrong", fixedTokens("tok-2")); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	moved, err := pack.Transfer("exp-2", " tok-1 ", fixedTokens("tok-2"))
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if moved.ProducerID != "exp-2" {
		t.Fatalf("expected new producer, got %s", moved.ProducerID)
	}
	if moved.TransferToken == pack.TransferToken {
		t.Fatalf("transfer token must rotate")
	}
	// The failed attempts must not have mutated the original.
	if pack.ProducerID != "exp-1" || pack.TransferToken != "tok-1" {
		t.Fatalf("original pack mutated: %+v", pack)
	}
}

func fixedTokens(token string) TokenSource {
	return func() string { return token }
}
