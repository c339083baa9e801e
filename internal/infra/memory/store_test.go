package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizhost-service/internal/app"
	"quizhost-service/internal/domain"
)

func TestQuizStoreVersionCAS(t *testing.T) {
	ctx := context.Background()
	store := NewQuizStore()

	quiz := domain.NewQuiz("quiz-1", "exp-1", "Test", func() string { return "tok" })
	saved, err := store.Save(ctx, quiz)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if saved.Version != 1 {
		t.Fatalf("expected version bump to 1, got %d", saved.Version)
	}

	// A second writer working from the stale snapshot must lose.
	if _, err := store.Save(ctx, quiz); !errors.Is(err, app.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	// The current snapshot wins and bumps again.
	if saved, err = store.Save(ctx, saved); err != nil || saved.Version != 2 {
		t.Fatalf("expected version 2, got %d (%v)", saved.Version, err)
	}

	if _, err := store.Load(ctx, "missing"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTeamStoreListsByQuiz(t *testing.T) {
	ctx := context.Background()
	store := NewTeamStore()
	now := time.Now()

	for _, name := range []string{"Owls", "Larks"} {
		team := domain.NewTeam("quiz-1", "team-"+name, name, func() string { return "tok" }, now)
		if _, err := store.Save(ctx, team); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}
	other := domain.NewTeam("quiz-2", "team-x", "Other", func() string { return "tok" }, now)
	if _, err := store.Save(ctx, other); err != nil {
		t.Fatalf("save other: %v", err)
	}

	names, err := store.ListNames(ctx, "quiz-1")
	if err != nil || len(names) != 2 {
		t.Fatalf("expected 2 names, got %v (%v)", names, err)
	}
	ids, err := store.ListIDs(ctx, "quiz-2")
	if err != nil || len(ids) != 1 || ids[0] != "team-x" {
		t.Fatalf("expected [team-x], got %v (%v)", ids, err)
	}
}

func TestPackCacheCollapsesLoads(t *testing.T) {
	ctx := context.Background()
	inner := &countingPacks{PackStore: NewPackStore()}

	pack := domain.NewPack("pack-1", "exp-1", "Opener", func() string { return "tok" })
	if _, err := inner.PackStore.Save(ctx, pack); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cache := NewPackCache(inner, time.Minute)
	if _, err := cache.Load(ctx, "pack-1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := cache.Load(ctx, "pack-1"); err != nil {
		t.Fatalf("load 2: %v", err)
	}
	if inner.loads != 1 {
		t.Fatalf("expected one inner load, got %d", inner.loads)
	}

	// A write drops the cached copy.
	loaded, _ := cache.Load(ctx, "pack-1")
	if _, err := cache.Save(ctx, loaded.SetSlip(0, domain.EmptySlip())); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := cache.Load(ctx, "pack-1"); err != nil {
		t.Fatalf("load 3: %v", err)
	}
	if inner.loads != 2 {
		t.Fatalf("expected reload after save, got %d", inner.loads)
	}
}

type countingPacks struct {
	*PackStore
	loads int
}

func (p *countingPacks) Load(ctx context.Context, packID string) (domain.Pack, error) {
	p.loads++
	return p.PackStore.Load(ctx, packID)
}
