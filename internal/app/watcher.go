package app

import (
	"context"
	"log"
	"sync"
	"time"
)

// Watcher settles tours whose countdown window has elapsed. The core never
// polls the clock; this is the external timer collaborator that observes
// deadlines and invokes Settle.
type Watcher struct {
	service  *Service
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	deadlines map[string]time.Time
}

func NewWatcher(service *Service, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{
		service:   service,
		interval:  interval,
		now:       time.Now,
		deadlines: make(map[string]time.Time),
	}
}

// Schedule arms a settle callback for the quiz at the given instant.
func (w *Watcher) Schedule(quizID string, at time.Time) {
	w.mu.Lock()
	w.deadlines[quizID] = at
	w.mu.Unlock()
}

// Cancel disarms a pending settle, e.g. when the producer pauses.
func (w *Watcher) Cancel(quizID string) {
	w.mu.Lock()
	delete(w.deadlines, quizID)
	w.mu.Unlock()
}

// Run polls armed deadlines until the context is canceled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.settleDue(ctx)
		}
	}
}

func (w *Watcher) settleDue(ctx context.Context) {
	now := w.now()
	w.mu.Lock()
	var due []string
	for quizID, at := range w.deadlines {
		if !now.Before(at) {
			due = append(due, quizID)
			delete(w.deadlines, quizID)
		}
	}
	w.mu.Unlock()

	for _, quizID := range due {
		if _, err := w.service.SettleTour(ctx, quizID); err != nil {
			log.Printf("settle quiz %s: %v", quizID, err)
		}
	}
}
