package memory

import (
	"context"
	"sync"

	"quizhost-service/internal/app"
)

// Broker is an in-process pub/sub for state notices, keyed by quiz ID. It
// backs team and producer connections on a single instance; pair it with the
// redis publisher to fan out across instances.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan app.StateNotice]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan app.StateNotice]struct{})}
}

// Subscribe returns a channel receiving notices for the given quiz. The
// caller must Unsubscribe to avoid leaks.
func (b *Broker) Subscribe(quizID string) chan app.StateNotice {
	ch := make(chan app.StateNotice, 16)
	b.mu.Lock()
	if b.subs[quizID] == nil {
		b.subs[quizID] = make(map[chan app.StateNotice]struct{})
	}
	b.subs[quizID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the quiz's subscribers.
func (b *Broker) Unsubscribe(quizID string, ch chan app.StateNotice) {
	b.mu.Lock()
	delete(b.subs[quizID], ch)
	if len(b.subs[quizID]) == 0 {
		delete(b.subs, quizID)
	}
	b.mu.Unlock()
}

// Publish sends a notice to all subscribers of the quiz.
func (b *Broker) Publish(_ context.Context, notice app.StateNotice) error {
	b.mu.RLock()
	for ch := range b.subs[notice.QuizID] {
		select {
		case ch <- notice:
		default:
			// Drop if subscriber is slow; the next notice supersedes it.
		}
	}
	b.mu.RUnlock()
	return nil
}
