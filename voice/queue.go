package voice

import (
	"context"
	"errors"
	"time"

	"spiritbox/log"
)

// Queue speaks words one at a time off the caller's goroutine. It holds a
// single pending word: announcing while busy replaces whatever was waiting.
type Queue struct {
	a      Announcer
	slot   chan string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewQueue(a Announcer) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		a:      a,
		slot:   make(chan string, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go q.run(ctx)
	return q
}

// Announce never blocks.
func (q *Queue) Announce(word string) {
	for {
		select {
		case q.slot <- word:
			return
		default:
		}
		select {
		case <-q.slot:
		default:
		}
	}
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		case word := <-q.slot:
			start := time.Now()
			err := q.a.Speak(ctx, word)
			switch {
			case err == nil:
				log.Announce(word, q.a.Name(), time.Since(start))
			case errors.Is(err, context.Canceled):
				return
			default:
				log.Warnf("announce %q via %s: %v", word, q.a.Name(), err)
			}
		}
	}
}

// Close drops any pending word and waits for the current one to finish.
func (q *Queue) Close() {
	q.cancel()
	<-q.done
}

// Silent is an Announcer that says nothing.
type Silent struct{}

func (Silent) Speak(context.Context, string) error { return nil }
func (Silent) Name() string                        { return "none" }
