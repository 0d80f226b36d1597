package orientation

import (
	"context"
	"sync"
)

// FakeSource hands events to subscribers when Emit is called.
// Err, when set, is returned from Subscribe.
type FakeSource struct {
	Err error

	mu   sync.Mutex
	subs map[*fakeSubscription]func(Event)
}

func NewFakeSource() *FakeSource {
	return &FakeSource{subs: make(map[*fakeSubscription]func(Event))}
}

func (f *FakeSource) Subscribe(ctx context.Context, fn func(Event)) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	sub := &fakeSubscription{src: f}
	f.subs[sub] = fn
	return sub, nil
}

// Emit delivers e to every live subscriber before returning.
func (f *FakeSource) Emit(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fn := range f.subs {
		fn(e)
	}
}

// Active reports the number of open subscriptions.
func (f *FakeSource) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type fakeSubscription struct {
	src *FakeSource
}

func (s *fakeSubscription) Close() {
	s.src.mu.Lock()
	delete(s.src.subs, s)
	s.src.mu.Unlock()
}
