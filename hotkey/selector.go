package hotkey

import "sync"

// Selector merges several hotkeys into one stream of indexes. A key fires on
// press and rearms on release, so holding a combo selects once.
type Selector struct {
	ch   chan int
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewSelector(keys []Hotkey) *Selector {
	s := &Selector{
		ch:   make(chan int, 1),
		stop: make(chan struct{}),
	}
	for i, hk := range keys {
		s.wg.Add(1)
		go s.watch(i, hk)
	}
	return s
}

// Selected delivers the index of each pressed hotkey. If the reader falls
// behind only the newest press is kept.
func (s *Selector) Selected() <-chan int { return s.ch }

func (s *Selector) watch(idx int, hk Hotkey) {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case <-hk.Keydown():
		}
		s.publish(idx)
		select {
		case <-s.stop:
			return
		case <-hk.Keyup():
		}
	}
}

func (s *Selector) publish(idx int) {
	for {
		select {
		case s.ch <- idx:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *Selector) Close() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}
