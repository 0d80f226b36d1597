package hotkey

import (
	"testing"
	"time"
)

func waitSelected(t *testing.T, s *Selector) int {
	t.Helper()
	select {
	case idx := <-s.Selected():
		return idx
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for selection")
		return -1
	}
}

func TestSelectorReportsIndex(t *testing.T) {
	keys := []*FakeHotkey{NewFake(), NewFake(), NewFake()}
	s := NewSelector([]Hotkey{keys[0], keys[1], keys[2]})
	defer s.Close()

	keys[2].SimPress()
	if idx := waitSelected(t, s); idx != 2 {
		t.Errorf("idx = %d, want 2", idx)
	}
	keys[0].SimPress()
	if idx := waitSelected(t, s); idx != 0 {
		t.Errorf("idx = %d, want 0", idx)
	}
}

func TestSelectorHoldFiresOnce(t *testing.T) {
	fk := NewFake()
	s := NewSelector([]Hotkey{fk})
	defer s.Close()

	fk.SimKeydown()
	waitSelected(t, s)
	fk.SimKeydown() // autorepeat while held
	select {
	case <-s.Selected():
		t.Fatal("held key selected twice")
	case <-time.After(30 * time.Millisecond):
	}

	fk.SimKeyup()
	// the buffered repeat press now counts as a fresh press
	waitSelected(t, s)
}

func TestSelectorKeepsNewest(t *testing.T) {
	keys := []*FakeHotkey{NewFake(), NewFake()}
	s := NewSelector([]Hotkey{keys[0], keys[1]})
	defer s.Close()

	keys[0].SimPress()
	time.Sleep(20 * time.Millisecond)
	keys[1].SimPress()
	time.Sleep(20 * time.Millisecond)

	if idx := waitSelected(t, s); idx != 1 {
		t.Errorf("idx = %d, want newest press 1", idx)
	}
}

func TestSelectorCloseIdempotent(t *testing.T) {
	s := NewSelector([]Hotkey{NewFake()})
	s.Close()
	s.Close()
}

func TestNewSlots(t *testing.T) {
	if got := len(NewSlots()); got != len(Slots) {
		t.Errorf("NewSlots returned %d hotkeys, want %d", got, len(Slots))
	}
}
