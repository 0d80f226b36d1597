//go:build !linux

package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

var digitKeys = map[int]hotkey.Key{
	1: hotkey.Key1, 2: hotkey.Key2, 3: hotkey.Key3,
	4: hotkey.Key4, 5: hotkey.Key5, 6: hotkey.Key6,
	7: hotkey.Key7, 8: hotkey.Key8, 9: hotkey.Key9,
}

type xHotkey struct {
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
	stop    chan struct{}
	once    sync.Once
}

// New returns Ctrl+Shift+<digit>.
func New(digit int) Hotkey {
	key, ok := digitKeys[digit]
	if !ok {
		key = hotkey.Key1
	}
	return &xHotkey{
		hk:      hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, key),
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

func (h *xHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	go forward(h.hk.Keydown(), h.keydown, h.stop)
	go forward(h.hk.Keyup(), h.keyup, h.stop)
	return nil
}

func forward(from <-chan hotkey.Event, to chan struct{}, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-from:
		}
		select {
		case to <- struct{}{}:
		default:
		}
	}
}

func (h *xHotkey) Unregister() {
	h.once.Do(func() {
		close(h.stop)
		h.hk.Unregister()
	})
}

func (h *xHotkey) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *xHotkey) Keyup() <-chan struct{} {
	return h.keyup
}

func Diagnose() (string, error) {
	return fmt.Sprintf("hotkey support available (Ctrl+Shift+%d..%d)", Slots[0], Slots[len(Slots)-1]), nil
}
