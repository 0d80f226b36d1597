// Package hotkey registers the global Ctrl+Shift+<digit> mode shortcuts.
package hotkey

// Hotkey is one global key combination.
type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

// Slots are the digits bound to modes, in mode order.
var Slots = []int{1, 2, 3}

// NewSlots builds one Ctrl+Shift+<digit> hotkey per entry of Slots.
func NewSlots() []Hotkey {
	keys := make([]Hotkey, len(Slots))
	for i, d := range Slots {
		keys[i] = New(d)
	}
	return keys
}
