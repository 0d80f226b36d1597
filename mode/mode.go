// Package mode runs the spirit box state machine: one of Energy, Dictionary or
// Proximity is active, and every switch tears down the previous mode's render
// loop, word timer, capture and orientation subscription before the next mode
// starts.
package mode

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Mode int

const (
	Energy Mode = iota
	Dictionary
	Proximity
)

var names = [...]string{"energy", "dictionary", "proximity"}

// All lists the modes in selection order; hotkey slot i picks All[i].
var All = []Mode{Energy, Dictionary, Proximity}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(names) {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return names[m]
}

// Banner is the status text shown on entering m.
func (m Mode) Banner() string {
	return strings.ToUpper(m.String())
}

// ParseMode accepts a mode name, a unique prefix of one, or its 1-based number.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "1":
		return Energy, nil
	case "2":
		return Dictionary, nil
	case "3":
		return Proximity, nil
	}
	if s != "" {
		for i, n := range names {
			if strings.HasPrefix(n, s) {
				return Mode(i), nil
			}
		}
	}
	return 0, fmt.Errorf("unknown mode %q (want energy, dictionary or proximity)", s)
}

// LitBars is how many of n bar segments a level in [0,1] lights: floor(level*n).
func LitBars(level float64, n int) int {
	lit := int(level * float64(n))
	return min(n, max(0, lit))
}

const (
	StatusNoMic    = "NO MIC"
	StatusNoData   = "NO DATA"
	StatusNoSensor = "NO SENSOR"
)

// Presenter receives everything the controller wants shown or spoken.
// Calls arrive from the render loop and word timer goroutines and must not block.
type Presenter interface {
	SetLevel(level float64)
	ShowWord(word string)
	Announce(word string)
	SetStatus(text string)
}

type EnergySampler interface {
	Acquire(ctx context.Context) error
	SampleEnergy() float64
	Release()
}

type WordSource interface {
	Load(ctx context.Context) error
	Advance() (string, bool)
}

// Cue plays short sounds on switches and failures.
type Cue interface {
	PlayStatic()
	PlayError()
}

type Config struct {
	FrameInterval time.Duration
	WordPeriod    time.Duration
	Threshold     float64
}

func DefaultConfig() Config {
	return Config{
		FrameInterval: 16 * time.Millisecond,
		WordPeriod:    1200 * time.Millisecond,
		Threshold:     0.45,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FrameInterval <= 0 {
		c.FrameInterval = d.FrameInterval
	}
	if c.WordPeriod <= 0 {
		c.WordPeriod = d.WordPeriod
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		c.Threshold = d.Threshold
	}
	return c
}
