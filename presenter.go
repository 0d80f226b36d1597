package main

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"spiritbox/log"
	"spiritbox/voice"
)

// view is the display half of a presenter. The TUI, the GUI window and the
// headless console each implement it; speech is handled separately.
type view interface {
	SetLevel(level float64)
	ShowWord(word string)
	SetStatus(text string)
}

// presenter joins a view with the announce queue so the controller sees a
// single mode.Presenter.
type presenter struct {
	view  view
	queue *voice.Queue

	words atomic.Int64
	mu    sync.Mutex
	last  string
}

func newPresenter(v view, q *voice.Queue) *presenter {
	return &presenter{view: v, queue: q}
}

func (p *presenter) SetLevel(level float64) { p.view.SetLevel(level) }

func (p *presenter) ShowWord(word string) {
	if word != "" {
		p.words.Add(1)
	}
	p.mu.Lock()
	p.last = word
	p.mu.Unlock()
	p.view.ShowWord(word)
}

func (p *presenter) Announce(word string) {
	if p.queue != nil {
		p.queue.Announce(word)
	}
}

func (p *presenter) SetStatus(text string) { p.view.SetStatus(text) }

// Word returns the word currently on display.
func (p *presenter) Word() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Shown counts the words displayed this session.
func (p *presenter) Shown() int { return int(p.words.Load()) }

const levelLogInterval = 250 * time.Millisecond

// consoleView prints status and word changes as lines and sends levels to
// the debug log at most every levelLogInterval.
type consoleView struct {
	out io.Writer

	mu        sync.Mutex
	lastLevel time.Time
	peak      float64
}

func newConsoleView(out io.Writer) *consoleView {
	return &consoleView{out: out}
}

func (c *consoleView) SetLevel(level float64) {
	c.mu.Lock()
	c.peak = max(c.peak, level)
	if time.Since(c.lastLevel) < levelLogInterval {
		c.mu.Unlock()
		return
	}
	peak := c.peak
	c.peak = 0
	c.lastLevel = time.Now()
	c.mu.Unlock()
	log.Level(peak)
}

func (c *consoleView) ShowWord(word string) {
	if word == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "word: %s\n", word)
}

func (c *consoleView) SetStatus(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "status: %s\n", text)
}
