package mode

import (
	"context"
	"errors"
	"sync"
	"time"

	"spiritbox/audio"
	"spiritbox/log"
	"spiritbox/orientation"
	"spiritbox/words"
)

// task is a goroutine with its own cancellation token.
type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *task) stop() {
	t.cancel()
	<-t.done
}

type Stats struct {
	Mode        Mode
	RenderLoops int
	WordTimers  int
	Acquired    bool
	Subscribed  bool
}

// Controller owns every resource a mode holds. Switch calls are serialized;
// a switch that arrives while another is still waiting on permission cancels it.
type Controller struct {
	sampler   EnergySampler
	words     WordSource
	orient    orientation.Source
	presenter Presenter
	cue       Cue
	cfg       Config

	pendingMu     sync.Mutex
	pendingCancel context.CancelFunc

	switchMu sync.Mutex
	loop     *task
	timer    *task
	sub      orientation.Subscription

	mu         sync.Mutex
	mode       Mode
	loops      int
	timers     int
	acquired   bool
	subscribed bool
}

type Option func(*Controller)

func WithCue(c Cue) Option {
	return func(ctl *Controller) { ctl.cue = c }
}

func NewController(sampler EnergySampler, ws WordSource, orient orientation.Source, p Presenter, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		sampler:   sampler,
		words:     ws,
		orient:    orient,
		presenter: p,
		cfg:       cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Mode:        c.mode,
		RenderLoops: c.loops,
		WordTimers:  c.timers,
		Acquired:    c.acquired,
		Subscribed:  c.subscribed,
	}
}

// Switch tears the current mode down and enters target. Switching to the
// current mode restarts it. A permission or device failure leaves target
// selected but inert and is returned after the status has been shown.
func (c *Controller) Switch(ctx context.Context, target Mode) error {
	entryCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.supersede(cancel)

	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	if err := entryCtx.Err(); err != nil {
		return err
	}

	c.stopAll()

	c.mu.Lock()
	from := c.mode
	c.mode = target
	c.mu.Unlock()

	log.ModeSwitch(from.String(), target.String())
	if c.cue != nil {
		c.cue.PlayStatic()
	}
	c.presenter.SetLevel(0)
	c.presenter.ShowWord("")
	c.setStatus(target.Banner())

	switch target {
	case Energy:
		if err := c.acquire(entryCtx); err != nil {
			return err
		}
		c.startRenderLoop()
	case Dictionary:
		if err := c.words.Load(entryCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			log.Warnf("dictionary: %v", err)
			c.setStatus(StatusNoData)
			return err
		}
		if err := c.acquire(entryCtx); err != nil {
			return err
		}
		c.startRenderLoop()
		c.startWordTimer()
	case Proximity:
		if err := c.subscribe(entryCtx); err != nil {
			return err
		}
	}
	return nil
}

// StopAll cancels any pending switch and releases everything the current mode holds.
// The mode itself stays selected.
func (c *Controller) StopAll() {
	c.supersede(nil)
	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	c.stopAll()
}

func (c *Controller) Close() {
	c.StopAll()
}

func (c *Controller) supersede(next context.CancelFunc) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.pendingCancel != nil {
		c.pendingCancel()
	}
	c.pendingCancel = next
}

// stopAll must hold switchMu. It is safe to call with nothing running.
func (c *Controller) stopAll() {
	if c.loop != nil {
		c.loop.stop()
		c.loop = nil
	}
	if c.timer != nil {
		c.timer.stop()
		c.timer = nil
	}
	c.sampler.Release()
	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}

	c.mu.Lock()
	c.acquired = false
	c.subscribed = false
	c.mu.Unlock()
}

func (c *Controller) acquire(ctx context.Context) error {
	err := c.sampler.Acquire(ctx)
	if err == nil {
		c.mu.Lock()
		c.acquired = true
		c.mu.Unlock()
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	log.Warnf("microphone: %v", err)
	c.fail(StatusNoMic)
	return err
}

func (c *Controller) subscribe(ctx context.Context) error {
	sub, err := c.orient.Subscribe(ctx, func(e orientation.Event) {
		c.presenter.SetLevel(orientation.Level(e))
	})
	if err == nil {
		c.sub = sub
		c.mu.Lock()
		c.subscribed = true
		c.mu.Unlock()
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	log.Warnf("orientation: %v", err)
	c.fail(StatusNoSensor)
	return err
}

func (c *Controller) fail(status string) {
	c.setStatus(status)
	if c.cue != nil {
		c.cue.PlayError()
	}
}

func (c *Controller) setStatus(text string) {
	log.Status(text)
	c.presenter.SetStatus(text)
}

func (c *Controller) spawn(counter *int, body func(ctx context.Context)) *task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	*counter++
	c.mu.Unlock()

	go func() {
		defer close(t.done)
		defer func() {
			c.mu.Lock()
			*counter--
			c.mu.Unlock()
		}()
		body(ctx)
	}()
	return t
}

func (c *Controller) startRenderLoop() {
	c.loop = c.spawn(&c.loops, func(ctx context.Context) {
		ticker := time.NewTicker(c.cfg.FrameInterval)
		defer ticker.Stop()
		for {
			if ctx.Err() != nil {
				return
			}
			c.presenter.SetLevel(c.sampler.SampleEnergy())
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
}

func (c *Controller) startWordTimer() {
	c.timer = c.spawn(&c.timers, func(ctx context.Context) {
		ticker := time.NewTicker(c.cfg.WordPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			if ctx.Err() != nil {
				return
			}
			level := c.sampler.SampleEnergy()
			if level <= c.cfg.Threshold {
				continue
			}
			word, ok := c.words.Advance()
			if !ok {
				continue
			}
			log.WordAdvance(word, level)
			c.presenter.ShowWord(word)
			c.presenter.Announce(word)
		}
	})
}

// IsInputFailure reports whether err left the controller inert with a status
// rather than being a cancellation.
func IsInputFailure(err error) bool {
	return errors.Is(err, audio.ErrPermissionDenied) ||
		errors.Is(err, audio.ErrDeviceUnavailable) ||
		errors.Is(err, orientation.ErrPermissionDenied) ||
		errors.Is(err, orientation.ErrUnavailable) ||
		errors.Is(err, words.ErrLoadFailed) ||
		errors.Is(err, words.ErrEmptyWordList)
}
