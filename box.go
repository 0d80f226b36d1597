package main

import (
	"context"
	"errors"
	"os"
	"sync"

	"spiritbox/audio"
	"spiritbox/beep"
	"spiritbox/config"
	"spiritbox/energy"
	"spiritbox/log"
	"spiritbox/mode"
	"spiritbox/orientation"
	"spiritbox/voice"
	"spiritbox/words"
)

// box owns the running controller and everything it was built from.
type box struct {
	cfg       config.Config
	sampler   *energy.Sampler
	words     *words.Source
	announcer voice.Announcer
	queue     *voice.Queue
	presenter *presenter
	ctrl      *mode.Controller
	sw        *switcher
}

// newBox wires a controller for v. actx may be nil, in which case Energy and
// Dictionary report NO MIC.
func newBox(cfg config.Config, actx audio.Context, device *audio.DeviceInfo, gate energy.Gate, v view) *box {
	b := &box{cfg: cfg}

	b.sampler = energy.NewSampler(actx, gate, energy.Config{
		Device:     device,
		SampleRate: cfg.Audio.SampleRate,
		Window:     cfg.Audio.Window,
		Gain:       cfg.Audio.Gain,
	})
	b.words = words.NewSource(cfg.Dictionary.Words)
	b.announcer = newAnnouncer(cfg.Announce)
	b.queue = voice.NewQueue(b.announcer)
	b.presenter = newPresenter(v, b.queue)

	period, threshold := cfg.WordTiming()
	b.ctrl = mode.NewController(
		b.sampler,
		b.words,
		orientation.FeedSource{Path: cfg.Orientation.Feed},
		b.presenter,
		mode.Config{
			FrameInterval: cfg.Render.FrameInterval.ToDuration(),
			WordPeriod:    period,
			Threshold:     threshold,
		},
		mode.WithCue(beep.Player{}),
	)
	b.sw = &switcher{ctrl: b.ctrl}
	return b
}

func (b *box) close() {
	b.sw.close()
	b.ctrl.Close()
	b.queue.Close()
}

// newAnnouncer falls back to silence when the configured voice is unusable,
// so a missing sample dir or API key never stops the box.
func newAnnouncer(cfg config.AnnounceConfig) voice.Announcer {
	switch cfg.Mode {
	case config.AnnounceSamples:
		bank, err := voice.LoadBank(cfg.SamplesDir, beep.Player{})
		if bank == nil {
			log.Warnf("voice samples: %v", err)
			return voice.Silent{}
		}
		if err != nil {
			log.Warnf("voice samples: %v", err)
		}
		return bank
	case config.AnnounceTTS:
		sp, err := voice.NewSpeech(voice.SpeechConfig{
			APIKey:   os.Getenv(cfg.TTS.APIKeyEnv),
			BaseURL:  cfg.TTS.BaseURL,
			Model:    cfg.TTS.Model,
			Voice:    cfg.TTS.Voice,
			Speed:    cfg.TTS.Speed,
			Timeout:  cfg.TTS.Timeout.ToDuration(),
			CacheDir: cfg.TTS.CacheDir,
		}, beep.Player{})
		if err != nil {
			log.Warnf("voice tts: %v", err)
			return voice.Silent{}
		}
		return sp
	}
	return voice.Silent{}
}

// switcher runs controller switches off the event loop. A new request
// cancels the one in flight and waits for it to unwind, so the latest
// selection always wins.
type switcher struct {
	ctrl *mode.Controller

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *switcher) request(ctx context.Context, m mode.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortLocked()

	sctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	go func() {
		defer close(done)
		err := s.ctrl.Switch(sctx, m)
		// Input failures are already logged with their status.
		if err != nil && !errors.Is(err, context.Canceled) && !mode.IsInputFailure(err) {
			log.Debugf("switch to %s dropped: %v", m, err)
		}
	}()
}

// wait blocks until the last requested switch has finished entering.
func (s *switcher) wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *switcher) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortLocked()
}

func (s *switcher) abortLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel, s.done = nil, nil
}
