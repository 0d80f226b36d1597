// Package energy turns a live capture stream into a coarse loudness reading.
package energy

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"spiritbox/audio"
)

const (
	DefaultWindow = 256
	DefaultGain   = 4.0

	midpoint = 128
)

// Gate decides whether the microphone may be opened. Request may block until
// the user answers; it returns nil on grant and audio.ErrPermissionDenied on refusal.
type Gate interface {
	Request(ctx context.Context) error
}

// GateFunc adapts a function to Gate.
type GateFunc func(ctx context.Context) error

func (f GateFunc) Request(ctx context.Context) error { return f(ctx) }

// AllowGate grants every request.
type AllowGate struct{}

func (AllowGate) Request(ctx context.Context) error { return ctx.Err() }

// DenyGate refuses every request.
type DenyGate struct{}

func (DenyGate) Request(context.Context) error { return audio.ErrPermissionDenied }

type Config struct {
	Device     *audio.DeviceInfo // nil means system default
	SampleRate uint32
	Window     int
	Gain       float64
}

func (c Config) withDefaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = audio.DefaultSampleRate
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.Gain <= 0 {
		c.Gain = DefaultGain
	}
	return c
}

// Sampler owns at most one live capture stream and a rolling window of
// 8-bit unsigned samples centred on 128.
type Sampler struct {
	actx audio.Context
	gate Gate
	cfg  Config

	mu      sync.Mutex
	capture audio.CaptureDevice
	window  []byte
	pos     int
}

func NewSampler(actx audio.Context, gate Gate, cfg Config) *Sampler {
	if gate == nil {
		gate = AllowGate{}
	}
	return &Sampler{actx: actx, gate: gate, cfg: cfg.withDefaults()}
}

// Acquire asks the gate for permission and opens the capture device.
// Calling it while already acquired does nothing.
func (s *Sampler) Acquire(ctx context.Context) error {
	if s.Acquired() {
		return nil
	}
	if s.actx == nil {
		return audio.ErrDeviceUnavailable
	}

	if err := s.gate.Request(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	capture, err := s.actx.NewCapture(s.cfg.Device, audio.CaptureConfig{
		SampleRate: s.cfg.SampleRate,
		Channels:   audio.DefaultChannels,
	})
	if err != nil {
		return classify(err)
	}

	s.mu.Lock()
	s.window = make([]byte, s.cfg.Window)
	for i := range s.window {
		s.window[i] = midpoint
	}
	s.pos = 0
	s.mu.Unlock()

	capture.SetCallback(s.onData)
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		return classify(err)
	}

	// A switch may have cancelled us while the device was starting.
	if err := ctx.Err(); err != nil {
		capture.ClearCallback()
		capture.Stop()
		capture.Close()
		return err
	}

	s.mu.Lock()
	s.capture = capture
	s.mu.Unlock()
	return nil
}

func (s *Sampler) Acquired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture != nil
}

// DeviceName reports the open device, or "" when not acquired.
func (s *Sampler) DeviceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture == nil {
		return ""
	}
	return s.capture.DeviceName()
}

func (s *Sampler) onData(data []byte, _ uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.window) == 0 {
		return
	}
	for i := 0; i+1 < len(data); i += 2 {
		v := int16(binary.LittleEndian.Uint16(data[i:]))
		s.window[s.pos] = byte(int(v>>8) + midpoint)
		s.pos = (s.pos + 1) % len(s.window)
	}
}

// SampleEnergy returns the current loudness in [0,1], or 0 when not acquired.
// The render loop and the word timer may call it concurrently.
func (s *Sampler) SampleEnergy() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture == nil {
		return 0
	}
	return Energy(s.window, s.cfg.Gain)
}

// Release stops and closes the capture. Safe to call when not acquired.
func (s *Sampler) Release() {
	s.mu.Lock()
	capture := s.capture
	s.capture = nil
	s.mu.Unlock()
	if capture == nil {
		return
	}
	capture.ClearCallback()
	capture.Stop()
	capture.Close()
}

// Energy is gain times the RMS deviation of buf from the 8-bit midpoint,
// clamped to [0,1].
func Energy(buf []byte, gain float64) float64 {
	if len(buf) == 0 {
		return 0
	}
	var sum float64
	for _, b := range buf {
		v := (float64(b) - midpoint) / midpoint
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(buf)))
	return min(1, max(0, rms*gain))
}

func classify(err error) error {
	if errors.Is(err, audio.ErrPermissionDenied) || errors.Is(err, audio.ErrDeviceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", audio.ErrDeviceUnavailable, err)
}
