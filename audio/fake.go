package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	wav "github.com/youpy/go-wav"
)

const (
	fakeFrameSize     = 256
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext replays a fixed PCM buffer in a loop instead of reading a device.
// StartErr, when set, is returned by every capture's Start.
type FakeContext struct {
	pcm      []byte
	interval time.Duration

	mu       sync.Mutex
	StartErr error
	devices  []DeviceInfo
	live     int
	opened   int
}

// NewFakeContext builds a context that feeds pcm (int16 LE mono) one frame every interval.
func NewFakeContext(pcm []byte, interval time.Duration) *FakeContext {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return &FakeContext{
		pcm:      pcm,
		interval: interval,
		devices:  []DeviceInfo{{ID: "fake", Name: "fake"}},
	}
}

// LoadFakeContext reads a WAV file and feeds its first channel at real-time pace.
func LoadFakeContext(wavPath string) (*FakeContext, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := wav.NewReader(f)
	format, err := r.Format()
	if err != nil {
		return nil, fmt.Errorf("wav format: %w", err)
	}
	var pcm []byte
	for {
		samples, err := r.ReadSamples()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("wav samples: %w", err)
		}
		for _, s := range samples {
			v := int16(r.FloatValue(s, 0) * 32767)
			pcm = binary.LittleEndian.AppendUint16(pcm, uint16(v))
		}
	}
	interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(max(format.SampleRate, 1))
	return NewFakeContext(pcm, interval), nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return f.devices, nil }
func (f *FakeContext) Close()                         {}

// SetDevices replaces the device list; an empty list simulates a machine without a mic.
func (f *FakeContext) SetDevices(devices []DeviceInfo) {
	f.mu.Lock()
	f.devices = devices
	f.mu.Unlock()
}

// Live reports how many captures are currently started.
func (f *FakeContext) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live
}

// Opened reports how many captures were ever started.
func (f *FakeContext) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	f.mu.Lock()
	empty := len(f.devices) == 0
	f.mu.Unlock()
	if empty {
		return nil, ErrDeviceUnavailable
	}
	return &FakeCapture{ctx: f}, nil
}

type FakeCapture struct {
	ctx *FakeContext

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

// Feed pushes data straight to the callback, bypassing the replay loop.
func (f *FakeCapture) Feed(data []byte) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(data, uint32(len(data)/fakeBytesPerFrame))
	}
}

func (f *FakeCapture) Start() error {
	f.ctx.mu.Lock()
	if err := f.ctx.StartErr; err != nil {
		f.ctx.mu.Unlock()
		return err
	}
	f.ctx.live++
	f.ctx.opened++
	f.ctx.mu.Unlock()

	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})

	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	pcm := f.ctx.pcm
	go func(stop, done chan struct{}) {
		defer close(done)
		silence := make([]byte, chunkBytes)
		ticker := time.NewTicker(f.ctx.interval)
		defer ticker.Stop()
		pos := 0
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			if len(pcm) == 0 {
				f.Feed(silence)
				continue
			}
			end := min(pos+chunkBytes, len(pcm))
			chunk := make([]byte, end-pos)
			copy(chunk, pcm[pos:end])
			f.Feed(chunk)
			pos = end
			if pos >= len(pcm) {
				pos = 0
			}
		}
	}(f.stopCh, f.feedDone)

	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
		return
	default:
		close(f.stopCh)
	}
	<-f.feedDone

	f.ctx.mu.Lock()
	f.ctx.live--
	f.ctx.mu.Unlock()
}

func (f *FakeCapture) Close() { f.Stop() }
