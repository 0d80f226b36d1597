//go:build portaudio

package audio

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

const portaudioFramesPerBuffer = 256

type portaudioContext struct{}

func NewContext() (Context, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: %w: %w", ErrDeviceUnavailable, err)
	}
	return &portaudioContext{}, nil
}

func (p *portaudioContext) Devices() ([]DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio devices: %w", err)
	}
	var result []DeviceInfo
	for _, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		result = append(result, DeviceInfo{ID: d.Name, Name: d.Name})
	}
	return result, nil
}

func (p *portaudioContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	return &portaudioCapture{device: device, config: config}, nil
}

func (p *portaudioContext) Close() {
	_ = portaudio.Terminate()
}

type portaudioCapture struct {
	device   *DeviceInfo
	config   CaptureConfig
	callback atomic.Pointer[DataCallback]

	mu     sync.Mutex
	stream *portaudio.Stream
}

func (c *portaudioCapture) lookup() (*portaudio.DeviceInfo, error) {
	if c.device == nil {
		return portaudio.DefaultInputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if d.Name == c.device.ID {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device %q not found", c.device.Name)
}

func (c *portaudioCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dev, err := c.lookup()
	if err != nil {
		return fmt.Errorf("portaudio input: %w: %w", ErrDeviceUnavailable, err)
	}
	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = int(c.config.Channels)
	params.SampleRate = float64(c.config.SampleRate)
	params.FramesPerBuffer = portaudioFramesPerBuffer

	stream, err := portaudio.OpenStream(params, func(in []int16) {
		cb := c.callback.Load()
		if cb == nil {
			return
		}
		data := make([]byte, len(in)*2)
		for i, s := range in {
			binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
		}
		(*cb)(data, uint32(len(in)/int(c.config.Channels)))
	})
	if err != nil {
		return fmt.Errorf("portaudio open: %w: %w", classify(err), err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("portaudio start: %w: %w", classify(err), err)
	}
	c.stream = stream
	return nil
}

func (c *portaudioCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return
	}
	_ = c.stream.Stop()
	_ = c.stream.Close()
	c.stream = nil
}

func (c *portaudioCapture) Close() {
	c.Stop()
}

func (c *portaudioCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *portaudioCapture) ClearCallback() {
	c.callback.Store(nil)
}

func (c *portaudioCapture) DeviceName() string {
	if c.device != nil {
		return c.device.Name
	}
	return "system default"
}

func classify(err error) error {
	if strings.Contains(strings.ToLower(err.Error()), "permission") {
		return ErrPermissionDenied
	}
	return ErrDeviceUnavailable
}
