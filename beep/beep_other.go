//go:build !linux

package beep

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx  *malgo.AllocatedContext
	malgoErr  error
	malgoOnce sync.Once

	// one device at a time; overlapping cues queue behind each other
	playMu sync.Mutex
)

func initContext() {
	malgoCtx, malgoErr = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
}

func playSamples(samples []int16, rate int) error {
	if len(samples) == 0 {
		return nil
	}
	malgoOnce.Do(initContext)
	if malgoErr != nil {
		return fmt.Errorf("malgo playback: %w", malgoErr)
	}

	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}

	playMu.Lock()
	defer playMu.Unlock()

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = uint32(rate)

	pos := 0
	done := make(chan struct{})
	var closeOnce sync.Once
	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			n := copy(pOutput[:frameCount*2], buf[pos:])
			pos += n
			// Zero-fill remainder
			for i := n; i < int(frameCount*2); i++ {
				pOutput[i] = 0
			}
			if pos >= len(buf) {
				closeOnce.Do(func() { close(done) })
			}
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, config, callbacks)
	if err != nil {
		return fmt.Errorf("malgo playback: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("malgo playback: %w", err)
	}
	<-done
	device.Stop()
	return nil
}
