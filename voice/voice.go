// Package voice speaks dictionary words, either from a bank of recorded
// samples or through a text-to-speech service.
package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	wav "github.com/youpy/go-wav"
)

// ErrNoSample means the bank has no recording for a word.
var ErrNoSample = errors.New("no sample for word")

// Announcer speaks one word, blocking until playback ends.
type Announcer interface {
	Speak(ctx context.Context, word string) error
	Name() string
}

// Player plays mono int16 PCM; beep.Player satisfies it.
type Player interface {
	Play(samples []int16, rate int) error
}

// Clip is decoded mono audio.
type Clip struct {
	Samples []int16
	Rate    int
}

func (c Clip) Empty() bool { return len(c.Samples) == 0 || c.Rate <= 0 }

func decodeWAV(data []byte) (Clip, error) {
	r := wav.NewReader(bytes.NewReader(data))
	format, err := r.Format()
	if err != nil {
		return Clip{}, fmt.Errorf("wav format: %w", err)
	}
	clip := Clip{Rate: int(format.SampleRate)}
	for {
		samples, err := r.ReadSamples()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Clip{}, fmt.Errorf("wav samples: %w", err)
		}
		for _, s := range samples {
			clip.Samples = append(clip.Samples, pcm16(r.IntValue(s, 0), format.BitsPerSample))
		}
	}
	return clip, nil
}

// pcm16 rescales one integer sample to signed 16 bits. 8-bit WAV is unsigned.
func pcm16(v int, bits uint16) int16 {
	switch bits {
	case 8:
		return int16((v - 128) << 8)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}

func loadClip(path string) (Clip, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		data, err := os.ReadFile(path)
		if err != nil {
			return Clip{}, err
		}
		return decodeWAV(data)
	case ".flac":
		f, err := os.Open(path)
		if err != nil {
			return Clip{}, err
		}
		defer f.Close()
		return decodeFLAC(f)
	default:
		return Clip{}, fmt.Errorf("unsupported sample format %q", filepath.Ext(path))
	}
}
