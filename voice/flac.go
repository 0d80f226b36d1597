package voice

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const (
	flacBlockSize     = 4096
	flacBitsPerSample = 16
)

// encodeFLAC packs a clip as verbatim 16-bit mono FLAC for the speech cache.
func encodeFLAC(clip Clip) ([]byte, error) {
	var buf bytes.Buffer
	info := &meta.StreamInfo{
		BlockSizeMin:  flacBlockSize,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    uint32(clip.Rate),
		NChannels:     1,
		BitsPerSample: flacBitsPerSample,
		NSamples:      uint64(len(clip.Samples)),
	}
	enc, err := flac.NewEncoder(&buf, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}

	for i := 0; i < len(clip.Samples); i += flacBlockSize {
		block := clip.Samples[i:min(i+flacBlockSize, len(clip.Samples))]
		samples32 := make([]int32, len(block))
		for j, s := range block {
			samples32[j] = int32(s)
		}
		f := &frame.Frame{
			Header: frame.Header{
				BlockSize:     uint16(len(block)),
				SampleRate:    uint32(clip.Rate),
				Channels:      frame.ChannelsMono,
				BitsPerSample: flacBitsPerSample,
			},
			Subframes: []*frame.Subframe{{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples32,
				NSamples:  len(block),
			}},
		}
		if err := enc.WriteFrame(f); err != nil {
			return nil, fmt.Errorf("writing flac frame: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing flac encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeFLAC reads the first channel of any FLAC stream, rescaled to 16 bits.
func decodeFLAC(r io.Reader) (Clip, error) {
	stream, err := flac.New(r)
	if err != nil {
		return Clip{}, fmt.Errorf("flac stream: %w", err)
	}
	defer stream.Close()

	clip := Clip{Rate: int(stream.Info.SampleRate)}
	shift := int(stream.Info.BitsPerSample) - 16
	for {
		f, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Clip{}, fmt.Errorf("flac frame: %w", err)
		}
		for _, s := range f.Subframes[0].Samples[:f.Subframes[0].NSamples] {
			switch {
			case shift > 0:
				s >>= shift
			case shift < 0:
				s <<= -shift
			}
			clip.Samples = append(clip.Samples, int16(s))
		}
	}
	return clip, nil
}
