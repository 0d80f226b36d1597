// Package beep plays the box's sound cues and arbitrary mono PCM.
package beep

import (
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
)

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

const (
	sampleRate = 44100

	// Static cue: band-swept noise burst, like a tuner crossing stations
	staticDur    = 0.35
	staticVolume = 0.35
	staticDecay  = 6
	sweepLow     = 300
	sweepHigh    = 2400

	// Error beep: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

var (
	staticSamples []int16
	errorSamples  []int16
	soundOnce     sync.Once
)

func initSound() {
	staticSamples = generateStatic(sampleRate, staticDur, staticVolume, staticDecay)
	errorSamples = generateDoubleBeep(sampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay)
}

func generateTick(sampleRate int, freq float64, duration float64, volume float64, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := range n {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func generateDoubleBeep(sampleRate int, freq float64, beepDur float64, gapDur float64, volume float64, decay float64) []int16 {
	beep := generateTick(sampleRate, freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}

// generateStatic mixes white noise with a carrier sweeping from sweepHigh down to
// sweepLow. The one-pole filter cutoff follows the sweep.
func generateStatic(sampleRate int, duration float64, volume float64, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	r := rand.New(rand.NewPCG(0x5b, 0x0c))
	samples := make([]int16, n)
	var lp, phase float64
	for i := range n {
		t := float64(i) / float64(sampleRate)
		frac := float64(i) / float64(n)
		freq := sweepHigh - (sweepHigh-sweepLow)*frac
		alpha := 1 - math.Exp(-2*math.Pi*freq*4/float64(sampleRate))
		lp += alpha * (r.Float64()*2 - 1 - lp)
		phase += 2 * math.Pi * freq / float64(sampleRate)
		v := 0.8*lp + 0.2*math.Sin(phase)
		envelope := math.Exp(-t*decay) * math.Min(1, t*200)
		samples[i] = int16(max(-1, min(1, v)) * 32767 * volume * envelope)
	}
	return samples
}

func Init() {
	soundOnce.Do(initSound)
}

// PlayStatic plays the mode-switch cue without blocking.
func PlayStatic() {
	if disabled.Load() {
		return
	}
	soundOnce.Do(initSound)
	go playSamples(staticSamples, sampleRate)
}

// PlayError plays the failure cue without blocking.
func PlayError() {
	if disabled.Load() {
		return
	}
	soundOnce.Do(initSound)
	go playSamples(errorSamples, sampleRate)
}

// Play blocks until mono int16 samples at rate have drained.
func Play(samples []int16, rate int) error {
	if disabled.Load() || len(samples) == 0 {
		return nil
	}
	return playSamples(samples, rate)
}

// Player exposes the package cues as a value.
type Player struct{}

func (Player) PlayStatic() { PlayStatic() }
func (Player) PlayError()  { PlayError() }

func (Player) Play(samples []int16, rate int) error { return Play(samples, rate) }
