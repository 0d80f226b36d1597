package beep

import (
	"math"
	"testing"
)

func TestGenerateStatic(t *testing.T) {
	dur := staticDur
	s := generateStatic(sampleRate, dur, staticVolume, staticDecay)
	if want := int(float64(sampleRate) * dur); len(s) != want {
		t.Fatalf("len = %d, want %d", len(s), want)
	}
	limit := int16(math.Ceil(32767 * staticVolume))
	var loud bool
	for _, v := range s {
		if v > limit || v < -limit {
			t.Fatalf("sample %d beyond volume %d", v, limit)
		}
		if v > limit/10 || v < -limit/10 {
			loud = true
		}
	}
	if !loud {
		t.Error("static cue is silent")
	}
	if s[0] != 0 {
		t.Errorf("first sample = %d, want a ramp from 0", s[0])
	}
}

func TestGenerateDoubleBeep(t *testing.T) {
	beep := generateTick(sampleRate, errorFreq, 0.08, errorVolume, errorDecay)
	double := generateDoubleBeep(sampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay)
	gapDur := 0.05
	gap := int(float64(sampleRate) * gapDur)
	if len(double) != 2*len(beep)+gap {
		t.Fatalf("len = %d, want %d", len(double), 2*len(beep)+gap)
	}
	for i := len(beep); i < len(beep)+gap; i++ {
		if double[i] != 0 {
			t.Fatalf("gap sample %d = %d", i, double[i])
		}
	}
}

func TestPlayDisabled(t *testing.T) {
	Disable()
	t.Cleanup(func() { disabled.Store(false) })
	if err := Play([]int16{1, 2, 3}, sampleRate); err != nil {
		t.Errorf("Play while disabled = %v", err)
	}
	PlayStatic()
	PlayError()
}
