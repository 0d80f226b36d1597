package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"spiritbox/audio"
	"spiritbox/clipboard"
	"spiritbox/config"
	"spiritbox/energy"
	"spiritbox/hotkey"
	"spiritbox/orientation"
	"spiritbox/voice"
	"spiritbox/words"
)

const probeDuration = 2 * time.Second

// Run executes diagnostic checks and returns an exit code (0=all pass, 1=any fail).
// Skipped checks do not count as failures.
func Run(cfg config.Config, interactive bool) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("spiritbox doctor - tuning diagnostics")
	fmt.Println("=====================================")

	checks := []func() bool{
		func() bool { return checkHotkeys(interactive) },
		func() bool { return checkMicrophone(cfg.Audio) },
		func() bool { return checkWords(cfg.Dictionary.Words) },
		func() bool { return checkOrientation(cfg.Orientation.Feed) },
		func() bool { return checkAnnouncer(cfg.Announce) },
		checkClipboard,
	}

	allPass := true
	for i, check := range checks {
		fmt.Println()
		fmt.Printf("[%d/%d] ", i+1, len(checks))
		if !check() {
			allPass = false
		}
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkHotkeys(interactive bool) bool {
	fmt.Println("Mode hotkeys")

	msg, err := hotkey.Diagnose()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  %s\n", msg)
	if !interactive {
		fmt.Println("  PASS: hotkeys available (press test skipped)")
		return true
	}

	fmt.Println("Press Ctrl+Shift+1...")
	hk := hotkey.New(hotkey.Slots[0])
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		fmt.Println("  PASS: hotkey detected")
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		// Reset terminal after hotkey - it may leave terminal in raw mode
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkMicrophone(cfg config.AudioConfig) bool {
	fmt.Println("Microphone energy probe")

	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer actx.Close()

	var device *audio.DeviceInfo
	if cfg.Device != "" {
		device, err = audio.FindDevice(actx, cfg.Device)
		if err != nil || device == nil {
			fmt.Printf("  FAIL: device %q not found\n", cfg.Device)
			return false
		}
	}

	peak, err := probe(actx, device, cfg)
	switch {
	case errors.Is(err, audio.ErrPermissionDenied):
		fmt.Println("  FAIL: microphone permission denied")
		return false
	case err != nil:
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}

	fmt.Printf("  Peak energy over %s: %.2f\n", probeDuration, peak)
	if peak == 0 {
		fmt.Println("  FAIL: capture is silent (muted input?)")
		return false
	}
	fmt.Println("  PASS: microphone is live")
	return true
}

// probe opens a sampler for probeDuration and returns the highest reading.
func probe(actx audio.Context, device *audio.DeviceInfo, cfg config.AudioConfig) (float64, error) {
	s := energy.NewSampler(actx, energy.AllowGate{}, energy.Config{
		Device:     device,
		SampleRate: cfg.SampleRate,
		Window:     cfg.Window,
		Gain:       cfg.Gain,
	})
	if err := s.Acquire(context.Background()); err != nil {
		return 0, err
	}
	defer s.Release()

	fmt.Print("  Listening")
	var peak float64
	deadline := time.Now().Add(probeDuration)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	dots := 0
	for time.Now().Before(deadline) {
		<-ticker.C
		peak = max(peak, s.SampleEnergy())
		if dots++; dots%10 == 0 {
			fmt.Print(".")
		}
	}
	fmt.Println(" done")
	return peak, nil
}

func checkWords(location string) bool {
	fmt.Println("Dictionary word list")

	src := words.NewSource(location)
	if err := src.Load(context.Background()); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	where := location
	if where == "" {
		where = "built-in list"
	}
	fmt.Printf("  PASS: %d words from %s\n", src.Len(), where)
	return true
}

func checkOrientation(feed string) bool {
	fmt.Println("Orientation feed")

	if feed == "" {
		fmt.Println("  SKIP: no feed configured (orientation.feed)")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan orientation.Event, 1)
	sub, err := orientation.FeedSource{Path: feed}.Subscribe(ctx, func(e orientation.Event) {
		select {
		case got <- e:
		default:
		}
	})
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	defer sub.Close()

	select {
	case e := <-got:
		fmt.Printf("  PASS: event received (level %.2f)\n", orientation.Level(e))
		return true
	case <-ctx.Done():
		fmt.Println("  WARN: feed opened but no events within 5s")
		return true
	}
}

func checkAnnouncer(cfg config.AnnounceConfig) bool {
	fmt.Println("Announcer")

	switch cfg.Mode {
	case config.AnnounceSamples:
		bank, err := voice.LoadBank(cfg.SamplesDir, nil)
		if bank == nil {
			fmt.Printf("  FAIL: %v\n", err)
			return false
		}
		if err != nil {
			fmt.Printf("  WARN: %v\n", err)
		}
		if bank.Len() == 0 {
			fmt.Printf("  FAIL: no wav or flac samples under %s\n", cfg.SamplesDir)
			return false
		}
		fmt.Printf("  PASS: %d samples\n", bank.Len())
		return true
	case config.AnnounceTTS:
		if os.Getenv(cfg.TTS.APIKeyEnv) == "" {
			fmt.Printf("  FAIL: %s is not set\n", cfg.TTS.APIKeyEnv)
			return false
		}
		fmt.Printf("  PASS: %s set, voice %q\n", cfg.TTS.APIKeyEnv, cfg.TTS.Voice)
		return true
	default:
		fmt.Println("  SKIP: announcer disabled")
		return true
	}
}

func checkClipboard() bool {
	fmt.Println("Clipboard")

	if !clipboard.Available() {
		fmt.Println("  WARN: no clipboard backend (install xclip, xsel or wl-clipboard)")
		return true
	}
	const probe = "spiritbox-doctor-test"
	if err := clipboard.Copy(probe); err != nil {
		fmt.Printf("  FAIL: clipboard copy failed: %v\n", err)
		return false
	}
	got, err := clipboard.Read()
	if err != nil {
		fmt.Printf("  FAIL: clipboard read failed: %v\n", err)
		return false
	}
	if got != probe {
		fmt.Printf("  FAIL: clipboard returned %q, want %q\n", got, probe)
		return false
	}
	fmt.Println("  PASS: clipboard round trip")
	return true
}
