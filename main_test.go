package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"spiritbox/audio"
	"spiritbox/beep"
	"spiritbox/config"
	"spiritbox/energy"
	"spiritbox/log"
	"spiritbox/mode"
)

func TestMain(m *testing.M) {
	beep.Disable()
	os.Exit(m.Run())
}

// syncBuffer is a bytes.Buffer shared by the console and the view.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

// loudPCM is a full-scale square wave, int16 LE.
func loudPCM() []byte {
	var pcm []byte
	for i := range 1024 {
		v := int16(32767)
		if i%2 == 1 {
			v = -32768
		}
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(v))
	}
	return pcm
}

func TestConsoleDrivesModes(t *testing.T) {
	cfg := config.Default()
	actx := audio.NewFakeContext(loudPCM(), time.Millisecond)
	var out syncBuffer
	b := newBox(cfg, actx, nil, energy.AllowGate{}, newConsoleView(&out))
	defer b.close()

	in := strings.NewReader(strings.Join([]string{
		"energy", "wait", "stats",
		"proximity", "wait", "stats",
		"bogus",
		"quit",
		"energy",
	}, "\n") + "\n")
	runConsole(context.Background(), b, in, &out)

	got := out.String()
	for _, want := range []string{
		"status: ENERGY",
		"stats mode=energy loops=1 timers=0 acquired=true subscribed=false",
		"status: PROXIMITY",
		"status: NO SENSOR",
		"stats mode=proximity loops=0 timers=0 acquired=false subscribed=false",
		`unknown mode "bogus"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if actx.Live() != 0 {
		t.Errorf("capture still live after leaving energy: %d", actx.Live())
	}
	if b.ctrl.Mode() != mode.Proximity {
		t.Errorf("commands after quit were run: mode %v", b.ctrl.Mode())
	}
}

func TestConsoleDictionaryShowsWords(t *testing.T) {
	cfg := config.Default()
	cfg.Dictionary.Period = config.Duration(5 * time.Millisecond)
	cfg.Dictionary.Threshold = 0.1
	path := filepath.Join(t.TempDir(), "words.json")
	os.WriteFile(path, []byte(`{"words": ["YES", "NO"]}`), 0o644)
	cfg.Dictionary.Words = path

	actx := audio.NewFakeContext(loudPCM(), time.Millisecond)
	var out syncBuffer
	b := newBox(cfg, actx, nil, energy.AllowGate{}, newConsoleView(&out))
	defer b.close()

	runConsole(context.Background(), b, strings.NewReader("dictionary\nwait\nsleep 100\nstats\nquit\n"), &out)

	got := out.String()
	if !strings.Contains(got, "status: DICTIONARY") {
		t.Errorf("missing banner:\n%s", got)
	}
	if !strings.Contains(got, "word: YES") && !strings.Contains(got, "word: NO") {
		t.Errorf("no words shown:\n%s", got)
	}
	if !strings.Contains(got, "loops=1 timers=1 acquired=true") {
		t.Errorf("dictionary should run one loop and one timer:\n%s", got)
	}
	if b.presenter.Shown() == 0 {
		t.Error("presenter counted no words")
	}
}

func TestSwitcherLatestWins(t *testing.T) {
	cfg := config.Default()
	actx := audio.NewFakeContext(nil, time.Millisecond)
	gate := energy.GateFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	b := newBox(cfg, actx, nil, gate, newConsoleView(&syncBuffer{}))
	defer b.close()

	ctx := context.Background()
	b.sw.request(ctx, mode.Energy) // parks on the gate
	b.sw.request(ctx, mode.Proximity)
	b.sw.wait()

	s := b.ctrl.Stats()
	if s.Mode != mode.Proximity {
		t.Errorf("mode = %v, want proximity", s.Mode)
	}
	if s.Acquired || s.RenderLoops != 0 {
		t.Errorf("superseded energy left resources: %+v", s)
	}
}

func TestSwitcherLogsDroppedSwitch(t *testing.T) {
	dir := t.TempDir()
	log.SetDir(dir)
	log.SetLevel("debug")
	if err := log.Init(); err != nil {
		t.Fatal(err)
	}
	defer func() {
		log.Close()
		log.SetLevel("info")
	}()

	b := newBox(config.Default(), nil, nil, energy.AllowGate{}, newConsoleView(&syncBuffer{}))
	defer b.close()

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	b.sw.request(ctx, mode.Proximity)
	b.sw.wait()

	data, err := os.ReadFile(filepath.Join(dir, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "switch to proximity dropped") {
		t.Errorf("diagnostics missing dropped switch:\n%s", data)
	}
}

func TestArgValue(t *testing.T) {
	args := []string{"--logpath", "/tmp/a", "--config=/etc/sb.yaml", "-c", "/tmp/b.yaml", "--gui"}
	if got := argValue(args, "logpath"); got != "/tmp/a" {
		t.Errorf("logpath = %q", got)
	}
	if got := argValue(args, "config", "c"); got != "/tmp/b.yaml" {
		t.Errorf("config = %q, want last occurrence", got)
	}
	if got := argValue(args, "device"); got != "" {
		t.Errorf("device = %q, want empty", got)
	}
	if got := argValue([]string{"--logpath"}, "logpath"); got != "" {
		t.Errorf("dangling flag = %q, want empty", got)
	}
}

func TestGUIBarsFollowsConfig(t *testing.T) {
	t.Setenv("SPIRITBOX_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("render:\n  bars: 8\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if got := guiBars([]string{"--gui", "--config", path}); got != 8 {
		t.Errorf("bars = %d, want 8", got)
	}
	if got := guiBars([]string{"--gui"}); got != config.Default().Render.Bars {
		t.Errorf("bars without config = %d, want default", got)
	}
}

func TestNewAnnouncerFallsBackToSilent(t *testing.T) {
	cfg := config.Default().Announce
	if got := newAnnouncer(cfg).Name(); got != "none" {
		t.Errorf("none mode announcer = %q", got)
	}

	cfg.Mode = config.AnnounceSamples
	cfg.SamplesDir = filepath.Join(t.TempDir(), "missing")
	if got := newAnnouncer(cfg).Name(); got != "none" {
		t.Errorf("missing samples dir announcer = %q", got)
	}

	cfg.Mode = config.AnnounceTTS
	cfg.TTS.APIKeyEnv = "SPIRITBOX_TEST_NO_KEY"
	t.Setenv("SPIRITBOX_TEST_NO_KEY", "")
	if got := newAnnouncer(cfg).Name(); got != "none" {
		t.Errorf("keyless tts announcer = %q", got)
	}

	cfg.SamplesDir = t.TempDir()
	cfg.Mode = config.AnnounceSamples
	if got := newAnnouncer(cfg).Name(); got != "samples" {
		t.Errorf("empty samples dir announcer = %q", got)
	}
}

func TestRenderBarsMirrorsLitCount(t *testing.T) {
	for _, tc := range []struct {
		level float64
		lit   int
	}{
		{0, 0},
		{0.5, 8},
		{0.99, 15},
		{1, 16},
	} {
		bars := renderBars(tc.level, 16)
		// Styles may be stripped without a terminal; count glyphs instead.
		if n := strings.Count(bars, "▮"); n != 32 {
			t.Fatalf("level %v: %d segments, want 32", tc.level, n)
		}
		if got := mode.LitBars(tc.level, 16); got != tc.lit {
			t.Errorf("LitBars(%v) = %d, want %d", tc.level, got, tc.lit)
		}
	}
}

func TestTUIKeysSelectModes(t *testing.T) {
	sel := make(chan mode.Mode, 1)
	answers := make(chan bool, 1)
	m := newTUIModel(16, sel, answers)

	press := func(m tuiModel, s string) tuiModel {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
		return next.(tuiModel)
	}

	m = press(m, "2")
	m = press(m, "p")
	if got := <-sel; got != mode.Proximity {
		t.Errorf("latest key should win, got %v", got)
	}

	m = press(m, "y")
	select {
	case <-answers:
		t.Error("y answered without an open prompt")
	default:
	}

	next, _ := m.Update(PromptMsg{Open: true})
	m = press(next.(tuiModel), "y")
	if ok := <-answers; !ok {
		t.Error("y should allow")
	}
	if !strings.Contains(m.View(), "ALLOW MICROPHONE") {
		t.Error("prompt not rendered")
	}

	next, _ = m.Update(WordMsg{Word: "SHADOW"})
	next, _ = next.Update(StatusMsg{Text: mode.StatusNoMic})
	view := next.(tuiModel).View()
	for _, want := range []string{"SHADOW", "NO MIC"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestPromptGate(t *testing.T) {
	g := newPromptGate()
	var reply []bool
	var shown int
	g.show = func(open bool) {
		if !open {
			return
		}
		shown++
		if len(reply) > 0 {
			g.answers <- reply[0]
			reply = reply[1:]
		}
	}

	g.answers <- true
	// A stale answer is dropped before asking.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := g.Request(ctx); err != context.DeadlineExceeded {
		t.Fatalf("stale answer used: %v", err)
	}

	reply = []bool{false}
	if err := g.Request(context.Background()); err != audio.ErrPermissionDenied {
		t.Fatalf("deny = %v", err)
	}

	reply = []bool{true}
	if err := g.Request(context.Background()); err != nil {
		t.Fatalf("allow = %v", err)
	}
	if err := g.Request(context.Background()); err != nil {
		t.Fatalf("second request = %v", err)
	}
	if shown != 3 {
		t.Errorf("prompt shown %d times, want 3", shown)
	}
}

func TestOfferKeepsLatest(t *testing.T) {
	ch := make(chan int, 1)
	offer(ch, 1)
	offer(ch, 2)
	offer(ch, 3)
	if got := <-ch; got != 3 {
		t.Errorf("got %d, want 3", got)
	}
}

func TestConsoleViewThrottlesLevels(t *testing.T) {
	var out syncBuffer
	v := newConsoleView(&out)
	v.SetLevel(0.2)
	v.SetLevel(0.9)
	v.ShowWord("")
	v.ShowWord("EMF")
	v.SetStatus("ENERGY")
	if got := out.String(); got != "word: EMF\nstatus: ENERGY\n" {
		t.Errorf("output = %q", got)
	}
	v.mu.Lock()
	peak := v.peak
	v.mu.Unlock()
	if peak != 0.9 {
		t.Errorf("peak since last log = %v, want 0.9", peak)
	}
}

func TestStatsLine(t *testing.T) {
	got := statsLine(mode.Stats{Mode: mode.Dictionary, RenderLoops: 1, WordTimers: 1, Acquired: true}, 4)
	want := "stats mode=dictionary loops=1 timers=1 acquired=true subscribed=false words=4"
	if got != want {
		t.Errorf("got %q", got)
	}
}
