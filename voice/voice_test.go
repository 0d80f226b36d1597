package voice

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// wavBytes builds a 16-bit mono PCM WAV file.
func wavBytes(samples []int16, rate int) []byte {
	var buf bytes.Buffer
	dataLen := uint32(len(samples) * 2)
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(rate))
	binary.Write(&buf, binary.LittleEndian, uint32(rate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	binary.Write(&buf, binary.LittleEndian, samples)
	return buf.Bytes()
}

func tone(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(math.Sin(float64(i)/8) * 12000)
	}
	return out
}

type played struct {
	samples int
	rate    int
}

type recordingPlayer struct {
	mu    sync.Mutex
	plays []played
}

func (p *recordingPlayer) Play(samples []int16, rate int) error {
	p.mu.Lock()
	p.plays = append(p.plays, played{len(samples), rate})
	p.mu.Unlock()
	return nil
}

func closeEnough(a, b []int16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if d := int(a[i]) - int(b[i]); d > 1 || d < -1 {
			return false
		}
	}
	return true
}

func TestDecodeWAV(t *testing.T) {
	want := tone(500)
	clip, err := decodeWAV(wavBytes(want, 22050))
	if err != nil {
		t.Fatal(err)
	}
	if clip.Rate != 22050 {
		t.Errorf("rate = %d", clip.Rate)
	}
	if !closeEnough(clip.Samples, want) {
		t.Errorf("decoded samples differ from source")
	}
}

func TestDecodeWAVFullScale(t *testing.T) {
	want := []int16{32767, -32768, 16384, 0}
	clip, err := decodeWAV(wavBytes(want, 16000))
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range want {
		if clip.Samples[i] != v {
			t.Errorf("sample %d = %d, want %d", i, clip.Samples[i], v)
		}
	}
}

func TestDecodeWAV8Bit(t *testing.T) {
	raw := []byte{128, 255, 0, 192}
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(raw)))
	buf.WriteString("WAVEfmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(8000))
	binary.Write(&buf, binary.LittleEndian, uint32(8000))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(8))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(raw)))
	buf.Write(raw)

	clip, err := decodeWAV(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	want := []int16{0, 127 << 8, -128 << 8, 64 << 8}
	if len(clip.Samples) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(clip.Samples), len(want))
	}
	for i, v := range want {
		if clip.Samples[i] != v {
			t.Errorf("sample %d = %d, want %d", i, clip.Samples[i], v)
		}
	}
}

func TestFLACRoundTrip(t *testing.T) {
	want := Clip{Samples: tone(flacBlockSize*2 + 123), Rate: 24000}
	packed, err := encodeFLAC(want)
	if err != nil {
		t.Fatal(err)
	}
	if string(packed[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
	got, err := decodeFLAC(bytes.NewReader(packed))
	if err != nil {
		t.Fatal(err)
	}
	if got.Rate != want.Rate {
		t.Errorf("rate = %d, want %d", got.Rate, want.Rate)
	}
	if len(got.Samples) != len(want.Samples) {
		t.Fatalf("len = %d, want %d", len(got.Samples), len(want.Samples))
	}
	for i := range want.Samples {
		if got.Samples[i] != want.Samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, got.Samples[i], want.Samples[i])
		}
	}
}

func TestLoadBank(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Hello.wav"), wavBytes(tone(300), 16000), 0o644); err != nil {
		t.Fatal(err)
	}
	packed, err := encodeFLAC(Clip{Samples: tone(200), Rate: 8000})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "house"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "house", "door.flac"), packed, 0o644); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644)

	player := &recordingPlayer{}
	bank, err := LoadBank(dir, player)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(bank.Words(), ","); got != "door,hello" {
		t.Fatalf("words = %s", got)
	}

	if err := bank.Speak(context.Background(), "HELLO"); err != nil {
		t.Fatal(err)
	}
	if err := bank.Speak(context.Background(), "door"); err != nil {
		t.Fatal(err)
	}
	if err := bank.Speak(context.Background(), "window"); !errors.Is(err, ErrNoSample) {
		t.Errorf("err = %v, want ErrNoSample", err)
	}

	want := []played{{300, 16000}, {200, 8000}}
	if len(player.plays) != 2 || player.plays[0] != want[0] || player.plays[1] != want[1] {
		t.Errorf("plays = %v, want %v", player.plays, want)
	}
}

func TestLoadBankSkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "yes.wav"), wavBytes(tone(100), 8000), 0o644)
	os.WriteFile(filepath.Join(dir, "no.flac"), []byte("not flac"), 0o644)

	bank, err := LoadBank(dir, &recordingPlayer{})
	if err == nil || !strings.Contains(err.Error(), "no.flac") {
		t.Errorf("err = %v, want mention of no.flac", err)
	}
	if bank == nil || bank.Len() != 1 {
		t.Fatalf("bank = %v", bank)
	}
}

func TestLoadBankMissingDir(t *testing.T) {
	if _, err := LoadBank(filepath.Join(t.TempDir(), "none"), &recordingPlayer{}); err == nil {
		t.Error("expected error for missing dir")
	}
}

func speechServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": {"message": "bad key"}}`))
			return
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["response_format"] != "wav" || body["input"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		hits.Add(1)
		time.Sleep(10 * time.Millisecond)
		w.Write(wavBytes(tone(240), 24000))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSpeechCachesWords(t *testing.T) {
	var hits atomic.Int32
	srv := speechServer(t, &hits)
	player := &recordingPlayer{}
	cache := t.TempDir()
	s, err := NewSpeech(SpeechConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/", CacheDir: cache}, player)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := s.Clip(context.Background(), "Shadow"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if hits.Load() != 1 {
		t.Fatalf("server hit %d times for one word", hits.Load())
	}

	clip, hit, err := s.Clip(context.Background(), "SHADOW")
	if err != nil {
		t.Fatal(err)
	}
	if !hit || clip.Rate != 24000 || len(clip.Samples) != 240 {
		t.Errorf("cached clip hit=%v rate=%d len=%d", hit, clip.Rate, len(clip.Samples))
	}

	if err := s.Speak(context.Background(), "stairs"); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 2 || len(player.plays) != 1 {
		t.Errorf("hits=%d plays=%d", hits.Load(), len(player.plays))
	}

	files, _ := filepath.Glob(filepath.Join(cache, "*.flac"))
	if len(files) != 2 {
		t.Errorf("cache holds %d flac files, want 2", len(files))
	}
}

func TestSpeechErrorMessage(t *testing.T) {
	var hits atomic.Int32
	srv := speechServer(t, &hits)
	s, err := NewSpeech(SpeechConfig{APIKey: "wrong", BaseURL: srv.URL + "/v1", CacheDir: t.TempDir()}, &recordingPlayer{})
	if err != nil {
		t.Fatal(err)
	}
	err = s.Speak(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Errorf("err = %v, want message from server", err)
	}
}

func TestNewSpeechNeedsKey(t *testing.T) {
	if _, err := NewSpeech(SpeechConfig{CacheDir: t.TempDir()}, &recordingPlayer{}); err == nil {
		t.Error("expected error without API key")
	}
}

type gatedAnnouncer struct {
	started chan string
	release chan struct{}

	mu     sync.Mutex
	spoken []string
}

func (g *gatedAnnouncer) Speak(ctx context.Context, word string) error {
	g.started <- word
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	g.mu.Lock()
	g.spoken = append(g.spoken, word)
	g.mu.Unlock()
	return nil
}

func (g *gatedAnnouncer) Name() string { return "gated" }

func TestQueueLatestWins(t *testing.T) {
	g := &gatedAnnouncer{started: make(chan string, 4), release: make(chan struct{})}
	q := NewQueue(g)
	defer q.Close()

	q.Announce("ONE")
	if w := <-g.started; w != "ONE" {
		t.Fatalf("started %q", w)
	}
	q.Announce("TWO")
	q.Announce("THREE")
	q.Announce("FOUR")

	g.release <- struct{}{}
	if w := <-g.started; w != "FOUR" {
		t.Fatalf("second word = %q, want FOUR", w)
	}
	g.release <- struct{}{}

	deadline := time.Now().Add(time.Second)
	for {
		g.mu.Lock()
		n := len(g.spoken)
		g.mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("queue did not drain")
		}
		time.Sleep(time.Millisecond)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.spoken[0] != "ONE" || g.spoken[1] != "FOUR" {
		t.Errorf("spoken = %v", g.spoken)
	}
}

func TestQueueCloseWhileSpeaking(t *testing.T) {
	g := &gatedAnnouncer{started: make(chan string, 1), release: make(chan struct{})}
	q := NewQueue(g)
	q.Announce("STAY")
	<-g.started

	done := make(chan struct{})
	go func() { q.Close(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked on a speaking announcer")
	}
	q.Announce("AFTER") // must not block
}
