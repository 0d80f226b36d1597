package voice

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// SpeechConfig configures an OpenAI-compatible /audio/speech endpoint.
type SpeechConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Voice    string
	Speed    float64
	Timeout  time.Duration
	CacheDir string
}

// Speech synthesizes words remotely and keeps each result as FLAC on disk,
// so a word is fetched once per voice.
type Speech struct {
	cfg    SpeechConfig
	http   *http.Client
	player Player

	sf singleflight.Group
}

func NewSpeech(cfg SpeechConfig, player Player) (*Speech, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, errors.New("missing speech API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "tts-1"
	}
	if cfg.Voice == "" {
		cfg.Voice = "onyx"
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.CacheDir == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, err
		}
		cfg.CacheDir = filepath.Join(dir, "spiritbox", "speech")
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, err
	}

	return &Speech{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		player: player,
	}, nil
}

func (s *Speech) Name() string { return "tts" }

func (s *Speech) Speak(ctx context.Context, word string) error {
	clip, _, err := s.Clip(ctx, word)
	if err != nil {
		return err
	}
	return s.player.Play(clip.Samples, clip.Rate)
}

// Clip returns the synthesized word, from cache when possible.
func (s *Speech) Clip(ctx context.Context, word string) (Clip, bool, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return Clip{}, false, errors.New("empty speech text")
	}

	key := s.cacheKey(word)
	finalPath := filepath.Join(s.cfg.CacheDir, key+".flac")

	// fast path
	if clip, err := loadClip(finalPath); err == nil {
		return clip, true, nil
	}

	v, err, _ := s.sf.Do(key, func() (any, error) {
		// double-check after singleflight
		if clip, err := loadClip(finalPath); err == nil {
			return clip, nil
		}

		data, err := s.synthesize(ctx, word)
		if err != nil {
			return Clip{}, err
		}
		clip, err := decodeWAV(data)
		if err != nil {
			return Clip{}, err
		}
		if clip.Empty() {
			return Clip{}, errors.New("empty audio response")
		}

		packed, err := encodeFLAC(clip)
		if err != nil {
			return Clip{}, err
		}
		tmp := fmt.Sprintf("%s.tmp-%d-%d", finalPath, time.Now().UnixNano(), rand.Intn(999999))
		if err := os.WriteFile(tmp, packed, 0o644); err != nil {
			return Clip{}, err
		}
		// atomic replace
		if err := os.Rename(tmp, finalPath); err != nil {
			_ = os.Remove(tmp)
			return Clip{}, err
		}
		return clip, nil
	})
	if err != nil {
		return Clip{}, false, err
	}
	return v.(Clip), false, nil
}

func (s *Speech) synthesize(ctx context.Context, text string) ([]byte, error) {
	payload := map[string]any{
		"model":           s.cfg.Model,
		"voice":           s.cfg.Voice,
		"input":           text,
		"response_format": "wav",
		"speed":           s.cfg.Speed,
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if len(data) == 0 {
			return nil, errors.New("empty audio response")
		}
		return data, nil
	}

	// parse OpenAI-style error json if present
	errMsg := strings.TrimSpace(string(data))
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &parsed) == nil && parsed.Error.Message != "" {
		errMsg = parsed.Error.Message
	}
	return nil, fmt.Errorf("speech failed: status=%d msg=%s", resp.StatusCode, errMsg)
}

func (s *Speech) cacheKey(word string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%.2f|%s", s.cfg.Model, s.cfg.Voice, s.cfg.Speed, word)))
	return hex.EncodeToString(h[:16])
}
