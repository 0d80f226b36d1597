// Package words holds the dictionary list and its randomised cursor.
package words

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tailscale/hujson"
)

var (
	// ErrLoadFailed means the list could not be fetched or parsed. Load may be retried.
	ErrLoadFailed = errors.New("word list load failed")
	// ErrEmptyWordList means the list parsed but holds no words.
	ErrEmptyWordList = errors.New("word list is empty")
)

//go:embed default.json
var defaultList []byte

const maxListBytes = 1 << 20

// Source is an ordered word list loaded at most once, plus a cursor that
// advances by a random step of 1 to 3.
type Source struct {
	location string
	client   *http.Client
	step     func() int

	mu     sync.Mutex
	words  []string
	loaded bool
	cursor int
}

type Option func(*Source)

// WithStep replaces the random step draw. Results outside [1,3] are clamped.
func WithStep(fn func() int) Option {
	return func(s *Source) { s.step = fn }
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) { s.client = c }
}

// NewSource reads from location: an http(s) URL, a file path, or "" for the
// built-in list.
func NewSource(location string, opts ...Option) *Source {
	s := &Source{
		location: location,
		client:   &http.Client{Timeout: 10 * time.Second},
		step:     func() int { return rand.IntN(3) + 1 },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches and parses the list. After a successful parse it does nothing
// further; a failed attempt leaves the list empty and may be retried.
func (s *Source) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.loaded {
		empty := len(s.words) == 0
		s.mu.Unlock()
		if empty {
			return ErrEmptyWordList
		}
		return nil
	}
	s.mu.Unlock()

	data, err := s.fetch(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	list, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		s.words = list
		s.loaded = true
		s.cursor = 0
	}
	if len(s.words) == 0 {
		return ErrEmptyWordList
	}
	return nil
}

func (s *Source) fetch(ctx context.Context) ([]byte, error) {
	switch {
	case s.location == "":
		return defaultList, nil
	case strings.HasPrefix(s.location, "http://"), strings.HasPrefix(s.location, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return nil, fmt.Errorf("fetch %s: %s", s.location, resp.Status)
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxListBytes))
	default:
		return os.ReadFile(s.location)
	}
}

// Parse decodes {"words": [...]}. Comments and trailing commas are allowed.
// A missing or non-array "words" yields an empty list; non-string entries are skipped.
func Parse(data []byte) ([]string, error) {
	std, err := hujson.Standardize(bytes.Clone(data))
	if err != nil {
		return nil, err
	}
	var doc struct {
		Words json.RawMessage `json:"words"`
	}
	if err := json.Unmarshal(std, &doc); err != nil {
		return nil, err
	}
	var items []any
	if err := json.Unmarshal(doc.Words, &items); err != nil {
		return nil, nil
	}
	var list []string
	for _, it := range items {
		if w, ok := it.(string); ok {
			list = append(list, w)
		}
	}
	return list, nil
}

// Advance moves the cursor by a random step and returns the upper-cased word
// under it. It reports false when the list is empty.
func (s *Source) Advance() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.words) == 0 {
		return "", false
	}
	step := min(3, max(1, s.step()))
	s.cursor = (s.cursor + step) % len(s.words)
	return strings.ToUpper(s.words[s.cursor]), true
}

func (s *Source) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.words)
}

func (s *Source) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *Source) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}
