package voice

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const samplePattern = "**/*.{wav,WAV,flac,FLAC}"

// Bank holds one recording per word, keyed by lower-cased file stem, so
// samples/hello.wav answers for "HELLO".
type Bank struct {
	clips  map[string]Clip
	player Player
}

// LoadBank decodes every wav and flac file under dir. Files that fail to decode
// are skipped and reported in the returned error alongside a usable bank.
func LoadBank(dir string, player Player) (*Bank, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("samples dir: %w", err)
	}
	fsys := os.DirFS(dir)
	matches, err := doublestar.Glob(fsys, samplePattern)
	if err != nil {
		return nil, fmt.Errorf("samples glob: %w", err)
	}

	b := &Bank{clips: make(map[string]Clip), player: player}
	var bad []string
	for _, m := range matches {
		if info, err := fs.Stat(fsys, m); err != nil || info.IsDir() {
			continue
		}
		clip, err := loadClip(filepath.Join(dir, filepath.FromSlash(m)))
		if err != nil || clip.Empty() {
			bad = append(bad, m)
			continue
		}
		stem := strings.ToLower(strings.TrimSuffix(path.Base(m), path.Ext(m)))
		b.clips[stem] = clip
	}
	if len(bad) > 0 {
		return b, fmt.Errorf("skipped %d unreadable samples: %s", len(bad), strings.Join(bad, ", "))
	}
	return b, nil
}

func (b *Bank) Name() string { return "samples" }

func (b *Bank) Len() int { return len(b.clips) }

// Words lists the words the bank can speak, sorted.
func (b *Bank) Words() []string {
	out := make([]string, 0, len(b.clips))
	for w := range b.clips {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

func (b *Bank) Speak(ctx context.Context, word string) error {
	clip, ok := b.clips[strings.ToLower(strings.TrimSpace(word))]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSample, word)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.player.Play(clip.Samples, clip.Rate)
}
