package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	diagLog   zerolog.Logger
	diagFile  *os.File
	wordsFile *os.File
	logMu     sync.Mutex
	logReady  atomic.Bool
	pid       int
	dir       string
	session   string
	level     = zerolog.InfoLevel
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: --logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: SPIRITBOX_LOG_PATH environment variable
	if envPath := os.Getenv("SPIRITBOX_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

// SetLevel parses a zerolog level name; unknown names keep the current level.
func SetLevel(name string) {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return
	}
	logMu.Lock()
	level = lvl
	if logReady.Load() {
		diagLog = diagLog.Level(lvl)
	}
	logMu.Unlock()
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()
	session = uuid.NewString()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	wordsPath := filepath.Join(dir, "words_log.txt")
	wordsFile, err = os.OpenFile(wordsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).Level(level).With().
		Timestamp().
		Int("pid", pid).
		Str("session", session[:8]).
		Logger()

	logReady.Store(true)
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	logReady.Store(false)
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if wordsFile != nil {
		wordsFile.Close()
		wordsFile = nil
	}
}

// Session returns the id minted by the last Init.
func Session() string {
	logMu.Lock()
	defer logMu.Unlock()
	return session
}

func Debugf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

func Info(msg string) {
	if logReady.Load() {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady.Load() {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady.Load() {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady.Load() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func ModeSwitch(from, to string) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().Str("from", from).Str("to", to).Msg("mode_switch")
}

func Status(text string) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().Str("status", text).Msg("status")
}

func Level(v float64) {
	if !logReady.Load() {
		return
	}
	diagLog.Debug().Float64("value", v).Msg("level")
}

// WordAdvance records a word pulled from the static, in the diagnostics log
// and as a tab-separated line in words_log.txt.
func WordAdvance(word string, energy float64) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().Str("word", word).Float64("energy", energy).Msg("word_advance")

	logMu.Lock()
	defer logMu.Unlock()
	if wordsFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, word)
	wordsFile.WriteString(line)
}

func Announce(word, via string, took time.Duration) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("word", word).
		Str("via", via).
		Float64("ms", float64(took.Microseconds())/1000).
		Msg("announce")
}

func SessionStart(mode, device, announcer string) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("mode", mode).
		Str("device", device).
		Str("announcer", announcer).
		Msg("session_start")
}

func SessionEnd(words int) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Int("words", words).
		Msg("session_end")
}
