package doctor

import (
	"os"
	"path/filepath"
	"testing"

	"spiritbox/config"
)

func TestCheckWords(t *testing.T) {
	if !checkWords("") {
		t.Error("built-in list failed")
	}
	path := filepath.Join(t.TempDir(), "words.json")
	os.WriteFile(path, []byte(`{"words": []}`), 0o644)
	if checkWords(path) {
		t.Error("empty list passed")
	}
}

func TestCheckOrientationSkipsWithoutFeed(t *testing.T) {
	if !checkOrientation("") {
		t.Error("unconfigured feed should be skipped")
	}
	if checkOrientation(filepath.Join(t.TempDir(), "none")) {
		t.Error("missing feed passed")
	}
}

func TestCheckOrientationReadsEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed")
	os.WriteFile(path, []byte("30 30 30\n"), 0o644)
	if !checkOrientation(path) {
		t.Error("feed with an event failed")
	}
}

func TestCheckAnnouncer(t *testing.T) {
	cfg := config.Default().Announce
	if !checkAnnouncer(cfg) {
		t.Error("disabled announcer failed")
	}

	cfg.Mode = config.AnnounceTTS
	cfg.TTS.APIKeyEnv = "SPIRITBOX_TEST_KEY"
	t.Setenv("SPIRITBOX_TEST_KEY", "")
	if checkAnnouncer(cfg) {
		t.Error("tts without key passed")
	}
	t.Setenv("SPIRITBOX_TEST_KEY", "sk-test")
	if !checkAnnouncer(cfg) {
		t.Error("tts with key failed")
	}

	cfg.Mode = config.AnnounceSamples
	cfg.SamplesDir = t.TempDir()
	if checkAnnouncer(cfg) {
		t.Error("empty samples dir passed")
	}
}
