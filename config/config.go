// Package config loads the spiritbox YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Duration time.Duration

func (d Duration) ToDuration() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		*d = 0
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}

	// allow: "800ms", "1.2s", or integer seconds
	switch value.Tag {
	case "!!int":
		i, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	case "!!str":
		if value.Value == "" {
			*d = 0
			return nil
		}
		if dur, err := time.ParseDuration(value.Value); err == nil {
			*d = Duration(dur)
			return nil
		}
		if i, err := strconv.ParseInt(value.Value, 10, 64); err == nil {
			*d = Duration(time.Duration(i) * time.Second)
			return nil
		}
		return fmt.Errorf("invalid duration: %q", value.Value)
	default:
		if dur, err := time.ParseDuration(value.Value); err == nil {
			*d = Duration(dur)
			return nil
		}
		return fmt.Errorf("invalid duration: %q", value.Value)
	}
}

type Config struct {
	Audio       AudioConfig       `yaml:"audio"`
	Dictionary  DictionaryConfig  `yaml:"dictionary"`
	Render      RenderConfig      `yaml:"render"`
	Orientation OrientationConfig `yaml:"orientation"`
	Announce    AnnounceConfig    `yaml:"announce"`
	Log         LogConfig         `yaml:"log"`
}

type AudioConfig struct {
	Device     string  `yaml:"device"` // empty = system default
	SampleRate uint32  `yaml:"sample_rate"`
	Window     int     `yaml:"window"`
	Gain       float64 `yaml:"gain"`
	Confirm    bool    `yaml:"confirm"` // ask before opening the mic
}

// Profile names a word timer preset. Both tunings exist in the wild, so
// neither is privileged.
type Profile string

const (
	ProfileCalm  Profile = "calm"  // 1200ms, 0.45
	ProfileEager Profile = "eager" // 800ms, 0.25
)

type DictionaryConfig struct {
	Words     string   `yaml:"words"` // file path or http(s) URL; empty = built-in list
	Profile   Profile  `yaml:"profile"`
	Period    Duration `yaml:"period"`    // overrides the profile when set
	Threshold float64  `yaml:"threshold"` // overrides the profile when > 0
}

type RenderConfig struct {
	FrameInterval Duration `yaml:"frame_interval"`
	Bars          int      `yaml:"bars"`
}

type OrientationConfig struct {
	Feed string `yaml:"feed"` // file or FIFO of "alpha beta gamma" lines
}

type AnnounceConfig struct {
	Mode       string    `yaml:"mode"` // none, samples, tts
	SamplesDir string    `yaml:"samples_dir"`
	TTS        TTSConfig `yaml:"tts"`
}

type TTSConfig struct {
	APIKeyEnv string   `yaml:"api_key_env"`
	BaseURL   string   `yaml:"base_url"`
	Model     string   `yaml:"model"`
	Voice     string   `yaml:"voice"`
	Speed     float64  `yaml:"speed"`
	Timeout   Duration `yaml:"timeout"`
	CacheDir  string   `yaml:"cache_dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	AnnounceNone    = "none"
	AnnounceSamples = "samples"
	AnnounceTTS     = "tts"
)

func Default() Config {
	return Config{
		Audio: AudioConfig{
			SampleRate: 44100,
			Window:     256,
			Gain:       4,
			Confirm:    true,
		},
		Dictionary: DictionaryConfig{
			Profile: ProfileCalm,
		},
		Render: RenderConfig{
			FrameInterval: Duration(16 * time.Millisecond),
			Bars:          16,
		},
		Announce: AnnounceConfig{
			Mode: AnnounceNone,
			TTS: TTSConfig{
				APIKeyEnv: "OPENAI_API_KEY",
				BaseURL:   "https://api.openai.com/v1",
				Model:     "tts-1",
				Voice:     "onyx",
				Speed:     0.9,
				Timeout:   Duration(15 * time.Second),
				CacheDir:  "",
			},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.fixup(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) fixup() error {
	d := Default()

	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = d.Audio.SampleRate
	}
	if c.Audio.Window <= 0 {
		c.Audio.Window = d.Audio.Window
	}
	if c.Audio.Gain <= 0 {
		c.Audio.Gain = d.Audio.Gain
	}

	c.Dictionary.Profile = Profile(strings.ToLower(strings.TrimSpace(string(c.Dictionary.Profile))))
	switch c.Dictionary.Profile {
	case "":
		c.Dictionary.Profile = d.Dictionary.Profile
	case ProfileCalm, ProfileEager:
	default:
		return fmt.Errorf("dictionary.profile: unknown profile %q (want calm or eager)", c.Dictionary.Profile)
	}
	if c.Dictionary.Period.ToDuration() < 0 {
		c.Dictionary.Period = 0
	}
	if c.Dictionary.Threshold < 0 || c.Dictionary.Threshold >= 1 {
		return fmt.Errorf("dictionary.threshold: %v outside [0,1)", c.Dictionary.Threshold)
	}

	if c.Render.FrameInterval.ToDuration() <= 0 {
		c.Render.FrameInterval = d.Render.FrameInterval
	}
	if c.Render.Bars <= 0 {
		c.Render.Bars = d.Render.Bars
	}

	c.Announce.Mode = strings.ToLower(strings.TrimSpace(c.Announce.Mode))
	switch c.Announce.Mode {
	case "":
		c.Announce.Mode = AnnounceNone
	case AnnounceNone, AnnounceSamples, AnnounceTTS:
	default:
		return fmt.Errorf("announce.mode: unknown mode %q", c.Announce.Mode)
	}
	if c.Announce.TTS.APIKeyEnv == "" {
		c.Announce.TTS.APIKeyEnv = d.Announce.TTS.APIKeyEnv
	}
	if c.Announce.TTS.Timeout.ToDuration() <= 0 {
		c.Announce.TTS.Timeout = d.Announce.TTS.Timeout
	}

	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	return nil
}

// WordTiming resolves the profile and any explicit overrides into the
// word timer period and energy threshold.
func (c Config) WordTiming() (time.Duration, float64) {
	period, threshold := 1200*time.Millisecond, 0.45
	if c.Dictionary.Profile == ProfileEager {
		period, threshold = 800*time.Millisecond, 0.25
	}
	if p := c.Dictionary.Period.ToDuration(); p > 0 {
		period = p
	}
	if c.Dictionary.Threshold > 0 {
		threshold = c.Dictionary.Threshold
	}
	return period, threshold
}
