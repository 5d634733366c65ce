// Package config resolves process configuration from INTERVOX_*
// environment variables with sane defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// DefaultLiveModel is the native-audio model driving the streaming
	// interview session.
	DefaultLiveModel = "gemini-2.5-flash-native-audio-preview-09-2025"
	// DefaultTextModel runs the profile analysis and report calls.
	DefaultTextModel = "gemini-2.5-flash"
	// DefaultVoice is the interviewer's prebuilt voice.
	DefaultVoice = "Kore"
)

type Config struct {
	// APIKey authenticates against the Gemini API. Absence is not
	// validated here; it surfaces as an authentication failure at the
	// first network call.
	APIKey string

	LiveModel string
	TextModel string
	Voice     string

	// InputDevice selects the Pulse microphone by id or description
	// substring. Empty means the default source.
	InputDevice string

	// Addr is the bridge listen address.
	Addr string

	ShutdownTimeout time.Duration
}

// Load reads the environment.
func Load() (Config, error) {
	cfg := Config{
		APIKey:          firstEnv("INTERVOX_API_KEY", "GEMINI_API_KEY"),
		LiveModel:       envOr("INTERVOX_LIVE_MODEL", DefaultLiveModel),
		TextModel:       envOr("INTERVOX_TEXT_MODEL", DefaultTextModel),
		Voice:           envOr("INTERVOX_VOICE", DefaultVoice),
		InputDevice:     envOr("INTERVOX_INPUT_DEVICE", ""),
		Addr:            envOr("INTERVOX_BRIDGE_ADDR", ":8089"),
		ShutdownTimeout: envDurationOr("INTERVOX_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if cfg.LiveModel == "" || cfg.TextModel == "" {
		return Config{}, fmt.Errorf("INTERVOX_LIVE_MODEL and INTERVOX_TEXT_MODEL must not be blank")
	}
	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// firstEnv returns the first non-empty value among keys.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
