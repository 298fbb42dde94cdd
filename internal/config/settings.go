package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings are the operator-owned values the poll engine reads.
type Settings struct {
	PollInterval time.Duration
	UserAgent    string
}

// pollIntervals maps the named schedule options to their durations. Only
// these durations are accepted.
var pollIntervals = map[string]time.Duration{
	"every_minute":    60 * time.Second,
	"every_2_minutes": 120 * time.Second,
	"every_5_minutes": 300 * time.Second,
}

// ParsePollInterval accepts a named option ("every_5_minutes") or a duration
// ("300s", "5m") equal to one of the named options.
func ParsePollInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, ok := pollIntervals[strings.ToLower(s)]; ok {
		return d, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("poll interval %q: %w", s, err)
	}
	for _, allowed := range pollIntervals {
		if d == allowed {
			return d, nil
		}
	}
	return 0, fmt.Errorf("poll interval %s is not one of 60s, 120s, 300s", d)
}

type settingsFile struct {
	PollInterval string `yaml:"poll_interval"`
	UserAgent    string `yaml:"user_agent"`
}

// LoadSettingsFile reads operator settings from a YAML file. Keys absent from
// the file keep the values in base.
func LoadSettingsFile(path string, base Settings) (Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}
	var f settingsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Settings{}, fmt.Errorf("parse settings file: %w", err)
	}

	out := base
	if f.PollInterval != "" {
		d, err := ParsePollInterval(f.PollInterval)
		if err != nil {
			return Settings{}, errors.Join(errors.New("invalid poll_interval in settings file"), err)
		}
		out.PollInterval = d
	}
	if ua := strings.TrimSpace(f.UserAgent); ua != "" {
		out.UserAgent = ua
	}
	return out, nil
}
