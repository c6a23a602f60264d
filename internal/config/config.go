// internal/config/config.go
//
// This package handles configuration and the .walkthrough directory structure.
// Every project that plays walkthroughs gets a .walkthrough/ folder in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// WalkthroughDir is the name of the directory we create in each project
	WalkthroughDir = ".walkthrough"

	defaultMode       = "manual"
	defaultFallbackMS = 4000
)

const defaultProjectConfigYAML = `# walkthrough project configuration
version: 1

# Playback defaults. mode is manual or timed; fallback_ms applies to steps
# without duration_ms.
playback:
  mode: manual
  fallback_ms: 4000
  autoplay: false

# Extra directories scanned for *.yaml, *.yml, *.json and *.go scenario files.
# The bundled scenarios are always available.
scenarios:
  dirs:
    - .walkthrough/scenarios

# Narration plays <audio_dir>/scene-<step-id>.mp3 with audio_command, or reads
# the step text with speech_command when no file exists.
narration:
  enabled: false
  audio_dir: .walkthrough/audio
  audio_command: mpg123 -q
  speech_command: say

# Local HTTP bridge for external narration processes and remote control.
event_bridge:
  enabled: false
  host: 127.0.0.1
  port: 8765
`

// PlaybackConfig captures player defaults.
type PlaybackConfig struct {
	Mode       string `yaml:"mode"`
	FallbackMS int    `yaml:"fallback_ms"`
	Autoplay   bool   `yaml:"autoplay"`
}

// ScenarioConfig lists scenario directories.
type ScenarioConfig struct {
	Dirs []string `yaml:"dirs,omitempty"`
}

// NarrationConfig configures the narration driver.
type NarrationConfig struct {
	Enabled       bool   `yaml:"enabled"`
	AudioDir      string `yaml:"audio_dir,omitempty"`
	AudioCommand  string `yaml:"audio_command,omitempty"`
	SpeechCommand string `yaml:"speech_command,omitempty"`
}

// EventBridgeConfig is the raw bridge section; Enabled is a pointer so an
// absent key can be told apart from false.
type EventBridgeConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// ProjectConfig models .walkthrough/config.yaml.
type ProjectConfig struct {
	Version     int               `yaml:"version"`
	Playback    PlaybackConfig    `yaml:"playback"`
	Scenarios   ScenarioConfig    `yaml:"scenarios"`
	Narration   NarrationConfig   `yaml:"narration"`
	EventBridge EventBridgeConfig `yaml:"event_bridge"`
}

// Config holds the runtime configuration.
type Config struct {
	// ProjectDir is the directory where the user ran `walkthrough` from
	ProjectDir string

	// WalkthroughProjectDir is ProjectDir/.walkthrough
	WalkthroughProjectDir string

	Project ProjectConfig
}

// InitWalkthroughDir creates the .walkthrough directory structure in the given
// project directory and writes a commented config.yaml on first run.
//
// Structure created:
// .walkthrough/
// ├── logs/        <- walkthrough.log and journey.log
// ├── scenarios/   <- project scenario files
// └── audio/       <- scene-<step-id>.mp3 narration tracks
func InitWalkthroughDir(projectDir string) error {
	root := filepath.Join(projectDir, WalkthroughDir)
	dirs := []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "scenarios"),
		filepath.Join(root, "audio"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(root, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings
// and environment overrides.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:            projectDir,
		WalkthroughProjectDir: filepath.Join(projectDir, WalkthroughDir),
		Project:               defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	if err := cfg.Project.applyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.WalkthroughProjectDir, "logs")
}

// JournalPath is the session journal written by the logbook.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LogsDir(), "journey.log")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.WalkthroughProjectDir, "config.yaml")
}

// ScenarioDirs returns the configured scenario directories as absolute paths.
func (c *Config) ScenarioDirs() []string {
	return append([]string(nil), c.Project.Scenarios.Dirs...)
}

// AudioDir returns the narration audio directory.
func (c *Config) AudioDir() string {
	return c.Project.Narration.AudioDir
}

// PlaybackMode returns "manual" or "timed".
func (c *Config) PlaybackMode() string {
	return c.Project.Playback.Mode
}

// FallbackDuration is used for timed steps without duration_ms.
func (c *Config) FallbackDuration() time.Duration {
	return time.Duration(c.Project.Playback.FallbackMS) * time.Millisecond
}

// SetPlaybackMode updates the default mode and persists it.
func (c *Config) SetPlaybackMode(mode string) error {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if !validMode(mode) {
		return fmt.Errorf("config: playback mode must be manual or timed, got %q", mode)
	}
	c.Project.Playback.Mode = mode
	return c.saveProjectConfig()
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.Project.normalize(c.ProjectDir)
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	parsed.Scenarios.Dirs = nil
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.ProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Playback: PlaybackConfig{
			Mode:       defaultMode,
			FallbackMS: defaultFallbackMS,
		},
		Scenarios: ScenarioConfig{
			Dirs: []string{filepath.Join(WalkthroughDir, "scenarios")},
		},
		Narration: NarrationConfig{
			AudioDir: filepath.Join(WalkthroughDir, "audio"),
		},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.Playback.Mode) == "" {
		pc.Playback.Mode = defaultMode
	}
	if pc.Playback.FallbackMS == 0 {
		pc.Playback.FallbackMS = defaultFallbackMS
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Playback.Mode = strings.ToLower(strings.TrimSpace(pc.Playback.Mode))
	dirs := make([]string, 0, len(pc.Scenarios.Dirs))
	for _, dir := range pc.Scenarios.Dirs {
		if resolved := resolvePath(base, dir); resolved != "" && !contains(dirs, resolved) {
			dirs = append(dirs, resolved)
		}
	}
	pc.Scenarios.Dirs = dirs
	pc.Narration.AudioDir = resolvePath(base, pc.Narration.AudioDir)
	pc.Narration.AudioCommand = strings.TrimSpace(pc.Narration.AudioCommand)
	pc.Narration.SpeechCommand = strings.TrimSpace(pc.Narration.SpeechCommand)
	pc.EventBridge.Host = strings.TrimSpace(pc.EventBridge.Host)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if !validMode(pc.Playback.Mode) {
		return fmt.Errorf("playback.mode must be 'manual' or 'timed'")
	}
	if pc.Playback.FallbackMS < 0 {
		return fmt.Errorf("playback.fallback_ms must be >= 0")
	}
	if pc.EventBridge.Port < 0 || pc.EventBridge.Port > 65535 {
		return fmt.Errorf("event_bridge.port must be between 1 and 65535")
	}
	return nil
}

func (pc *ProjectConfig) applyEnvOverrides() error {
	if mode := strings.TrimSpace(os.Getenv("WALKTHROUGH_MODE")); mode != "" {
		mode = strings.ToLower(mode)
		if !validMode(mode) {
			return fmt.Errorf("WALKTHROUGH_MODE must be manual or timed, got %q", mode)
		}
		pc.Playback.Mode = mode
	}
	if value := strings.TrimSpace(os.Getenv("WALKTHROUGH_FALLBACK_MS")); value != "" {
		ms, err := strconv.Atoi(value)
		if err != nil || ms <= 0 {
			return fmt.Errorf("WALKTHROUGH_FALLBACK_MS must be a positive integer, got %q", value)
		}
		pc.Playback.FallbackMS = ms
	}
	return nil
}

func validMode(mode string) bool {
	return mode == "manual" || mode == "timed"
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.Project.applyDefaults()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.WalkthroughProjectDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure walkthrough dir: %w", err)
	}
	data, err := yaml.Marshal(c.Project)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
