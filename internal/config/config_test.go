package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewConfigDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Project.Version)
	}
	if c.PlaybackMode() != "manual" {
		t.Fatalf("expected manual mode, got %q", c.PlaybackMode())
	}
	if c.FallbackDuration() != 4*time.Second {
		t.Fatalf("fallback = %s, want 4s", c.FallbackDuration())
	}
	want := filepath.Join(projectDir, WalkthroughDir, "scenarios")
	if dirs := c.ScenarioDirs(); len(dirs) != 1 || dirs[0] != want {
		t.Fatalf("scenario dirs = %v, want [%s]", dirs, want)
	}
}

func TestInitWalkthroughDirWritesDefaults(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitWalkthroughDir(projectDir); err != nil {
		t.Fatalf("InitWalkthroughDir: %v", err)
	}
	for _, sub := range []string{"logs", "scenarios", "audio"} {
		if info, err := os.Stat(filepath.Join(projectDir, WalkthroughDir, sub)); err != nil || !info.IsDir() {
			t.Fatalf("expected %s dir, err=%v", sub, err)
		}
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig on generated config: %v", err)
	}
	if c.Project.Narration.AudioCommand != "mpg123 -q" {
		t.Fatalf("audio command = %q", c.Project.Narration.AudioCommand)
	}
	if c.Project.EventBridge.Enabled == nil || *c.Project.EventBridge.Enabled {
		t.Fatalf("expected bridge explicitly disabled")
	}
}

func TestLoadProjectConfigParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	root := filepath.Join(projectDir, WalkthroughDir)
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
playback:
  mode: Timed
  fallback_ms: 2500
  autoplay: true
scenarios:
  dirs:
    - demos
    - /opt/shared/scenarios
narration:
  enabled: true
  audio_dir: voice
  speech_command: espeak
event_bridge:
  enabled: true
  port: 9000
`)
	if err := os.WriteFile(filepath.Join(root, "config.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if c.PlaybackMode() != "timed" {
		t.Fatalf("mode = %q, want timed", c.PlaybackMode())
	}
	if c.FallbackDuration() != 2500*time.Millisecond {
		t.Fatalf("fallback = %s", c.FallbackDuration())
	}
	if !c.Project.Playback.Autoplay {
		t.Fatalf("expected autoplay")
	}
	dirs := c.ScenarioDirs()
	if len(dirs) != 2 || dirs[0] != filepath.Join(projectDir, "demos") || dirs[1] != "/opt/shared/scenarios" {
		t.Fatalf("unexpected dirs %v", dirs)
	}
	if c.AudioDir() != filepath.Join(projectDir, "voice") {
		t.Fatalf("audio dir = %s", c.AudioDir())
	}
	if c.Project.EventBridge.Port != 9000 {
		t.Fatalf("bridge port = %d", c.Project.EventBridge.Port)
	}
}

func TestLoadProjectConfigValidation(t *testing.T) {
	projectDir := t.TempDir()
	root := filepath.Join(projectDir, WalkthroughDir)
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}
	configYAML := strings.TrimSpace(`
version: 1
playback:
  mode: looping
`)
	if err := os.WriteFile(filepath.Join(root, "config.yaml"), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewConfig(projectDir); err == nil {
		t.Fatalf("expected validation error but got none")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WALKTHROUGH_MODE", "timed")
	t.Setenv("WALKTHROUGH_FALLBACK_MS", "1500")
	c, err := NewConfig(t.TempDir())
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if c.PlaybackMode() != "timed" {
		t.Fatalf("mode = %q, want timed", c.PlaybackMode())
	}
	if c.FallbackDuration() != 1500*time.Millisecond {
		t.Fatalf("fallback = %s, want 1.5s", c.FallbackDuration())
	}

	t.Setenv("WALKTHROUGH_FALLBACK_MS", "soon")
	if _, err := NewConfig(t.TempDir()); err == nil {
		t.Fatalf("expected error for bad WALKTHROUGH_FALLBACK_MS")
	}
}

func TestSetPlaybackModePersists(t *testing.T) {
	projectDir := t.TempDir()
	c, err := NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetPlaybackMode("timed"); err != nil {
		t.Fatalf("SetPlaybackMode: %v", err)
	}
	reloaded, err := NewConfig(projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.PlaybackMode() != "timed" {
		t.Fatalf("persisted mode = %q", reloaded.PlaybackMode())
	}
	if err := c.SetPlaybackMode("shuffle"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
