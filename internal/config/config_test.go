package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// isolate runs the test in an empty directory with no user config
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	if cfg.Audio.SampleRate != 44100 || cfg.Audio.BufferFrames != 2048 {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if len(cfg.Timeline.Tracks) != 4 || cfg.Timeline.Tracks[0] != "VOCALS" {
		t.Errorf("tracks = %v", cfg.Timeline.Tracks)
	}
	if cfg.Timeline.SnapSeconds != 0.1 || cfg.Timeline.MinDuration != 60 || cfg.Timeline.TailPadding != 5 || cfg.Timeline.SeekStep != 5 {
		t.Errorf("timeline = %+v", cfg.Timeline)
	}
	if cfg.Separation.Backend != "band" || cfg.Separation.Model != "htdemucs" {
		t.Errorf("separation = %+v", cfg.Separation)
	}
	if !cfg.Project.WatchStems || cfg.Project.LoadWorkers != 4 {
		t.Errorf("project = %+v", cfg.Project)
	}
	wantLog := filepath.Join(dir, "data", "stemstudio", "stemstudio.log")
	if cfg.Logging.File != wantLog {
		t.Errorf("log file = %q, want %q", cfg.Logging.File, wantLog)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "studio.yaml")
	yaml := `audio:
  sample_rate: 48000
timeline:
  tracks: [LEAD, RHYTHM]
separation:
  backend: command
  args: ["--mp3"]
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("sample rate = %d, want 48000", cfg.Audio.SampleRate)
	}
	if len(cfg.Timeline.Tracks) != 2 || cfg.Timeline.Tracks[1] != "RHYTHM" {
		t.Errorf("tracks = %v", cfg.Timeline.Tracks)
	}
	if cfg.Separation.Backend != "command" || len(cfg.Separation.Args) != 1 {
		t.Errorf("separation = %+v", cfg.Separation)
	}
	// untouched keys keep their defaults
	if cfg.Audio.BufferFrames != 2048 {
		t.Errorf("buffer frames = %d, want default", cfg.Audio.BufferFrames)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	if _, err := Load(New(), "nope.yaml"); err == nil {
		t.Error("Load() with a missing explicit file should fail")
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("STEMSTUDIO_AUDIO_BUFFER_FRAMES", "1024")
	t.Setenv("STEMSTUDIO_LOGGING_LEVEL", "debug")

	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Audio.BufferFrames != 1024 {
		t.Errorf("buffer frames = %d, want 1024", cfg.Audio.BufferFrames)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Logging.Level)
	}
}

func TestDotEnv(t *testing.T) {
	dir := isolate(t)
	const key = "STEMSTUDIO_TIMELINE_SEEK_STEP"
	t.Cleanup(func() { os.Unsetenv(key) })

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=2.5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(New(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Timeline.SeekStep != 2.5 {
		t.Errorf("seek step = %v, want 2.5 from .env", cfg.Timeline.SeekStep)
	}
}

func TestWriteDefault(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	cfg, err := Load(New(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("written defaults should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero rate", func(c *Config) { c.Audio.SampleRate = 0 }, "audio.sample_rate"},
		{"zero buffer", func(c *Config) { c.Audio.BufferFrames = 0 }, "audio.buffer_frames"},
		{"quality", func(c *Config) { c.Audio.ResampleQuality = 0 }, "audio.resample_quality"},
		{"no tracks", func(c *Config) { c.Timeline.Tracks = nil }, "timeline.tracks"},
		{"negative snap", func(c *Config) { c.Timeline.SnapSeconds = -0.1 }, "timeline.snap_seconds"},
		{"zero snap ok", func(c *Config) { c.Timeline.SnapSeconds = 0 }, ""},
		{"seek step", func(c *Config) { c.Timeline.SeekStep = 0 }, "timeline.seek_step"},
		{"backend", func(c *Config) { c.Separation.Backend = "magic" }, "separation.backend"},
		{"command", func(c *Config) { c.Separation.Backend = "command"; c.Separation.Command = "" }, "separation.command"},
		{"workers", func(c *Config) { c.Project.LoadWorkers = 0 }, "project.load_workers"},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()

			if tt.field == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() error = %v, want ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if got := ConfigDir(); got != filepath.Join("/tmp/xdg", "stemstudio") {
		t.Errorf("ConfigDir() = %q", got)
	}
}
