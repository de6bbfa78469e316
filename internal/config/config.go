package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	Watched      []string `toml:"watched"`
	Exclude      []string `toml:"exclude"`
	StagingDir   string   `toml:"staging_dir"`
	LogDir       string   `toml:"log_dir"`
	DatabasePath string   `toml:"database_path"`
}

// Policy contains the compliance thresholds a file must meet to be
// left untouched.
type Policy struct {
	MaxBitrate   int64    `toml:"max_bitrate"`
	MaxWidth     int      `toml:"max_width"`
	MaxHeight    int      `toml:"max_height"`
	VideoCodec   string   `toml:"video_codec"`
	VideoProfile string   `toml:"video_profile"`
	AudioCodec   string   `toml:"audio_codec"`
	MaxChannels  int      `toml:"max_channels"`
	Extensions   []string `toml:"extensions"`
	Container    string   `toml:"container"`
}

// Encoder contains fixed encode parameters. These are policy
// constants, not per-file decisions.
type Encoder struct {
	Mode                   string `toml:"mode"`
	Preset                 string `toml:"preset"`
	GlobalQuality          int    `toml:"global_quality"`
	LookAheadDepth         int    `toml:"look_ahead_depth"`
	KeyframeGap            int    `toml:"keyframe_gap"`
	VAAPIDevice            string `toml:"vaapi_device"`
	TonemapFallbackPattern string `toml:"tonemap_fallback_pattern"`
	CRF                    int    `toml:"crf"`
	AudioBitrate           string `toml:"audio_bitrate"`
}

// Runner contains external-process classification settings.
type Runner struct {
	// FatalExitAbove is the highest exit status still treated as a
	// per-file failure. Anything above it, or any negative status,
	// aborts the whole run.
	FatalExitAbove int `toml:"fatal_exit_above"`
}

// Behavior contains run behavior switches.
type Behavior struct {
	DeleteOriginals bool   `toml:"delete_originals"`
	SubtitleMode    string `toml:"subtitle_mode"`
}

// Remote contains settings for the SSH encode backend.
type Remote struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	KeyFile  string `toml:"key_file"`
	Password string `toml:"password"`
	Dir      string `toml:"dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Encoder modes.
const (
	ModeTwoPassHW  = "two_pass_hw"
	ModeSinglePass = "single_pass"
)

// Subtitle handling modes.
const (
	SubtitlesExtract = "extract"
	SubtitlesMux     = "mux"
)

// Config encapsulates all configuration values for reconform.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Policy   Policy   `toml:"policy"`
	Encoder  Encoder  `toml:"encoder"`
	Runner   Runner   `toml:"runner"`
	Behavior Behavior `toml:"behavior"`
	Remote   Remote   `toml:"remote"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default
// configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reconform/config.toml")
}

// Load locates, parses, and validates a configuration file. The
// returned config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reconform.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.Paths.DatabasePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the encoder executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the media inspection executable name.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// ExtractSubtitles reports whether text subtitle tracks should be
// extracted to sidecar files rather than copied as muxed streams.
func (c *Config) ExtractSubtitles() bool {
	return c.Behavior.SubtitleMode == SubtitlesExtract
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
