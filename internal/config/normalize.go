package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePolicy()
	c.normalizeEncoder()
	c.normalizeBehavior()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DatabasePath) == "" {
		c.Paths.DatabasePath = filepath.Join(c.Paths.LogDir, defaultDatabaseName)
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}

	watched := make([]string, 0, len(c.Paths.Watched))
	for _, dir := range c.Paths.Watched {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		expanded, err := expandPath(dir)
		if err != nil {
			return fmt.Errorf("paths.watched: %w", err)
		}
		watched = append(watched, expanded)
	}
	c.Paths.Watched = watched

	exclude := make([]string, 0, len(c.Paths.Exclude))
	for _, name := range c.Paths.Exclude {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			exclude = append(exclude, trimmed)
		}
	}
	c.Paths.Exclude = exclude
	return nil
}

func (c *Config) normalizePolicy() {
	exts := make([]string, 0, len(c.Policy.Extensions))
	for _, ext := range c.Policy.Extensions {
		cleaned := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if cleaned != "" {
			exts = append(exts, cleaned)
		}
	}
	c.Policy.Extensions = exts
	c.Policy.VideoCodec = strings.TrimSpace(c.Policy.VideoCodec)
	c.Policy.VideoProfile = strings.TrimSpace(c.Policy.VideoProfile)
	c.Policy.AudioCodec = strings.TrimSpace(c.Policy.AudioCodec)
	c.Policy.Container = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Policy.Container), "."))
	if c.Policy.Container == "" {
		c.Policy.Container = defaultContainer
	}
}

func (c *Config) normalizeEncoder() {
	c.Encoder.Mode = strings.ToLower(strings.TrimSpace(c.Encoder.Mode))
	if c.Encoder.Mode == "" {
		c.Encoder.Mode = defaultEncoderMode
	}
	if strings.TrimSpace(c.Encoder.VAAPIDevice) == "" {
		c.Encoder.VAAPIDevice = defaultVAAPIDevice
	}
	if strings.TrimSpace(c.Encoder.TonemapFallbackPattern) == "" {
		c.Encoder.TonemapFallbackPattern = defaultTonemapFallbackPattern
	}
	if strings.TrimSpace(c.Encoder.AudioBitrate) == "" {
		c.Encoder.AudioBitrate = defaultAudioBitrate
	}
}

func (c *Config) normalizeBehavior() {
	c.Behavior.SubtitleMode = strings.ToLower(strings.TrimSpace(c.Behavior.SubtitleMode))
	if c.Behavior.SubtitleMode == "" {
		c.Behavior.SubtitleMode = defaultSubtitleMode
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
