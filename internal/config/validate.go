package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePolicy(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateRunner(); err != nil {
		return err
	}
	if err := c.validateBehavior(); err != nil {
		return err
	}
	return c.validateRemote()
}

func (c *Config) validatePolicy() error {
	if c.Policy.MaxBitrate <= 0 {
		return errors.New("policy.max_bitrate must be positive")
	}
	if c.Policy.MaxWidth <= 0 || c.Policy.MaxHeight <= 0 {
		return errors.New("policy.max_width and policy.max_height must be positive")
	}
	if c.Policy.VideoCodec == "" {
		return errors.New("policy.video_codec must be set")
	}
	if c.Policy.AudioCodec == "" {
		return errors.New("policy.audio_codec must be set")
	}
	if c.Policy.MaxChannels <= 0 {
		return errors.New("policy.max_channels must be positive")
	}
	if len(c.Policy.Extensions) == 0 {
		return errors.New("policy.extensions must list at least one extension")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	switch c.Encoder.Mode {
	case ModeTwoPassHW, ModeSinglePass:
	default:
		return fmt.Errorf("encoder.mode: unsupported value %q (expected %q or %q)", c.Encoder.Mode, ModeTwoPassHW, ModeSinglePass)
	}
	if c.Encoder.GlobalQuality <= 0 {
		return errors.New("encoder.global_quality must be positive")
	}
	if c.Encoder.KeyframeGap <= 0 {
		return errors.New("encoder.keyframe_gap must be positive")
	}
	if c.Encoder.CRF < 0 || c.Encoder.CRF > 51 {
		return errors.New("encoder.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validateRunner() error {
	if c.Runner.FatalExitAbove < 1 {
		return errors.New("runner.fatal_exit_above must be at least 1")
	}
	return nil
}

func (c *Config) validateBehavior() error {
	switch c.Behavior.SubtitleMode {
	case SubtitlesExtract, SubtitlesMux:
		return nil
	default:
		return fmt.Errorf("behavior.subtitle_mode: unsupported value %q (expected %q or %q)", c.Behavior.SubtitleMode, SubtitlesExtract, SubtitlesMux)
	}
}

func (c *Config) validateRemote() error {
	if !c.Remote.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Remote.Host) == "" {
		return errors.New("remote.host must be set when remote.enabled is true")
	}
	if strings.TrimSpace(c.Remote.User) == "" {
		return errors.New("remote.user must be set when remote.enabled is true")
	}
	if strings.TrimSpace(c.Remote.Dir) == "" {
		return errors.New("remote.dir must be set when remote.enabled is true")
	}
	if c.Remote.Port <= 0 || c.Remote.Port > 65535 {
		return errors.New("remote.port must be a valid TCP port")
	}
	return nil
}
