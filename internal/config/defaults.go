package config

const (
	defaultStagingDir             = "~/.local/share/reconform/staging"
	defaultLogDir                 = "~/.local/share/reconform/logs"
	defaultDatabaseName           = "tracking.db"
	defaultMaxBitrate             = 5_000_000
	defaultMaxWidth               = 1920
	defaultMaxHeight              = 1080
	defaultVideoCodec             = "h264"
	defaultVideoProfile           = "Main"
	defaultAudioCodec             = "aac"
	defaultMaxChannels            = 2
	defaultContainer              = "mkv"
	defaultEncoderMode            = ModeTwoPassHW
	defaultPreset                 = "slow"
	defaultGlobalQuality          = 22
	defaultLookAheadDepth         = 100
	defaultKeyframeGap            = 120
	defaultVAAPIDevice            = "/dev/dri/renderD128"
	defaultTonemapFallbackPattern = "No mastering display metadata"
	defaultCRF                    = 23
	defaultAudioBitrate           = "192k"
	defaultFatalExitAbove         = 10
	defaultSubtitleMode           = SubtitlesExtract
	defaultRemotePort             = 22
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

func defaultExtensions() []string {
	return []string{"rmvb", "mkv", "avi", "mov", "wmv", "m4v", "mp4"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Policy: Policy{
			MaxBitrate:   defaultMaxBitrate,
			MaxWidth:     defaultMaxWidth,
			MaxHeight:    defaultMaxHeight,
			VideoCodec:   defaultVideoCodec,
			VideoProfile: defaultVideoProfile,
			AudioCodec:   defaultAudioCodec,
			MaxChannels:  defaultMaxChannels,
			Extensions:   defaultExtensions(),
			Container:    defaultContainer,
		},
		Encoder: Encoder{
			Mode:                   defaultEncoderMode,
			Preset:                 defaultPreset,
			GlobalQuality:          defaultGlobalQuality,
			LookAheadDepth:         defaultLookAheadDepth,
			KeyframeGap:            defaultKeyframeGap,
			VAAPIDevice:            defaultVAAPIDevice,
			TonemapFallbackPattern: defaultTonemapFallbackPattern,
			CRF:                    defaultCRF,
			AudioBitrate:           defaultAudioBitrate,
		},
		Runner: Runner{
			FatalExitAbove: defaultFatalExitAbove,
		},
		Behavior: Behavior{
			DeleteOriginals: true,
			SubtitleMode:    defaultSubtitleMode,
		},
		Remote: Remote{
			Port: defaultRemotePort,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
