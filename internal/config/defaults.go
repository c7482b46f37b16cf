package config

const (
	defaultFramesDir            = "~/.cache/framectl/frames"
	defaultStateDir             = "~/.local/share/framectl"
	defaultLogDir               = "~/.local/share/framectl/logs"
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultDecodeTimeoutSeconds = 600
	defaultFrameExtension       = "png"
	defaultModelCacheSize       = 4
	defaultInpaintBlurSigma     = 7
	defaultMinFreeMiB           = 512
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			FramesDir: defaultFramesDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
		},
		Media: Media{
			FFmpegBinary:         defaultFFmpegBinary,
			FFprobeBinary:        defaultFFprobeBinary,
			DecodeTimeoutSeconds: defaultDecodeTimeoutSeconds,
			FrameExtension:       defaultFrameExtension,
		},
		Control: Control{
			ModelCacheSize:   defaultModelCacheSize,
			InpaintBlurSigma: defaultInpaintBlurSigma,
			MinFreeMiB:       defaultMinFreeMiB,
		},
		RunLog: RunLog{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
