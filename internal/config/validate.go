package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateControl(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMedia() error {
	if c.Media.DecodeTimeoutSeconds <= 0 {
		return errors.New("media.decode_timeout_seconds must be positive")
	}
	switch c.Media.FrameExtension {
	case "png", "jpg", "jpeg":
		return nil
	default:
		return fmt.Errorf("media.frame_extension: unsupported value %q (want png or jpg)", c.Media.FrameExtension)
	}
}

func (c *Config) validateControl() error {
	if c.Control.ModelCacheSize < 0 {
		return errors.New("control.model_cache_size must be positive")
	}
	if c.Control.InpaintBlurSigma < 1 {
		return errors.New("control.inpaint_blur_sigma must be at least 1")
	}
	if c.Control.MinFreeMiB < 0 {
		return errors.New("control.min_free_mib must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
