package control

// FrameRef points at one input frame and, for inpainting units, its mask.
type FrameRef struct {
	Image string `toml:"image"`
	Mask  string `toml:"mask,omitempty"`
}

// Unit is the configuration for one control modality. It is read-only during a
// generation call except for source backfill and frame truncation.
type Unit struct {
	Enabled bool   `toml:"enabled"`
	Module  string `toml:"module"`
	Model   string `toml:"model"`

	InputMode InputMode `toml:"input_mode"`
	// Image is the single input image. During batch acquisition it holds the
	// current frame.
	Image string `toml:"image"`
	// Mask accompanies Image for inpainting units.
	Mask string `toml:"mask"`
	// BatchDir is a directory of frames for batch mode. It is expanded into
	// Frames by the frame source resolver.
	BatchDir string     `toml:"batch_dir"`
	Frames   []FrameRef `toml:"frames"`

	ResizeMode    ResizeMode  `toml:"resize_mode"`
	ControlMode   ControlMode `toml:"control_mode"`
	Weight        float64     `toml:"weight"`
	GuidanceStart float64     `toml:"guidance_start"`
	GuidanceEnd   float64     `toml:"guidance_end"`

	PixelPerfect bool    `toml:"pixel_perfect"`
	ProcessorRes int     `toml:"processor_res"`
	ThresholdA   float64 `toml:"threshold_a"`
	ThresholdB   float64 `toml:"threshold_b"`
	LowVRAM      bool    `toml:"low_vram"`
}

// IsBatch reports whether the unit consumes a frame list.
func (u *Unit) IsBatch() bool {
	return u != nil && u.InputMode == InputBatch
}

// HasSource reports whether the unit already carries an explicit input.
func (u *Unit) HasSource() bool {
	if u == nil {
		return false
	}
	if u.IsBatch() {
		return len(u.Frames) > 0 || u.BatchDir != ""
	}
	return u.Image != ""
}

// Truncate trims the frame list to at most n entries.
func (u *Unit) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if len(u.Frames) > n {
		u.Frames = u.Frames[:n:n]
	}
}

// Normalize clamps weights and guidance fractions into their legal ranges. An
// end of zero is kept: the unit guides no steps.
func (u *Unit) Normalize() {
	if u.Weight < 0 {
		u.Weight = 0
	}
	u.GuidanceStart = clamp01(u.GuidanceStart)
	u.GuidanceEnd = clamp01(u.GuidanceEnd)
	if u.GuidanceStart > u.GuidanceEnd {
		u.GuidanceStart = u.GuidanceEnd
	}
	if u.ProcessorRes <= 0 {
		u.ProcessorRes = 512
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// VideoParams holds the video-wide settings attached to a generation call.
type VideoParams struct {
	// VideoSource is a video file decoded into frames for units without input.
	VideoSource string `toml:"video_source"`
	// VideoPath is a frame directory used when no video file is given.
	VideoPath   string `toml:"video_path"`
	VideoLength int    `toml:"video_length"`
	// Default forces video length and batch size to the reconciled frame count.
	Default bool `toml:"video_default"`
}
