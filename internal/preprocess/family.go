package preprocess

import "strings"

// Family groups preprocessors that share pipeline behavior.
type Family int

const (
	FamilyGeneric Family = iota
	// FamilyReference feeds the input image to attention injection; no model.
	FamilyReference
	// FamilyRevision produces image embeddings for ReVision; no model.
	FamilyRevision
	// FamilyInpaint pairs frames with masks but does not blend afterwards.
	FamilyInpaint
	// FamilyInpaintOnly blends generated frames back over the reference.
	FamilyInpaintOnly
	// FamilyInpaintLama blends like FamilyInpaintOnly and also encodes the
	// hint into a latent noise modifier. Outer-fit inputs are fitted to the
	// high-res canvas before preprocessing.
	FamilyInpaintLama
	FamilyRecolorLuminance
	FamilyRecolorIntensity
	// FamilyFaceID yields a raw embedding list for IP-Adapter face models.
	FamilyFaceID
)

var familyNames = [...]string{
	FamilyGeneric:          "generic",
	FamilyReference:        "reference",
	FamilyRevision:         "revision",
	FamilyInpaint:          "inpaint",
	FamilyInpaintOnly:      "inpaint_only",
	FamilyInpaintLama:      "inpaint_lama",
	FamilyRecolorLuminance: "recolor_luminance",
	FamilyRecolorIntensity: "recolor_intensity",
	FamilyFaceID:           "face_id",
}

func (f Family) String() string {
	if f < 0 || int(f) >= len(familyNames) {
		return "unknown"
	}
	return familyNames[f]
}

// ModelFree reports whether units of this family skip model loading.
func (f Family) ModelFree() bool {
	return f == FamilyReference || f == FamilyRevision
}

// PairsMasks reports whether batch frames are read as image/mask pairs and
// whether the alpha channel carries the mask through the detect map.
func (f Family) PairsMasks() bool {
	return f == FamilyInpaint || f == FamilyInpaintOnly || f == FamilyInpaintLama
}

// BlendsInpaint reports whether generated frames are blended over the reference.
func (f Family) BlendsInpaint() bool {
	return f == FamilyInpaintOnly || f == FamilyInpaintLama
}

// EncodesLatent reports whether the base hint is encoded into a noise modifier.
func (f Family) EncodesLatent() bool { return f == FamilyInpaintLama }

// Recolor reports whether a recolor post-processor applies.
func (f Family) Recolor() bool {
	return f == FamilyRecolorLuminance || f == FamilyRecolorIntensity
}

// FamilyOf classifies a preprocessor by name. Registry calls it once per
// registration; callers should use Registry.Family afterwards.
func FamilyOf(name string) Family {
	name = strings.ToLower(name)
	switch {
	case strings.Contains(name, "reference"):
		return FamilyReference
	case strings.Contains(name, "revision"):
		return FamilyRevision
	case strings.Contains(name, "inpaint") && strings.Contains(name, "+lama"):
		return FamilyInpaintLama
	case strings.Contains(name, "inpaint_only"):
		return FamilyInpaintOnly
	case strings.Contains(name, "inpaint"):
		return FamilyInpaint
	case strings.Contains(name, "recolor") && strings.Contains(name, "luminance"):
		return FamilyRecolorLuminance
	case strings.Contains(name, "recolor") && strings.Contains(name, "intensity"):
		return FamilyRecolorIntensity
	case strings.Contains(name, "face_id"):
		return FamilyFaceID
	default:
		return FamilyGeneric
	}
}
