package deps

// EncoderRequirement describes the external encoder used for a target format
// when the external backend is selected. ok is false for unknown formats.
func EncoderRequirement(format string, optional bool) (Requirement, bool) {
	switch format {
	case "webp":
		return Requirement{
			Name:        "cwebp",
			Command:     "cwebp",
			Description: "WebP encoder for the external backend",
			Optional:    optional,
		}, true
	case "avif":
		return Requirement{
			Name:        "avifenc",
			Command:     "avifenc",
			Description: "AVIF encoder for the external backend",
			Optional:    optional,
		}, true
	default:
		return Requirement{}, false
	}
}
