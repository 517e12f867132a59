package analytics

import (
	"regexp"
	"strings"
)

// Masking keeps paths aggregable without retaining identifiers: at most two
// leading segments survive, and anything that looks like an ID collapses to
// a placeholder.
const (
	maxMaskedSegments = 2
	maxSegmentLen     = 24
	maxMaskedLen      = 80
	truncationMarker  = "/*"
)

var (
	numericSegment = regexp.MustCompile(`^[0-9]+$`)
	hexSegment     = regexp.MustCompile(`^[0-9a-fA-F]{16,}$`)
	uuidSegment    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	digitRun       = regexp.MustCompile(`[0-9]+`)
	disallowedRune = regexp.MustCompile(`[^a-zA-Z0-9._{}-]`)
)

// MaskPath reduces a request path to a privacy-preserving shape. The result
// is stable under re-masking, so already-masked paths pass through intact.
func MaskPath(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "/"
	}

	segments := strings.Split(trimmed, "/")
	truncated := len(segments) > maxMaskedSegments
	if truncated {
		segments = segments[:maxMaskedSegments]
	}

	masked := make([]string, 0, len(segments))
	for _, seg := range segments {
		masked = append(masked, maskSegment(seg))
	}

	out := "/" + strings.Join(masked, "/")
	if truncated {
		out += truncationMarker
	}
	if len(out) > maxMaskedLen {
		out = out[:maxMaskedLen]
	}
	return out
}

func maskSegment(seg string) string {
	switch {
	case numericSegment.MatchString(seg):
		return "{n}"
	case uuidSegment.MatchString(seg):
		return "{uuid}"
	case hexSegment.MatchString(seg):
		return "{hash}"
	}

	seg = digitRun.ReplaceAllString(seg, "{n}")
	seg = disallowedRune.ReplaceAllString(seg, "")
	if len(seg) > maxSegmentLen {
		seg = seg[:maxSegmentLen]
	}
	if seg == "" {
		return "{seg}"
	}
	return seg
}
