package domain

import "time"

// ArtifactKind identifies one of the studio's generated output types.
// The set is closed: the remote application offers exactly these four.
type ArtifactKind string

const (
	KindDeck        ArtifactKind = "deck"
	KindAudio       ArtifactKind = "audio"
	KindVideo       ArtifactKind = "video"
	KindInfographic ArtifactKind = "infographic"
)

// Kinds lists every artifact kind in a stable order.
func Kinds() []ArtifactKind {
	return []ArtifactKind{KindDeck, KindAudio, KindVideo, KindInfographic}
}

// Valid reports whether k is one of the known kinds.
func (k ArtifactKind) Valid() bool {
	switch k {
	case KindDeck, KindAudio, KindVideo, KindInfographic:
		return true
	}
	return false
}

// DefaultExtension is used when the remote app suggests a filename
// without a usable extension, which it is known to do.
func (k ArtifactKind) DefaultExtension() string {
	switch k {
	case KindDeck:
		return ".pdf"
	case KindAudio:
		return ".m4a"
	case KindVideo:
		return ".mp4"
	case KindInfographic:
		return ".png"
	}
	return ".bin"
}

// DefaultReadyTimeout is the per-kind ceiling for waiting on generation.
// Audio and video run through a media backend and take an order of
// magnitude longer than deck and infographic rendering.
func (k ArtifactKind) DefaultReadyTimeout() time.Duration {
	switch k {
	case KindAudio:
		return 25 * time.Minute
	case KindVideo:
		return 35 * time.Minute
	default:
		return 4 * time.Minute
	}
}

// DefaultPollInterval is the per-kind cadence for DOM polling while a
// generation is in flight.
func (k ArtifactKind) DefaultPollInterval() time.Duration {
	switch k {
	case KindAudio, KindVideo:
		return 10 * time.Second
	default:
		return 3 * time.Second
	}
}

func (k ArtifactKind) String() string { return string(k) }
