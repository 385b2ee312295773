package models

import "strings"

const (
	AudioFormatWAV  = "wav"
	AudioFormatMP3  = "mp3"
	AudioFormatOpus = "opus"
)

// Transcription is the normalized output of a speech-to-text call.
type Transcription struct {
	Text     string
	Language string
}

// SynthesisRequest drives text-to-speech generation. Nil knobs are left to
// the provider's defaults.
type SynthesisRequest struct {
	Text     string
	Language string
	Voice    string

	Exaggeration    *float64
	CFGWeight       *float64
	Temperature     *float64
	Stability       *float64
	SimilarityBoost *float64
}

// Audio is a synthesized clip and its container format.
type Audio struct {
	Data   []byte
	Format string
}

// Voice describes a selectable synthesis voice.
type Voice struct {
	Name     string  `json:"name"`
	Label    string  `json:"label,omitempty"`
	Provider string  `json:"provider"`
	Language *string `json:"language,omitempty"`
}

// AudioContentType maps a container format to its MIME type.
func AudioContentType(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case AudioFormatMP3:
		return "audio/mpeg"
	case AudioFormatOpus:
		return "audio/opus"
	case "aac":
		return "audio/aac"
	case "flac":
		return "audio/flac"
	case "pcm":
		return "audio/pcm"
	default:
		return "audio/wav"
	}
}
