package history

import (
	"github.com/google/uuid"

	"github.com/ncecere/open_voice_gateway/internal/models"
)

const (
	DirectionSource = "source"
	DirectionTarget = "target"
)

// Job is one pipeline result waiting to be written to a session.
type Job struct {
	SessionID      uuid.UUID
	Direction      string
	OriginalText   string
	TranslatedText string
	OriginalLang   string
	TranslatedLang string
	// Audio is kept as opus only when AudioRequested is set and the
	// session has audio enabled.
	Audio          []byte
	AudioRequested bool
	Timings        models.PipelineTimings
	ModelUsed      string
}
