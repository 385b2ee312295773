package models

// PipelineTimings reports per-stage wall-clock milliseconds.
type PipelineTimings struct {
	STTMs       int64  `json:"stt_ms"`
	TranslateMs int64  `json:"translate_ms"`
	TTSMs       *int64 `json:"tts_ms"`
	TotalMs     int64  `json:"total_ms"`
}

// PipelineResponse is the JSON envelope returned by /v1/pipeline.
type PipelineResponse struct {
	Transcript  string          `json:"transcript"`
	SourceLang  string          `json:"source_lang"`
	Translation string          `json:"translation"`
	Audio       *string         `json:"audio"`
	AudioFormat string          `json:"audio_format,omitempty"`
	Timings     PipelineTimings `json:"timings"`
}

type TranscriptionResponse struct {
	Text string `json:"text"`
}

type SpeechRequest struct {
	Input        string   `json:"input"`
	Model        string   `json:"model"`
	Voice        string   `json:"voice"`
	Language     string   `json:"language"`
	Exaggeration *float64 `json:"exaggeration"`
	CFGWeight    *float64 `json:"cfg_weight"`
	Temperature  *float64 `json:"temperature"`
}

type TranslateBody struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
	Model  string `json:"model"`
}

type TranslateResponse struct {
	Text           string `json:"text"`
	DetectedSource string `json:"detected_source"`
	Model          string `json:"model"`
}

type ModelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

type ModelList struct {
	Object string        `json:"object"`
	Data   []ModelObject `json:"data"`
}

type ProviderHealth struct {
	Status    string `json:"status"`
	LatencyMs *int64 `json:"latency_ms,omitempty"`
}

type HealthResponse struct {
	Status    string                    `json:"status"`
	Version   string                    `json:"version"`
	Providers map[string]ProviderHealth `json:"providers"`
}

type VoicesResponse struct {
	Voices []Voice `json:"voices"`
}

type LanguagesResponse struct {
	Languages []string `json:"languages"`
}
