package vertex

import "strings"

type part struct {
	Text string `json:"text,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

// Text joins the text parts with newlines.
func (c content) Text() string {
	var builder strings.Builder
	for i, p := range c.Parts {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(p.Text)
	}
	return builder.String()
}

type generationConfig struct {
	MaxOutputTokens *int32   `json:"maxOutputTokens,omitempty"`
	Temperature     *float32 `json:"temperature,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
}

func (r generateResponse) FirstCandidate() *candidate {
	if len(r.Candidates) == 0 {
		return nil
	}
	return &r.Candidates[0]
}
