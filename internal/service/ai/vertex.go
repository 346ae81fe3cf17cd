package ai

import "encoding/json"

// Request and response shapes for the Vertex AI generateContent endpoint.

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generation_config"`
	SafetySettings   []safetySetting  `json:"safety_settings,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts,omitempty"`
	Text  string `json:"text,omitempty"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens"`
	CandidateCount  int     `json:"candidate_count"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generateResponse struct {
	Candidates    []json.RawMessage `json:"candidates"`
	UsageMetadata *usageMetadata    `json:"usageMetadata,omitempty"`
}

type usageMetadata struct {
	ThoughtsTokenCount int `json:"thoughtsTokenCount"`
}

type candidate struct {
	Content      *content `json:"content,omitempty"`
	Text         string   `json:"text,omitempty"`
	FinishReason string   `json:"finishReason,omitempty"`
}

const (
	finishReasonSafety    = "SAFETY"
	finishReasonMaxTokens = "MAX_TOKENS"
)

var blockNone = []safetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
}

func newGenerateRequest(prompt, mimeType, encodedImage string, safety []safetySetting) generateRequest {
	return generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: prompt},
				{InlineData: &inlineData{MimeType: mimeType, Data: encodedImage}},
			},
		}},
		GenerationConfig: generationConfig{
			Temperature:     0.0,
			MaxOutputTokens: 2048,
			CandidateCount:  1,
		},
		SafetySettings: safety,
	}
}
