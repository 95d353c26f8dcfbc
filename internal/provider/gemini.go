package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// safetyCategories are all set to BLOCK_NONE; subtitles routinely trip the
// default filters and a blocked reply costs a full round trip.
var safetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// Gemini calls the generateContent endpoint with an inline JPEG part.
type Gemini struct {
	base
}

// NewGemini creates a Gemini client.
func NewGemini(p Params, opts ...Option) *Gemini {
	if p.Name == "" {
		p.Name = "gemini"
	}
	return &Gemini{base: newBase(p, opts)}
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiSafety struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
	SafetySettings   []geminiSafety  `json:"safetySettings"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func buildGeminiRequest(prompt string, jpeg []byte, p Params) geminiRequest {
	safety := make([]geminiSafety, len(safetyCategories))
	for i, c := range safetyCategories {
		safety[i] = geminiSafety{Category: c, Threshold: "BLOCK_NONE"}
	}
	return geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: prompt},
				{InlineData: &geminiInlineData{MimeType: "image/jpeg", Data: base64.StdEncoding.EncodeToString(jpeg)}},
			},
		}},
		GenerationConfig: geminiGenConfig{
			Temperature:     p.Generation.Temperature,
			TopP:            p.Generation.TopP,
			MaxOutputTokens: p.Generation.MaxTokens,
		},
		SafetySettings: safety,
	}
}

// TranslateImage implements Client.
func (g *Gemini) TranslateImage(ctx context.Context, jpeg []byte, history []string) (string, error) {
	if g.params.APIKey == "" {
		return "", errors.New("gemini translate: api key required")
	}
	if len(jpeg) == 0 {
		return "", errors.New("gemini translate: empty image")
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.params.BaseURL, url.PathEscape(g.params.Model))
	payload := buildGeminiRequest(BuildPrompt(g.params.TargetLanguage, history), jpeg, g.params)

	body, err := g.postJSON(ctx, endpoint, map[string]string{"x-goog-api-key": g.params.APIKey}, payload)
	if err != nil {
		return "", err
	}
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("gemini translate: decode response: %w", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini translate: prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	var b strings.Builder
	for _, c := range resp.Candidates {
		for _, part := range c.Content.Parts {
			b.WriteString(part.Text)
		}
		if b.Len() > 0 {
			break
		}
	}
	return normalize(b.String()), nil
}
