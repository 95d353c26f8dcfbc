package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Chat calls an OpenAI-compatible chat/completions endpoint with the image
// attached as a data URI. groq, openrouter, sambanova and cerebras all speak
// this dialect.
type Chat struct {
	base
}

// NewChat creates a chat-completions client.
func NewChat(p Params, opts ...Option) *Chat {
	return &Chat{base: newBase(p, opts)}
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatMessage struct {
	Role    string     `json:"role"`
	Content []chatPart `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	Temperature      float64       `json:"temperature"`
	TopP             float64       `json:"top_p,omitempty"`
	FrequencyPenalty float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64       `json:"presence_penalty,omitempty"`
	Stream           bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func buildChatRequest(prompt string, jpeg []byte, p Params) chatRequest {
	uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
	return chatRequest{
		Model: p.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &chatImageURL{URL: uri}},
			},
		}},
		MaxTokens:        p.Generation.MaxTokens,
		Temperature:      p.Generation.Temperature,
		TopP:             p.Generation.TopP,
		FrequencyPenalty: p.Generation.FrequencyPenalty,
		PresencePenalty:  p.Generation.PresencePenalty,
	}
}

// TranslateImage implements Client.
func (c *Chat) TranslateImage(ctx context.Context, jpeg []byte, history []string) (string, error) {
	if c.params.APIKey == "" {
		return "", fmt.Errorf("%s translate: api key required", c.params.Name)
	}
	if len(jpeg) == 0 {
		return "", errors.New(c.params.Name + " translate: empty image")
	}
	payload := buildChatRequest(BuildPrompt(c.params.TargetLanguage, history), jpeg, c.params)
	headers := map[string]string{"Authorization": "Bearer " + c.params.APIKey}

	body, err := c.postJSON(ctx, c.params.BaseURL+"/chat/completions", headers, payload)
	if err != nil {
		return "", err
	}
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%s translate: decode response: %w", c.params.Name, err)
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return "", fmt.Errorf("%s translate: %s", c.params.Name, resp.Error.Message)
	}
	for _, choice := range resp.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			return normalize(text), nil
		}
		if choice.Message.Refusal != "" {
			return "", fmt.Errorf("%s translate: refused: %s", c.params.Name, choice.Message.Refusal)
		}
	}
	return NoText, nil
}
