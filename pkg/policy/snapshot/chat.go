package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"
)

// charsPerToken is the ratio used to estimate prompt tokens when the
// provider has not reported usage yet.
const charsPerToken = 4.0

// chatRequest is the subset of an OpenAI-style chat completion body read by
// ParseChatRequest.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature"`
	MaxTokens   *int          `json:"max_tokens"`
	TopP        *float64      `json:"top_p"`
}

type chatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// ParseChatRequest builds the llm variable from an OpenAI-style chat
// completion request body. InputTokens is an estimate: about four characters
// per token plus a small per-message overhead.
func ParseChatRequest(provider string, body []byte) (*LLM, error) {
	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("failed to parse chat request: %w", err)
	}
	if req.Model == "" {
		return nil, fmt.Errorf("chat request has no model")
	}

	llm := &LLM{
		Provider:     provider,
		RequestModel: req.Model,
		Streaming:    req.Stream,
		Params: Params{
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
			TopP:        req.TopP,
		},
	}
	for i, m := range req.Messages {
		content, err := messageText(m.Content)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		llm.Prompt = append(llm.Prompt, Message{Role: m.Role, Content: content})
		llm.InputTokens += estimateTokens(content) + 4
	}
	if len(llm.Prompt) > 0 {
		llm.InputTokens += 3
	}
	return llm, nil
}

// messageText flattens string content or the text parts of multimodal
// content.
func messageText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", fmt.Errorf("content must be a string or a list of parts")
	}
	var texts []string
	for _, p := range parts {
		if p.Type == "text" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, " "), nil
}

func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := int(float64(len(text))/charsPerToken + 0.5)
	if n < 1 {
		n = 1
	}
	return n
}
