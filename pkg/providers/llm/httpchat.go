package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dictation-tools/dictator/pkg/session"
)

// ReasoningConfig carries the optional {enabled,budget} block
// names for providers that support an extended-thinking budget.
type ReasoningConfig struct {
	Enabled bool `json:"enabled"`
	Budget int `json:"budget"`
}

// HTTPChatLLM is a generic OpenAI-compatible chat-completions client,
// generalized to any Bearer-authed endpoint posting
// {model, messages, reasoning?} and returning the first assistant
// message.
type HTTPChatLLM struct {
	apiKey string
	url string
	model string
	name string
	reasoning *ReasoningConfig
}

func NewHTTPChatLLM(name, apiKey, url, model string) *HTTPChatLLM {
	return &HTTPChatLLM{apiKey: apiKey, url: url, model: model, name: name}
}

// WithReasoning attaches an optional reasoning budget to every request.
func (l *HTTPChatLLM) WithReasoning(r ReasoningConfig) *HTTPChatLLM {
	l.reasoning = &r
	return l
}

func (l *HTTPChatLLM) Name()string { return l.name }

func (l *HTTPChatLLM) Complete(ctx context.Context, messages []session.Message) (string, error) {
	type chatMessage struct {
		Role string `json:"role"`
		Content string `json:"content"`
	}
	wire := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, chatMessage{Role: m.Role, Content: m.Content})
	}

	payload := map[string]interface{}{
		"model": l.model,
		"messages": wire,
	}
	if l.reasoning != nil {
		payload["reasoning"] = l.reasoning
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("%s error (status %d): %v", l.name, resp.StatusCode, errResp)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from %s", l.name)
	}
	return result.Choices[0].Message.Content, nil
}

var _ session.LLMProvider = (*HTTPChatLLM)(nil)
