package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Provider is a text-in, text-out AI backend.
type Provider interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// StatusError is a non-success answer from a reachable backend: an HTTP
// error status or a response with no usable text.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("%s: empty response", e.Provider)
	}
	return fmt.Sprintf("%s api error: %d - %.200s", e.Provider, e.Code, e.Body)
}

// NewProvider creates the provider named by providerName.
func NewProvider(providerName, apiKey, model string) (Provider, error) {
	providerName = strings.ToLower(providerName)
	switch providerName {
	case "openai", "":
		if model == "" {
			model = openai.GPT4oMini
		}
		return &OpenAIProvider{client: openai.NewClient(apiKey), model: model}, nil
	case "huggingface":
		if model == "" {
			model = "mistralai/Mistral-7B-Instruct-v0.3"
		}
		return &HuggingFaceProvider{apiKey: apiKey, model: model, client: http.DefaultClient}, nil
	case "anthropic":
		if model == "" {
			model = "claude-sonnet-4-5"
		}
		return &AnthropicProvider{apiKey: apiKey, model: model, client: http.DefaultClient}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", providerName)
	}
}

// ==========================================
// OpenAI Provider
// ==========================================
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func (p *OpenAIProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	var msgs []openai.ChatCompletionMessage
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    msgs,
		Temperature: 0.1,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{Provider: "openai", Code: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		return "", fmt.Errorf("openai error: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &StatusError{Provider: "openai"}
	}
	return resp.Choices[0].Message.Content, nil
}

// ==========================================
// HuggingFace Provider (v1/chat/completions)
// ==========================================
type HuggingFaceProvider struct {
	apiKey string
	model  string
	client *http.Client
}

func (p *HuggingFaceProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	messages := []map[string]string{}
	if system != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	reqBody, _ := json.Marshal(map[string]interface{}{
		"model":       p.model,
		"messages":    messages,
		"max_tokens":  4096,
		"temperature": 0.1,
		"stream":      false,
	})

	url := "https://router.huggingface.co/hf-inference/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("huggingface request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("huggingface req error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", &StatusError{Provider: "huggingface", Code: resp.StatusCode, Body: string(bodyBytes)}
	}

	var chatResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("huggingface json error: %w", err)
	}
	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return "", &StatusError{Provider: "huggingface"}
	}
	return chatResp.Choices[0].Message.Content, nil
}

// ==========================================
// Anthropic Provider
// ==========================================
type AnthropicProvider struct {
	apiKey string
	model  string
	client *http.Client
}

func (p *AnthropicProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	payload := map[string]interface{}{
		"model":       p.model,
		"max_tokens":  8192,
		"temperature": 0.1,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	if system != "" {
		payload["system"] = system
	}
	reqBody, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.anthropic.com/v1/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("content-type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic req error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", &StatusError{Provider: "anthropic", Code: resp.StatusCode, Body: string(bodyBytes)}
	}

	var anthResp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&anthResp); err != nil {
		return "", fmt.Errorf("anthropic json decode error: %w", err)
	}

	// Some models return multiple text blocks
	var fullText strings.Builder
	for _, block := range anthResp.Content {
		if block.Type == "" || block.Type == "text" {
			fullText.WriteString(block.Text)
		}
	}
	if fullText.Len() == 0 {
		return "", &StatusError{Provider: "anthropic"}
	}
	return fullText.String(), nil
}

// WithTimeout bounds every Complete call of p by d. A non-positive d
// returns p unchanged.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return &timeoutProvider{next: p, timeout: d}
}

type timeoutProvider struct {
	next    Provider
	timeout time.Duration
}

func (t *timeoutProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Complete(ctx, system, prompt)
}
