package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/markdave123-py/railchat/internal/core"
)

const DefaultOllamaChatModel = "llama3.2"

// OllamaLLM generates answers through a local Ollama server's /api/chat
// endpoint with streaming disabled.
type OllamaLLM struct {
	client  *http.Client
	baseURL string
	model   string
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
}

func NewOllamaLLM(baseURL, model string, timeout time.Duration) *OllamaLLM {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaChatModel
	}
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &OllamaLLM{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
	}
}

func (o *OllamaLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	msgs := make([]ollamaChatMessage, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, ollamaChatMessage{Role: "system", Content: systemPrompt})
	}
	msgs = append(msgs, ollamaChatMessage{Role: "user", Content: userPrompt})

	body, err := json.Marshal(ollamaChatRequest{Model: o.model, Messages: msgs})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: ollama: %w", core.ErrGeneration, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: ollama status %d: %s", core.ErrGeneration, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode ollama response: %w", core.ErrGeneration, err)
	}
	return strings.TrimSpace(out.Message.Content), nil
}

var _ core.LLMProvider = (*OllamaLLM)(nil)
