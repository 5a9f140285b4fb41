package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/medpipe/patient-summarizer/internal/infrastructure/resilience"
)

const systemPrompt = "You are a medical AI assistant helping doctors review patient cases. " +
	"Base every statement on the provided documents and never invent findings."

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, apiKey, model string) *Client {
	return NewWithOptions(baseURL, apiKey, model, Options{})
}

func NewWithOptions(baseURL, apiKey, model string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

// Complete sends a single-turn chat completion and returns the assistant
// message content.
func (c *Client) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	request := map[string]any{
		"model":       c.model,
		"temperature": temperature,
		"max_tokens":  maxTokens,
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/chat/completions", request, &response, "complete")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "llm.generate", call, classifyOpenAIError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("openai complete", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
