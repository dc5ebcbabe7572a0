package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hashicorp/go-retryablehttp"
)

const anthropicURL = "https://api.anthropic.com/v1/messages"

// ClaudeClient calls the Anthropic Messages API.
type ClaudeClient struct {
	apiKey     string
	model      string
	url        string
	httpClient *retryablehttp.Client
}

func NewClaudeClient(apiKey, model string, retries int, log *slog.Logger) *ClaudeClient {
	return &ClaudeClient{
		apiKey:     apiKey,
		model:      model,
		url:        anthropicURL,
		httpClient: newHTTPClient(retries, log),
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
	TopP        float64            `json:"top_p,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// anthropicEvent is one server-sent event of a streamed message.
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *ClaudeClient) post(ctx context.Context, prompt string, opts Options, stream bool) (io.ReadCloser, string, error) {
	reqBody := anthropicRequest{
		Model:       c.model,
		MaxTokens:   4096,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		Stream:      stream,
	}
	if opts.Model != "" {
		reqBody.Model = opts.Model
	}
	if opts.MaxTokens > 0 {
		reqBody.MaxTokens = opts.MaxTokens
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}
	resp, err := postJSON(ctx, c.httpClient, "claude", c.url, body, map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return nil, "", err
	}
	return resp.Body, reqBody.Model, nil
}

// GenerateText returns Claude's complete answer.
func (c *ClaudeClient) GenerateText(ctx context.Context, prompt string, opts Options) (Response, error) {
	body, model, err := c.post(ctx, prompt, opts, false)
	if err != nil {
		return Response{}, err
	}
	defer body.Close()

	respBody, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return Response{}, fmt.Errorf("claude error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return Response{}, fmt.Errorf("empty response from claude")
	}

	out := Response{Text: apiResp.Content[0].Text, Model: model}
	if apiResp.Model != "" {
		out.Model = apiResp.Model
	}
	if u := apiResp.Usage; u != nil {
		out.Usage = &Usage{PromptTokens: u.InputTokens, CompletionTokens: u.OutputTokens, TotalTokens: u.InputTokens + u.OutputTokens}
	}
	return out, nil
}

// GenerateStream forwards the text deltas of a streamed message.
func (c *ClaudeClient) GenerateStream(ctx context.Context, prompt string, opts Options, onToken TokenFunc) error {
	body, _, err := c.post(ctx, prompt, opts, true)
	if err != nil {
		return err
	}
	defer body.Close()

	err = readEvents(body, func(_, data string) error {
		var ev anthropicEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type != "text_delta" || ev.Delta.Text == "" {
				return nil
			}
			if err := onToken(ev.Delta.Text); err != nil {
				return fmt.Errorf("token callback: %w", err)
			}
		case "error":
			if ev.Error != nil {
				return fmt.Errorf("claude error: %s: %s", ev.Error.Type, ev.Error.Message)
			}
			return fmt.Errorf("claude stream error")
		case "message_stop":
			return errStreamDone
		}
		return nil
	})
	if errors.Is(err, errStreamDone) {
		return nil
	}
	return err
}

// Close releases resources.
func (c *ClaudeClient) Close() {
	c.httpClient.HTTPClient.CloseIdleConnections()
}
