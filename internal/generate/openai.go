package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// ChatClient talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, DeepSeek, Zhipu).
type ChatClient struct {
	provider     string
	baseURL      string
	apiKey       string
	defaultModel string
	httpClient   *retryablehttp.Client
}

// ChatConfig describes one OpenAI-compatible provider.
type ChatConfig struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Retries  int
}

func NewChatClient(cfg ChatConfig, log *slog.Logger) *ChatClient {
	return &ChatClient{
		provider:     cfg.Provider,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		defaultModel: cfg.Model,
		httpClient:   newHTTPClient(cfg.Retries, log),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	MaxTokens        int           `json:"max_tokens"`
	TopP             float64       `json:"top_p,omitempty"`
	FrequencyPenalty float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64       `json:"presence_penalty,omitempty"`
	Stream           bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
		Delta   struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *ChatClient) request(prompt string, opts Options, stream bool) chatRequest {
	req := chatRequest{
		Model:            c.defaultModel,
		Messages:         []chatMessage{{Role: "user", Content: prompt}},
		Temperature:      0.7,
		MaxTokens:        2000,
		TopP:             opts.TopP,
		FrequencyPenalty: opts.FrequencyPenalty,
		PresencePenalty:  opts.PresencePenalty,
		Stream:           stream,
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}
	if opts.Temperature > 0 {
		req.Temperature = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	return req
}

func (c *ChatClient) post(ctx context.Context, req chatRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	resp, err := postJSON(ctx, c.httpClient, c.provider, c.baseURL+"/chat/completions", body, map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GenerateText requests a complete answer.
func (c *ChatClient) GenerateText(ctx context.Context, prompt string, opts Options) (Response, error) {
	req := c.request(prompt, opts, false)
	body, err := c.post(ctx, req)
	if err != nil {
		return Response{}, err
	}
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(body, 4<<20))
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	var apiResp chatResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return Response{}, fmt.Errorf("%s error: %s: %s", c.provider, apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return Response{}, fmt.Errorf("empty response from %s", c.provider)
	}
	model := apiResp.Model
	if model == "" {
		model = req.Model
	}
	return Response{Text: apiResp.Choices[0].Message.Content, Model: model, Usage: apiResp.Usage}, nil
}

// GenerateStream requests a streamed answer and forwards each content delta.
func (c *ChatClient) GenerateStream(ctx context.Context, prompt string, opts Options, onToken TokenFunc) error {
	body, err := c.post(ctx, c.request(prompt, opts, true))
	if err != nil {
		return err
	}
	defer body.Close()

	err = readEvents(body, func(_, data string) error {
		if data == "[DONE]" {
			return errStreamDone
		}
		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("decode chunk: %w", err)
		}
		if chunk.Error != nil {
			return fmt.Errorf("%s error: %s", c.provider, chunk.Error.Message)
		}
		for _, ch := range chunk.Choices {
			if ch.Delta.Content == "" {
				continue
			}
			if err := onToken(ch.Delta.Content); err != nil {
				return fmt.Errorf("token callback: %w", err)
			}
		}
		return nil
	})
	if errors.Is(err, errStreamDone) {
		return nil
	}
	return err
}

// Close releases idle connections.
func (c *ChatClient) Close() {
	c.httpClient.HTTPClient.CloseIdleConnections()
}
