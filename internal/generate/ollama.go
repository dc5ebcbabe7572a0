package generate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaClient runs prompts against a local Ollama server.
type OllamaClient struct {
	client *api.Client
	model  string
}

func NewOllamaClient(host, model string) (*OllamaClient, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	return &OllamaClient{client: api.NewClient(u, http.DefaultClient), model: model}, nil
}

func (c *OllamaClient) request(prompt string, opts Options, stream bool) *api.GenerateRequest {
	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}
	options := map[string]any{}
	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.TopP > 0 {
		options["top_p"] = opts.TopP
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	if opts.FrequencyPenalty != 0 {
		options["frequency_penalty"] = opts.FrequencyPenalty
	}
	if opts.PresencePenalty != 0 {
		options["presence_penalty"] = opts.PresencePenalty
	}
	return &api.GenerateRequest{
		Model:   model,
		Prompt:  prompt,
		Stream:  &stream,
		Options: options,
	}
}

// GenerateText collects the full completion.
func (c *OllamaClient) GenerateText(ctx context.Context, prompt string, opts Options) (Response, error) {
	req := c.request(prompt, opts, false)
	var sb strings.Builder
	out := Response{Model: req.Model}
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		if resp.Done {
			out.Usage = &Usage{
				PromptTokens:     resp.PromptEvalCount,
				CompletionTokens: resp.EvalCount,
				TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
			}
		}
		return nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("ollama generate: %w", err)
	}
	out.Text = sb.String()
	return out, nil
}

// GenerateStream forwards each streamed fragment.
func (c *OllamaClient) GenerateStream(ctx context.Context, prompt string, opts Options, onToken TokenFunc) error {
	err := c.client.Generate(ctx, c.request(prompt, opts, true), func(resp api.GenerateResponse) error {
		if resp.Response == "" {
			return nil
		}
		if err := onToken(resp.Response); err != nil {
			return fmt.Errorf("token callback: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ollama generate: %w", err)
	}
	return nil
}
