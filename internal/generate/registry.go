package generate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dgallion1/docpen/internal/config"
)

// Registry maps model names to the service that serves them. It is built
// once at startup and read concurrently afterwards.
type Registry struct {
	services     map[string]Service
	defaultModel string
	sem          *semaphore.Weighted
	stats        *LLMStats
	closers      []func()
}

// NewRegistry returns an empty registry allowing at most maxConcurrent
// in-flight calls across all models.
func NewRegistry(maxConcurrent int64, stats *LLMStats) *Registry {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if stats == nil {
		stats = NewLLMStats(time.Hour)
	}
	return &Registry{
		services: make(map[string]Service),
		sem:      semaphore.NewWeighted(maxConcurrent),
		stats:    stats,
	}
}

// Register adds svc under model. The first registered model becomes the
// default.
func (r *Registry) Register(model string, svc Service) {
	r.services[model] = svc
	if r.defaultModel == "" {
		r.defaultModel = model
	}
	if c, ok := svc.(interface{ Close() }); ok {
		r.closers = append(r.closers, c.Close)
	}
}

// SetDefault chooses the model used when a request names none.
func (r *Registry) SetDefault(model string) error {
	if _, ok := r.services[model]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	r.defaultModel = model
	return nil
}

// Default returns the default model name.
func (r *Registry) Default() string { return r.defaultModel }

// Models lists registered model names in sorted order.
func (r *Registry) Models() []string {
	out := make([]string, 0, len(r.services))
	for m := range r.services {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// Stats returns the latency tracker shared by all services.
func (r *Registry) Stats() *LLMStats { return r.stats }

// Get returns the service for model, or the default for an empty name. The
// returned service is rate limited and instrumented.
func (r *Registry) Get(model string) (Service, error) {
	if model == "" {
		model = r.defaultModel
	}
	svc, ok := r.services[model]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	return &limited{name: model, svc: svc, reg: r}, nil
}

// Close releases provider resources.
func (r *Registry) Close() {
	for _, c := range r.closers {
		c()
	}
}

type limited struct {
	name string
	svc  Service
	reg  *Registry
}

func (l *limited) withModel(opts Options) Options {
	if opts.Model == "" {
		opts.Model = l.name
	}
	return opts
}

func (l *limited) GenerateText(ctx context.Context, prompt string, opts Options) (Response, error) {
	if err := l.reg.sem.Acquire(ctx, 1); err != nil {
		return Response{}, err
	}
	defer l.reg.sem.Release(1)

	start := time.Now()
	resp, err := l.svc.GenerateText(ctx, prompt, l.withModel(opts))
	l.reg.stats.Record(l.name, time.Since(start), err != nil)
	return resp, err
}

func (l *limited) GenerateStream(ctx context.Context, prompt string, opts Options, onToken TokenFunc) error {
	if err := l.reg.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.reg.sem.Release(1)

	start := time.Now()
	err := l.svc.GenerateStream(ctx, prompt, l.withModel(opts), onToken)
	l.reg.stats.Record(l.name, time.Since(start), err != nil)
	return err
}

// FromConfig registers every provider with credentials in cfg.
func FromConfig(cfg config.Config, log *slog.Logger) (*Registry, error) {
	r := NewRegistry(int64(cfg.MaxConcurrentGenerations), NewLLMStats(time.Hour))

	chat := []ChatConfig{
		{Provider: "openai", BaseURL: cfg.OpenAIBaseURL, APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel},
		{Provider: "deepseek", BaseURL: cfg.DeepSeekBaseURL, APIKey: cfg.DeepSeekAPIKey, Model: cfg.DeepSeekModel},
		{Provider: "zhipu", BaseURL: cfg.ZhipuBaseURL, APIKey: cfg.ZhipuAPIKey, Model: cfg.ZhipuModel},
	}
	for _, cc := range chat {
		if cc.APIKey == "" {
			continue
		}
		cc.Retries = cfg.LLMRetries
		r.Register(cc.Model, NewChatClient(cc, log))
		log.Info("registered model", "provider", cc.Provider, "model", cc.Model)
	}
	if cfg.AnthropicAPIKey != "" {
		r.Register(cfg.AnthropicModel, NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.LLMRetries, log))
		log.Info("registered model", "provider", "claude", "model", cfg.AnthropicModel)
	}
	if cfg.OllamaHost != "" {
		oc, err := NewOllamaClient(cfg.OllamaHost, cfg.OllamaModel)
		if err != nil {
			return nil, err
		}
		r.Register(cfg.OllamaModel, oc)
		log.Info("registered model", "provider", "ollama", "model", cfg.OllamaModel)
	}

	if cfg.DefaultModel != "" {
		if err := r.SetDefault(cfg.DefaultModel); err != nil {
			return nil, fmt.Errorf("DEFAULT_MODEL: %w", err)
		}
	}
	return r, nil
}
