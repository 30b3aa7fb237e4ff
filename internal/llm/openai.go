package llm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	. "github.com/roelfdiedericks/relaybot/internal/logging"
	"github.com/roelfdiedericks/relaybot/internal/metrics"
)

// ProviderConfig is the configuration for the completion endpoint
type ProviderConfig struct {
	APIKey         string // Bearer credential
	BaseURL        string // OpenAI-compatible endpoint, e.g. https://openrouter.ai/api/v1
	TimeoutSeconds int    // Per-request timeout (0 = 60s)
	Referer        string // OpenRouter HTTP-Referer attribution
	Title          string // OpenRouter X-Title attribution
}

// openRouterTransport adds attribution headers to OpenRouter requests
type openRouterTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *openRouterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		req.Header.Set("X-Title", t.title)
	}
	if t.base == nil {
		return http.DefaultTransport.RoundTrip(req)
	}
	return t.base.RoundTrip(req)
}

// OpenAIProvider implements Completer for OpenAI-compatible APIs.
// Works with OpenRouter, OpenAI, LM Studio and other compatible APIs via BaseURL.
// Immutable after construction; safe for concurrent use.
type OpenAIProvider struct {
	name    string
	client  *openai.Client
	baseURL string
	metrics *metrics.Manager
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
// m may be nil to disable metrics.
func NewOpenAIProvider(name string, cfg ProviderConfig, m *metrics.Manager) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrUnavailable{Provider: name, Reason: "API key not configured"}
	}

	config := openai.DefaultConfig(cfg.APIKey)
	baseURL := normalizeBaseURL(cfg.BaseURL)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	var transport http.RoundTripper = http.DefaultTransport
	if strings.Contains(strings.ToLower(baseURL), "openrouter") {
		transport = &openRouterTransport{base: http.DefaultTransport, referer: cfg.Referer, title: cfg.Title}
		L_debug("openai: using OpenRouter headers", "referer", cfg.Referer, "title", cfg.Title)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	config.HTTPClient = &http.Client{Transport: transport, Timeout: timeout}

	displayURL := baseURL
	if displayURL == "" {
		displayURL = "(default)"
	}
	L_debug("openai provider created", "name", name, "baseURL", displayURL, "timeout", timeout)

	return &OpenAIProvider{
		name:    name,
		client:  openai.NewClientWithConfig(config),
		baseURL: baseURL,
		metrics: m,
	}, nil
}

// normalizeBaseURL ensures the URL ends with /v1 for OpenAI-compatible APIs
func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return ""
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if !strings.HasSuffix(baseURL, "/v1") {
		baseURL += "/v1"
	}
	return baseURL
}

// Name returns the provider instance name
func (p *OpenAIProvider) Name() string {
	return p.name
}

// BaseURL returns the normalized endpoint URL
func (p *OpenAIProvider) BaseURL() string {
	return p.baseURL
}

// metricPrefix is e.g. "llm/mistralai/mistral-7b-instruct:free"
func metricPrefix(model string) string {
	return "llm/" + model
}

// Complete sends the system prompt and user text to req.Model and returns
// choices[0].message.content. The text is returned untrimmed; callers decide
// what counts as empty.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if req.Model == "" {
		return "", ErrUnavailable{Provider: p.name, Reason: "no model specified"}
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserText,
	})

	prefix := metricPrefix(req.Model)
	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	})
	elapsed := time.Since(start)
	p.metrics.RecordDuration(prefix, "request", elapsed)

	if err != nil {
		errType := ClassifyError(err)
		p.metrics.RecordFailure(prefix, "request_status", string(errType))
		L_debug("openai: request failed", "model", req.Model, "type", errType, "elapsed", elapsed, "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		p.metrics.RecordFailure(prefix, "request_status", string(ErrorTypeNoChoices))
		return "", ErrNoChoices
	}

	p.metrics.RecordSuccess(prefix, "request_status")
	p.metrics.AddCounter(prefix, "input_tokens", int64(resp.Usage.PromptTokens))
	p.metrics.AddCounter(prefix, "output_tokens", int64(resp.Usage.CompletionTokens))
	L_trace("openai: request complete",
		"model", req.Model,
		"servedBy", resp.Model,
		"finishReason", resp.Choices[0].FinishReason,
		"elapsed", elapsed,
	)

	return resp.Choices[0].Message.Content, nil
}

// Stats renders request counts, latency and token usage per model, one line
// each, in the order given.
func (p *OpenAIProvider) Stats(models []string) string {
	var b strings.Builder
	for _, model := range models {
		prefix := metricPrefix(model)
		status, _ := p.metrics.SuccessFail(prefix, "request_status")

		fmt.Fprintf(&b, "%s: %d ok, %d failed", model, status.Success, status.Failures)
		if len(status.FailureReasons) > 0 {
			reasons := make([]string, 0, len(status.FailureReasons))
			for reason, n := range status.FailureReasons {
				reasons = append(reasons, fmt.Sprintf("%s %d", reason, n))
			}
			sort.Strings(reasons)
			fmt.Fprintf(&b, " (%s)", strings.Join(reasons, ", "))
		}
		if timing, ok := p.metrics.Timing(prefix, "request"); ok {
			fmt.Fprintf(&b, ", %s", timing)
		}
		fmt.Fprintf(&b, ", tokens %d in / %d out\n",
			p.metrics.Counter(prefix, "input_tokens"),
			p.metrics.Counter(prefix, "output_tokens"),
		)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// ListModels returns the model ids the endpoint currently advertises.
func (p *OpenAIProvider) ListModels(ctx context.Context) (map[string]bool, error) {
	list, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	ids := make(map[string]bool, len(list.Models))
	for _, m := range list.Models {
		if m.ID != "" {
			ids[m.ID] = true
		}
	}
	L_debug("openai: listed models", "provider", p.name, "count", len(ids))
	return ids, nil
}

// MissingModels returns the candidates (in order) that the endpoint does not list.
func (p *OpenAIProvider) MissingModels(ctx context.Context, candidates []string) ([]string, error) {
	ids, err := p.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, c := range candidates {
		if !ids[c] {
			missing = append(missing, c)
		}
	}
	return missing, nil
}
