package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/claimgate/internal/util"
)

const (
	anthropicDefaultModel = "claude-3-5-haiku-20241022"
	anthropicAPIVersion   = "2023-06-01"
)

// AnthropicProvider talks to the Anthropic Messages API
type AnthropicProvider struct {
	baseURL  string
	endpoint jsonEndpoint
	config   Config
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float32            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func decodeAnthropicError(body []byte) (string, string, bool) {
	var e struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil || e.Error.Message == "" {
		return "", "", false
	}
	return e.Error.Type, e.Error.Message, true
}

// NewAnthropicProvider requires an API key
func NewAnthropicProvider(config Config) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	return &AnthropicProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		endpoint: jsonEndpoint{
			provider: "anthropic",
			client:   util.NewHTTPClient(config.timeout(defaultTimeout), config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			headers: map[string]string{
				"x-api-key":         config.APIKey,
				"anthropic-version": anthropicAPIVersion,
			},
			decodeErr: decodeAnthropicError,
		},
		config: config,
	}, nil
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// IsAvailable sends a one-token message to confirm the key works
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.send(ctx, anthropicRequest{
		Model:     anthropicDefaultModel,
		MaxTokens: 1,
		Messages:  []anthropicMessage{{Role: "user", Content: "ping"}},
	})
	return err == nil
}

// Generate runs one Messages API completion
func (p *AnthropicProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := firstNonEmpty(req.Model, p.config.Model, anthropicDefaultModel)

	resp, err := p.send(ctx, anthropicRequest{
		Model:       model,
		MaxTokens:   p.config.maxTokens(req),
		System:      systemPrompt(req),
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		Temperature: p.config.Temperature,
	})
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, ErrEmptyResponse
	}

	return &GenerateResponse{
		Text:       text,
		Model:      firstNonEmpty(resp.Model, model),
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

func (p *AnthropicProvider) send(ctx context.Context, req anthropicRequest) (*anthropicResponse, error) {
	var resp anthropicResponse
	if err := p.endpoint.post(ctx, p.baseURL+"/v1/messages", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
