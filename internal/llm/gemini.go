package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ppiankov/claimgate/internal/util"
)

// GeminiProvider implements the Provider interface for Google Gemini models
// over the generateContent REST endpoint
type GeminiProvider struct {
	baseURL  string
	endpoint jsonEndpoint
	config   Config
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

func decodeGeminiError(body []byte) (string, string, bool) {
	var e struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil || e.Error.Message == "" {
		return "", "", false
	}
	return e.Error.Status, e.Error.Message, true
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(config Config) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	return &GeminiProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		endpoint: jsonEndpoint{
			provider:  "gemini",
			client:    util.NewHTTPClient(config.timeout(defaultTimeout), config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			headers:   map[string]string{"x-goog-api-key": config.APIKey},
			decodeErr: decodeGeminiError,
		},
		config: config,
	}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// IsAvailable lists models to confirm the key is accepted
func (p *GeminiProvider) IsAvailable(ctx context.Context) bool {
	return p.endpoint.probe(ctx, p.baseURL+"/v1beta/models")
}

// Generate runs one generateContent call
func (p *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := firstNonEmpty(req.Model, p.config.Model, "gemini-2.0-flash")

	apiReq := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemPrompt(req)}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     p.config.Temperature,
			MaxOutputTokens: p.config.maxTokens(req),
		},
	}

	var resp geminiResponse
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, url.PathEscape(model))
	if err := p.endpoint.post(ctx, endpoint, apiReq, &resp); err != nil {
		return nil, err
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates from Gemini: %w", ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, ErrEmptyResponse
	}

	if resp.ModelVersion != "" {
		model = resp.ModelVersion
	}

	return &GenerateResponse{
		Text:       text,
		Model:      model,
		TokensUsed: resp.UsageMetadata.TotalTokenCount,
	}, nil
}
