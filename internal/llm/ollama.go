package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/claimgate/internal/util"
)

// Local models load lazily, so the first call can be slow
const ollamaDefaultTimeout = 60 * time.Second

// OllamaProvider runs completions on a local Ollama server
type OllamaProvider struct {
	baseURL  string
	endpoint jsonEndpoint
	config   Config
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`

	// Only present once done is true
	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

func decodeOllamaError(body []byte) (string, string, bool) {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil || e.Error == "" {
		return "", "", false
	}
	return "", e.Error, true
}

// NewOllamaProvider defaults to http://localhost:11434
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &OllamaProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		endpoint: jsonEndpoint{
			provider:  "ollama",
			client:    util.NewHTTPClient(config.timeout(ollamaDefaultTimeout), config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			decodeErr: decodeOllamaError,
		},
		config: config,
	}, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable checks the server is up by listing local models
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	return p.endpoint.probe(ctx, p.baseURL+"/api/tags")
}

// Generate runs one non-streaming completion
func (p *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := firstNonEmpty(req.Model, p.config.Model)
	if model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	apiReq := ollamaRequest{
		Model:  model,
		Prompt: req.Prompt,
		System: systemPrompt(req),
		Options: ollamaOptions{
			Temperature: p.config.Temperature,
			NumPredict:  p.config.maxTokens(req),
		},
	}

	var resp ollamaResponse
	if err := p.endpoint.post(ctx, p.baseURL+"/api/generate", apiReq, &resp); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(resp.Response)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	// Some models report zero counts; estimate at 4 characters per token
	tokens := resp.PromptEvalCount + resp.EvalCount
	if tokens == 0 {
		tokens = (len(req.Prompt) + len(text)) / 4
	}

	return &GenerateResponse{
		Text:       text,
		Model:      firstNonEmpty(resp.Model, model),
		TokensUsed: tokens,
	}, nil
}
