// Package gemini implements llm.Generator on the Google GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/sells-group/comps-intel/pkg/llm"
)

const provider = "gemini"

// Config configures a Gemini generator.
type Config struct {
	APIKey      string
	BaseURL     string // optional override, used by tests
	Temperature float32
	// JSONResponse asks the model to reply with application/json.
	JSONResponse bool
}

// Client generates text with Gemini models.
type Client struct {
	client *genai.Client
	cfg    Config
}

var _ llm.Generator = (*Client)(nil)

// NewClient creates a Gemini client for the Gemini API backend.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, eris.New("gemini: api key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &Client{client: client, cfg: cfg}, nil
}

// Generate sends prompt to model and returns the response text.
func (c *Client) Generate(ctx context.Context, prompt, model string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.cfg.Temperature),
	}
	if c.cfg.JSONResponse {
		config.ResponseMIMEType = "application/json"
	}

	result, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
	if err != nil {
		return "", classify(err)
	}

	if result.UsageMetadata != nil {
		zap.L().Debug("gemini: usage",
			zap.String("model", model),
			zap.Int32("prompt_tokens", result.UsageMetadata.PromptTokenCount),
			zap.Int32("output_tokens", result.UsageMetadata.CandidatesTokenCount),
		)
	}

	text := result.Text()
	if text == "" {
		return "", &llm.Error{Kind: llm.KindOther, Provider: provider, Err: eris.New("empty response")}
	}
	return text, nil
}

// classify maps SDK errors onto the llm taxonomy.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return newAPIError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return newAPIError(*apiErrPtr)
	}
	return &llm.Error{Kind: llm.KindOther, Provider: provider, Err: err}
}

func newAPIError(e genai.APIError) *llm.Error {
	text := e.Status + " " + e.Message
	if ids := quotaIDs(e.Details); len(ids) > 0 {
		text += " " + strings.Join(ids, " ")
	}
	return llm.NewError(provider, e.Code, text, e)
}

// quotaIDs collects the quota ids and metrics of QuotaFailure details. A
// daily limit and a per-minute limit share the same 429 message; only the
// quota id tells them apart.
func quotaIDs(details []map[string]any) []string {
	var out []string
	for _, d := range details {
		violations, _ := d["violations"].([]any)
		for _, v := range violations {
			m, _ := v.(map[string]any)
			for _, k := range []string{"quotaId", "quotaMetric"} {
				if s, ok := m[k].(string); ok && s != "" {
					out = append(out, s)
				}
			}
		}
	}
	return out
}
