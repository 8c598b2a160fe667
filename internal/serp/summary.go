package serp

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sammy/rankgrid/internal/domain"
)

const summaryPrompt = `You are a local SEO analyst. Given the latest geo-grid rank check results for a business, write a short daily summary (2-3 sentences) of how its local search visibility changed. Mention notable wins or drops, and keep the tone factual.`

// SummaryService generates the post-check daily summary through an
// LLM provider. It is a best-effort secondary step: callers log failures
// and never fail the primary job result over them.
type SummaryService struct {
	client   *resty.Client
	model    string
	endpoint string
	enabled  bool
}

// SummaryConfig holds configuration for the summary service.
type SummaryConfig struct {
	Enabled bool
	Model   string
	APIKey  string
	BaseURL string
}

// NewSummaryService creates a new summary service. A nil or disabled config
// yields a disabled service whose Generate is a no-op.
// Parameters:
//   - cfg: provider configuration; nil disables the service.
// Returns:
//   - *SummaryService: initialized service.
func NewSummaryService(cfg *SummaryConfig) *SummaryService {
	if cfg == nil || !cfg.Enabled {
		return &SummaryService{enabled: false}
	}

	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(30 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &SummaryService{
		client:   client,
		model:    cfg.Model,
		endpoint: baseURL + "/chat/completions",
		enabled:  true,
	}
}

// IsEnabled reports whether summary generation is configured.
func (s *SummaryService) IsEnabled() bool {
	return s.enabled
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateDailySummary produces the summary text for a completed job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - cfg: tracking config the job ran against.
//   - result: the job's check results.
// Returns:
//   - string: generated summary text (empty when disabled).
//   - error: non-nil if the API request fails.
func (s *SummaryService) GenerateDailySummary(ctx context.Context, cfg *domain.TrackingConfig, result *domain.RankCheckResult) (string, error) {
	if !s.enabled {
		return "", nil
	}

	user := fmt.Sprintf("Business: %s. Checks performed: %d of %d. Errors: %d.",
		cfg.BusinessName, result.ChecksPerformed, result.TotalChecks, len(result.Errors))

	req := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: summaryPrompt},
			{Role: "user", Content: user},
		},
		MaxTokens: 200,
	}

	var resp chatResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to call summary API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d", httpResp.StatusCode())
		if resp.Error != nil {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return "", fmt.Errorf("summary API returned error: %s", errorMsg)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("summary API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from summary API (status: %d)", httpResp.StatusCode())
	}

	return resp.Choices[0].Message.Content, nil
}
