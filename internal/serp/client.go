package serp

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sammy/rankgrid/internal/domain"
	"github.com/sammy/rankgrid/internal/logger"
)

// Client performs geo-grid SERP rank checks against the external provider.
// It is the production work executor: each grid point of each keyword is one
// paid API call, so the client respects the per-job budget it is handed and
// returns a partial result rather than running unbounded.
type Client struct {
	client       *resty.Client
	endpoint     string
	costPerCheck float64
	log          *logger.Logger
}

// Config holds configuration for the SERP client.
type Config struct {
	BaseURL      string
	APIKey       string
	CostPerCheck float64
}

// NewClient creates a new SERP client.
// Parameters:
//   - cfg: provider configuration including base URL and API key.
//   - log: logger instance.
// Returns:
//   - *Client: initialized client.
func NewClient(cfg *Config, log *logger.Logger) *Client {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	// Per-call ceiling; the per-job budget is enforced via context
	client.SetTimeout(30 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.serpprovider.com/v1"
	}

	return &Client{
		client:       client,
		endpoint:     baseURL + "/search",
		costPerCheck: cfg.CostPerCheck,
		log:          log,
	}
}

// searchRequest is the provider's local-search request body.
type searchRequest struct {
	Keyword  string  `json:"keyword"`
	Business string  `json:"business"`
	Domain   string  `json:"domain,omitempty"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// searchResponse is the provider's local-search response body.
type searchResponse struct {
	Position int `json:"position"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Execute runs the geo-grid rank checks for one job within the given budget.
//
// Every (keyword, grid point) pair is one provider call. The budget is turned
// into a context deadline: once it expires the remaining checks are skipped
// and counted as errors, and the partial result is returned. Execute only
// returns a non-nil error when not a single check succeeded.
//
// Parameters:
//   - ctx: invocation context.
//   - job: job being executed.
//   - cfg: resolved, validated tracking config.
//   - keywords: keywords to check (already resolved from the job's subset).
//   - budget: wall-clock ceiling for this job.
// Returns:
//   - *domain.RankCheckResult: checks performed, cost, and per-check errors.
//   - error: non-nil on total failure.
func (c *Client) Execute(ctx context.Context, job *domain.RankCheckJob, cfg *domain.TrackingConfig, keywords []domain.Keyword, budget time.Duration) (*domain.RankCheckResult, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("job %s resolved zero keywords for config %s", job.ID, cfg.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	points := gridPoints(cfg)
	result := &domain.RankCheckResult{
		TotalChecks: len(keywords) * len(points),
	}

	for _, kw := range keywords {
		for _, pt := range points {
			if ctx.Err() != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("budget exhausted with %d of %d checks done", result.ChecksPerformed, result.TotalChecks))
				return c.finish(ctx, job, result)
			}

			position, err := c.checkOne(ctx, cfg, kw.Phrase, pt)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("keyword %q at (%f,%f): %v", kw.Phrase, pt.lat, pt.lng, err))
				continue
			}

			result.ChecksPerformed++
			result.TotalCost += c.costPerCheck
			c.log.WithFields(logger.Fields{
				"job_id":   job.ID,
				"keyword":  kw.Phrase,
				"position": position,
			}).Debug("Rank check done")
		}
	}

	return c.finish(ctx, job, result)
}

// finish applies the total-failure rule: zero successful checks is an error,
// anything else is a (possibly partial) success.
func (c *Client) finish(ctx context.Context, job *domain.RankCheckJob, result *domain.RankCheckResult) (*domain.RankCheckResult, error) {
	if result.ChecksPerformed == 0 {
		return nil, fmt.Errorf("all %d checks failed for job %s: %s", result.TotalChecks, job.ID, result.ErrorString())
	}
	logger.CtxInfo(ctx, "Rank checks finished: job_id=%s, performed=%d/%d, cost=%.4f, errors=%d",
		job.ID, result.ChecksPerformed, result.TotalChecks, result.TotalCost, len(result.Errors))
	return result, nil
}

// checkOne performs a single provider call.
func (c *Client) checkOne(ctx context.Context, cfg *domain.TrackingConfig, keyword string, pt gridPoint) (int, error) {
	req := searchRequest{
		Keyword:  keyword,
		Business: cfg.BusinessName,
		Domain:   cfg.Domain,
		Lat:      pt.lat,
		Lng:      pt.lng,
	}

	var resp searchResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(c.endpoint)
	if err != nil {
		return 0, fmt.Errorf("failed to call SERP API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d", httpResp.StatusCode())
		if resp.Error != nil {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return 0, fmt.Errorf("SERP API returned error: %s", errorMsg)
	}
	if resp.Error != nil {
		return 0, fmt.Errorf("SERP API error: %s", resp.Error.Message)
	}

	return resp.Position, nil
}

// gridPoint is one map coordinate probed during a geo-grid check.
type gridPoint struct {
	lat float64
	lng float64
}

// milesPerDegreeLat is close enough for grid spacing at city scale.
const milesPerDegreeLat = 69.0

// gridPoints lays an N x N grid over the config's radius around its center.
func gridPoints(cfg *domain.TrackingConfig) []gridPoint {
	n := cfg.GridSize
	if n <= 1 {
		return []gridPoint{{lat: cfg.CenterLat, lng: cfg.CenterLng}}
	}

	span := 2 * cfg.RadiusMiles / milesPerDegreeLat
	step := span / float64(n-1)
	start := gridPoint{
		lat: cfg.CenterLat - span/2,
		lng: cfg.CenterLng - span/2,
	}

	points := make([]gridPoint, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			points = append(points, gridPoint{
				lat: start.lat + float64(row)*step,
				lng: start.lng + float64(col)*step,
			})
		}
	}
	return points
}
