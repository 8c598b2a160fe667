package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sammy/rankgrid/internal/domain"
	"github.com/sammy/rankgrid/internal/service"
)

// RankCheckHandler handles rank-check job endpoints.
type RankCheckHandler struct {
	rankCheckService *service.RankCheckService
}

// NewRankCheckHandler creates a new rank-check handler.
// Parameters:
//   - rankCheckService: rank-check producer service.
// Returns:
//   - *RankCheckHandler: initialized handler.
func NewRankCheckHandler(rankCheckService *service.RankCheckService) *RankCheckHandler {
	return &RankCheckHandler{
		rankCheckService: rankCheckService,
	}
}

// requestChecksRequest is the POST /api/v1/rank-checks body.
type requestChecksRequest struct {
	ConfigID   string   `json:"config_id" binding:"required"`
	KeywordIDs []string `json:"keyword_ids"`
}

// RequestChecks handles POST /api/v1/rank-checks: debits the account and
// enqueues a job.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *RankCheckHandler) RequestChecks(c *gin.Context) {
	account, ok := accountID(c)
	if !ok {
		return
	}

	var req requestChecksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	job, err := h.rankCheckService.RequestChecks(c.Request.Context(), account, req.ConfigID, req.KeywordIDs)
	if err != nil {
		var insufficient *domain.InsufficientCreditsError
		switch {
		case errors.As(err, &insufficient):
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error":     "Insufficient credits",
				"required":  insufficient.Required,
				"available": insufficient.Available,
			})
		case errors.Is(err, domain.ErrConfigNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Tracking config not found",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to request checks: " + err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job": job,
	})
}

// GetJob handles GET /api/v1/jobs/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *RankCheckHandler) GetJob(c *gin.Context) {
	account, ok := accountID(c)
	if !ok {
		return
	}

	job, err := h.rankCheckService.GetJob(c.Request.Context(), account, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job": job,
	})
}

// ListJobs handles GET /api/v1/jobs.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *RankCheckHandler) ListJobs(c *gin.Context) {
	account, ok := accountID(c)
	if !ok {
		return
	}

	status := domain.JobStatus(c.Query("status"))
	limit := intQuery(c, "limit", 20)
	offset := intQuery(c, "offset", 0)

	jobs, err := h.rankCheckService.ListJobs(c.Request.Context(), account, status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}
