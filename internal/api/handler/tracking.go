package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sammy/rankgrid/internal/domain"
	"github.com/sammy/rankgrid/internal/service"
)

// TrackingHandler handles tracking config and keyword endpoints.
type TrackingHandler struct {
	trackingService *service.TrackingService
}

// NewTrackingHandler creates a new tracking handler.
// Parameters:
//   - trackingService: tracking service instance.
// Returns:
//   - *TrackingHandler: initialized handler.
func NewTrackingHandler(trackingService *service.TrackingService) *TrackingHandler {
	return &TrackingHandler{
		trackingService: trackingService,
	}
}

// createConfigRequest is the POST /api/v1/configs body.
type createConfigRequest struct {
	BusinessName string  `json:"business_name" binding:"required"`
	Domain       string  `json:"domain"`
	GridSize     int     `json:"grid_size" binding:"required"`
	CenterLat    float64 `json:"center_lat"`
	CenterLng    float64 `json:"center_lng"`
	RadiusMiles  float64 `json:"radius_miles" binding:"required"`
}

// CreateConfig handles POST /api/v1/configs.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *TrackingHandler) CreateConfig(c *gin.Context) {
	account, ok := accountID(c)
	if !ok {
		return
	}

	var req createConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	cfg, err := h.trackingService.CreateConfig(c.Request.Context(), account, &domain.TrackingConfig{
		BusinessName: req.BusinessName,
		Domain:       req.Domain,
		GridSize:     req.GridSize,
		CenterLat:    req.CenterLat,
		CenterLng:    req.CenterLng,
		RadiusMiles:  req.RadiusMiles,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to create config: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"config": cfg,
	})
}

// GetConfig handles GET /api/v1/configs/:id.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *TrackingHandler) GetConfig(c *gin.Context) {
	account, ok := accountID(c)
	if !ok {
		return
	}

	cfg, err := h.trackingService.GetConfig(c.Request.Context(), account, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrConfigNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Tracking config not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get config: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"config": cfg,
	})
}

// addKeywordRequest is the POST /api/v1/configs/:id/keywords body.
type addKeywordRequest struct {
	Phrase string `json:"phrase" binding:"required"`
}

// AddKeyword handles POST /api/v1/configs/:id/keywords.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *TrackingHandler) AddKeyword(c *gin.Context) {
	account, ok := accountID(c)
	if !ok {
		return
	}

	var req addKeywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	kw, err := h.trackingService.AddKeyword(c.Request.Context(), account, c.Param("id"), req.Phrase)
	if err != nil {
		if errors.Is(err, domain.ErrConfigNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Tracking config not found",
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to add keyword: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"keyword": kw,
	})
}

// ListKeywords handles GET /api/v1/configs/:id/keywords.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *TrackingHandler) ListKeywords(c *gin.Context) {
	account, ok := accountID(c)
	if !ok {
		return
	}

	keywords, err := h.trackingService.ListKeywords(c.Request.Context(), account, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrConfigNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Tracking config not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list keywords: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"keywords": keywords,
		"total":    len(keywords),
	})
}
