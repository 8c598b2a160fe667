package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sammy/rankgrid/internal/service"
)

// CreditsHandler handles credit balance and history endpoints.
type CreditsHandler struct {
	creditService *service.CreditService
}

// NewCreditsHandler creates a new credits handler.
// Parameters:
//   - creditService: credit service instance.
// Returns:
//   - *CreditsHandler: initialized handler.
func NewCreditsHandler(creditService *service.CreditService) *CreditsHandler {
	return &CreditsHandler{
		creditService: creditService,
	}
}

// GetBalance handles GET /api/v1/credits.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CreditsHandler) GetBalance(c *gin.Context) {
	account, ok := accountID(c)
	if !ok {
		return
	}

	balance, err := h.creditService.GetBalance(c.Request.Context(), account)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get balance: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account_id":        balance.AccountID,
		"included_credits":  balance.IncludedCredits,
		"purchased_credits": balance.PurchasedCredits,
		"total_credits":     balance.TotalCredits(),
	})
}

// grantRequest is the POST /api/v1/credits/grants body.
type grantRequest struct {
	AccountID      string `json:"account_id" binding:"required"`
	Amount         int    `json:"amount" binding:"required"`
	IncludedPool   bool   `json:"included_pool"`
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
	Description    string `json:"description"`
}

// Grant handles POST /api/v1/credits/grants, called by the billing backend on
// plan renewals and top-up fulfillment. Sits behind the shared-secret guard,
// not account tenancy.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CreditsHandler) Grant(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	balance, err := h.creditService.GrantCredits(c.Request.Context(), req.AccountID, req.Amount,
		req.IncludedPool, req.IdempotencyKey, req.Description)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to grant credits: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account_id":        balance.AccountID,
		"included_credits":  balance.IncludedCredits,
		"purchased_credits": balance.PurchasedCredits,
		"total_credits":     balance.TotalCredits(),
	})
}

// GetHistory handles GET /api/v1/credits/history.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *CreditsHandler) GetHistory(c *gin.Context) {
	account, ok := accountID(c)
	if !ok {
		return
	}

	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	entries, err := h.creditService.GetHistory(c.Request.Context(), account, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get credit history: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"total":   len(entries),
	})
}
