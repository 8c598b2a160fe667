package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sammy/rankgrid/internal/service"
)

// QueueHandler handles the scheduler-invoked queue processing endpoint.
type QueueHandler struct {
	dispatcher *service.DispatcherService
}

// NewQueueHandler creates a new queue handler.
// Parameters:
//   - dispatcher: dispatcher service driving one invocation per request.
// Returns:
//   - *QueueHandler: initialized handler.
func NewQueueHandler(dispatcher *service.DispatcherService) *QueueHandler {
	return &QueueHandler{
		dispatcher: dispatcher,
	}
}

// Process handles GET /api/v1/queue/process. Each request runs exactly one
// dispatcher invocation and reports what it did.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *QueueHandler) Process(c *gin.Context) {
	summary, err := h.dispatcher.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Queue processing failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"summary": summary,
	})
}
