package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sammy/rankgrid/internal/api/handler"
	"github.com/sammy/rankgrid/internal/api/middleware"
	"github.com/sammy/rankgrid/internal/service"
)

// RouterConfig carries the router-level settings.
type RouterConfig struct {
	Mode            string
	CronSecret      string
	AllowedOrigins  []string
	AllowAllOrigins bool
}

// SetupRouter configures the Gin router with all routes.
func SetupRouter(
	rankCheckService *service.RankCheckService,
	creditService *service.CreditService,
	trackingService *service.TrackingService,
	dispatcher *service.DispatcherService,
	cfg RouterConfig,
) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.AllowedOrigins,
		AllowAllOrigins: cfg.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler()
	rankCheckHandler := handler.NewRankCheckHandler(rankCheckService)
	creditsHandler := handler.NewCreditsHandler(creditService)
	trackingHandler := handler.NewTrackingHandler(trackingService)
	queueHandler := handler.NewQueueHandler(dispatcher)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Tracking configs
		v1.POST("/configs", trackingHandler.CreateConfig)
		v1.GET("/configs/:id", trackingHandler.GetConfig)
		v1.POST("/configs/:id/keywords", trackingHandler.AddKeyword)
		v1.GET("/configs/:id/keywords", trackingHandler.ListKeywords)

		// Rank checks
		v1.POST("/rank-checks", rankCheckHandler.RequestChecks)

		// Jobs
		v1.GET("/jobs", rankCheckHandler.ListJobs)
		v1.GET("/jobs/:id", rankCheckHandler.GetJob)

		// Credits
		v1.GET("/credits", creditsHandler.GetBalance)
		v1.GET("/credits/history", creditsHandler.GetHistory)

		// Internal endpoints behind the shared scheduler/billing secret
		v1.GET("/queue/process", middleware.CronAuth(cfg.CronSecret), queueHandler.Process)
		v1.POST("/credits/grants", middleware.CronAuth(cfg.CronSecret), creditsHandler.Grant)
	}

	return r
}
