package api

import (
	"github.com/gin-gonic/gin"

	"github.com/pattty847/Multi-Agent-Team/internal/config"
	"github.com/pattty847/Multi-Agent-Team/pkg/ratelimiter"
)

// RegisterRoutes registers all the routes for the orchestration service.
func RegisterRoutes(router *gin.Engine, api *API, cfg *config.AppConfig) {
	router.GET("/health", api.HealthHandler)

	v1 := router.Group("/api/v1")
	if cfg.Middleware.RateLimiter.Enabled {
		limiter := ratelimiter.NewTokenBucket(cfg.Middleware.RateLimiter.Rate, cfg.Middleware.RateLimiter.Capacity)
		v1.Use(RateLimitMiddleware(limiter))
	}

	workflows := v1.Group("/workflows")
	workflows.Use(AuthMiddleware(cfg.Auth.JwtSecret))
	{
		workflows.POST("", api.SubmitWorkflowHandler)
		workflows.GET("", api.GetWorkflowsHandler)
		workflows.GET("/:id", api.GetWorkflowHandler)
		workflows.POST("/:id/stop", api.StopWorkflowHandler)
	}

	agents := v1.Group("/agents")
	agents.Use(AuthMiddleware(cfg.Auth.JwtSecret))
	{
		agents.GET("", api.GetWorkersHandler)
	}

	ws := router.Group("/ws")
	ws.Use(AuthMiddleware(cfg.Auth.JwtSecret))
	{
		ws.GET("/subscribe", api.WebSocketHandler)
	}
}
