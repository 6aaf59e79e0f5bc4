package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/schemeworks/sow-backend/internal/handlers"
)

type RouterConfig struct {
  SchemeHandler *handlers.SchemeHandler
  SSEHandler    *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  router.GET("/healthcheck", handlers.HealthCheck)

  api := router.Group("/api")
  {
    api.POST("/schemes/generate", cfg.SchemeHandler.Generate)
    api.GET("/schemes", cfg.SchemeHandler.ListSchemes)
    api.GET("/schemes/:id", cfg.SchemeHandler.GetScheme)
    api.GET("/schemes/:id/generation", cfg.SchemeHandler.GetLatestRun)
    api.GET("/runs/:id", cfg.SchemeHandler.GetRun)
  }

  router.GET("/sse/stream", cfg.SSEHandler.SSEStream)

  return router
}
