package router

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/navid-fn/pelletradar/server/internal/handler"
)

const requestIDHeader = "X-Request-ID"

type Config struct {
	CatalogHandler *handler.CatalogHandler

	// StreamHandler is optional; without it no websocket route is registered.
	StreamHandler *handler.StreamHandler
}

func NewRouter(cfg *Config) *gin.Engine {
	router := gin.Default()
	router.Use(requestID())

	router.GET("/health", handler.Health)

	api := router.Group("/v1/")
	registerCatalogRoutes(api, cfg.CatalogHandler)
	if cfg.StreamHandler != nil {
		registerStreamRoutes(api, cfg.StreamHandler)
	}

	return router
}

// requestID propagates the caller's X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}
