package router

import (
	"github.com/gin-gonic/gin"

	"github.com/navid-fn/pelletradar/server/internal/handler"
)

func registerCatalogRoutes(router *gin.RouterGroup, catalogHandler *handler.CatalogHandler) {
	router.POST("/listings", catalogHandler.IngestListings)
	router.GET("/retailers", catalogHandler.ListRetailers)
	router.GET("/audit/duplicates", catalogHandler.GetDuplicates)

	products := router.Group("/products")
	{
		products.GET("", catalogHandler.ListProducts)
		products.GET("/:id", catalogHandler.GetProduct)
		products.GET("/:id/prices", catalogHandler.GetPriceHistory)
		products.GET("/:id/retailers", catalogHandler.GetRetailerPrices)
	}
}

func registerStreamRoutes(router *gin.RouterGroup, streamHandler *handler.StreamHandler) {
	router.GET("/ws/drops", streamHandler.PriceDrops)
}
