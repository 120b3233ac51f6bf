package http

import (
	"github.com/gin-gonic/gin"
	"github.com/mycheff/engine/config"
	"go.uber.org/zap"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(RecoveryMiddleware(logger))
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.NoRoute(routeNotFound)

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", handler.Login)
			auth.POST("/register", handler.Register)
			auth.POST("/logout", handler.Logout)
			auth.GET("/profile", handler.Profile)
		}

		v1.PUT("/language", handler.SetLanguage)

		recipes := v1.Group("/recipes")
		{
			recipes.GET("", handler.ListRecipes)
			recipes.GET("/more", handler.MoreRecipes)
			recipes.POST("/refresh", handler.RefreshRecipes)
			recipes.GET("/search", handler.SearchRecipes)
			recipes.POST("/match", handler.MatchRecipes)
			recipes.GET("/:id", handler.RecipeDetail)
		}

		favorites := v1.Group("/favorites")
		{
			favorites.GET("", handler.ListFavorites)
			favorites.POST("/:id", handler.AddFavorite)
			favorites.DELETE("/:id", handler.RemoveFavorite)
		}

		v1.GET("/ingredients/search", handler.SearchIngredients)

		cacheGroup := v1.Group("/cache")
		{
			cacheGroup.GET("/stats", handler.CacheStats)
			cacheGroup.POST("/invalidate", handler.InvalidateCache)
		}
	}

	return router
}
