package router

import (
	"github.com/labstack/echo/v4"

	"github.com/octobees/provider-directory/internal/auth"
	"github.com/octobees/provider-directory/internal/config"
	"github.com/octobees/provider-directory/internal/handler"
	middlewarepkg "github.com/octobees/provider-directory/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router. Auth and Admin are optional.
type Handlers struct {
	Directory *handler.DirectoryHandler
	Auth      *handler.AuthHandler
	Admin     *handler.AdminUploadHandler
}

// Register wires all HTTP routes for the API.
func Register(e *echo.Echo, cfg *config.Config, jwtManager *auth.JWTManager, handlers Handlers) {
	e.GET("/healthz", handlers.Directory.Health)
	e.GET("/readyz", handlers.Directory.Ready)

	limit := middlewarepkg.SearchRateLimiter(cfg.RateLimitSearch)

	directory := e.Group("/api/directory")
	directory.GET("/search", handlers.Directory.Search, limit)
	directory.GET("/providers/:id", handlers.Directory.GetProvider)
	directory.GET("/filters", handlers.Directory.Filters)
	e.GET("/search", handlers.Directory.Search, limit)

	if handlers.Auth != nil {
		e.POST("/auth/login", handlers.Auth.Login)
	}

	if handlers.Admin != nil && jwtManager != nil {
		admin := e.Group("/admin", middlewarepkg.JWT(jwtManager), middlewarepkg.RequireRole(auth.RoleAdmin))
		admin.POST("/providers/upload-csv", handlers.Admin.UploadCSV)
		admin.GET("/providers/:id", handlers.Admin.GetStoredProvider)
		admin.PUT("/providers/:id", handlers.Admin.PutProvider)
		admin.POST("/catalog/reload", handlers.Admin.ReloadCatalog)
	}
}
