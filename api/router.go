// api/router.go
package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rikardbq/serf/api/handlers"
	"github.com/rikardbq/serf/api/middleware"
	"github.com/rikardbq/serf/config"
	"github.com/rikardbq/serf/internal/storage"
)

// SetupRouter initializes the Gin router and sets up all routes.
func SetupRouter(directory *storage.Directory, registry *storage.Registry, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.BodyLimit(cfg.BodyLimitMB))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "0", "1")
	corsConfig.ExposeHeaders = append(corsConfig.ExposeHeaders, "0")
	router.Use(cors.New(corsConfig))

	databaseHandler := handlers.NewDatabaseHandler(directory, registry)

	router.GET("/health", handlers.HandleHealthGet)

	// A distinct route carries migrations; plain posts carry fetch/mutate.
	router.POST("/:database", databaseHandler.HandleDatabasePost)
	router.POST("/:database/m", databaseHandler.HandleMigrationPost)

	return router
}
