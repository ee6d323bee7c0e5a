// api/router.go
package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-apibuilder/api/handlers"
	"github.com/Annany2002/nebula-apibuilder/api/middleware"
	"github.com/Annany2002/nebula-apibuilder/config"
	"github.com/Annany2002/nebula-apibuilder/internal/dispatch"
	"github.com/Annany2002/nebula-apibuilder/internal/executor"
	"github.com/Annany2002/nebula-apibuilder/internal/hits"
	"github.com/Annany2002/nebula-apibuilder/internal/logger"
	"github.com/Annany2002/nebula-apibuilder/internal/metrics"
	"github.com/Annany2002/nebula-apibuilder/internal/storage"
)

var (
	customLog = logger.NewLogger()
)

// SetupRouter initializes the Gin router and sets up all routes.
func SetupRouter(metaDB *sql.DB, cfg *config.Config) *gin.Engine {
	router := gin.Default() // Includes Logger and Recovery

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.AllowedOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders:    []string{middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.RequestID())

	if cfg.RateLimitPerMinute > 0 {
		ratelimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
		router.Use(middleware.RateLimitMiddleware(ratelimiter))
	}
	// It should run after basic middleware like Logger/Recovery
	// but before the routing happens, so it wraps the handlers.
	router.Use(middleware.ErrorHandler())

	// Core components, constructed explicitly
	endpoints := storage.NewEndpointRepository(metaDB)
	databases := storage.NewDatabaseRepository(metaDB)
	exec := executor.New()
	recorder := hits.NewRecorder(endpoints, newDeduper(cfg))
	dispatcher := dispatch.New(endpoints, databases, exec, recorder)

	// Initialize Handlers
	endpointHandler := handlers.NewEndpointHandler(endpoints, databases, exec, recorder, dispatcher)
	dbHandler := handlers.NewDatabaseHandler(databases)

	router.GET("/ping", func(c *gin.Context) {
		if err := metaDB.PingContext(c.Request.Context()); err != nil {
			customLog.Warnf("Health: Metadata database unreachable: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// --- Management routes; everything else under /api is dispatched dynamically ---
	apiRoutes := router.Group(handlers.APIPrefix)
	{
		apiRoutes.GET("/list", endpointHandler.ListEndpoints)
		apiRoutes.POST("/create", endpointHandler.CreateEndpoint)
		apiRoutes.POST("/test", endpointHandler.TestQuery)
		apiRoutes.POST("/update-hits", endpointHandler.UpdateHits)
		apiRoutes.POST("/create-database", dbHandler.RegisterDatabase)
	}

	dbRoutes := router.Group("/databases")
	{
		dbRoutes.GET("", dbHandler.ListDatabases)
		dbRoutes.POST("", dbHandler.CreateDatabase)
		dbRoutes.GET("/:id", dbHandler.GetDatabase)
		dbRoutes.PUT("/:id", dbHandler.UpdateDatabase)
		dbRoutes.DELETE("/:id", dbHandler.DeleteDatabase)
	}

	router.NoRoute(endpointHandler.Dynamic)

	return router
}

// newDeduper returns the Redis dedup store when configured and reachable, the in-memory store otherwise.
func newDeduper(cfg *config.Config) hits.Deduper {
	ttl := cfg.HitsDedupTTL
	if ttl <= 0 {
		ttl = config.DefaultHitsDedupTTL
	}
	if cfg.HitsRedisURL == "" {
		return hits.NewMemoryDeduper(ttl)
	}

	dedup, err := hits.ConnectRedisDeduper(context.Background(), cfg.HitsRedisURL, ttl)
	if err != nil {
		customLog.Warnf("Router: Redis dedup store unavailable, falling back to in-memory: %v", err)
		return hits.NewMemoryDeduper(ttl)
	}
	return dedup
}
