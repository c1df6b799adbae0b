package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildInfo is reported by /health and /version
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// CORSConfig lists the allowed origins, methods and headers, each comma separated
type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

// DependencyCheck reports the health of one backing service on /health
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

const healthCheckTimeout = 2 * time.Second

// Routes groups every handler the router mounts
type Routes struct {
	Chat     *ChatHandler
	Listings *ListingHandler
	Price    *PriceHandler
	Feedback *FeedbackHandler
	Build    BuildInfo
	Checks   []DependencyCheck
	CORS     CORSConfig
	Logger   *zap.Logger
}

// NewRouter builds the gin engine with middleware and all routes
func NewRouter(r Routes) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if r.Logger != nil {
		router.Use(RequestLogger(r.Logger))
	}
	router.Use(Metrics())
	router.Use(cors.New(corsConfig(r.CORS)))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Oliv backend is running. Use POST /chat to interact."})
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		status, deps := checkDependencies(c.Request.Context(), r.Checks)
		c.JSON(http.StatusOK, gin.H{
			"status":       status,
			"dependencies": deps,
			"service":    "oliv",
			"version":    r.Build.Version,
			"build_time": r.Build.BuildTime,
			"git_commit": r.Build.GitCommit,
		})
	})

	// Version endpoint
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    r.Build.Version,
			"build_time": r.Build.BuildTime,
			"git_commit": r.Build.GitCommit,
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/chat", r.Chat.Chat)
	router.DELETE("/chat/session", r.Chat.Reset)

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/listings/search", r.Listings.Search)
		apiV1.GET("/price-stats", r.Price.Stats)
		apiV1.POST("/predict", r.Price.Predict)
		apiV1.POST("/feedback", r.Feedback.Submit)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
	})

	return router
}

func corsConfig(c CORSConfig) cors.Config {
	cfg := cors.DefaultConfig()
	origins := splitList(c.AllowedOrigins)
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	if methods := splitList(c.AllowedMethods); len(methods) > 0 {
		cfg.AllowMethods = methods
	}
	if headers := splitList(c.AllowedHeaders); len(headers) > 0 {
		cfg.AllowHeaders = headers
	}
	cfg.ExposeHeaders = []string{SessionHeader}
	return cfg
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// checkDependencies runs every check and reports "degraded" if any fails.
// The service still answers chats while a dependency is down, so /health stays 200.
func checkDependencies(ctx context.Context, checks []DependencyCheck) (string, map[string]string) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	status := "healthy"
	deps := make(map[string]string, len(checks))
	for _, dc := range checks {
		if err := dc.Check(ctx); err != nil {
			deps[dc.Name] = err.Error()
			status = "degraded"
			continue
		}
		deps[dc.Name] = "ok"
	}
	return status, deps
}
