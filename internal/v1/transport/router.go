package transport

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/eurus-project/eurus/internal/v1/health"
	"github.com/eurus-project/eurus/internal/v1/middleware"
	"github.com/eurus-project/eurus/internal/v1/ratelimit"
)

// RouterOptions tunes the optional parts of the HTTP stack.
type RouterOptions struct {
	RateFormat     string
	TracingEnabled bool
}

// NewRouter assembles the gin engine: middleware chain, game API, and
// operational endpoints.
func NewRouter(h *Handler, pinger health.Pinger, opts RouterOptions) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CorrelationID())
	if opts.TracingEnabled {
		r.Use(otelgin.Middleware("eurus"))
	}
	r.Use(cors.Default())

	limit, err := ratelimit.Middleware(opts.RateFormat)
	if err != nil {
		return nil, err
	}
	r.Use(limit)

	r.POST("/new_room", h.NewRoom)

	r.GET("/health/live", health.Liveness)
	r.GET("/health/ready", health.Readiness(pinger))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r, nil
}
