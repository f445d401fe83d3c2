package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ethlas/builderhub/internal/config"
	"github.com/ethlas/builderhub/internal/http/handlers"
	"github.com/ethlas/builderhub/internal/http/middlewares"
	"github.com/ethlas/builderhub/internal/observability"
)

// NewRouter wires middlewares, handlers and the store into one engine.
// The store ping backs readiness; prom and registry may be nil in tests.
func NewRouter(
	log *slog.Logger,
	cfg config.Config,
	store handlers.BuilderStore,
	verifier middlewares.TokenVerifier,
	issuer handlers.TokenIssuer,
	prom *observability.Prom,
	registry *prometheus.Registry,
	ping func() error,
) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	r.Use(middlewares.RequireJSON())
	r.Use(otelgin.Middleware("builderhub"))

	if prom != nil {
		r.Use(prom.GinHandleMiddleware())
	}

	// Routes
	r.GET("/", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "Welcome to Builder Hub!")
	})

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	buildersHandler := handlers.NewBuildersHandler(store, issuer, log)
	authMw := middlewares.NewAuthMiddleware(verifier)

	r.POST("/builders", buildersHandler.Register)
	r.POST("/builders/login", buildersHandler.Login)
	r.GET("/builders", buildersHandler.List)
	r.GET("/builders/:id", buildersHandler.GetProfile)
	r.PUT("/builders/:id", authMw.RequireAuth(), buildersHandler.Update)
	r.DELETE("/builders/:id", authMw.RequireAuth(), buildersHandler.Delete)

	return r
}
