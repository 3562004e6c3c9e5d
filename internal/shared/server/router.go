package server

import (
	"github.com/gin-gonic/gin"

	"hojaruta-backend/internal/auth"
	"hojaruta-backend/internal/backup"
	"hojaruta-backend/internal/envios"
	"hojaruta-backend/internal/historial"
	"hojaruta-backend/internal/hojas"
	"hojaruta-backend/internal/locaciones"
	"hojaruta-backend/internal/notificaciones"
	"hojaruta-backend/internal/progreso"
	"hojaruta-backend/internal/services/health"
	"hojaruta-backend/internal/shared/config"
	"hojaruta-backend/internal/shared/metrics"
	"hojaruta-backend/internal/shared/server/middleware"
	"hojaruta-backend/internal/shared/server/respond"
	"hojaruta-backend/internal/unidades"
	"hojaruta-backend/internal/usuarios"
)

const (
	rateGroupDefault = "DEFAULT"
	rateGroupLogin   = "LOGIN"
)

// RouterDeps carries the handlers mounted by NewRouter.
type RouterDeps struct {
	Config         config.Config
	Tokens         middleware.TokenVerifier
	Limiter        *middleware.RateLimiter
	Health         *health.Handler
	Auth           *auth.Handler
	Hojas          *hojas.Handler
	Envios         *envios.Handler
	Progreso       *progreso.Handler
	Notificaciones *notificaciones.Handler
	Usuarios       *usuarios.Handler
	Unidades       *unidades.Handler
	Locaciones     *locaciones.Handler
	Historial      *historial.Handler
	Backup         *backup.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	respond.ExposeInternalErrors(!cfg.IsProduction())

	limiter := deps.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(nil)
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.SecurityHeaders(cfg.IsProduction()),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.BodyLimit(cfg.PayloadMaxBytes),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        map[string]middleware.RateLimitRule{rateGroupDefault: middleware.RuleForWindow(cfg.RateLimitMax, cfg.RateLimitWindow)},
			DefaultGroup: rateGroupDefault,
			Skip:         isHealthCheck,
			Limiter:      limiter,
		}),
	)

	if deps.Health != nil {
		deps.Health.RegisterRoutes(r)
	}
	r.GET("/metrics", metrics.Handler())

	public := r.Group("/api")
	if deps.Auth != nil {
		if cfg.IsProduction() {
			deps.Auth.LoginGuard = middleware.RateLimit(middleware.RateLimitConfig{
				Rules:        map[string]middleware.RateLimitRule{rateGroupLogin: middleware.RuleForWindow(cfg.AuthRateLimitMax, cfg.RateLimitWindow)},
				DefaultGroup: rateGroupLogin,
				Limiter:      limiter,
			})
		}
		deps.Auth.RegisterPublicRoutes(public)
	}
	if deps.Envios != nil {
		deps.Envios.RegisterPublicRoutes(public)
	}
	if deps.Locaciones != nil {
		deps.Locaciones.RegisterPublicRoutes(public)
	}

	api := r.Group("/api", middleware.Auth(deps.Tokens))
	if deps.Usuarios == nil {
		registerMeRoutes(api)
	}
	if deps.Auth != nil {
		deps.Auth.RegisterRoutes(api)
	}
	if deps.Hojas != nil {
		deps.Hojas.RegisterRoutes(api)
	}
	if deps.Envios != nil {
		deps.Envios.RegisterRoutes(api)
	}
	if deps.Progreso != nil {
		deps.Progreso.RegisterRoutes(api)
	}
	if deps.Notificaciones != nil {
		deps.Notificaciones.RegisterRoutes(api)
	}
	if deps.Usuarios != nil {
		deps.Usuarios.RegisterRoutes(api)
	}
	if deps.Unidades != nil {
		deps.Unidades.RegisterRoutes(api)
	}
	if deps.Locaciones != nil {
		deps.Locaciones.RegisterRoutes(api)
	}
	if deps.Historial != nil {
		deps.Historial.RegisterRoutes(api)
	}
	if deps.Backup != nil {
		deps.Backup.RegisterRoutes(api)
	}

	return r
}

func isHealthCheck(c *gin.Context) bool {
	switch c.Request.URL.Path {
	case "/api/health", "/healthz":
		return true
	}
	return false
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":3001"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
