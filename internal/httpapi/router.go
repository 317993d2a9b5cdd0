package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/blockbridge-backend/internal/config"
	"github.com/yungbote/blockbridge-backend/internal/platform/logger"
)

const serviceName = "blockbridge-backend"

type RouterConfig struct {
	Env      string
	HTTP     config.HTTPConfig
	Sessions *SessionManager
	Health   *HealthHandler
	Programs *ProgramHandler
	Tutor    *TutorHandler
}

func NewRouter(cfg RouterConfig, log *logger.Logger) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(RequestID())
	router.Use(RequestLogger(log))
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(CORS(cfg.HTTP.AllowedOrigins))

	router.GET("/healthz", cfg.Health.Liveness)
	router.GET("/readyz", cfg.Health.Readiness)

	api := router.Group("/api/v1")
	api.Use(cfg.Sessions.Middleware())
	{
		api.POST("/programs", cfg.Programs.Upload)
		api.GET("/programs/current/code", cfg.Programs.CurrentCode)
		api.GET("/programs/current/preview.png", cfg.Programs.Preview)
		api.GET("/programs/:id", cfg.Programs.Get)

		api.POST("/tutor/suggestions", cfg.Tutor.Suggestions)
		api.POST("/tutor/encouragement/stream", cfg.Tutor.EncouragementStream)
		api.POST("/tutor/idea/stream", cfg.Tutor.IdeaStream)
		api.POST("/tutor/chat/stream", cfg.Tutor.ChatStream)
		api.GET("/tutor/cache/stats", cfg.Tutor.CacheStats)
	}

	return router
}

// NewServer wraps the router in an http.Server with the configured
// timeouts. WriteTimeout stays zero: the tutor streams hold the response
// open for as long as the model keeps talking.
func NewServer(httpCfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              httpCfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: httpCfg.ReadHeaderTimeout.Duration,
		IdleTimeout:       httpCfg.IdleTimeout.Duration,
		WriteTimeout:      0,
	}
}
