package api

import (
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gsarma/codemate/internal/config"
)

// NewRouter builds the engine with middleware and every route registered.
func NewRouter(h *Handler, cfg config.ServerConfig, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(RequestID(), AccessLog(logger), gin.Recovery(), cors.New(corsConfig(cfg.CORSOrigins)))
	RegisterRoutes(r, h)
	return r
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.GET("/", h.Health)

	r.POST("/compile", h.Compile)
	r.POST("/run", h.Run)
	r.POST("/explain_error", h.ExplainError)
	r.POST("/autofix", h.Autofix)
	r.POST("/chat", h.Chat)
	r.POST("/models/reselect", h.ReselectModel)

	r.POST("/hardware/update", h.HardwareUpdate)
	r.GET("/hardware/status", h.HardwareStatus)
}

// The frontend is served from another port.
func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, requestIDHeader)
	cfg.ExposeHeaders = []string{requestIDHeader}
	return cfg
}
