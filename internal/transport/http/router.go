package http

import (
	"github.com/fundflow/ledger-service/internal/config"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewRouter(svc Services, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	RegisterHandlers(r, svc)
	return r
}
