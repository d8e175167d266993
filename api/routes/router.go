package routes

import (
	"marketplace/api/handlers"
	"marketplace/api/middleware"
	"marketplace/logging"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "marketplace"

func NewRouter(logger *zap.Logger, h *handlers.Handler, authn middleware.Authenticator, mediaRoot string) *gin.Engine {
	router := gin.New()
	router.Use(logging.GinLogger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.PrometheusMiddleware(serviceName))

	PublicApi(router, h, authn)
	ServiceApi(router, mediaRoot)
	return router
}
