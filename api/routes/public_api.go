package routes

import (
	"net/http"

	"marketplace/api/handlers"
	"marketplace/api/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PublicApi registers the marketplace api. Everything except signup and
// login requires a bearer token.
func PublicApi(router *gin.Engine, h *handlers.Handler, authn middleware.Authenticator) *gin.RouterGroup {
	router.POST("/user/signup/", h.SignUp)
	router.POST("/user/login/", h.Login)

	api := router.Group("/", middleware.AuthMiddleware(authn, false))
	{
		api.GET("user/", h.GetProfile)
		api.PATCH("user/", h.UpdateProfile)
		api.PUT("user/password/", h.ChangePassword)
		api.GET("user/orders/", h.ListOwnOrders)

		api.GET("categories/", h.ListCategories)
		api.GET("authors/", h.ListAuthors)
		api.GET("authors/:id/", h.GetAuthor)

		api.GET("orders/", h.ListOrders)
		api.POST("orders/", h.CreateOrder)
		api.GET("orders/:id/", h.GetOrder)
		api.PUT("orders/:id/", h.UpdateOrder)
		api.PATCH("orders/:id/", h.UpdateOrder)
		api.DELETE("orders/:id/", h.DeleteOrder)
		api.GET("orders/:id/switch", h.SwitchOrder)

		api.GET("comments/", h.ListComments)
		api.POST("comments/", h.CreateComment)
		api.GET("comments/:id/", h.GetComment)
		api.DELETE("comments/:id/", h.DeleteComment)
		api.GET("comments/:id/user", h.UserComments)

		api.GET("chats/", h.ListChats)
		api.POST("chats/", h.OpenChat)
		api.GET("chats/:id/", h.GetChat)
		api.GET("chats/:id/messages/", h.ChatMessages)
	}

	router.GET("/ws/:chat_id/", middleware.AuthMiddleware(authn, true), h.ChatSocket)
	return api
}

// ServiceApi registers metrics, health check and uploaded media.
func ServiceApi(router *gin.Engine, mediaRoot string) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.Static("/media", mediaRoot)
}
