package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"messenger-service/controllers"
	"messenger-service/middlewares"
)

// RegisterRoutes builds the gin engine and binds the messenger endpoints.
func RegisterRoutes(mc *controllers.MessageController, sc *controllers.StreamController) *gin.Engine {
	r := gin.Default()

	corsConfig := cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-User-Id"},
		AllowCredentials: true,
	}
	r.Use(cors.New(corsConfig))

	r.GET("/ws", middlewares.TokenAuth(), sc.WebSocket)

	api := r.Group("/api/messages")
	api.Use(middlewares.TokenAuth())
	{
		api.GET("/conversations", mc.ListConversations)
		// POST :id = counterpart identifier, GET :id = conversation id
		api.POST("/conversations/:id", mc.OpenConversation)
		api.GET("/conversations/:id", mc.GetConversation)
		api.GET("/conversations/:id/messages", mc.GetMessages)
		api.PATCH("/conversations/:id/read", mc.MarkRead)
		api.POST("", mc.SendMessage)
		api.GET("/stream", sc.Stream)
	}

	return r
}
