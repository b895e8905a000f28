// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"travelfinder/internal/http/handlers"
	"travelfinder/internal/http/middleware"
)

type RouterDeps struct {
	Chat handlers.ChatService
	Maps handlers.MapService
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging(), middleware.APIKeyOverride())

	chat := handlers.NewChatHandler(deps.Chat)
	g := r.Group("/chat")
	g.GET("", chat.Prompt)
	g.POST("/stream-command", chat.StreamCommand)
	g.POST("/command", chat.Command)
	g.POST("/post", chat.Post)
	g.POST("/hint", chat.Hint)
	g.POST("/plan-info", chat.PlanInfo)

	mapHandler := handlers.NewMapHandler(deps.Maps)
	r.GET("/map/near-point", mapHandler.NearPoint)
	r.GET("/map/geocode", mapHandler.Geocode)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}
