package api

import (
	"net/http"

	phoneHandler "voice-bridge-server/internal/phonecall/handler"

	"github.com/gin-gonic/gin"
)

type API struct {
	router       *gin.RouterGroup
	phoneHandler phoneHandler.Handler
}

func New(router *gin.RouterGroup, phoneHandler phoneHandler.Handler) API {
	return API{
		router:       router,
		phoneHandler: phoneHandler,
	}
}

func (a *API) RegisterRoutes() {
	a.Health()
	apiGroup := a.router.Group("/api")
	{
		phoneGroup := apiGroup.Group("/phone")
		phoneGroup.POST("/voice", a.phoneHandler.HandleInboundCall)
		phoneGroup.GET("/media-stream", a.phoneHandler.HandleMediaStream)
		phoneGroup.POST("/schedule", a.phoneHandler.HandleScheduleCall)
		phoneGroup.POST("/status-callback", a.phoneHandler.HandleStatusCallback)
		phoneGroup.POST("/numbers/voice-url", a.phoneHandler.HandleConfigureVoiceWebhook)
	}
}

func (a *API) Health() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
}
