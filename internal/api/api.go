package api

import (
	"net/http"

	voiceCallHandler "voice-server/internal/voicecall/handler"

	"github.com/gin-gonic/gin"
)

type API struct {
	router           *gin.RouterGroup
	voiceCallHandler voiceCallHandler.Handler
}

func New(router *gin.RouterGroup, voiceCallHandler voiceCallHandler.Handler) API {
	return API{
		router:           router,
		voiceCallHandler: voiceCallHandler,
	}
}

func (a *API) RegisterRoutes() {
	a.Health()
	twilioGroup := a.router.Group("/twilio")
	{
		twilioGroup.POST("/call", a.voiceCallHandler.HandleIncomingCall)
		twilioGroup.POST("/process_audio", a.voiceCallHandler.HandleProcessAudio)
		twilioGroup.POST("/answer", a.voiceCallHandler.HandleAnswerStream)
		twilioGroup.GET("/media-stream", a.voiceCallHandler.HandleMediaStream)
	}
	recordingsGroup := a.router.Group("/recordings")
	{
		recordingsGroup.GET("", a.voiceCallHandler.HandleListRecordings)
		recordingsGroup.GET("/:call_sid", a.voiceCallHandler.HandleGetRecording)
		recordingsGroup.DELETE("/:call_sid", a.voiceCallHandler.HandleDeleteRecording)
	}
}

// Health answers plain-text liveness checks from the telephony provider
// and load balancers.
func (a *API) Health() {
	a.router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
}
