package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dagalow/coach-assistant/internal/common"
	"github.com/dagalow/coach-assistant/internal/httpapi/handlers"
	"github.com/dagalow/coach-assistant/internal/httpapi/middleware"
)

// NewRouter wires all routes. Chat endpoints take optional auth: signed-in
// callers get their profile reconciled into bookings, anonymous callers
// still get the full conversation flow.
func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", func(c *gin.Context) {
		common.OK(c, gin.H{"message": "pong"})
	})

	r.POST("/users", h.CreateUser)
	r.POST("/login", h.Login)

	chat := r.Group("/chat", middleware.AuthOptional(h.Cfg.JWTSecret))
	{
		chat.POST("/messages", h.SendChatMessage)
		chat.POST("/messages/async", h.SendChatMessageAsync)
		chat.POST("/welcome", h.Welcome)
		chat.GET("/sessions/:session_id/messages", h.ListChatMessages)
		chat.GET("/jobs/:job_id", h.GetChatJob)
	}

	authed := r.Group("/", middleware.AuthRequired(h.Cfg.JWTSecret))
	{
		authed.GET("/me", h.Me)
		authed.GET("/chat/sessions", h.ListConversations)
	}

	return r
}
