// Package router wires the document chat routes onto a gin engine.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/docchat/internal/docchat/handler"
	"github.com/kart-io/docchat/internal/docchat/middleware"
)

// Register installs all routes. The session header is required on every
// route, health included.
func Register(engine *gin.Engine, h *handler.Handler) {
	engine.Use(middleware.RequireSession())

	engine.GET("/health", h.Health)
	engine.POST("/upload", h.Upload)
	engine.POST("/query", h.Query)
	engine.POST("/session/reset", h.Reset)
	engine.GET("/stats", h.Stats)
}
