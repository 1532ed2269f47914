// Package router assembles the gin engine for the public HTTP surface.
package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"shortlink/pkg/logging"
	"shortlink/services/api-gateway/handlers"
	"shortlink/services/api-gateway/middleware"
)

func New(h *handlers.Handler, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.ResponseTime(),
		middleware.AccessLog(logging.Component(logger, "route")),
		middleware.Recovery(logging.Component(logger, "middleware")),
		middleware.Sentry(),
		middleware.SentryErrors(),
	)

	r.GET("/health", h.Health)
	r.POST("/shorten", h.Shorten)
	r.GET("/urls", h.List)
	r.DELETE("/urls/:shortcode", h.Delete)
	r.GET("/stats/:shortcode", h.Stats)

	// Paths used by the web client.
	api := r.Group("/api")
	{
		api.POST("/shorten", h.Shorten)
		api.GET("/shorturls", h.List)
		api.GET("/stats/:shortcode", h.Stats)
		api.DELETE("/shorturls/:shortcode", h.Delete)
	}

	r.GET("/:shortcode", h.Redirect)
	r.NoRoute(h.NotFound)

	return r
}
