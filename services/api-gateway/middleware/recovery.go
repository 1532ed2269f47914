package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"shortlink/services/api-gateway/handlers"
)

// Recovery turns a panic into the standard 500 envelope.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			"panic", recovered,
			"path", c.Request.URL.Path,
			"request_id", GetRequestID(c),
		)
		handlers.Abort(c, http.StatusInternalServerError, "Internal server error")
	})
}
