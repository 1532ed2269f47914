package middleware

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

// Sentry binds a per-request hub and reports panics before handing them on
// to the outer recovery middleware.
func Sentry() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{Repanic: true})
}

// SentryErrors tags the request hub and reports the errors attached to 5xx
// responses. It must run after Sentry.
func SentryErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		hub := sentrygin.GetHubFromContext(c)
		if hub == nil || hub.Client() == nil {
			c.Next()
			return
		}

		hub.Scope().SetTag("request_id", GetRequestID(c))

		c.Next()

		if c.Writer.Status() < 500 {
			return
		}
		for _, e := range c.Errors {
			hub.CaptureException(e.Err)
		}
	}
}
