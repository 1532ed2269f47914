package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"shortlink/pkg/apperr"
)

type successBody struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

type errorBody struct {
	Success    bool      `json:"success"`
	Error      string    `json:"error"`
	Data       any       `json:"data,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	StatusCode int       `json:"statusCode"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, successBody{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

// Abort writes the error envelope and stops the handler chain.
func Abort(c *gin.Context, status int, message string) {
	abortWithData(c, status, message, nil)
}

func abortWithData(c *gin.Context, status int, message string, data any) {
	c.AbortWithStatusJSON(status, errorBody{
		Success:    false,
		Error:      message,
		Data:       data,
		Timestamp:  time.Now().UTC(),
		StatusCode: status,
	})
}

// fail maps err onto the envelope. Server-side failures are attached to the
// context so logging and error reporting see the cause; the body only gets
// the public message.
func fail(c *gin.Context, err error) {
	failWithData(c, err, nil)
}

func failWithData(c *gin.Context, err error, data any) {
	status := apperr.Status(err)
	if status >= 500 {
		_ = c.Error(err)
	}
	abortWithData(c, status, apperr.PublicMessage(err), data)
}
