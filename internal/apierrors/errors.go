package apierrors

import (
	"net/http"

	"voice-server/internal/observability"

	"github.com/gin-gonic/gin"
)

var logger = observability.NewLogger()

// ErrorResponse is the JSON structure returned to API clients
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respond writes the error response and logs correlation info
func respond(c *gin.Context, statusCode int, code, message string) {
	ctx := c.Request.Context()
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "status_code", Value: statusCode},
		observability.Field{Key: "error_code", Value: code},
		observability.Field{Key: "error_message", Value: message},
	)
	logger.Info(ctx, "API error response")

	c.JSON(statusCode, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	respond(c, http.StatusNotFound, "NOT_FOUND", message)
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, code, message string) {
	respond(c, http.StatusBadRequest, code, message)
}

// Internal sends a 500 response without leaking internal detail
func Internal(c *gin.Context, err error) {
	logger.Error(c.Request.Context(), "internal error", err)
	respond(c, http.StatusInternalServerError, "INTERNAL", "internal server error")
}

// RespondWithError handles error logging and sends a sanitized JSON response
// to the client. Handlers that return markup instead of JSON (the TwiML
// endpoints) build their own degraded response and do not use this.
func RespondWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	Internal(c, err)
}
