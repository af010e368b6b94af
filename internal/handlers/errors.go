package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"real-estate-cms/internal/lifecycle"
)

// errorBody is the JSON shape of every error response
type errorBody struct {
	Kind    string  `json:"kind"`
	Message string  `json:"message"`
	IDs     []int64 `json:"ids,omitempty"`
}

// respondError maps err onto an HTTP status and writes the error body.
// Persistence failures are logged and their details kept out of the response.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	c.AbortWithStatusJSON(errorStatus(c, logger, err))
}

func errorStatus(c *gin.Context, logger *slog.Logger, err error) (int, gin.H) {
	var lerr *lifecycle.Error
	switch {
	case errors.As(err, &lerr):
		if lerr.Kind == lifecycle.KindPersistence {
			logger.Error("persistence failure", "op", lerr.Op, "error", err, "request_id", c.GetString(requestIDKey))
			return http.StatusInternalServerError, gin.H{"error": errorBody{Kind: lerr.Kind.String(), Message: "internal server error"}}
		}
		return lerr.Kind.HTTPStatus(), gin.H{"error": errorBody{Kind: lerr.Kind.String(), Message: lerr.Message, IDs: lerr.IDs}}
	case errors.Is(err, lifecycle.ErrNoRow):
		return http.StatusNotFound, gin.H{"error": errorBody{Kind: lifecycle.KindNotFound.String(), Message: "listing not found"}}
	default:
		logger.Error("request failed", "error", err, "request_id", c.GetString(requestIDKey))
		return http.StatusInternalServerError, gin.H{"error": errorBody{Kind: lifecycle.KindPersistence.String(), Message: "internal server error"}}
	}
}

// badRequest writes a validation error for malformed transport input
func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error": errorBody{Kind: lifecycle.KindValidation.String(), Message: message},
	})
}

// notFound writes a not-found error for reads
func notFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
		"error": errorBody{Kind: lifecycle.KindNotFound.String(), Message: "listing not found"},
	})
}
