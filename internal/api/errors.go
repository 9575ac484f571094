package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"biblioteca/internal/models"
)

// errorResponse is the body of every failed request
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusOf maps a domain error kind to its HTTP status
func statusOf(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidCredentials), errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrExternalLookupUnavailable):
		return http.StatusFailedDependency
	}
	return http.StatusInternalServerError
}

// abort writes err with the status of its kind and stops the chain
func (h *Handler) abort(c *gin.Context, err error) {
	h.abortWithStatus(c, statusOf(err), err)
}

// abortWithStatus writes err with an explicit status. Internal errors are
// logged and their details kept out of the response.
func (h *Handler) abortWithStatus(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	code := models.CodeOf(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		code = "INTERNAL"
		message = "internal server error"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: message, Code: code})
}
