package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"autoguard/internal/errdefs"
)

func statusFor(err error) int {
	switch {
	case errdefs.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, errdefs.ErrInvalidAction):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
