// Package handlers implements the HTTP API surface.
package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plantsaathi/market-intelligence/pkg/errors"
)

// ErrorBody is the standard error response envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps application errors to HTTP statuses via their code.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	message := err.Error()
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
		if appErr.Detail != "" {
			message += ": " + appErr.Detail
		}
	}
	c.JSON(errors.HTTPStatus(code), gin.H{"error": ErrorBody{
		Code:    string(code),
		Message: message,
	}})
}

func respondInvalid(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": ErrorBody{
		Code:    string(errors.CodeInvalidParam),
		Message: message,
	}})
}
