package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

type ErrorDetail struct {
	Code  ErrorKind `json:"code"`
	Field string    `json:"field,omitempty"`
	Index *int      `json:"index,omitempty"`
	Count *int64    `json:"count,omitempty"`
}

// HTTPStatus maps an error kind to its response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidationFailed, KindInvalidImage, KindImageTooLarge, KindTooManyImages:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindStorageFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func RespondOK(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// RespondError writes err in the envelope. Internal errors are logged through
// c.Error and never leak their text.
func RespondError(c *gin.Context, err error) {
	status := HTTPStatus(err)
	var appErr *AppError
	if !errors.As(err, &appErr) {
		_ = c.Error(err)
		c.AbortWithStatusJSON(status, Envelope{
			Success: false,
			Message: "internal server error",
			Errors:  ErrorDetail{Code: KindInternal},
		})
		return
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, Envelope{
		Success: false,
		Message: appErr.PublicMessage(),
		Errors: ErrorDetail{
			Code:  appErr.Kind,
			Field: appErr.Field,
			Index: appErr.Index,
			Count: appErr.Count,
		},
	})
}

// RespondCode is for failures that have no AppError kind of their own, such
// as the edit window or the rate limiter.
func RespondCode(c *gin.Context, status int, code string, message string, extra gin.H) {
	details := gin.H{"code": code}
	for k, v := range extra {
		details[k] = v
	}
	c.AbortWithStatusJSON(status, Envelope{Success: false, Message: message, Errors: details})
}
