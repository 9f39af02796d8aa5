// Package api holds the JSON envelope every HTTP endpoint responds with
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/wollisellis/vireiaestatistica-sub002/internal/common/errors"
)

// Error codes used directly by handlers
const (
	ErrCodeInternalServer = apperrors.CodeInternalError
	ErrCodeNotFound       = apperrors.CodeNotFound
	ErrCodeBadRequest     = apperrors.CodeBadRequest
)

// Response is the standard envelope: {"success": true, "data": ...}
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody is the error part of a failed response
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// NewError creates an application error with an explicit HTTP status
func NewError(code, message string, status int) *apperrors.AppError {
	return &apperrors.AppError{Code: code, Message: message, Status: status}
}

// RespondWith writes data in the success envelope
func RespondWith(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// RespondWithList writes a list and its length
func RespondWithList(c *gin.Context, data interface{}, count int) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Count: &count})
}

// RespondWithError writes err in the error envelope. Errors that are not application
// errors are reported as internal errors without their text.
func RespondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal("internal server error", "")
	}
	status := appErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error: &ErrorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}
