package response

import (
	"errors"
	"net/http"
	"time"

	"recharge-store/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the gin context key holding the request ID.
const RequestIDKey = "request_id"

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Success   bool          `json:"success"`
	ErrorCode string        `json:"error_code"`
	ErrorKind apperror.Kind `json:"error_kind"`
	Message   string        `json:"message"`
	RequestID string        `json:"request_id"`
	Timestamp string        `json:"timestamp"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, "", data)
}

// OKWithMessage sends a 200 response carrying a human-readable message.
func OKWithMessage(c *gin.Context, message string, data interface{}) {
	write(c, http.StatusOK, message, data)
}

// Created sends a 201 response with data.
func Created(c *gin.Context, message string, data interface{}) {
	write(c, http.StatusCreated, message, data)
}

func write(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, SuccessResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Error sends an error response. It checks if err is an *apperror.AppError
// and maps it accordingly, otherwise returns 500.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if appErr.Err != nil {
			_ = c.Error(appErr.Err)
		}
		c.JSON(appErr.HTTPStatus, ErrorResponse{
			ErrorCode: appErr.Code,
			ErrorKind: appErr.Kind,
			Message:   appErr.Message,
			RequestID: getRequestID(c),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		ErrorCode: "SYS_000",
		ErrorKind: apperror.KindInternal,
		Message:   "Internal server error",
		RequestID: getRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// getRequestID retrieves request ID from context, or generates one.
func getRequestID(c *gin.Context) string {
	if id, exists := c.Get(RequestIDKey); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
