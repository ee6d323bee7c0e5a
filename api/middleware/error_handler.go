// api/middleware/error_handler.go
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10" // Import validator for binding errors

	"github.com/Annany2002/nebula-apibuilder/internal/core"
	"github.com/Annany2002/nebula-apibuilder/internal/logger"
	"github.com/Annany2002/nebula-apibuilder/internal/storage" // Import internal storage errors
)

var (
	customLog = logger.NewLogger()
)

// Error codes returned in the "code" field of every error body.
const (
	CodeValidation    = "validation"
	CodeNotFound      = "not_found"
	CodeConflict      = "conflict"
	CodeConfiguration = "configuration"
	CodeExecution     = "execution"
	CodeInternal      = "internal"
	CodeRateLimited   = "rate_limited"
)

// ErrorHandler creates a Gin middleware for centralized error handling.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Process request using subsequent handlers
		c.Next()

		// Check if any errors were attached during handler execution
		if len(c.Errors) == 0 {
			return // No errors, nothing to do
		}

		// We only handle the last error for the response.
		err := c.Errors.Last().Err
		customLog.Printf("[ErrorHandler] Detected error: %v | Type: %T", err, err)

		statusCode, code, userMessage := classify(err)

		if !c.Writer.Written() {
			c.AbortWithStatusJSON(statusCode, gin.H{"error": userMessage, "code": code})
		} else {
			customLog.Warnf("[ErrorHandler] Warning: Response already written before handling error.")
		}
	}
}

// classify maps an error to its HTTP status, error code and user facing message.
func classify(err error) (int, string, string) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		fields := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			customLog.Printf("Validation Error: Field %s failed on %s", fe.Field(), fe.Tag())
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return http.StatusBadRequest, CodeValidation, "Validation failed: " + strings.Join(fields, ", ")
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, CodeValidation, err.Error()
	case errors.Is(err, storage.ErrEndpointExists):
		return http.StatusConflict, CodeConflict, err.Error()
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, CodeNotFound, err.Error()
	case errors.Is(err, core.ErrConfiguration):
		return http.StatusInternalServerError, CodeConfiguration, err.Error()
	case errors.Is(err, core.ErrExecution):
		return http.StatusBadGateway, CodeExecution, err.Error()
	default:
		customLog.Warnf("Unhandled error type: %T, Error: %v", err, err)
		return http.StatusInternalServerError, CodeInternal, "An unexpected internal server error occurred."
	}
}
