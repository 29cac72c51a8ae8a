package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xraph/stockwise"
	"github.com/xraph/stockwise/lock"
)

const (
	msgInternal    = "Something went wrong"
	msgInvalidBody = "Invalid request body"
)

// publicMessages are the messages the web client shows as they are.
var publicMessages = []struct {
	err error
	msg string
}{
	{stockwise.ErrItemNotFound, "Item not found"},
	{stockwise.ErrReceiptNotFound, "Order history not found"},
	{stockwise.ErrUsageNotFound, "Use history not found"},
	{stockwise.ErrRequirementNotFound, "Requirement not found"},
	{stockwise.ErrUserNotFound, "User not found"},
	{stockwise.ErrUsernameTaken, "Username already taken"},
	{stockwise.ErrEmailTaken, "Email already in use"},
	{stockwise.ErrIncorrectPassword, "Incorrect password"},
	{stockwise.ErrIncorrectAnswer, "Incorrect security answer"},
	{stockwise.ErrItemIDExhausted, "No free item number is left"},
	{lock.ErrNotObtained, "Item is busy, try again"},
	{stockwise.ErrVersionConflict, "Item was modified concurrently, try again"},
}

// status maps an error to its HTTP status.
func status(err error) int {
	switch {
	case stockwise.IsValidation(err):
		return http.StatusBadRequest
	case stockwise.IsAuth(err):
		return http.StatusUnauthorized
	case stockwise.IsNotFound(err):
		return http.StatusNotFound
	case stockwise.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func message(err error, code int) string {
	if code == http.StatusInternalServerError {
		return msgInternal
	}
	for _, m := range publicMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return strings.ReplaceAll(err.Error(), "stockwise: ", "")
}

// fail writes {"error": message}. Server errors are logged and hidden.
func (s *Server) fail(c *gin.Context, err error) {
	code := status(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"request_id", c.GetString(ctxRequestID),
			"error", err,
		)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": message(err, code)})
}

func (s *Server) failWith(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

// bind decodes the JSON body into dst.
func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.failWith(c, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	return true
}
