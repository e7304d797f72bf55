package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/auth"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/logger"
)

const internalErrorMessage = "an unexpected error occurred"

// GetUserFromContext extracts the authenticated user from gin.Context
func GetUserFromContext(c *gin.Context) *auth.UserSession {
	value, exists := c.Get(constants.ContextKeyUser)
	if !exists {
		return nil
	}
	user, ok := value.(auth.UserSession)
	if !ok {
		return nil
	}
	return &user
}

// RespondAppError sends a standardised JSON error response using pkg/errors.
// Errors that are not application errors are logged and replaced by a generic message.
func RespondAppError(c *gin.Context, err error) {
	code := appErrors.GetHTTPStatus(err)
	errorCode := appErrors.GetErrorCode(err)
	message := err.Error()

	if code >= 500 {
		_ = c.Error(err)
		logger.FromContext(c.Request.Context(), nil).Error("request error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		var appErr appErrors.AppError
		if !errors.As(err, &appErr) || errorCode == "INTERNAL_ERROR" {
			message = internalErrorMessage
		}
	}

	c.JSON(code, gin.H{
		constants.ResponseError: message,
		constants.FieldMessage:  message,
		"code":                  errorCode,
		"data":                  nil,
	})
}

// BindJSON binds JSON and returns true if successful. If failed, it sends bad request error.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondAppError(c, appErrors.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

// bindOptionalJSON is BindJSON for endpoints whose body may be empty.
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return BindJSON(c, obj)
}

// requireUser writes a 401 and returns nil when no user is on the context.
func requireUser(c *gin.Context) *auth.UserSession {
	user := GetUserFromContext(c)
	if user == nil {
		RespondAppError(c, appErrors.NewUnauthorizedError("user not authenticated"))
	}
	return user
}

// HandleGetEnvelope executes a read action and returns the result wrapped in a JSON key
// Response: { [key]: result }
func HandleGetEnvelope(c *gin.Context, key string, action func() (interface{}, error)) {
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: result})
}

// HandleListEnvelope answers { data: items, total: n }.
func HandleListEnvelope(c *gin.Context, action func() (interface{}, int, error)) {
	items, total, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "total": total})
}

// HandleWriteEnvelope runs a mutation and answers { message, [key]: result }.
func HandleWriteEnvelope(c *gin.Context, status int, key, successMsg string, action func() (interface{}, error)) {
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	response := gin.H{constants.FieldMessage: successMsg}
	if key != "" {
		response[key] = result
	}
	c.JSON(status, response)
}

// HandleDeleteEnvelope executes a delete action and returns a success message
// Response: { constants.FieldMessage: successMsg }
func HandleDeleteEnvelope(c *gin.Context, successMsg string, action func() error) {
	if err := action(); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.FieldMessage: successMsg})
}

// pageParams reads limit and offset query parameters. Out-of-range values fall back to defaults.
func pageParams(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.Query(constants.ParamLimit))
	if err != nil || limit <= 0 {
		limit = constants.DefaultLimit
	}
	if limit > constants.MaxLimit {
		limit = constants.MaxLimit
	}
	offset, err := strconv.Atoi(c.Query(constants.ParamOffset))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// dateParam parses an optional YYYY-MM-DD or RFC 3339 query parameter.
func dateParam(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, appErrors.NewValidationError(name, "must be a date in YYYY-MM-DD format")
}
