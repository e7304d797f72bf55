package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
	appErrors "github.com/tfxTanoli/nextperience-crm-sub001/pkg/errors"
)

// abortWithError writes the standard error envelope and stops the chain.
func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(appErrors.GetHTTPStatus(err), gin.H{
		constants.ResponseError: err.Error(),
		constants.FieldMessage:  err.Error(),
		"code":                  appErrors.GetErrorCode(err),
		"data":                  nil,
	})
}
