package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RespondSuccess wraps data in the standard response envelope.
func RespondSuccess(c *gin.Context, data interface{}, meta interface{}) {
	body := gin.H{"code": http.StatusOK, "data": data}
	if meta != nil {
		body["meta"] = meta
	}
	c.JSON(http.StatusOK, body)
}

// RespondError emits the standard error envelope with the given status.
func RespondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"code": status, "error": message})
}
