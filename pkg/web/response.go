package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	weberrors "github.com/lk2023060901/xdooria-dungeon/pkg/web/errors"
)

// Response 所有接口共用的响应信封，失败时没有 data
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Success 200 + CodeOK
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: weberrors.CodeOK, Message: "ok", Data: data})
}

// Fail 按错误码推导 HTTP 状态码写出错误并中断后续 handler
func Fail(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(weberrors.CodeToStatus(code), Response{Code: code, Message: message})
}
