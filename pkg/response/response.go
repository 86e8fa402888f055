package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

const (
	CodeInvalidPayload      = 1001
	CodeSignatureMismatch   = 1002
	CodeUnknownProvider     = 1003
	CodeInsufficientBalance = 1004
	CodeUserNotFound        = 1005
	CodeWithdrawalRejected  = 1006
	CodeWithdrawalNotFound  = 1007
	CodeStatusInvalid       = 1008
	CodeTransactionNotFound = 1009
	CodeConfigConflict      = 1010
)

type Response struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"error"`
}

// Success 输出扁平结构 {success: true, ...data}
func Success(c *gin.Context, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["success"] = true
	c.JSON(http.StatusOK, data)
}

func Error(c *gin.Context, status, code int, message string) {
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeParamError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, http.StatusBadRequest, code, message)
}

func Forbidden(c *gin.Context, code int, message string) {
	Error(c, http.StatusForbidden, code, message)
}

func NotFound(c *gin.Context, code int, message string) {
	Error(c, http.StatusNotFound, code, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

// ServerError 内部错误只返回通用信息，细节写日志
func ServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, CodeServerError, "internal server error")
}
