package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"rewardhub/internal/callback"
	"rewardhub/internal/economy"
	"rewardhub/internal/repository"
	"rewardhub/internal/service"
	"rewardhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	services *service.Services
}

func NewHandler(services *service.Services) *Handler {
	return &Handler{services: services}
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// writeError 业务错误返回描述信息，基础设施错误只记录日志并返回通用 500
func writeError(c *gin.Context, err error) {
	var rule *service.RuleError

	switch {
	case errors.Is(err, callback.ErrInvalidPayload):
		response.ParamError(c, err.Error())
	case errors.Is(err, callback.ErrSignatureMismatch):
		logrus.WithFields(logrus.Fields{
			"provider":   c.Param("provider"),
			"client_ip":  c.ClientIP(),
			"request_id": c.GetString(ctxRequestID),
		}).Warn("回调签名校验失败")
		response.Forbidden(c, response.CodeSignatureMismatch, "signature mismatch")
	case errors.Is(err, callback.ErrUnknownProvider):
		response.NotFound(c, response.CodeUnknownProvider, "unknown provider")
	case errors.As(err, &rule):
		code := response.CodeWithdrawalRejected
		if errors.Is(err, repository.ErrInsufficientBalance) {
			code = response.CodeInsufficientBalance
		}
		response.BusinessError(c, code, rule.Message)
	case errors.Is(err, repository.ErrInsufficientBalance):
		response.BusinessError(c, response.CodeInsufficientBalance, "Insufficient points")
	case errors.Is(err, repository.ErrUserNotFound):
		response.NotFound(c, response.CodeUserNotFound, "user not found")
	case errors.Is(err, repository.ErrWithdrawalNotFound):
		response.NotFound(c, response.CodeWithdrawalNotFound, "withdrawal not found")
	case errors.Is(err, repository.ErrExternalTxNotFound):
		response.NotFound(c, response.CodeTransactionNotFound, "transaction not found")
	case errors.Is(err, repository.ErrWithdrawalStatusInvalid):
		response.Error(c, http.StatusConflict, response.CodeStatusInvalid, err.Error())
	case errors.Is(err, service.ErrNotReplayable):
		response.Error(c, http.StatusConflict, response.CodeStatusInvalid, err.Error())
	case errors.Is(err, economy.ErrVersionConflict):
		response.Error(c, http.StatusConflict, response.CodeConfigConflict, err.Error())
	case errors.Is(err, economy.ErrInvalidConfig), errors.Is(err, service.ErrInvalidAmount):
		response.ParamError(c, err.Error())
	default:
		entry := logrus.WithError(err).WithFields(logrus.Fields{
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(ctxRequestID),
		})
		if errors.Is(err, context.DeadlineExceeded) {
			entry.Error("请求处理超时")
		} else {
			entry.Error("请求处理失败")
		}
		response.ServerError(c)
	}
}
