package handler

import (
	"strings"
	"time"

	"rewardhub/internal/auth"
	"rewardhub/internal/config"
	"rewardhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	ctxRequestID = "request_id"
	ctxAdmin     = "admin"
)

// RequestIDMiddleware 透传或生成 X-Request-ID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// LoggerMiddleware 日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		entry := logrus.WithFields(logrus.Fields{
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"path":       path,
			"request_id": c.GetString(ctxRequestID),
		})
		// query 中可能带签名，不记录

		switch {
		case c.Writer.Status() >= 500:
			entry.Error("[HTTP]")
		case c.Writer.Status() >= 400:
			entry.Warn("[HTTP]")
		default:
			entry.Info("[HTTP]")
		}
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logrus.WithFields(logrus.Fields{
					"panic":      err,
					"path":       c.Request.URL.Path,
					"request_id": c.GetString(ctxRequestID),
				}).Error("[PANIC]")
				response.ServerError(c)
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// AdminAuthMiddleware 校验管理员 Bearer 令牌，要求 role=admin
func AdminAuthMiddleware(cfg config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			response.Unauthorized(c, "missing or invalid Authorization header")
			return
		}

		claims, err := auth.ParseToken(strings.TrimPrefix(header, "Bearer "), cfg.Issuer, cfg.JWTSecret)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		if claims.Role != auth.RoleAdmin {
			response.Forbidden(c, response.CodeForbidden, "admin role required")
			return
		}

		c.Set(ctxAdmin, claims.Subject)
		c.Next()
	}
}
