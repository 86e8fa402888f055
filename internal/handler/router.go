package handler

import (
	"net/http"

	"rewardhub/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, cfg *config.Config) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	{
		// 渠道回调，部分渠道只支持 GET
		api.GET("/callbacks/:provider", h.ProviderCallback)
		api.POST("/callbacks/:provider", h.ProviderCallback)

		api.POST("/withdrawals", h.CreateWithdrawal)
		api.GET("/withdrawals", h.ListWithdrawals)

		account := api.Group("/account")
		{
			account.GET("/balance", h.GetBalance)
			account.GET("/transactions", h.ListTransactions)
			account.GET("/callbacks", h.ListCallbacks)
		}
	}

	admin := r.Group("/admin", AdminAuthMiddleware(cfg.Auth))
	{
		admin.POST("/transactions/:id/replay", h.ReplayTransaction)
		admin.POST("/callbacks/:provider/:txid/replay", h.ReplayByProviderKey)

		admin.GET("/economy-config", h.GetEconomyConfig)
		admin.PUT("/economy-config", h.UpdateEconomyConfig)
		admin.GET("/withdrawal-rate", h.GetWithdrawalRate)
		admin.PUT("/withdrawal-rate", h.UpdateWithdrawalRate)

		admin.GET("/withdrawals", h.ListWithdrawalsByStatus)
		admin.GET("/withdrawals/:no", h.GetWithdrawalDetail)
		admin.POST("/withdrawals/:no/approve", h.ApproveWithdrawal)
		admin.POST("/withdrawals/:no/complete", h.CompleteWithdrawal)
		admin.POST("/withdrawals/:no/reject", h.RejectWithdrawal)

		admin.GET("/fraud/:userId", h.FraudPreview)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
