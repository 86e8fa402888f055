package handler

import (
	"encoding/json"

	"rewardhub/internal/service"
	"rewardhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type createWithdrawalBody struct {
	UserID         string          `json:"userId" binding:"required"`
	Amount         int64           `json:"amount"`
	Method         string          `json:"method" binding:"required"`
	AccountDetails json.RawMessage `json:"accountDetails"`
}

// CreateWithdrawal 提现申请
// POST /api/v1/withdrawals
func (h *Handler) CreateWithdrawal(c *gin.Context) {
	var body createWithdrawalBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.services.Withdrawal.Create(c.Request.Context(), &service.CreateWithdrawalRequest{
		UserID:         body.UserID,
		Points:         body.Amount,
		Method:         body.Method,
		AccountDetails: string(body.AccountDetails),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"withdrawalId": result.Withdrawal.WithdrawalNo,
		"status":       result.Withdrawal.Status,
		"usdValue":     result.Withdrawal.USDValue.StringFixed(2),
	})
}

// ListWithdrawals 用户提现记录
// GET /api/v1/withdrawals?user_id=xxx&page=1&page_size=20
func (h *Handler) ListWithdrawals(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id is required")
		return
	}
	page, pageSize := pagination(c)

	list, total, err := h.services.Withdrawal.ListByUser(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      list,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetBalance 查询积分余额
// GET /api/v1/account/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id is required")
		return
	}

	user, err := h.services.Account.GetUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id":         user.ID,
		"points":          user.Points,
		"lifetime_earned": user.LifetimeEarned,
	})
}

// ListTransactions 积分流水
// GET /api/v1/account/transactions?user_id=xxx
func (h *Handler) ListTransactions(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id is required")
		return
	}
	page, pageSize := pagination(c)

	list, total, err := h.services.Account.ListTransactions(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      list,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ListCallbacks 用户的渠道回调记录
// GET /api/v1/account/callbacks?user_id=xxx
func (h *Handler) ListCallbacks(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id is required")
		return
	}
	page, pageSize := pagination(c)

	list, total, err := h.services.Account.ListCallbacks(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      list,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
