package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"rewardhub/internal/model"
	"rewardhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ReplayTransaction 按存储的原始报文重放回调
// POST /admin/transactions/:id/replay
func (h *Handler) ReplayTransaction(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "invalid transaction id")
		return
	}

	result, err := h.services.Replay.Replay(c.Request.Context(), id, c.GetString(ctxAdmin))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"replay": result})
}

// ReplayByProviderKey 按渠道交易号重放
// POST /admin/callbacks/:provider/:txid/replay
func (h *Handler) ReplayByProviderKey(c *gin.Context) {
	result, err := h.services.Replay.ReplayByKey(c.Request.Context(), c.Param("provider"), c.Param("txid"), c.GetString(ctxAdmin))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"replay": result})
}

// GetEconomyConfig 当前生效配置和持久化的覆盖文档
// GET /admin/economy-config
func (h *Handler) GetEconomyConfig(c *gin.Context) {
	ctx := c.Request.Context()
	cfg, err := h.services.Economy.Get(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	overrides, version, err := h.services.Economy.Document(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"version":   version,
		"effective": cfg,
		"overrides": overrides,
	})
}

type updateEconomyBody struct {
	ExpectedVersion *int64                     `json:"expected_version"`
	Changes         map[string]json.RawMessage `json:"changes" binding:"required"`
}

// UpdateEconomyConfig 合并顶层字段，expected_version 不一致时返回 409
// PUT /admin/economy-config
func (h *Handler) UpdateEconomyConfig(c *gin.Context) {
	var body updateEconomyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}
	if len(body.Changes) == 0 {
		response.ParamError(c, "changes must not be empty")
		return
	}

	cfg, err := h.services.Economy.Update(c.Request.Context(), body.Changes, c.GetString(ctxAdmin), body.ExpectedVersion)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"version":   cfg.Version,
		"effective": cfg,
	})
}

// GetWithdrawalRate 提现汇率相关字段
// GET /admin/withdrawal-rate
func (h *Handler) GetWithdrawalRate(c *gin.Context) {
	cfg, err := h.services.Economy.Get(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"version":               cfg.Version,
		"points_per_dollar":     cfg.PointsPerDollar,
		"country_multipliers":   cfg.CountryMultipliers,
		"min_withdrawal_points": cfg.MinWithdrawalPoints,
	})
}

type updateRateBody struct {
	ExpectedVersion     *int64                     `json:"expected_version"`
	PointsPerDollar     *int64                     `json:"points_per_dollar"`
	CountryMultipliers  map[string]decimal.Decimal `json:"country_multipliers"`
	MinWithdrawalPoints *int64                     `json:"min_withdrawal_points"`
}

// UpdateWithdrawalRate 只修改汇率相关字段，country_multipliers 整体替换
// PUT /admin/withdrawal-rate
func (h *Handler) UpdateWithdrawalRate(c *gin.Context) {
	var body updateRateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	changes := map[string]json.RawMessage{}
	put := func(key string, v interface{}) {
		raw, _ := json.Marshal(v)
		changes[key] = raw
	}
	if body.PointsPerDollar != nil {
		put("points_per_dollar", *body.PointsPerDollar)
	}
	if body.CountryMultipliers != nil {
		put("country_multipliers", body.CountryMultipliers)
	}
	if body.MinWithdrawalPoints != nil {
		put("min_withdrawal_points", *body.MinWithdrawalPoints)
	}
	if len(changes) == 0 {
		response.ParamError(c, "nothing to update")
		return
	}

	cfg, err := h.services.Economy.Update(c.Request.Context(), changes, c.GetString(ctxAdmin), body.ExpectedVersion)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"version":               cfg.Version,
		"points_per_dollar":     cfg.PointsPerDollar,
		"country_multipliers":   cfg.CountryMultipliers,
		"min_withdrawal_points": cfg.MinWithdrawalPoints,
	})
}

// ListWithdrawalsByStatus 审核队列
// GET /admin/withdrawals?status=pending
func (h *Handler) ListWithdrawalsByStatus(c *gin.Context) {
	status := c.DefaultQuery("status", model.WithdrawalStatusPending)
	page, pageSize := pagination(c)

	list, total, err := h.services.Withdrawal.ListByStatus(c.Request.Context(), status, page, pageSize)
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

// GetWithdrawalDetail 提现单详情，附带积分流水和事件
// GET /admin/withdrawals/:no
func (h *Handler) GetWithdrawalDetail(c *gin.Context) {
	detail, err := h.services.Withdrawal.Detail(c.Request.Context(), c.Param("no"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"detail": detail})
}

type reviewBody struct {
	Note string `json:"note"`
}

// ApproveWithdrawal POST /admin/withdrawals/:no/approve
func (h *Handler) ApproveWithdrawal(c *gin.Context) {
	h.review(c, h.services.Withdrawal.Approve)
}

// CompleteWithdrawal POST /admin/withdrawals/:no/complete
func (h *Handler) CompleteWithdrawal(c *gin.Context) {
	h.review(c, h.services.Withdrawal.Complete)
}

// RejectWithdrawal 拒绝并退回积分
// POST /admin/withdrawals/:no/reject
func (h *Handler) RejectWithdrawal(c *gin.Context) {
	h.review(c, h.services.Withdrawal.Reject)
}

type reviewFunc func(ctx context.Context, withdrawalNo, actor, note string) (*model.Withdrawal, error)

func (h *Handler) review(c *gin.Context, fn reviewFunc) {
	var body reviewBody
	// note 可选，空 body 也允许
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	w, err := fn(c.Request.Context(), c.Param("no"), c.GetString(ctxAdmin), body.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"withdrawalId": w.WithdrawalNo,
		"status":       w.Status,
	})
}

// FraudPreview 风险评分预览
// GET /admin/fraud/:userId?amount=10000
func (h *Handler) FraudPreview(c *gin.Context) {
	amount, err := strconv.ParseInt(c.DefaultQuery("amount", "0"), 10, 64)
	if err != nil || amount < 0 {
		response.ParamError(c, "invalid amount")
		return
	}

	analysis := h.services.Withdrawal.Preview(c.Request.Context(), c.Param("userId"), amount)
	response.Success(c, gin.H{"analysis": analysis})
}
