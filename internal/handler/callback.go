package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"rewardhub/internal/callback"
	"rewardhub/pkg/response"

	"github.com/gin-gonic/gin"
)

const maxCallbackBody = 64 << 10

// ProviderCallback 奖励渠道回调
// GET|POST /api/v1/callbacks/:provider
//
// 成功和重复投递都返回 200，渠道据此停止重试。
func (h *Handler) ProviderCallback(c *gin.Context) {
	payload, err := collectPayload(c)
	if err != nil {
		response.ParamError(c, err.Error())
		return
	}

	result, err := h.services.Callback.Process(c.Request.Context(), c.Param("provider"), payload)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"transactionId":  result.TransactionID,
		"pointsCredited": result.PointsCredited,
		"isDuplicate":    result.IsDuplicate,
		"status":         result.Status,
	})
}

// collectPayload 合并 query 与 body（JSON 或表单），body 中的同名字段优先
func collectPayload(c *gin.Context) (callback.Payload, error) {
	payload := callback.Payload{}
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			payload[k] = v[0]
		}
	}

	if c.Request.Method != http.MethodPost || c.Request.Body == nil {
		return payload, nil
	}

	switch c.ContentType() {
	case gin.MIMEJSON:
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if len(bytes.TrimSpace(body)) == 0 {
			return payload, nil
		}

		var fields map[string]interface{}
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("%w: body is not a JSON object", callback.ErrInvalidPayload)
		}
		for k, v := range fields {
			if s, ok := stringify(v); ok {
				payload[k] = s
			}
		}
	case gin.MIMEPOSTForm, gin.MIMEMultipartPOSTForm:
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBody)
		if err := c.Request.ParseForm(); err != nil {
			return nil, fmt.Errorf("%w: malformed form body", callback.ErrInvalidPayload)
		}
		for k, v := range c.Request.PostForm {
			if len(v) > 0 {
				payload[k] = v[0]
			}
		}
	}
	return payload, nil
}

// stringify 数字保持原样文本，签名按渠道发送的字符串计算
func stringify(v interface{}) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}
