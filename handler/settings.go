package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KodaTao/webhook-chat/exchange"
	"github.com/KodaTao/webhook-chat/settings"
	"github.com/KodaTao/webhook-chat/webhook"
)

const probeTimeout = 30 * time.Second

type TestRequest struct {
	WebhookURL *string `json:"webhookUrl"` // 为空时使用当前已保存的 URL
}

// SettingsHandler 处理设置面板的请求
type SettingsHandler struct {
	Ctrl     *exchange.Controller
	Settings *settings.Store
}

func NewSettingsHandler(ctrl *exchange.Controller, s *settings.Store) *SettingsHandler {
	return &SettingsHandler{Ctrl: ctrl, Settings: s}
}

func (h *SettingsHandler) Register(r gin.IRouter) {
	r.GET("/settings", h.Get)
	r.PUT("/settings", h.Update)
	r.POST("/settings/test", h.Test)
	r.GET("/settings/example", h.Example)
}

func (h *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.Settings.Snapshot())
}

func (h *SettingsHandler) Update(c *gin.Context) {
	var patch settings.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return
	}
	c.JSON(http.StatusOK, h.Ctrl.SaveSettings(patch))
}

// Test 用表单中的 URL（未保存也可）发送探测消息
func (h *SettingsHandler) Test(c *gin.Context) {
	var req TestRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
			return
		}
	}

	endpoint := h.Settings.WebhookURL()
	if req.WebhookURL != nil {
		endpoint = *req.WebhookURL
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), probeTimeout)
	defer cancel()

	err := h.Ctrl.TestWebhook(ctx, endpoint)
	var statusErr *webhook.StatusError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	case errors.Is(err, webhook.ErrNotConfigured):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	case errors.As(err, &statusErr):
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": err.Error(), "status_code": statusErr.Code})
	default:
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": err.Error()})
	}
}

// Example 返回 webhook 请求体示例，供用户配置工作流
func (h *SettingsHandler) Example(c *gin.Context) {
	p := webhook.NewPayload("Sua mensagem aqui", time.Now())
	p.UserID = "user-123"
	c.IndentedJSON(http.StatusOK, p)
}
