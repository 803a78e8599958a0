package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KodaTao/webhook-chat/conversation"
	"github.com/KodaTao/webhook-chat/exchange"
	"github.com/KodaTao/webhook-chat/model"
)

type SendRequest struct {
	Message string `json:"message"`
}

type SendResponse struct {
	ConversationID string                `json:"conversation_id"`
	UserMessage    conversation.Message  `json:"user_message"`
	Reply          *conversation.Message `json:"reply,omitempty"`
	State          exchange.State        `json:"state"`
}

type ListResponse struct {
	ActiveID      string                 `json:"active_id"`
	Conversations []conversation.Summary `json:"conversations"`
}

type StateResponse struct {
	ConversationID string         `json:"conversation_id"`
	State          exchange.State `json:"state"`
}

// ChatHandler 处理会话与消息相关的请求
type ChatHandler struct {
	Ctrl    *exchange.Controller
	Store   *conversation.Store
	Journal *model.Journal // 可为 nil
	Log     *zap.Logger
}

func NewChatHandler(ctrl *exchange.Controller, store *conversation.Store, journal *model.Journal, log *zap.Logger) *ChatHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatHandler{Ctrl: ctrl, Store: store, Journal: journal, Log: log}
}

func (h *ChatHandler) Register(r gin.IRouter) {
	r.GET("/conversations", h.List)
	r.POST("/conversations", h.Create)
	r.GET("/conversations/active", h.Active)
	r.GET("/conversations/:id", h.Get)
	r.DELETE("/conversations/:id", h.Delete)
	r.POST("/conversations/:id/select", h.Select)
	r.POST("/conversations/:id/clear", h.Clear)
	r.POST("/conversations/:id/messages", h.Send)
	r.GET("/conversations/:id/state", h.State)
	r.POST("/messages", h.SendActive)
	r.GET("/exchanges", h.Exchanges)
}

// List 返回侧边栏数据；先保证存在当前会话
func (h *ChatHandler) List(c *gin.Context) {
	active := h.Store.ActiveID()
	c.JSON(http.StatusOK, ListResponse{
		ActiveID:      active,
		Conversations: h.Store.List(),
	})
}

func (h *ChatHandler) Create(c *gin.Context) {
	c.JSON(http.StatusCreated, h.Ctrl.Create())
}

func (h *ChatHandler) Active(c *gin.Context) {
	c.JSON(http.StatusOK, h.Store.Active())
}

func (h *ChatHandler) Get(c *gin.Context) {
	conv, err := h.Store.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *ChatHandler) Select(c *gin.Context) {
	id := c.Param("id")
	if err := h.Store.Select(id); err != nil {
		h.writeError(c, err)
		return
	}
	conv, _ := h.Store.Get(id)
	c.JSON(http.StatusOK, conv)
}

func (h *ChatHandler) Delete(c *gin.Context) {
	if err := h.Ctrl.Delete(c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ChatHandler) Clear(c *gin.Context) {
	id := c.Param("id")
	if err := h.Ctrl.Clear(id); err != nil {
		h.writeError(c, err)
		return
	}
	conv, _ := h.Store.Get(id)
	c.JSON(http.StatusOK, conv)
}

func (h *ChatHandler) State(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.Store.Get(id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, StateResponse{ConversationID: id, State: h.Ctrl.State(id)})
}

// Send 提交消息；?wait=true 时阻塞到回复追加后再返回
func (h *ChatHandler) Send(c *gin.Context) {
	h.send(c, c.Param("id"))
}

// SendActive 向当前会话提交消息
func (h *ChatHandler) SendActive(c *gin.Context) {
	h.send(c, h.Store.ActiveID())
}

func (h *ChatHandler) send(c *gin.Context, conversationID string) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return
	}

	ex, err := h.Ctrl.Submit(conversationID, req.Message)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := SendResponse{
		ConversationID: conversationID,
		UserMessage:    ex.UserMessage,
	}

	wait, _ := strconv.ParseBool(c.Query("wait"))
	if !wait {
		resp.State = h.Ctrl.State(conversationID)
		c.JSON(http.StatusAccepted, resp)
		return
	}

	reply, err := ex.Wait(c.Request.Context())
	if err != nil {
		if errors.Is(err, exchange.ErrDropped) {
			h.writeError(c, err)
		}
		// 客户端已断开，无需响应
		return
	}
	resp.Reply = &reply
	resp.State = h.Ctrl.State(conversationID)
	c.JSON(http.StatusOK, resp)
}

func (h *ChatHandler) Exchanges(c *gin.Context) {
	if h.Journal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "exchange journal disabled"})
		return
	}

	var logs []model.ExchangeLog
	var err error
	if id := c.Query("conversation_id"); id != "" {
		logs, err = h.Journal.ForConversation(id)
	} else {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		logs, err = h.Journal.Recent(limit)
	}
	if err != nil {
		h.Log.Error("query exchange journal failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exchanges": logs})
}

func (h *ChatHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, exchange.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, exchange.ErrInFlight),
		errors.Is(err, exchange.ErrDropped),
		errors.Is(err, conversation.ErrStale):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.Log.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
