package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/KodaTao/webhook-chat/config"
	"github.com/KodaTao/webhook-chat/conversation"
	"github.com/KodaTao/webhook-chat/exchange"
)

// 推送给浏览器的事件类型
const (
	EventMessage = "EVENT_MESSAGE"
	EventCleared = "EVENT_CLEARED"
	EventDeleted = "EVENT_DELETED"
	EventState   = "EVENT_STATE"
	EventToast   = "EVENT_TOAST"
	TypePing     = "PING"
	TypePong     = "PONG"
)

// WebSocket 消息结构
type WSMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type messagePayload struct {
	ConversationID string               `json:"conversation_id"`
	Message        conversation.Message `json:"message"`
}

type conversationPayload struct {
	ConversationID string `json:"conversation_id"`
}

type statePayload struct {
	ConversationID string         `json:"conversation_id"`
	State          exchange.State `json:"state"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client 表示一个浏览器端的 WebSocket 连接
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
		c.conn.Close()
	}
}

// Hub 管理所有浏览器连接，并把控制器事件广播出去
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	cfg     *config.WebSocketConfig
	log     *zap.Logger
}

func NewHub(cfg *config.WebSocketConfig, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		cfg:     cfg,
		log:     log,
	}
}

// ClientCount 返回当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast 向所有连接推送消息，缓冲区满的连接会丢弃该消息
func (h *Hub) Broadcast(msg *WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal ws message failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.mu.Lock()
		if !client.closed {
			select {
			case client.send <- data:
			default:
				h.log.Warn("send buffer full, dropping message", zap.String("type", msg.Type))
			}
		}
		client.mu.Unlock()
	}
}

func (h *Hub) publish(eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("marshal ws payload failed", zap.Error(err))
		return
	}
	h.Broadcast(&WSMessage{Type: eventType, Payload: data})
}

// 以下方法实现 exchange.Listener

func (h *Hub) MessageAppended(conversationID string, msg conversation.Message) {
	h.publish(EventMessage, messagePayload{ConversationID: conversationID, Message: msg})
}

func (h *Hub) ConversationCleared(conversationID string) {
	h.publish(EventCleared, conversationPayload{ConversationID: conversationID})
}

func (h *Hub) ConversationDeleted(conversationID string) {
	h.publish(EventDeleted, conversationPayload{ConversationID: conversationID})
}

func (h *Hub) StateChanged(conversationID string, state exchange.State) {
	h.publish(EventState, statePayload{ConversationID: conversationID, State: state})
}

func (h *Hub) Toast(t exchange.Toast) {
	h.publish(EventToast, t)
}

// HandleWS 处理 WebSocket 连接请求
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("upgrade error", zap.Error(err))
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.log.Info("browser connected", zap.Int("clients", h.ClientCount()))

	go h.writePump(client)
	go h.pingPump(client)
	h.readPump(client)
}

// readPump 持续读取浏览器发来的消息，目前只处理 PONG
func (h *Hub) readPump(client *Client) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		client.Close()
		h.log.Info("browser disconnected")
	}()

	pongTimeout := time.Duration(h.cfg.PongTimeout) * time.Second
	pingInterval := time.Duration(h.cfg.PingInterval) * time.Second

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("read error", zap.Error(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Warn("invalid message", zap.Error(err))
			continue
		}

		// 收到任何消息都刷新读超时（证明连接活跃）
		client.conn.SetReadDeadline(time.Now().Add(pingInterval + pongTimeout))

		if msg.Type != TypePong {
			h.log.Debug("ignoring browser message", zap.String("type", msg.Type))
		}
	}
}

// writePump 将消息写入 WebSocket 连接
func (h *Hub) writePump(client *Client) {
	for data := range client.send {
		client.mu.Lock()
		if client.closed {
			client.mu.Unlock()
			return
		}
		err := client.conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()

		if err != nil {
			h.log.Warn("write error", zap.Error(err))
			return
		}
	}
}

// pingPump 定期发送应用层 PING 心跳
// 浏览器收到后回复应用层 PONG（JSON 文本），由 readPump 刷新读超时
func (h *Hub) pingPump(client *Client) {
	ticker := time.NewTicker(time.Duration(h.cfg.PingInterval) * time.Second)
	defer ticker.Stop()

	data, _ := json.Marshal(&WSMessage{Type: TypePing})
	for range ticker.C {
		client.mu.Lock()
		if client.closed {
			client.mu.Unlock()
			return
		}
		err := client.conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()

		if err != nil {
			h.log.Warn("ping error", zap.Error(err))
			return
		}
	}
}
