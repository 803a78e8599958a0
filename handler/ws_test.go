package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/KodaTao/webhook-chat/config"
	"github.com/KodaTao/webhook-chat/conversation"
	"github.com/KodaTao/webhook-chat/exchange"
)

func setupTestHub() (*Hub, *httptest.Server) {
	gin.SetMode(gin.TestMode)

	cfg := &config.WebSocketConfig{
		PingInterval: 2,
		PongTimeout:  5,
	}
	hub := NewHub(cfg, nil)

	r := gin.New()
	r.GET("/ws", hub.HandleWS)
	server := httptest.NewServer(r)

	return hub, server
}

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws failed: %v", err)
	}
	return conn
}

// readEvent 读取下一条非 PING 消息
func readEvent(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read message failed: %v", err)
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if msg.Type != TypePing {
			return msg
		}
	}
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWSConnection(t *testing.T) {
	hub, server := setupTestHub()
	defer server.Close()

	conn := dialWS(t, server)
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)
}

func TestBroadcastReachesAllClients(t *testing.T) {
	hub, server := setupTestHub()
	defer server.Close()

	conn1 := dialWS(t, server)
	defer conn1.Close()
	conn2 := dialWS(t, server)
	defer conn2.Close()
	waitClients(t, hub, 2)

	hub.Broadcast(&WSMessage{ID: "evt-1", Type: EventCleared})

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		received := readEvent(t, conn)
		if received.Type != EventCleared {
			t.Errorf("expected type %s, got %s", EventCleared, received.Type)
		}
		if received.ID != "evt-1" {
			t.Errorf("expected id evt-1, got %s", received.ID)
		}
	}
}

func TestBroadcastNoClient(t *testing.T) {
	cfg := &config.WebSocketConfig{PingInterval: 30, PongTimeout: 10}
	hub := NewHub(cfg, nil)

	// 没有连接时广播不应阻塞或崩溃
	hub.Broadcast(&WSMessage{Type: EventToast})
	hub.ConversationDeleted("c1")
}

func TestListenerEvents(t *testing.T) {
	hub, server := setupTestHub()
	defer server.Close()

	conn := dialWS(t, server)
	defer conn.Close()
	waitClients(t, hub, 1)

	msg := conversation.Message{ID: "m1", Content: "Olá", IsUser: true, Timestamp: time.Now()}
	hub.MessageAppended("c1", msg)
	hub.StateChanged("c1", exchange.AwaitingResponse)
	hub.Toast(exchange.NewToast("Chat limpo", "ok", exchange.VariantSuccess))

	received := readEvent(t, conn)
	if received.Type != EventMessage {
		t.Fatalf("expected %s, got %s", EventMessage, received.Type)
	}
	var mp messagePayload
	if err := json.Unmarshal(received.Payload, &mp); err != nil {
		t.Fatalf("unmarshal payload failed: %v", err)
	}
	if mp.ConversationID != "c1" || mp.Message.Content != "Olá" || !mp.Message.IsUser {
		t.Errorf("unexpected message payload: %+v", mp)
	}

	received = readEvent(t, conn)
	if received.Type != EventState {
		t.Fatalf("expected %s, got %s", EventState, received.Type)
	}
	if !strings.Contains(string(received.Payload), `"state":"awaiting_response"`) {
		t.Errorf("unexpected state payload: %s", received.Payload)
	}

	received = readEvent(t, conn)
	if received.Type != EventToast {
		t.Fatalf("expected %s, got %s", EventToast, received.Type)
	}
	var toast exchange.Toast
	if err := json.Unmarshal(received.Payload, &toast); err != nil {
		t.Fatalf("unmarshal toast failed: %v", err)
	}
	if toast.Title != "Chat limpo" || toast.Variant != exchange.VariantSuccess {
		t.Errorf("unexpected toast: %+v", toast)
	}
}

func TestPingPong(t *testing.T) {
	hub, server := setupTestHub()
	defer server.Close()

	conn := dialWS(t, server)
	defer conn.Close()

	// 等待收到 PING 消息（PingInterval=2s）
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ping failed: %v", err)
	}

	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if msg.Type != TypePing {
		t.Errorf("expected PING, got %s", msg.Type)
	}

	// 回复 PONG 后连接保持
	pong := WSMessage{Type: TypePong}
	pongData, _ := json.Marshal(pong)
	if err := conn.WriteMessage(websocket.TextMessage, pongData); err != nil {
		t.Fatalf("write pong failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if hub.ClientCount() != 1 {
		t.Errorf("expected client to stay connected after PONG")
	}
}
