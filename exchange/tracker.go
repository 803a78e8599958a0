package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State 是单个会话的交互状态
type State int

const (
	Idle State = iota
	AwaitingResponse
)

func (s State) String() string {
	if s == AwaitingResponse {
		return "awaiting_response"
	}
	return "idle"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = Idle
	case "awaiting_response":
		*s = AwaitingResponse
	default:
		return fmt.Errorf("unknown exchange state %q", text)
	}
	return nil
}

// pending 表示一个进行中的交互
type pending struct {
	cancel    context.CancelFunc
	startedAt time.Time
}

// tracker 记录每个会话进行中的交互，同一会话同时只允许一个
type tracker struct {
	mu    sync.RWMutex
	tasks map[string]*pending
}

func newTracker() *tracker {
	return &tracker{
		tasks: make(map[string]*pending),
	}
}

// begin 登记交互；会话已有进行中的交互时返回 false
func (t *tracker) begin(conversationID string, cancel context.CancelFunc) (*pending, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, busy := t.tasks[conversationID]; busy {
		return nil, false
	}
	p := &pending{cancel: cancel, startedAt: time.Now()}
	t.tasks[conversationID] = p
	return p, true
}

// finish 仅当登记的仍是 p 时移除
func (t *tracker) finish(conversationID string, p *pending) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tasks[conversationID] != p {
		return false
	}
	delete(t.tasks, conversationID)
	return true
}

// abort 取消并移除会话进行中的交互
func (t *tracker) abort(conversationID string) bool {
	t.mu.Lock()
	p, ok := t.tasks[conversationID]
	if ok {
		delete(t.tasks, conversationID)
	}
	t.mu.Unlock()

	if ok {
		p.cancel()
	}
	return ok
}

func (t *tracker) state(conversationID string) State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, ok := t.tasks[conversationID]; ok {
		return AwaitingResponse
	}
	return Idle
}

func (t *tracker) inFlight() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tasks)
}
