package conversation

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTitle 是新会话的占位标题，首条用户消息到达后被替换
	DefaultTitle = "Nova Conversa"
	// WelcomeText 是每个会话的首条助手消息
	WelcomeText = "Olá! Sou seu assistente inteligente. Como posso ajudá-lo hoje?"

	titleMaxRunes = 30
)

var ErrNotFound = errors.New("conversation not found")

// ErrStale 表示会话在结果返回前已被清空，结果应被丢弃
var ErrStale = errors.New("conversation changed since exchange started")

type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}

type Conversation struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	LastMessage string    `json:"lastMessage"`
	Timestamp   time.Time `json:"timestamp"`
	Messages    []Message `json:"messages"`
}

// Summary 是侧边栏展示的会话摘要
type Summary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	LastMessage string    `json:"lastMessage"`
	Timestamp   time.Time `json:"timestamp"`
}

type entry struct {
	conv       Conversation
	seq        uint64 // 创建顺序
	generation uint64 // 每次清空递增
	titled     bool
}

// Store 在内存中保存全部会话，进程退出即丢失
type Store struct {
	mu       sync.Mutex
	entries  map[string]*entry
	activeID string
	seq      uint64

	now   func() time.Time
	newID func() string
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
		newID:   newID,
	}
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewMessage 创建一条消息，ID 按时间有序
func (s *Store) NewMessage(content string, isUser bool) Message {
	return Message{
		ID:        s.newID(),
		Content:   content,
		IsUser:    isUser,
		Timestamp: s.now(),
	}
}

// Create 新建会话并设为当前会话
func (s *Store) Create() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked()
}

func (s *Store) createLocked() string {
	s.seq++
	e := &entry{
		conv: Conversation{
			ID:       s.newID(),
			Title:    DefaultTitle,
			Messages: []Message{s.welcome()},
		},
		seq: s.seq,
	}
	e.touch()
	s.entries[e.conv.ID] = e
	s.activeID = e.conv.ID
	return e.conv.ID
}

func (s *Store) welcome() Message {
	return s.NewMessage(WelcomeText, false)
}

// Select 切换当前会话
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return ErrNotFound
	}
	s.activeID = id
	return nil
}

// Delete 删除会话；若删除的是当前会话则清空指针，下次查询时重新选择
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return ErrNotFound
	}
	delete(s.entries, id)
	if s.activeID == id {
		s.activeID = ""
	}
	return nil
}

// Append 追加消息并维护摘要与标题
func (s *Store) Append(id string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.append(msg)
	return nil
}

// AppendAt 仅当会话自 generation 起未被清空时才追加
func (s *Store) AppendAt(id string, generation uint64, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	if e.generation != generation {
		return ErrStale
	}
	e.append(msg)
	return nil
}

// Generation 返回会话当前的清空代数
func (s *Store) Generation(id string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return 0, ErrNotFound
	}
	return e.generation, nil
}

// Clear 将消息重置为欢迎消息；标题保持不变
func (s *Store) Clear(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.generation++
	e.conv.Messages = []Message{s.welcome()}
	e.touch()
	return nil
}

// Get 返回会话副本
func (s *Store) Get(id string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return e.snapshot(), nil
}

// Active 返回当前会话；没有当前会话时选择最新创建的会话，没有会话时新建一个
func (s *Store) Active() Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[s.ensureActiveLocked()].snapshot()
}

// ActiveID 与 Active 相同的兜底规则，只返回 ID
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureActiveLocked()
}

func (s *Store) ensureActiveLocked() string {
	if _, ok := s.entries[s.activeID]; ok {
		return s.activeID
	}

	var newest *entry
	for _, e := range s.entries {
		if newest == nil || e.seq > newest.seq {
			newest = e
		}
	}
	if newest == nil {
		return s.createLocked()
	}
	s.activeID = newest.conv.ID
	return s.activeID
}

// List 返回侧边栏摘要，最新创建的在前
func (s *Store) List() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq > entries[j].seq
	})

	items := make([]Summary, 0, len(entries))
	for _, e := range entries {
		items = append(items, Summary{
			ID:          e.conv.ID,
			Title:       e.conv.Title,
			LastMessage: e.conv.LastMessage,
			Timestamp:   e.conv.Timestamp,
		})
	}
	return items
}

func (e *entry) append(msg Message) {
	e.conv.Messages = append(e.conv.Messages, msg)
	if msg.IsUser && !e.titled && e.conv.Title == DefaultTitle {
		e.conv.Title = Title(msg.Content)
		e.titled = true
	}
	e.touch()
}

// touch 根据最后一条消息刷新摘要
func (e *entry) touch() {
	last := e.conv.Messages[len(e.conv.Messages)-1]
	e.conv.LastMessage = last.Content
	e.conv.Timestamp = last.Timestamp
}

func (e *entry) snapshot() Conversation {
	c := e.conv
	c.Messages = append([]Message(nil), e.conv.Messages...)
	return c
}

// Title 截取首条用户消息作为标题，超过 30 个字符时追加省略号
func Title(content string) string {
	runes := []rune(content)
	if len(runes) <= titleMaxRunes {
		return content
	}
	return string(runes[:titleMaxRunes]) + "..."
}
