package settings

import "sync"

// Settings 是设置面板可修改的配置
type Settings struct {
	WebhookURL   string `json:"webhookUrl"`
	AutoScroll   bool   `json:"autoScroll"`
	SoundEnabled bool   `json:"soundEnabled"`
}

// Patch 中为 nil 的字段保持不变
type Patch struct {
	WebhookURL   *string `json:"webhookUrl"`
	AutoScroll   *bool   `json:"autoScroll"`
	SoundEnabled *bool   `json:"soundEnabled"`
}

// Store 并发安全地保存当前设置，每次发送时读取
type Store struct {
	mu  sync.RWMutex
	cur Settings
}

func NewStore(webhookURL string) *Store {
	return &Store{cur: Settings{
		WebhookURL: webhookURL,
		AutoScroll: true,
	}}
}

func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

func (s *Store) WebhookURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.WebhookURL
}

func (s *Store) Update(p Patch) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.WebhookURL != nil {
		s.cur.WebhookURL = *p.WebhookURL
	}
	if p.AutoScroll != nil {
		s.cur.AutoScroll = *p.AutoScroll
	}
	if p.SoundEnabled != nil {
		s.cur.SoundEnabled = *p.SoundEnabled
	}
	return s.cur
}
