package settings

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	s := NewStore("http://localhost:5678/webhook/chat")
	got := s.Snapshot()
	assert.Equal(t, "http://localhost:5678/webhook/chat", got.WebhookURL)
	assert.True(t, got.AutoScroll)
	assert.False(t, got.SoundEnabled)
}

func TestUpdatePartial(t *testing.T) {
	s := NewStore("http://a")
	sound := true
	got := s.Update(Patch{SoundEnabled: &sound})
	assert.Equal(t, "http://a", got.WebhookURL)
	assert.True(t, got.SoundEnabled)

	empty := ""
	s.Update(Patch{WebhookURL: &empty})
	assert.Equal(t, "", s.WebhookURL())
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore("")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			url := "http://b"
			s.Update(Patch{WebhookURL: &url})
		}()
		go func() {
			defer wg.Done()
			_ = s.WebhookURL()
		}()
	}
	wg.Wait()
	assert.Equal(t, "http://b", s.WebhookURL())
}
