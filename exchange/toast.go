package exchange

import (
	"github.com/google/uuid"

	"github.com/KodaTao/webhook-chat/conversation"
)

type Variant string

const (
	VariantSuccess Variant = "success"
	VariantError   Variant = "error"
	VariantInfo    Variant = "info"
)

const defaultToastDuration = 3000 // ms

// Toast 是推送给前端的临时提示
type Toast struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Variant     Variant `json:"variant"`
	Duration    int     `json:"duration"`
}

func NewToast(title, description string, variant Variant) Toast {
	return Toast{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Variant:     variant,
		Duration:    defaultToastDuration,
	}
}

func toastConnectionFailed() Toast {
	return NewToast("Erro de conexão", "Não foi possível conectar com o n8n. Verifique a configuração do webhook.", VariantError)
}

func toastCleared() Toast {
	return NewToast("Chat limpo", "Todas as mensagens foram removidas.", VariantSuccess)
}

func toastDeleted() Toast {
	return NewToast("Conversa excluída", "A conversa foi removida do histórico.", VariantSuccess)
}

func toastSettingsSaved() Toast {
	return NewToast("Configurações salvas", "As configurações do chat foram atualizadas com sucesso.", VariantSuccess)
}

func toastTestOK() Toast {
	return NewToast("Teste bem-sucedido!", "A conexão com o webhook foi estabelecida com sucesso.", VariantSuccess)
}

func toastTestFailed() Toast {
	return NewToast("Falha no teste", "Não foi possível conectar com o webhook. Verifique a URL e tente novamente.", VariantError)
}

func toastURLRequired() Toast {
	return NewToast("URL necessária", "Por favor, configure uma URL de webhook antes de testar.", VariantError)
}

// Listener 接收控制器产生的事件，由表现层实现
type Listener interface {
	MessageAppended(conversationID string, msg conversation.Message)
	ConversationCleared(conversationID string)
	ConversationDeleted(conversationID string)
	StateChanged(conversationID string, state State)
	Toast(t Toast)
}

// NopListener 丢弃所有事件
type NopListener struct{}

func (NopListener) MessageAppended(string, conversation.Message) {}
func (NopListener) ConversationCleared(string)                   {}
func (NopListener) ConversationDeleted(string)                   {}
func (NopListener) StateChanged(string, State)                   {}
func (NopListener) Toast(Toast)                                  {}
