package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KodaTao/webhook-chat/conversation"
	"github.com/KodaTao/webhook-chat/model"
	"github.com/KodaTao/webhook-chat/settings"
	"github.com/KodaTao/webhook-chat/webhook"
)

const (
	// ErrorReplyText 是交互失败时展示给用户的固定内容，不包含具体错误
	ErrorReplyText = "Desculpe, ocorreu um erro ao processar sua mensagem. Verifique se o webhook do n8n está configurado corretamente."
	// SimulatedReplyFormat 用于未配置 webhook 时的模拟回复
	SimulatedReplyFormat = "Recebi sua mensagem: \"%s\". Configure o webhook do n8n para respostas inteligentes!"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrInFlight     = errors.New("an exchange is already in flight for this conversation")
	// ErrDropped 表示会话在结果返回前被清空或删除
	ErrDropped = errors.New("exchange result dropped")
)

// Sender 向 webhook 发送消息
type Sender interface {
	Send(ctx context.Context, endpoint, message string) (string, error)
	Probe(ctx context.Context, endpoint string) error
}

// Journal 记录交互结果；为 nil 时不记录
type Journal interface {
	Save(entry *model.ExchangeLog) error
}

type Options struct {
	Store          *conversation.Store
	Settings       *settings.Store
	Sender         Sender
	Listener       Listener
	Journal        Journal
	SimulatedDelay time.Duration
	Log            *zap.Logger
}

// Controller 编排一次交互：追加用户消息 → 调用 webhook → 追加回复或错误消息
type Controller struct {
	store          *conversation.Store
	settings       *settings.Store
	sender         Sender
	listener       Listener
	journal        Journal
	simulatedDelay time.Duration
	log            *zap.Logger

	tracker *tracker
}

func New(opts Options) *Controller {
	c := &Controller{
		store:          opts.Store,
		settings:       opts.Settings,
		sender:         opts.Sender,
		listener:       opts.Listener,
		journal:        opts.Journal,
		simulatedDelay: opts.SimulatedDelay,
		log:            opts.Log,
		tracker:        newTracker(),
	}
	if c.listener == nil {
		c.listener = NopListener{}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Exchange 是一次已提交的交互
type Exchange struct {
	ConversationID string
	UserMessage    conversation.Message

	done    chan struct{}
	reply   conversation.Message
	err     error
	dropped bool
}

// Done 在交互结束（追加回复或被丢弃）后关闭
func (e *Exchange) Done() <-chan struct{} { return e.done }

// Wait 等待交互结束并返回追加的助手消息
func (e *Exchange) Wait(ctx context.Context) (conversation.Message, error) {
	select {
	case <-e.done:
	case <-ctx.Done():
		return conversation.Message{}, ctx.Err()
	}
	if e.dropped {
		return conversation.Message{}, ErrDropped
	}
	return e.reply, nil
}

// Err 返回 webhook 调用的原始错误，仅供日志与诊断
func (e *Exchange) Err() error {
	<-e.done
	return e.err
}

// Submit 同步追加用户消息并在后台发起交互
func (c *Controller) Submit(conversationID, text string) (*Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	generation, err := c.store.Generation(conversationID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p, ok := c.tracker.begin(conversationID, cancel)
	if !ok {
		cancel()
		return nil, ErrInFlight
	}

	userMsg := c.store.NewMessage(text, true)
	if err := c.store.AppendAt(conversationID, generation, userMsg); err != nil {
		c.tracker.finish(conversationID, p)
		cancel()
		return nil, err
	}

	c.listener.MessageAppended(conversationID, userMsg)
	c.listener.StateChanged(conversationID, AwaitingResponse)

	ex := &Exchange{
		ConversationID: conversationID,
		UserMessage:    userMsg,
		done:           make(chan struct{}),
	}
	go c.run(ctx, p, generation, ex)
	return ex, nil
}

// SubmitActive 向当前会话提交消息
func (c *Controller) SubmitActive(text string) (*Exchange, error) {
	return c.Submit(c.store.ActiveID(), text)
}

func (c *Controller) run(ctx context.Context, p *pending, generation uint64, ex *Exchange) {
	defer close(ex.done)
	defer p.cancel()

	id := ex.ConversationID
	text := ex.UserMessage.Content
	entry := &model.ExchangeLog{
		ConversationID: id,
		Request:        text,
		Status:         model.StatusReceived,
	}

	endpoint := c.settings.WebhookURL()
	var reply string
	var err error
	if endpoint == "" {
		entry.Status = model.StatusSimulated
		reply, err = c.simulate(ctx, text)
	} else {
		reply, err = c.sender.Send(ctx, endpoint, text)
	}
	entry.DurationMs = time.Since(p.startedAt).Milliseconds()

	content := reply
	if err != nil {
		content = ErrorReplyText
		entry.Status = model.StatusError
		entry.Error = err.Error()
		var statusErr *webhook.StatusError
		if errors.As(err, &statusErr) {
			entry.StatusCode = statusErr.Code
		}
	}
	entry.Response = content

	botMsg := c.store.NewMessage(content, false)
	var appendErr error
	if ctx.Err() != nil {
		appendErr = ctx.Err()
	} else {
		appendErr = c.store.AppendAt(id, generation, botMsg)
	}
	c.tracker.finish(id, p)

	if appendErr != nil {
		c.log.Info("exchange result dropped",
			zap.String("conversation_id", id),
			zap.NamedError("reason", appendErr),
		)
		ex.dropped = true
		ex.err = err
		entry.Status = model.StatusDropped
		c.record(entry)
		return
	}

	ex.reply = botMsg
	ex.err = err

	c.listener.MessageAppended(id, botMsg)
	c.listener.StateChanged(id, Idle)
	if err != nil {
		c.log.Warn("exchange failed", zap.String("conversation_id", id), zap.Error(err))
		c.listener.Toast(toastConnectionFailed())
	}
	c.record(entry)
}

func (c *Controller) simulate(ctx context.Context, text string) (string, error) {
	timer := time.NewTimer(c.simulatedDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return fmt.Sprintf(SimulatedReplyFormat, text), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Controller) record(entry *model.ExchangeLog) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Save(entry); err != nil {
		c.log.Error("save exchange log failed", zap.Error(err))
	}
}

// State 返回会话当前的交互状态
func (c *Controller) State(conversationID string) State {
	return c.tracker.state(conversationID)
}

// InFlight 返回进行中的交互数量
func (c *Controller) InFlight() int {
	return c.tracker.inFlight()
}

// Create 新建会话并设为当前会话
func (c *Controller) Create() conversation.Conversation {
	id := c.store.Create()
	conv, _ := c.store.Get(id)
	return conv
}

// Clear 取消进行中的交互并把会话重置为欢迎消息
func (c *Controller) Clear(conversationID string) error {
	aborted := c.tracker.abort(conversationID)
	if err := c.store.Clear(conversationID); err != nil {
		return err
	}

	c.listener.ConversationCleared(conversationID)
	if aborted {
		c.listener.StateChanged(conversationID, Idle)
	}
	c.listener.Toast(toastCleared())
	return nil
}

// Delete 取消进行中的交互并删除会话
func (c *Controller) Delete(conversationID string) error {
	c.tracker.abort(conversationID)
	if err := c.store.Delete(conversationID); err != nil {
		return err
	}

	c.listener.ConversationDeleted(conversationID)
	c.listener.Toast(toastDeleted())
	return nil
}

// SaveSettings 更新设置并提示
func (c *Controller) SaveSettings(p settings.Patch) settings.Settings {
	s := c.settings.Update(p)
	c.listener.Toast(toastSettingsSaved())
	return s
}

// TestWebhook 发送探测消息，结果通过提示反馈；与主交互流程无关
func (c *Controller) TestWebhook(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		c.listener.Toast(toastURLRequired())
		return webhook.ErrNotConfigured
	}

	if err := c.sender.Probe(ctx, endpoint); err != nil {
		c.log.Warn("webhook test failed", zap.String("endpoint", endpoint), zap.Error(err))
		c.listener.Toast(toastTestFailed())
		return err
	}

	c.listener.Toast(toastTestOK())
	return nil
}
