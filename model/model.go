package model

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	StatusReceived  = "received"
	StatusError     = "error"
	StatusSimulated = "simulated"
	StatusDropped   = "dropped" // 会话已清空或删除，结果被丢弃
)

// ExchangeLog 记录一次与 webhook 的交互，仅用于诊断，不会回填到会话
type ExchangeLog struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string    `gorm:"index" json:"conversation_id"`
	Request        string    `gorm:"type:text" json:"request"`
	Response       string    `gorm:"type:text" json:"response"`
	Status         string    `json:"status"` // "received", "error", "simulated", "dropped"
	Error          string    `json:"error,omitempty"`
	StatusCode     int       `json:"status_code,omitempty"`
	DurationMs     int64     `json:"duration_ms"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func InitDB(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&ExchangeLog{}); err != nil {
		return nil, err
	}

	return db, nil
}

// Journal 将交互记录写入 SQLite
type Journal struct {
	DB *gorm.DB
}

func NewJournal(db *gorm.DB) *Journal {
	return &Journal{DB: db}
}

func (j *Journal) Save(entry *ExchangeLog) error {
	return j.DB.Create(entry).Error
}

// Recent 按时间倒序返回最近的记录
func (j *Journal) Recent(limit int) ([]ExchangeLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var logs []ExchangeLog
	err := j.DB.Order("created_at desc, id desc").Limit(limit).Find(&logs).Error
	return logs, err
}

// ForConversation 返回某个会话的全部记录，按时间正序
func (j *Journal) ForConversation(conversationID string) ([]ExchangeLog, error) {
	var logs []ExchangeLog
	err := j.DB.Where("conversation_id = ?", conversationID).Order("created_at asc, id asc").Find(&logs).Error
	return logs, err
}
