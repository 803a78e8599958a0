package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port      int    `yaml:"port" validate:"min=1,max=65535"`
	Mode      string `yaml:"mode" validate:"oneof=debug test release"` // debug/test/release
	StaticDir string `yaml:"static_dir"`                                // 前端静态文件目录，可选
}

type DatabaseConfig struct {
	Path string `yaml:"path"` // 为空则不记录交互日志
}

type WebSocketConfig struct {
	PingInterval int `yaml:"ping_interval" validate:"min=1"`
	PongTimeout  int `yaml:"pong_timeout" validate:"min=1"`
}

type WebhookConfig struct {
	URL            string        `yaml:"url" validate:"omitempty,url"`
	Timeout        time.Duration `yaml:"timeout" validate:"min=0"` // 0 表示不限制
	SimulatedDelay time.Duration `yaml:"simulated_delay" validate:"min=0"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	File  string `yaml:"file"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 6543, Mode: "release"},
		Database: DatabaseConfig{Path: ""},
		WebSocket: WebSocketConfig{
			PingInterval: 30,
			PongTimeout:  10,
		},
		Webhook: WebhookConfig{
			SimulatedDelay: time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load 从文件加载配置，以默认值为基础覆盖，再应用环境变量
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault 配置文件不存在时退回默认配置
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		cfg.applyEnv()
		return cfg, cfg.Validate()
	}
	return cfg, err
}

var validate = validator.New()

func (c *Config) Validate() error {
	return validate.Struct(c)
}

// applyEnv 读取 .env（可选）并用 CHAT_* 环境变量覆盖
func (c *Config) applyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv("CHAT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("CHAT_MODE"); v != "" {
		c.Server.Mode = v
	}
	if v := os.Getenv("CHAT_WEBHOOK_URL"); v != "" {
		c.Webhook.URL = v
	}
	if v := os.Getenv("CHAT_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("CHAT_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("CHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}
