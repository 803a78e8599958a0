package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KodaTao/webhook-chat/config"
	"github.com/KodaTao/webhook-chat/conversation"
	"github.com/KodaTao/webhook-chat/exchange"
	"github.com/KodaTao/webhook-chat/handler"
	"github.com/KodaTao/webhook-chat/logger"
	"github.com/KodaTao/webhook-chat/model"
	"github.com/KodaTao/webhook-chat/settings"
	"github.com/KodaTao/webhook-chat/webhook"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	gin.SetMode(cfg.Server.Mode)

	zl, err := logger.New(cfg.Log, cfg.Server.Mode == gin.ReleaseMode)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zl.Sync()
	zl.Info("config loaded",
		zap.Int("port", cfg.Server.Port),
		zap.Bool("webhook_configured", cfg.Webhook.URL != ""),
		zap.String("db", cfg.Database.Path),
	)

	// 初始化交互日志（可选）
	var journal *model.Journal
	var exchangeJournal exchange.Journal
	if cfg.Database.Path != "" {
		db, err := model.InitDB(cfg.Database.Path)
		if err != nil {
			zl.Fatal("failed to init database", zap.Error(err))
		}
		journal = model.NewJournal(db)
		exchangeJournal = journal
		zl.Info("exchange journal enabled")
	}

	// 初始化状态与控制器
	hub := handler.NewHub(&cfg.WebSocket, zl.Named("ws"))
	store := conversation.NewStore()
	prefs := settings.NewStore(cfg.Webhook.URL)
	ctrl := exchange.New(exchange.Options{
		Store:          store,
		Settings:       prefs,
		Sender:         webhook.NewClient(cfg.Webhook.Timeout, zl.Named("webhook")),
		Listener:       hub,
		Journal:        exchangeJournal,
		SimulatedDelay: cfg.Webhook.SimulatedDelay,
		Log:            zl.Named("exchange"),
	})

	// 设置路由
	router := &handler.Router{
		Hub:       hub,
		Chat:      handler.NewChatHandler(ctrl, store, journal, zl.Named("api")),
		Settings:  handler.NewSettingsHandler(ctrl, prefs),
		StaticDir: cfg.Server.StaticDir,
		Log:       zl.Named("http"),
	}

	// 启动服务
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	zl.Info("server starting", zap.String("addr", addr))
	if err := router.Engine().Run(addr); err != nil {
		zl.Fatal("failed to start server", zap.Error(err))
	}
}
