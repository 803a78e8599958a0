package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Router struct {
	Hub      *Hub
	Chat     *ChatHandler
	Settings *SettingsHandler
	// StaticDir 非空时托管前端页面
	StaticDir string
	Log       *zap.Logger
}

// Engine 组装全部路由
func (rt *Router) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), rt.requestLogger())

	r.GET("/ws", rt.Hub.HandleWS)

	api := r.Group("/api")
	rt.Chat.Register(api)
	rt.Settings.Register(api)

	if rt.StaticDir != "" {
		r.NoRoute(gin.WrapH(http.FileServer(http.Dir(rt.StaticDir))))
	}
	return r
}

func (rt *Router) requestLogger() gin.HandlerFunc {
	log := rt.Log
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
