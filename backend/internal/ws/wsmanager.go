package ws

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var defaultAllowedPrefixes = []string{
	"http://localhost",
	"http://127.0.0.1",
	"https://localhost",
	"https://127.0.0.1",
}

// checkOrigin 允许本地开发来源和配置里的前缀；配置 "*" 表示不限制
func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		allowed = defaultAllowedPrefixes
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || origin == "null" { // 一些环境可能不发送 Origin，或为 "null"
			return true
		}
		for _, p := range allowed {
			if p == "*" || strings.HasPrefix(origin, p) {
				return true
			}
		}
		return false
	}
}

type Manager struct {
	h         *Hub
	svc       EventHandler
	upgrader  websocket.Upgrader
	queueSize int
}

type ManagerOptions struct {
	AllowedOrigins []string
	SendQueueSize  int
}

func NewManager(h *Hub, svc EventHandler, opt ManagerOptions) *Manager {
	return &Manager{
		h:         h,
		svc:       svc,
		upgrader:  websocket.Upgrader{CheckOrigin: checkOrigin(opt.AllowedOrigins)},
		queueSize: opt.SendQueueSize,
	}
}

// WebSocketConnect 升级连接并阻塞到连接关闭。
// 每条连接分配一个 uuid，会话层只认这个 id。
func (m *Manager) WebSocketConnect(c *gin.Context) {
	conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v (origin=%s)", err, c.Request.Header.Get("Origin"))
		return
	}

	wsConn := NewConn(uuid.NewString(), conn, m.h, m.svc, m.queueSize)
	m.h.Add(wsConn)
	m.svc.Connect(wsConn.ID())
	log.Printf("ws connected conn=%s total=%d", wsConn.ID(), m.h.Len())

	// 先启动写循环，确保后续写入 send 通道的消息可以被及时发送
	go wsConn.writeLoop()
	// 最后再进入读循环（阻塞至连接关闭）
	wsConn.readLoop()
}
