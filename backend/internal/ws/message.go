package ws

import "encoding/json"

// ClientMessage 客户端上行消息；payload 原样交给会话层按事件解析
type ClientMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
