package session

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"canvasServer/backend/internal/collab"
	"canvasServer/backend/internal/membership"
	"canvasServer/backend/internal/presence"
)

// Publisher 画布事件的下游（Kafka），必须立即返回
type Publisher interface {
	TryEnqueue(evt collab.CanvasEvent) bool
}

type Options struct {
	Metrics   *Metrics
	Publisher Publisher
	// EnforceUpdateAuth 为 true 时 canvas-update 只接受管理员和协作者
	EnforceUpdateAuth bool
}

// Service 画布会话协议。所有处理函数串行执行，
// 同一时刻只有一个事件在读写在线表和成员表。
type Service struct {
	mu sync.Mutex

	presence  *presence.Registry
	canvases  *membership.Store
	groups    *Broadcaster
	publisher Publisher
	metrics   *Metrics

	enforceUpdateAuth bool
	now               func() time.Time
}

func NewService(t Transport, p *presence.Registry, s *membership.Store, opt Options) *Service {
	return &Service{
		presence:          p,
		canvases:          s,
		groups:            NewBroadcaster(t, p, opt.Metrics),
		publisher:         opt.Publisher,
		metrics:           opt.Metrics,
		enforceUpdateAuth: opt.EnforceUpdateAuth,
		now:               time.Now,
	}
}

// Connect 新连接建立，加入全局广播集合（此时尚未上线）
func (s *Service) Connect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups.Register(connID)
}

// OnlineUsers 在线用户的公开资料
func (s *Service) OnlineUsers() map[string]presence.Profile {
	return onlineUsersPayload(s.presence.All())
}

// Handle 处理一条入站事件。错误在这里转换成只发给来源连接的 error 事件，
// 不会关闭连接，也不会影响其他连接。
func (s *Service) Handle(connID, event string, payload json.RawMessage) {
	err := s.dispatch(connID, event, payload)
	if err == nil {
		return
	}
	var pe *ProtocolError
	switch {
	case errors.As(err, &pe):
		s.metrics.RecordError(pe.Code)
		s.groups.SendTo(connID, Message{Event: EventError, Payload: ErrorPayload{Message: pe.Message, Code: pe.Code}})
	case errors.Is(err, errSilent):
	default:
		log.Printf("handle %s (conn=%s) error: %v", event, connID, err)
	}
}

func (s *Service) dispatch(connID, event string, payload json.RawMessage) error {
	switch event {
	case EventOnline:
		var req OnlineRequest
		if err := decode(event, payload, &req); err != nil {
			return err
		}
		return s.Online(connID, req)

	case EventInviteUser:
		var req InviteRequest
		if err := decode(event, payload, &req); err != nil {
			return err
		}
		return s.Invite(connID, req)

	case EventAcceptInvitation:
		var req AcceptRequest
		if err := decode(event, payload, &req); err != nil {
			return err
		}
		return s.Accept(connID, req)

	case EventCanvasUpdate:
		var req CanvasUpdateRequest
		if err := decode(event, payload, &req); err != nil {
			return err
		}
		return s.UpdateCanvas(connID, req)

	case EventIfCanvasAccessable:
		var req CanvasRequest
		if err := decode(event, payload, &req); err != nil {
			return err
		}
		return s.CheckAccess(connID, req)

	case EventDeleteCanvas:
		// 老客户端直接发送 canvasId 字符串
		var id string
		if json.Unmarshal(payload, &id) == nil {
			return s.DeleteCanvas(connID, CanvasRequest{CanvasID: id})
		}
		var req CanvasRequest
		if err := decode(event, payload, &req); err != nil {
			return err
		}
		return s.DeleteCanvas(connID, req)

	case EventRemoveUser:
		var req RemoveUserRequest
		if err := decode(event, payload, &req); err != nil {
			return err
		}
		return s.RemoveUser(connID, req)

	case EventLeaveCanvas:
		var req CanvasRequest
		if err := decode(event, payload, &req); err != nil {
			return err
		}
		return s.LeaveCanvas(connID, req)

	case EventGetCollabCanvases:
		return s.CollaboratorCanvases(connID)

	case EventDisconnect:
		s.Disconnect(connID)
		return nil

	default:
		return protoErr(CodeUnknownEvent, "Unknown event "+event+".")
	}
}

// decode 负载格式错误按校验失败处理：记录日志后静默丢弃
func decode(event string, payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return errSilent
	}
	if err := json.Unmarshal(payload, v); err != nil {
		log.Printf("bad %s payload: %v", event, err)
		return errSilent
	}
	return nil
}

// currentUser 只认连接绑定的身份，不信任负载里自称的 userId
func (s *Service) currentUser(connID string) (presence.Entry, bool) {
	userID, ok := s.presence.ResolveByConnection(connID)
	if !ok {
		return presence.Entry{}, false
	}
	return s.presence.Get(userID)
}

// roster 协作者列表 + 管理员资料（管理员不存放在协作者里）
func (s *Service) roster(canvasID string) RosterPayload {
	p := RosterPayload{Collaborators: s.canvases.Collaborators(canvasID), CanvasID: canvasID}
	if admin, ok := s.canvases.Admin(canvasID); ok {
		p.Admin = &admin
	}
	return p
}

func (s *Service) broadcastRoster(canvasID string) {
	s.groups.BroadcastToCanvas(canvasID, Message{Event: EventCollaboratorJoined, Payload: s.roster(canvasID)})
}

func (s *Service) sendAdminCanvases(connID, userID string) {
	s.groups.SendTo(connID, Message{
		Event:   EventGetAdminOfCanvases,
		Payload: AdminCanvasesPayload{CanvasIDs: s.canvases.ListAdminCanvases(userID)},
	})
}

func (s *Service) publish(eventType, canvasID, userID, actorID string, size int) {
	if s.publisher == nil {
		return
	}
	s.publisher.TryEnqueue(collab.CanvasEvent{
		EventType:  eventType,
		CanvasID:   canvasID,
		UserID:     userID,
		ActorID:    actorID,
		Size:       size,
		OccurredAt: s.now(),
	})
}
