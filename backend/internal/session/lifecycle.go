package session

import (
	"canvasServer/backend/internal/collab"
	"canvasServer/backend/internal/presence"
)

const (
	msgAdminOffline = "Admin has gone offline. Updates are paused."
	msgAdminOnline  = "Admin is back online."
	msgCanvasGone   = "The canvas has been deleted by the admin."
)

// Online 用户上线：写在线表、全局广播在线列表，然后按成员表重新加入画布组
func (s *Service) Online(connID string, req OnlineRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.UserID == "" || req.Username == "" {
		return errSilent
	}
	s.groups.Register(connID)

	// 同一连接换了身份，旧身份的画布组不再适用
	if prevUser, ok := s.presence.ResolveByConnection(connID); ok && prevUser != req.UserID {
		s.groups.DetachAll(connID)
	}
	// 重连：旧连接不再代表这个用户，从画布组里摘掉
	if prev, ok := s.presence.Get(req.UserID); ok && prev.ConnID != connID {
		s.groups.DetachAll(prev.ConnID)
	}

	entry := presence.Entry{
		Profile: presence.Profile{UserID: req.UserID, Username: req.Username, ProfilePhoto: req.ProfilePhoto},
		ConnID:  connID,
	}
	if !s.presence.Announce(entry) {
		return errSilent
	}
	s.metrics.SetOnlineUsers(s.presence.Len())
	s.groups.BroadcastAll(Message{Event: EventGetOnlineUsers, Payload: onlineUsersPayload(s.presence.All())})

	for _, canvasID := range s.canvases.ListCanvasesFor(req.UserID) {
		s.groups.Attach(connID, canvasID)
		s.broadcastRoster(canvasID)
	}

	adminCanvases := s.canvases.ListAdminCanvases(req.UserID)
	for _, canvasID := range adminCanvases {
		// 先通知组内已有的协作者，再把管理员加进来
		s.groups.BroadcastToCanvas(canvasID, Message{Event: EventAdminOnline, Payload: AdminOnlinePayload{
			CanvasID:    canvasID,
			AdminUserID: req.UserID,
			Message:     msgAdminOnline,
		}})
		s.groups.Attach(connID, canvasID)
		s.broadcastRoster(canvasID)
	}
	s.groups.SendTo(connID, Message{Event: EventGetAdminOfCanvases, Payload: AdminCanvasesPayload{CanvasIDs: adminCanvases}})

	s.publish(collab.EventUserOnline, "", req.UserID, req.UserID, 0)
	return nil
}

// Disconnect 连接断开。只清理在线表和画布组缓存，成员关系保持不变。
// 已被重连覆盖的旧连接解析不到用户，只做连接清理。
func (s *Service) Disconnect(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.groups.Unregister(connID)

	userID, ok := s.presence.ResolveByConnection(connID)
	if !ok {
		return
	}
	s.presence.Forget(userID)
	s.metrics.SetOnlineUsers(s.presence.Len())
	s.groups.BroadcastAll(Message{Event: EventDisconnectedUser, Payload: userID})

	for _, canvasID := range s.canvases.ListAdminCanvases(userID) {
		s.groups.BroadcastToCanvas(canvasID, Message{Event: EventPauseCanvas, Payload: NoticePayload{Message: msgAdminOffline, CanvasID: canvasID}})
		s.groups.BroadcastToCanvas(canvasID, Message{Event: EventError, Payload: ErrorPayload{Message: msgAdminOffline, Code: CodeAdminOffline}})
	}
	for _, canvasID := range s.canvases.ListCanvasesFor(userID) {
		s.groups.BroadcastToCanvas(canvasID, Message{Event: EventCollaboratorLeaved, Payload: UserCanvasPayload{UserID: userID, CanvasID: canvasID}})
	}

	s.publish(collab.EventUserOffline, "", userID, userID, 0)
}

// DeleteCanvas 只有当前管理员可以删除；其他人静默忽略
func (s *Service) DeleteCanvas(connID string, req CanvasRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.CanvasID == "" {
		return errSilent
	}
	user, ok := s.currentUser(connID)
	if !ok || !s.canvases.IsAdmin(req.CanvasID, user.UserID) {
		return errSilent
	}

	s.groups.BroadcastToCanvas(req.CanvasID, Message{Event: EventCanvasDeleted, Payload: NoticePayload{Message: msgCanvasGone, CanvasID: req.CanvasID}})
	for _, c := range s.canvases.Collaborators(req.CanvasID) {
		s.groups.BroadcastToCanvas(req.CanvasID, Message{Event: EventCollaboratorLeaved, Payload: UserCanvasPayload{UserID: c.UserID, CanvasID: req.CanvasID}})
	}
	s.canvases.DeleteCanvas(req.CanvasID)
	s.groups.DropGroup(req.CanvasID)

	s.publish(collab.EventCanvasDeleted, req.CanvasID, "", user.UserID, 0)
	return nil
}

// RemoveUser 管理员把协作者移出画布。toUserId 必须是协作者，
// adminUserId 必须是记录中的管理员，且就是当前连接的用户。
func (s *Service) RemoveUser(connID string, req RemoveUserRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.CanvasID == "" || req.ToUserID == "" || req.AdminUserID == "" {
		return errSilent
	}
	actor, ok := s.presence.ResolveByConnection(connID)
	if !ok || actor != req.AdminUserID {
		return errSilent
	}
	if !s.canvases.IsAdmin(req.CanvasID, req.AdminUserID) || !s.canvases.IsCollaborator(req.CanvasID, req.ToUserID) {
		return errSilent
	}

	s.canvases.RemoveCollaborator(req.CanvasID, req.ToUserID)
	s.groups.BroadcastToCanvas(req.CanvasID, Message{Event: EventCollaboratorLeaved, Payload: UserCanvasPayload{UserID: req.ToUserID, CanvasID: req.CanvasID}})

	notice := Message{Event: EventRemovedFromCanvas, Payload: NoticePayload{
		Message:  "You have been removed from the canvas by the admin.",
		CanvasID: req.CanvasID,
	}}
	if s.groups.BroadcastToUser(req.ToUserID, notice) {
		removed, _ := s.presence.Get(req.ToUserID)
		s.groups.Detach(removed.ConnID, req.CanvasID)
	}

	s.publish(collab.EventCollaboratorKicked, req.CanvasID, req.ToUserID, req.AdminUserID, 0)
	return nil
}

// LeaveCanvas 协作者主动退出；失败结果只告诉调用方
func (s *Service) LeaveCanvas(connID string, req CanvasRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.CanvasID == "" {
		return errSilent
	}
	user, ok := s.currentUser(connID)
	if !ok || !s.canvases.IsCollaborator(req.CanvasID, user.UserID) {
		s.groups.SendTo(connID, Message{Event: EventLeaveCanvasResult, Payload: LeaveResultPayload{
			Success:  false,
			CanvasID: req.CanvasID,
			Message:  "You are not a collaborator of this canvas.",
		}})
		return nil
	}

	s.canvases.RemoveCollaborator(req.CanvasID, user.UserID)
	s.groups.BroadcastToCanvas(req.CanvasID, Message{Event: EventCollaboratorLeaved, Payload: UserCanvasPayload{UserID: user.UserID, CanvasID: req.CanvasID}})
	s.groups.BroadcastToCanvas(req.CanvasID, Message{Event: EventCanvasNotice, Payload: NoticePayload{
		Message:  user.Username + " left the canvas",
		CanvasID: req.CanvasID,
	}})
	s.groups.SendTo(connID, Message{Event: EventLeaveCanvasResult, Payload: LeaveResultPayload{
		Success:  true,
		CanvasID: req.CanvasID,
		Message:  "You left the canvas.",
	}})
	s.groups.Detach(connID, req.CanvasID)

	s.publish(collab.EventCollaboratorLeft, req.CanvasID, user.UserID, user.UserID, 0)
	return nil
}

// CollaboratorCanvases 当前用户作为协作者参与的所有画布
func (s *Service) CollaboratorCanvases(connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.presence.ResolveByConnection(connID)
	if !ok {
		return ErrUnauthenticated
	}
	ids := s.canvases.ListCanvasesFor(userID)
	out := make([]CanvasSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, CanvasSummary{CanvasID: id, CanvasName: s.canvases.Name(id)})
	}
	s.groups.SendTo(connID, Message{Event: EventAllCollabCanvases, Payload: out})
	return nil
}
