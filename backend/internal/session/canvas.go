package session

import "canvasServer/backend/internal/collab"

// UpdateCanvas 记录快照并转发给画布组（包括发送方自己）。
// 默认只要求连接已在画布组里，不再校验成员身份；EnforceUpdateAuth 打开后改为校验成员身份。
func (s *Service) UpdateCanvas(connID string, req CanvasUpdateRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.CanvasID == "" {
		return errSilent
	}
	var actor string
	if user, ok := s.currentUser(connID); ok {
		actor = user.UserID
	}
	if s.enforceUpdateAuth {
		if !s.isMember(req.CanvasID, actor) {
			return ErrAccessDenied
		}
	} else if !s.groups.IsAttached(connID, req.CanvasID) {
		return ErrAccessDenied
	}

	if hasContent(req.Lines) {
		s.canvases.SetSnapshot(req.CanvasID, req.Lines)
	}
	s.groups.BroadcastToCanvas(req.CanvasID, Message{
		Event:   EventUpdatedCanvas,
		Payload: UpdatedCanvasPayload{Lines: req.Lines, CanvasID: req.CanvasID},
	})
	s.metrics.RecordUpdate()
	s.publish(collab.EventCanvasUpdated, req.CanvasID, "", actor, len(req.Lines))
	return nil
}

// CheckAccess 协作者或管理员可以进入画布，同时带上最近一次快照
func (s *Service) CheckAccess(connID string, req CanvasRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.CanvasID == "" {
		return errSilent
	}
	user, _ := s.currentUser(connID)
	if !s.isMember(req.CanvasID, user.UserID) {
		s.groups.SendTo(connID, Message{Event: EventCanvasAccessable, Payload: AccessPayload{Success: false, Message: "Access denied."}})
		return nil
	}
	out := AccessPayload{Success: true, Message: "Access accepted."}
	if snap, ok := s.canvases.Snapshot(req.CanvasID); ok {
		out.Lines = snap
	}
	s.groups.SendTo(connID, Message{Event: EventCanvasAccessable, Payload: out})
	return nil
}

func (s *Service) isMember(canvasID, userID string) bool {
	if userID == "" {
		return false
	}
	return s.canvases.IsAdmin(canvasID, userID) || s.canvases.IsCollaborator(canvasID, userID)
}
