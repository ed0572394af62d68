package session

import (
	"bytes"
	"encoding/json"

	"canvasServer/backend/internal/collab"
)

// 邀请握手：NONE -> INVITED -> MEMBER。
// 没有单独的"待处理邀请"，管理员指针本身就是邀请标记；
// 对同一画布的新邀请会覆盖管理员，之前的被邀请人仍可接受。

// Invite 发起邀请：设置管理员、记录快照、把发起方加入画布组，再通知被邀请人
func (s *Service) Invite(connID string, req InviteRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.ToUserID == "" || req.CanvasID == "" {
		return errSilent
	}
	issuer, ok := s.currentUser(connID)
	if !ok {
		return ErrUnauthenticated
	}
	recipient, ok := s.presence.Get(req.ToUserID)
	if !ok {
		s.metrics.RecordInvitation("recipient_offline")
		return ErrRecipientOffline
	}
	if s.canvases.IsCollaborator(req.CanvasID, req.ToUserID) {
		s.metrics.RecordInvitation("already_member")
		return ErrAlreadyMember
	}
	if recipient.UserID == issuer.UserID {
		return ErrInvalidInvitation
	}

	s.canvases.SetAdmin(req.CanvasID, issuer.Profile)
	s.canvases.SetName(req.CanvasID, req.CanvasName)
	if hasContent(req.Lines) {
		s.canvases.SetSnapshot(req.CanvasID, req.Lines)
	}
	s.groups.Attach(connID, req.CanvasID)

	s.groups.SendTo(recipient.ConnID, Message{Event: EventReceiveInvitation, Payload: InvitationPayload{
		CanvasID:          req.CanvasID,
		CanvasName:        req.CanvasName,
		AdminUserID:       issuer.UserID,
		AdminProfilePhoto: issuer.ProfilePhoto,
		Username:          issuer.Username,
	}})
	s.metrics.RecordInvitation("issued")
	s.publish(collab.EventInvitationIssued, req.CanvasID, recipient.UserID, issuer.UserID, 0)
	return nil
}

// Accept 接受邀请。每次都重新校验管理员在线且仍是该画布管理员，
// 因为断线和接受可能以任意顺序到达。重复接受是幂等的。
func (s *Service) Accept(connID string, req AcceptRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.CanvasID == "" || req.AdminUserID == "" {
		return errSilent
	}
	admin, ok := s.presence.Get(req.AdminUserID)
	if !ok {
		s.metrics.RecordInvitation("admin_offline")
		return ErrAdminOffline
	}
	if !s.canvases.IsAdmin(req.CanvasID, req.AdminUserID) {
		s.metrics.RecordInvitation("invalid")
		return ErrInvalidInvitation
	}
	recipient, ok := s.currentUser(connID)
	if !ok {
		return ErrUnauthenticated
	}
	if recipient.UserID == req.AdminUserID {
		return ErrInvalidInvitation
	}
	if s.canvases.IsCollaborator(req.CanvasID, recipient.UserID) {
		return nil
	}

	if s.canvases.Name(req.CanvasID) == "" {
		s.canvases.SetName(req.CanvasID, req.CanvasName)
	}
	s.canvases.AddCollaborator(req.CanvasID, recipient.Profile)
	s.groups.Attach(connID, req.CanvasID)
	s.broadcastRoster(req.CanvasID)

	s.groups.SendTo(admin.ConnID, Message{Event: EventInvitationAccepted, Payload: InvitationAcceptedPayload{
		CanvasID: req.CanvasID,
		UserID:   recipient.UserID,
		Message:  recipient.Username + " joined the canvas",
	}})
	s.sendAdminCanvases(admin.ConnID, admin.UserID)

	s.metrics.RecordInvitation("accepted")
	s.publish(collab.EventInvitationAccepted, req.CanvasID, recipient.UserID, admin.UserID, 0)
	return nil
}

// hasContent lines 缺省或为 null 时不覆盖已有快照
func hasContent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}
