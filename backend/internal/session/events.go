package session

import (
	"encoding/json"

	"canvasServer/backend/internal/presence"
)

// 入站事件
const (
	EventOnline             = "online"
	EventInviteUser         = "invite-user"
	EventAcceptInvitation   = "accept-invitation"
	EventCanvasUpdate       = "canvas-update"
	EventIfCanvasAccessable = "if-canvas-accessable"
	EventDeleteCanvas       = "delete-canvas"
	EventRemoveUser         = "remove-user"
	EventLeaveCanvas        = "leave-canvas"
	EventGetCollabCanvases  = "get-all-collaborator-canvases"
	EventDisconnect         = "disconnect"
)

// 出站事件
const (
	EventGetOnlineUsers     = "get-online-users"
	EventDisconnectedUser   = "disconnected-user"
	EventCollaboratorJoined = "collaborator-joined"
	EventCollaboratorLeaved = "collaborator-leaved"
	EventPauseCanvas        = "pause-canvas"
	EventReceiveInvitation  = "receive-invitation"
	EventInvitationAccepted = "invitation-accepted"
	EventGetAdminOfCanvases = "get-admin-of-canvases"
	EventUpdatedCanvas      = "updated-canvas"
	EventCanvasAccessable   = "canvas-accessable"
	EventCanvasDeleted      = "canvas-deleted"
	EventAllCollabCanvases  = "all-collaborator-canvases"
	EventAdminOnline        = "admin-online"
	EventRemovedFromCanvas  = "removed-from-canvas"
	EventCanvasNotice       = "canvas-notice"
	EventLeaveCanvasResult  = "leave-canvas-result"
	EventError              = "error"
)

// Message 发往单个连接的出站消息
type Message struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// ---- 入站负载 ----

type OnlineRequest struct {
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	ProfilePhoto string `json:"profilePhoto"`
}

type InviteRequest struct {
	ToUserID   string          `json:"toUserId"`
	CanvasID   string          `json:"canvasId"`
	CanvasName string          `json:"canvasName"`
	Lines      json.RawMessage `json:"lines"`
}

type AcceptRequest struct {
	CanvasID    string `json:"canvasId"`
	AdminUserID string `json:"adminUserId"`
	CanvasName  string `json:"canvasName"`
}

type CanvasUpdateRequest struct {
	CanvasID string          `json:"canvasId"`
	Lines    json.RawMessage `json:"lines"`
}

type CanvasRequest struct {
	CanvasID string `json:"canvasId"`
}

type RemoveUserRequest struct {
	AdminUserID string `json:"adminUserId"`
	CanvasID    string `json:"canvasId"`
	ToUserID    string `json:"toUserId"`
}

// ---- 出站负载 ----

type RosterPayload struct {
	Collaborators []presence.Profile `json:"collaborators"`
	CanvasID      string             `json:"canvasId"`
	Admin         *presence.Profile  `json:"admin,omitempty"`
}

type UserCanvasPayload struct {
	UserID   string `json:"userId"`
	CanvasID string `json:"canvasId"`
}

type NoticePayload struct {
	Message  string `json:"message"`
	CanvasID string `json:"canvasId,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type InvitationPayload struct {
	CanvasID          string `json:"canvasId"`
	CanvasName        string `json:"canvasName"`
	AdminUserID       string `json:"adminUserId"`
	AdminProfilePhoto string `json:"adminProfilePhoto"`
	Username          string `json:"username"`
}

type InvitationAcceptedPayload struct {
	CanvasID string `json:"canvasId"`
	UserID   string `json:"userId"`
	Message  string `json:"message"`
}

type AdminCanvasesPayload struct {
	CanvasIDs []string `json:"canvasIds"`
}

type UpdatedCanvasPayload struct {
	Lines    json.RawMessage `json:"lines"`
	CanvasID string          `json:"canvasId"`
}

type AccessPayload struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Lines   json.RawMessage `json:"lines,omitempty"`
}

type CanvasSummary struct {
	CanvasID   string `json:"canvasId"`
	CanvasName string `json:"canvasName"`
}

type AdminOnlinePayload struct {
	CanvasID    string `json:"canvasId"`
	AdminUserID string `json:"adminUserId"`
	Message     string `json:"message"`
}

type LeaveResultPayload struct {
	Success  bool   `json:"success"`
	CanvasID string `json:"canvasId"`
	Message  string `json:"message"`
}

// get-online-users 的负载：userId -> 公开资料
func onlineUsersPayload(all map[string]presence.Entry) map[string]presence.Profile {
	out := make(map[string]presence.Profile, len(all))
	for id, e := range all {
		out[id] = e.Profile
	}
	return out
}
