package session

import "errors"

// 错误码，随 error 事件下发给客户端用于分支处理。
// 越权（不是管理员）不下发错误码，按 errSilent 处理。
const (
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeRecipientOffline   = "RECIPIENT_OFFLINE"
	CodeAdminOffline       = "ADMIN_OFFLINE"
	CodeAlreadyMember      = "ALREADY_MEMBER"
	CodeInvalidInvitation  = "INVALID_INVITATION"
	CodeCanvasAccessDenied = "CANVAS_ACCESS_DENIED"
	CodeUnknownEvent       = "UNKNOWN_EVENT"
)

// ProtocolError 只发回给触发它的连接，不影响其他连接和画布
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string { return e.Code + ": " + e.Message }

func protoErr(code, msg string) *ProtocolError {
	return &ProtocolError{Code: code, Message: msg}
}

var (
	// errSilent 校验失败或越权：静默丢弃，不回任何事件
	errSilent = errors.New("silently dropped")

	ErrUnauthenticated   = protoErr(CodeUnauthenticated, "Connection is not associated with an online user.")
	ErrRecipientOffline  = protoErr(CodeRecipientOffline, "User is offline.")
	ErrAlreadyMember     = protoErr(CodeAlreadyMember, "User already joined the canvas.")
	ErrAdminOffline      = protoErr(CodeAdminOffline, "Admin is offline or invitation invalid.")
	ErrInvalidInvitation = protoErr(CodeInvalidInvitation, "Invalid invitation.")
	ErrAccessDenied      = protoErr(CodeCanvasAccessDenied, "You are not authorized to work on this canvas.")
)
