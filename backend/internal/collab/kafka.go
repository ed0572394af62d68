package collab

import "time"

// 画布生命周期事件类型
const (
	EventInvitationIssued   = "INVITATION_ISSUED"
	EventInvitationAccepted = "INVITATION_ACCEPTED"
	EventCanvasUpdated      = "CANVAS_UPDATED"
	EventCollaboratorLeft   = "COLLABORATOR_LEFT"
	EventCollaboratorKicked = "COLLABORATOR_REMOVED"
	EventCanvasDeleted      = "CANVAS_DELETED"
	EventUserOnline         = "USER_ONLINE"
	EventUserOffline        = "USER_OFFLINE"
)

// CanvasEvent 投递到 Kafka 的事件；以 canvasId 做 key，同一画布的事件落在同一分区
type CanvasEvent struct {
	EventType  string    `json:"eventType"`
	CanvasID   string    `json:"canvasId,omitempty"`
	UserID     string    `json:"userId,omitempty"`  // 事件涉及的用户
	ActorID    string    `json:"actorId,omitempty"` // 触发事件的用户
	Size       int       `json:"size,omitempty"`    // CANVAS_UPDATED 时为内容字节数
	OccurredAt time.Time `json:"occurredAt"`
}

// PartitionKey 画布事件按 canvasId 分区，用户上下线按 userId
func (e CanvasEvent) PartitionKey() string {
	if e.CanvasID != "" {
		return e.CanvasID
	}
	return e.UserID
}
