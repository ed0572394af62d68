package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"canvasServer/backend/internal/membership"
	"canvasServer/backend/internal/presence"
)

// LocalPresence 本进程的在线表
type LocalPresence interface {
	OnlineUsers() map[string]presence.Profile
}

// ClusterPresence 所有实例镜像到 Redis 的在线表
type ClusterPresence interface {
	OnlineUsers(ctx context.Context) (map[string]presence.Profile, error)
}

type CanvasHandler struct {
	local    LocalPresence
	cluster  ClusterPresence
	canvases *membership.Store
}

// cluster 可以为 nil（未配置 Redis）
func NewCanvasHandler(local LocalPresence, cluster ClusterPresence, canvases *membership.Store) *CanvasHandler {
	return &CanvasHandler{local: local, cluster: cluster, canvases: canvases}
}

// OnlineUsers GET /canvas/online-users[?scope=cluster]
// 与 get-online-users 广播内容一致，便于排查
func (h *CanvasHandler) OnlineUsers(c *gin.Context) {
	if c.Query("scope") == "cluster" {
		if h.cluster == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cluster presence not configured"})
			return
		}
		users, err := h.cluster.OnlineUsers(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
		return
	}
	users := h.local.OnlineUsers()
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// GetCanvas GET /canvas/canvases/:canvasID 只读查看成员关系，不含快照内容
func (h *CanvasHandler) GetCanvas(c *gin.Context) {
	canvasID := c.Param("canvasID")
	if canvasID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing canvasId"})
		return
	}
	cv, ok := h.canvases.Get(canvasID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "canvas not found"})
		return
	}
	collaborators := cv.Collaborators
	if collaborators == nil {
		collaborators = []membership.Collaborator{}
	}
	c.JSON(http.StatusOK, gin.H{
		"canvasId":      cv.ID,
		"canvasName":    cv.Name,
		"admin":         cv.Admin,
		"collaborators": collaborators,
		"hasSnapshot":   cv.Snapshot != nil,
	})
}

func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "ok",
	})
}
