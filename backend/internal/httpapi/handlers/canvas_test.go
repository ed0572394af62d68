package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"canvasServer/backend/internal/membership"
	"canvasServer/backend/internal/presence"
)

type staticPresence map[string]presence.Profile

func (s staticPresence) OnlineUsers() map[string]presence.Profile { return s }

type clusterStub struct {
	users map[string]presence.Profile
	err   error
}

func (c clusterStub) OnlineUsers(context.Context) (map[string]presence.Profile, error) {
	return c.users, c.err
}

func newRouter(h *CanvasHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/canvas/healthz", Healthz)
	r.GET("/canvas/online-users", h.OnlineUsers)
	r.GET("/canvas/canvases/:canvasID", h.GetCanvas)
	return r
}

func do(t *testing.T, r http.Handler, path string) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return w.Code, body
}

func TestOnlineUsersLocal(t *testing.T) {
	local := staticPresence{"u1": {UserID: "u1", Username: "alice"}}
	r := newRouter(NewCanvasHandler(local, nil, membership.NewStore(nil)))

	code, body := do(t, r, "/canvas/online-users")
	if code != http.StatusOK || body["count"].(float64) != 1 {
		t.Fatalf("code=%d body=%v", code, body)
	}

	code, _ = do(t, r, "/canvas/online-users?scope=cluster")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("cluster scope without redis: code=%d", code)
	}
}

func TestOnlineUsersCluster(t *testing.T) {
	cluster := clusterStub{users: map[string]presence.Profile{"u1": {UserID: "u1"}, "u9": {UserID: "u9"}}}
	r := newRouter(NewCanvasHandler(staticPresence{}, cluster, membership.NewStore(nil)))

	code, body := do(t, r, "/canvas/online-users?scope=cluster")
	if code != http.StatusOK || body["count"].(float64) != 2 {
		t.Fatalf("code=%d body=%v", code, body)
	}

	r = newRouter(NewCanvasHandler(staticPresence{}, clusterStub{err: errors.New("redis down")}, membership.NewStore(nil)))
	if code, _ := do(t, r, "/canvas/online-users?scope=cluster"); code != http.StatusInternalServerError {
		t.Fatalf("code=%d", code)
	}
}

func TestGetCanvas(t *testing.T) {
	store := membership.NewStore(nil)
	store.SetAdmin("c1", presence.Profile{UserID: "u1", Username: "alice"})
	store.SetName("c1", "board")
	store.AddCollaborator("c1", membership.Collaborator{UserID: "u2", Username: "bob"})
	r := newRouter(NewCanvasHandler(staticPresence{}, nil, store))

	code, body := do(t, r, "/canvas/canvases/c1")
	if code != http.StatusOK {
		t.Fatalf("code=%d", code)
	}
	if body["canvasName"] != "board" || len(body["collaborators"].([]any)) != 1 || body["hasSnapshot"] != false {
		t.Fatalf("body = %v", body)
	}

	if code, _ := do(t, r, "/canvas/canvases/missing"); code != http.StatusNotFound {
		t.Fatalf("missing canvas code=%d", code)
	}
	if code, _ := do(t, r, "/canvas/healthz"); code != http.StatusOK {
		t.Fatalf("healthz code=%d", code)
	}
}
