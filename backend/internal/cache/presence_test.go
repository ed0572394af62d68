package cache

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"

	"canvasServer/backend/internal/presence"
)

func newTestClient(t *testing.T) redis.UniversalClient {
	t.Helper()
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{"127.0.0.1:6379"}, DB: 15})
	// 若 Redis 未启动则跳过
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skip: redis not available: %v", err)
	}
	t.Cleanup(func() {
		rdb.Del(context.Background(), onlineKey(), profilesKey())
		rdb.Close()
	})
	rdb.Del(context.Background(), onlineKey(), profilesKey())
	return rdb
}

func TestAddAndRemoveMember(t *testing.T) {
	rdb := newTestClient(t)
	p := NewRedisPresence(rdb, time.Minute, 8)
	defer p.Close()
	ctx := context.Background()

	if err := p.AddMember(ctx, presence.Profile{UserID: "u1", Username: "alice", ProfilePhoto: "a.png"}); err != nil {
		t.Fatalf("AddMember error: %v", err)
	}
	if err := p.AddMember(ctx, presence.Profile{UserID: "u2", Username: "bob"}); err != nil {
		t.Fatalf("AddMember error: %v", err)
	}

	users, err := p.OnlineUsers(ctx)
	if err != nil {
		t.Fatalf("OnlineUsers error: %v", err)
	}
	if len(users) != 2 || users["u1"].Username != "alice" || users["u1"].ProfilePhoto != "a.png" {
		t.Fatalf("online users = %+v", users)
	}

	if err := p.RemoveMember(ctx, "u1"); err != nil {
		t.Fatalf("RemoveMember error: %v", err)
	}
	users, err = p.OnlineUsers(ctx)
	if err != nil {
		t.Fatalf("OnlineUsers error: %v", err)
	}
	if _, ok := users["u1"]; ok || len(users) != 1 {
		t.Fatalf("u1 should be gone, got %+v", users)
	}
}

func TestExpiredMembersCleaned(t *testing.T) {
	rdb := newTestClient(t)
	p := NewRedisPresence(rdb, time.Minute, 8)
	defer p.Close()
	ctx := context.Background()

	past := float64(time.Now().Add(-time.Minute).Unix())
	rdb.ZAdd(ctx, onlineKey(), redis.Z{Score: past, Member: "stale"})
	rdb.HSet(ctx, profilesKey(), "stale", `{"userId":"stale","username":"old"}`)

	users, err := p.OnlineUsers(ctx)
	if err != nil {
		t.Fatalf("OnlineUsers error: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expired member still listed: %+v", users)
	}
	if n, _ := rdb.HExists(ctx, profilesKey(), "stale").Result(); n {
		t.Fatalf("expired profile not removed")
	}
}

func TestMirrorThroughRegistry(t *testing.T) {
	rdb := newTestClient(t)
	p := NewRedisPresence(rdb, time.Minute, 8)
	reg := presence.NewRegistry(p)

	reg.Announce(presence.Entry{Profile: presence.Profile{UserID: "u1", Username: "alice"}, ConnID: "c1"})
	reg.Announce(presence.Entry{Profile: presence.Profile{UserID: "u2", Username: "bob"}, ConnID: "c2"})
	reg.Forget("u2")
	// Close 会等队列写完
	p.Close()

	users, err := p.OnlineUsers(context.Background())
	if err != nil {
		t.Fatalf("OnlineUsers error: %v", err)
	}
	if len(users) != 1 || users["u1"].Username != "alice" {
		t.Fatalf("mirrored users = %+v", users)
	}
}

func TestRefreshSkipsRemovedMembers(t *testing.T) {
	rdb := newTestClient(t)
	p := NewRedisPresence(rdb, time.Minute, 8)
	defer p.Close()
	ctx := context.Background()

	if err := p.AddMember(ctx, presence.Profile{UserID: "u1", Username: "alice"}); err != nil {
		t.Fatalf("AddMember error: %v", err)
	}
	if err := p.AddMember(ctx, presence.Profile{UserID: "u2", Username: "bob"}); err != nil {
		t.Fatalf("AddMember error: %v", err)
	}
	// 把 u2 的过期时间调小，确认心跳会续期
	rdb.ZAdd(ctx, onlineKey(), redis.Z{Score: float64(time.Now().Add(5 * time.Second).Unix()), Member: "u2"})
	if err := p.RemoveMember(ctx, "u1"); err != nil {
		t.Fatalf("RemoveMember error: %v", err)
	}

	// 心跳拿到的是移除之前的在线表快照
	entries := map[string]presence.Entry{
		"u1": {Profile: presence.Profile{UserID: "u1"}},
		"u2": {Profile: presence.Profile{UserID: "u2"}},
	}
	if err := p.Refresh(ctx, entries); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}

	if err := rdb.ZScore(ctx, onlineKey(), "u1").Err(); err != redis.Nil {
		t.Fatalf("removed member revived by heartbeat, err = %v", err)
	}
	score, err := rdb.ZScore(ctx, onlineKey(), "u2").Result()
	if err != nil {
		t.Fatalf("ZScore(u2) error: %v", err)
	}
	if score < float64(time.Now().Add(30*time.Second).Unix()) {
		t.Fatalf("u2 not refreshed, score = %v", score)
	}
}
