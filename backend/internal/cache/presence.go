package cache

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"canvasServer/backend/internal/presence"
)

// op 一次镜像写入；online=false 表示下线
type op struct {
	online bool
	entry  presence.Entry
	userID string
}

// RedisPresence 把在线表镜像到 Redis，实现 presence.Mirror。
// 写入走有界队列 + 单个 worker，保证同一用户的上线/下线按顺序落地，
// 也保证事件处理流程不会被 Redis 卡住；队列满时丢弃。
type RedisPresence struct {
	rdb redis.UniversalClient
	ttl time.Duration

	// 合并并发的 OnlineUsers 读取
	sf singleflight.Group

	queue  chan op
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewRedisPresence(rdb redis.UniversalClient, ttl time.Duration, queueSize int) *RedisPresence {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	p := &RedisPresence{rdb: rdb, ttl: ttl, queue: make(chan op, queueSize)}
	p.wg.Add(1)
	go p.loop()
	return p
}

func (p *RedisPresence) Online(e presence.Entry) {
	p.enqueue(op{online: true, entry: e, userID: e.UserID})
}

func (p *RedisPresence) Offline(userID string) {
	p.enqueue(op{userID: userID})
}

func (p *RedisPresence) enqueue(o op) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- o:
	default:
		log.Printf("presence mirror queue full, drop user=%s online=%v", o.userID, o.online)
	}
}

// Close 停止接收，等待队列写完
func (p *RedisPresence) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *RedisPresence) loop() {
	defer p.wg.Done()
	for o := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		var err error
		if o.online {
			err = p.AddMember(ctx, o.entry.Profile)
		} else {
			err = p.RemoveMember(ctx, o.userID)
		}
		cancel()
		if err != nil {
			log.Printf("presence mirror user=%s online=%v error: %v", o.userID, o.online, err)
		}
	}
}

// AddMember 写入/刷新一个在线用户；刷新 TTL 也直接调用 AddMember
func (p *RedisPresence) AddMember(ctx context.Context, profile presence.Profile) error {
	b, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	tx := p.rdb.TxPipeline()
	// ZSET score 使用 expireAt（Unix 秒），用于表达“逻辑 TTL”
	expireAt := time.Now().Add(p.ttl).Unix()
	tx.ZAdd(ctx, onlineKey(), redis.Z{Score: float64(expireAt), Member: profile.UserID})
	tx.HSet(ctx, profilesKey(), profile.UserID, b)
	_, err = tx.Exec(ctx)
	return err
}

func (p *RedisPresence) RemoveMember(ctx context.Context, userID string) error {
	tx := p.rdb.TxPipeline()
	tx.ZRem(ctx, onlineKey(), userID)
	tx.HDel(ctx, profilesKey(), userID)
	_, err := tx.Exec(ctx)
	return err
}

// Refresh 续期本实例上所有在线用户，由心跳定时调用。
// 只续期 ZSet 里已有的成员（XX），已下线的用户不会被心跳重新写回。
func (p *RedisPresence) Refresh(ctx context.Context, entries map[string]presence.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	expireAt := float64(time.Now().Add(p.ttl).Unix())
	members := make([]redis.Z, 0, len(entries))
	for userID := range entries {
		members = append(members, redis.Z{Score: expireAt, Member: userID})
	}
	return p.rdb.ZAddArgs(ctx, onlineKey(), redis.ZAddArgs{XX: true, Members: members}).Err()
}

var cleanupScript = redis.NewScript(`
-- KEYS[1] = onlineKey()    presence:{online}
-- KEYS[2] = profilesKey()  presence:{online}:profiles
-- ARGV[1] = now (unix seconds)

local expired = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
if #expired > 0 then
	redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
	redis.call("HDEL", KEYS[2], unpack(expired))
end
return #expired
`)

// OnlineUsers 读取所有实例镜像过来的在线用户，顺带清理过期成员。
// 同一时刻的多个请求只打一次 Redis，结果各自拷贝一份。
func (p *RedisPresence) OnlineUsers(ctx context.Context) (map[string]presence.Profile, error) {
	v, err, _ := p.sf.Do("online-users", func() (any, error) {
		return p.loadOnlineUsers(ctx)
	})
	if err != nil {
		return nil, err
	}
	shared := v.(map[string]presence.Profile)
	out := make(map[string]presence.Profile, len(shared))
	for k, profile := range shared {
		out[k] = profile
	}
	return out, nil
}

func (p *RedisPresence) loadOnlineUsers(ctx context.Context) (map[string]presence.Profile, error) {
	// step1: 清理过期成员
	// 约定：score=expireAt（Unix 秒），expireAt <= now 视为过期
	now := time.Now().Unix()
	if _, err := cleanupScript.Run(ctx, p.rdb, []string{onlineKey(), profilesKey()}, now).Int(); err != nil && err != redis.Nil {
		return nil, err
	}

	// step2: 查询在线成员
	aliveIDs, err := p.rdb.ZRangeByScore(ctx, onlineKey(), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now, 10), // > now
		Max: "+inf",
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	out := make(map[string]presence.Profile, len(aliveIDs))
	if len(aliveIDs) == 0 {
		return out, nil
	}

	// step3: 批量获取资料
	raw, err := p.rdb.HMGet(ctx, profilesKey(), aliveIDs...).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	for i, v := range raw {
		profile := presence.Profile{UserID: aliveIDs[i]}
		if s, ok := v.(string); ok {
			if err := json.Unmarshal([]byte(s), &profile); err != nil {
				log.Printf("bad presence profile user=%s: %v", aliveIDs[i], err)
			}
		}
		out[aliveIDs[i]] = profile
	}
	return out, nil
}
