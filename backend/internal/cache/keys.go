package cache

// 键语义：
// - onlineKey():   全局在线用户（ZSet<userId, expireAtUnix>，score=expireAt）
// - profilesKey(): userId -> 公开资料 JSON（Hash）
//
// 多个实例共用同一组键；进程内的在线表才是判定依据，这里只做旁路镜像。
// 两个键用同一个 {online} 标签，集群模式下落在同一个槽，Lua 脚本和事务才能同时操作。

const (
	keyOnlineZSet   = "presence:{online}"          // ZSet<userId, expireAtUnix>
	keyProfilesHash = "presence:{online}:profiles" // Hash<userId -> profile json>
)

func onlineKey() string   { return keyOnlineZSet }
func profilesKey() string { return keyProfilesHash }
