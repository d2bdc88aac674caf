/*
Package kv 网关使用的键值缓存存储

限流计数器与 spider 解析结果都存放在这里。配置了 Redis 时使用 Redis，
否则退化为进程内存储（单实例部署足够，多实例时计数不共享）。
*/
package kv

import (
	"context"
	"errors"
	"time"
)

/* ErrUnavailable 存储不可达 */
var ErrUnavailable = errors.New("kv store unavailable")

/*
Store 键值缓存接口
Get 未命中时返回 ok=false 且 err=nil；
IncrWindow 原子自增并在首次自增时设置过期时间，返回自增后的值
*/
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Name() string
}
