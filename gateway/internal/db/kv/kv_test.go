package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

/*
exerciseStore 对两种实现执行同一组行为断言
*/
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("未命中应返回 ok=false err=nil, 实际 ok=%v err=%v", ok, err)
	}

	if err := s.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set 失败: %v", err)
	}
	if v, ok, _ := s.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("Get 期望 v, 实际 %q ok=%v", v, ok)
	}

	for i := int64(1); i <= 3; i++ {
		n, err := s.Incr(ctx, "counter")
		if err != nil {
			t.Fatalf("Incr 失败: %v", err)
		}
		if n != i {
			t.Fatalf("Incr 期望 %d, 实际 %d", i, n)
		}
	}
	if err := s.Expire(ctx, "counter", time.Minute); err != nil {
		t.Fatalf("Expire 失败: %v", err)
	}
	if v, ok, _ := s.Get(ctx, "counter"); !ok || v != "3" {
		t.Fatalf("计数器读取期望 3, 实际 %q", v)
	}

	for i := int64(1); i <= 2; i++ {
		if n, err := s.IncrWindow(ctx, "window", time.Minute); err != nil || n != i {
			t.Fatalf("IncrWindow 期望 %d, 实际 %d err=%v", i, n, err)
		}
	}

	if err := s.Del(ctx, "k", "counter"); err != nil {
		t.Fatalf("Del 失败: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("删除后不应命中")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

/*
TestMemoryStore_Expiry 测试过期后计数器重新开始
*/
func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, _ = s.Incr(ctx, "c")
	_ = s.Expire(ctx, "c", 5*time.Millisecond)
	time.Sleep(15 * time.Millisecond)

	if _, ok, _ := s.Get(ctx, "c"); ok {
		t.Fatal("过期键不应命中")
	}
	n, _ := s.Incr(ctx, "c")
	if n != 1 {
		t.Fatalf("过期后 Incr 应从 1 开始, 实际 %d", n)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewRedisStoreFromClient(client)
	exerciseStore(t, s)

	/* TTL 由 miniredis 快进验证 */
	ctx := context.Background()
	_ = s.Set(ctx, "ttl", "x", time.Second)
	mr.FastForward(2 * time.Second)
	if _, ok, _ := s.Get(ctx, "ttl"); ok {
		t.Fatal("快进超过 TTL 后不应命中")
	}
}

/*
TestRedisStore_IncrWindowTTL 测试过期时间只在首次自增时设置
*/
func TestRedisStore_IncrWindowTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := NewRedisStoreFromClient(client)
	ctx := context.Background()

	_, _ = s.IncrWindow(ctx, "w", 10*time.Second)
	mr.FastForward(4 * time.Second)
	_, _ = s.IncrWindow(ctx, "w", 10*time.Second)
	if ttl := mr.TTL("w"); ttl != 6*time.Second {
		t.Errorf("后续自增不应刷新过期时间, 实际 TTL %v", ttl)
	}
	mr.FastForward(7 * time.Second)
	if n, _ := s.IncrWindow(ctx, "w", 10*time.Second); n != 1 {
		t.Errorf("过期后应从 1 开始, 实际 %d", n)
	}
}

/*
TestRedisStore_Unavailable 测试 Redis 不可达时返回 ErrUnavailable
*/
func TestRedisStore_Unavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 5 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	s := NewRedisStoreFromClient(client)

	_, _, err := s.Get(context.Background(), "k")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("期望 ErrUnavailable, 实际 %v", err)
	}
	if _, err := s.Incr(context.Background(), "k"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Incr 期望 ErrUnavailable, 实际 %v", err)
	}
}
