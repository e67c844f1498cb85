// Package cache 짧은 TTL 조회 캐시와 토큰 저장소. Redis가 없으면 프로세스 메모리를 쓴다
package cache

import (
	"context"
	"strings"
	"time"
)

// Cache 값은 JSON으로 저장한다
type Cache interface {
	// Get 키가 없거나 만료되면 false
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix 네임스페이스 단위 무효화
	DeletePrefix(ctx context.Context, prefix string) error
}

// Key 구성요소를 ':'로 잇는다
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Namespace 접두사가 고정된 캐시 뷰
type Namespace struct {
	c      Cache
	prefix string
	ttl    time.Duration
}

func NewNamespace(c Cache, prefix string, ttl time.Duration) *Namespace {
	return &Namespace{c: c, prefix: prefix, ttl: ttl}
}

func (n *Namespace) key(parts ...string) string {
	return Key(append([]string{n.prefix}, parts...)...)
}

func (n *Namespace) Get(ctx context.Context, dst interface{}, parts ...string) (bool, error) {
	return n.c.Get(ctx, n.key(parts...), dst)
}

func (n *Namespace) Set(ctx context.Context, value interface{}, parts ...string) error {
	if n.ttl <= 0 {
		return nil
	}
	return n.c.Set(ctx, n.key(parts...), value, n.ttl)
}

// Invalidate parts 아래 전체 삭제. parts가 없으면 네임스페이스 전체
func (n *Namespace) Invalidate(ctx context.Context, parts ...string) error {
	return n.c.DeletePrefix(ctx, n.key(parts...)+":")
}
