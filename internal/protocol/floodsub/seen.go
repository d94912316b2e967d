package floodsub

import (
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/minio/sha256-simd"
	"github.com/mr-tron/base58"
)

// seenCache 已见消息 ID
//
// 容量与存活时间双重约束；被淘汰的 ID 再次到达时会被当作新消息。
type seenCache struct {
	lru *expirable.LRU[string, struct{}]
}

func newSeenCache(size int, ttl time.Duration) *seenCache {
	return &seenCache{lru: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

// visit 首次见到时记录并返回 true
func (c *seenCache) visit(id string) bool {
	if c.lru.Contains(id) {
		return false
	}
	c.lru.Add(id, struct{}{})
	return true
}

func (c *seenCache) len() int {
	return c.lru.Len()
}

// messageID 消息 ID：发布者 + 序号；无发布者时为内容摘要
func messageID(from []byte, seqno uint64, data []byte, topics []string) string {
	if len(from) > 0 {
		return base58.Encode(from) + ":" + strconv.FormatUint(seqno, 10)
	}
	h := sha256.New()
	h.Write(data)
	for _, t := range topics {
		h.Write([]byte{0})
		h.Write([]byte(t))
	}
	return "sha256:" + base58.Encode(h.Sum(nil))
}
