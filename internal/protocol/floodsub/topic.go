package floodsub

import (
	"github.com/minio/sha256-simd"
	"github.com/mr-tron/base58"
)

// Topic 主题
//
// 线上使用 ID；默认 ID 即名称，WithHashedID 时为 base58(sha256(name))。
type Topic struct {
	name string
	id   string
}

// TopicOption 主题选项
type TopicOption func(*Topic)

// WithHashedID 使用名称摘要作为主题 ID
func WithHashedID() TopicOption {
	return func(t *Topic) {
		sum := sha256.Sum256([]byte(t.name))
		t.id = base58.Encode(sum[:])
	}
}

// NewTopic 创建主题
func NewTopic(name string, opts ...TopicOption) Topic {
	t := Topic{name: name, id: name}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// Name 返回主题名称
func (t Topic) Name() string {
	return t.name
}

// ID 返回线上使用的主题 ID
func (t Topic) ID() string {
	return t.id
}

// String 实现 fmt.Stringer
func (t Topic) String() string {
	return t.id
}
