package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// 下行消息类型
const (
	KindSlotSelect = "slot_select" // DAW 口槽位切换
	KindModeWrite  = "mode_write"  // 自定义模式写入
	KindRaw        = "raw"         // API 透传的任意消息
	KindBulkDump   = "bulk_dump"   // 批量导出产生的读请求
)

// 优先级：数值越小越先发（内存堆与 Redis ZPOPMIN 都取最小）
const (
	PriorityImmediate = 1
	PriorityHigh      = 2
	PriorityNormal    = 3
	PriorityLow       = 4
)

// KindPriority 按消息类型给出默认优先级
func KindPriority(kind string) int {
	switch kind {
	case KindSlotSelect:
		return PriorityImmediate
	case KindModeWrite:
		return PriorityHigh
	case KindBulkDump:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// Job 一条待发送的下行 MIDI 消息
type Job struct {
	ID        string    `json:"id"`
	PortID    string    `json:"port_id"`  // 目标输出端口 ID
	Kind      string    `json:"kind"`     // 消息类型，决定默认优先级
	Data      []byte    `json:"data"`     // 原始 MIDI 字节
	Priority  int       `json:"priority"`
	Retries   int       `json:"retries"`
	MaxRetry  int       `json:"max_retry"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJob 构造下行消息并分配消息 ID
func NewJob(portID, kind string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		PortID:    portID,
		Kind:      kind,
		Data:      data,
		Priority:  KindPriority(kind),
		MaxRetry:  3,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Queue 下行队列抽象，内存堆与 Redis 两种实现
type Queue interface {
	// Enqueue 入队
	Enqueue(ctx context.Context, job *Job) error
	// Dequeue 出队，队列为空返回 (nil, nil)
	Dequeue(ctx context.Context) (*Job, error)
	// MarkFailed 记录失败：未超限重新入队（降级），超限进死信
	MarkFailed(ctx context.Context, job *Job, reason string) error
	// PendingCount 待发送数量
	PendingCount(ctx context.Context) (int64, error)
}
