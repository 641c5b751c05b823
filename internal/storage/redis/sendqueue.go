package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taoyao-code/xl3-server/internal/outbound"
)

const (
	sendQueueKey = "xl3:outbound:queue" // 待处理队列（Sorted Set，按优先级+时间排序）
	sendDeadKey  = "xl3:outbound:dead"  // 死信队列（List）
)

// SendQueue Redis 下行队列，多实例共享时替代内存队列
type SendQueue struct {
	client *Client
}

func NewSendQueue(client *Client) *SendQueue {
	return &SendQueue{client: client}
}

// Enqueue 入队：score = 优先级*1e12 + 创建时间纳秒，优先级小的先出
func (q *SendQueue) Enqueue(ctx context.Context, job *outbound.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	score := float64(job.Priority)*1e12 + float64(job.CreatedAt.UnixNano())
	return q.client.ZAdd(ctx, sendQueueKey, redis.Z{
		Score:  score,
		Member: job.ID + ":" + string(data),
	}).Err()
}

// Dequeue 出队，队列为空返回 (nil, nil)
func (q *SendQueue) Dequeue(ctx context.Context) (*outbound.Job, error) {
	result, err := q.client.ZPopMin(ctx, sendQueueKey, 1).Result()
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, nil
	}

	member, ok := result[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected member type %T", result[0].Member)
	}
	return parseJob(member)
}

// MarkFailed 失败处理：未超限重新入队，超限进死信队列
func (q *SendQueue) MarkFailed(ctx context.Context, job *outbound.Job, reason string) error {
	job.Retries++
	job.UpdatedAt = time.Now()

	if job.Retries < job.MaxRetry {
		return q.Enqueue(ctx, job)
	}

	dead := map[string]interface{}{
		"job":       job,
		"error":     reason,
		"failed_at": time.Now(),
	}
	data, _ := json.Marshal(dead)
	return q.client.LPush(ctx, sendDeadKey, data).Err()
}

// PendingCount 待处理数量
func (q *SendQueue) PendingCount(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, sendQueueKey).Result()
}

// DeadCount 死信数量
func (q *SendQueue) DeadCount(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, sendDeadKey).Result()
}

// parseJob 解析 "ID:JSON" 格式的队列成员
func parseJob(member string) (*outbound.Job, error) {
	idx := strings.IndexByte(member, ':')
	if idx < 0 {
		return nil, fmt.Errorf("invalid queue member format")
	}

	var job outbound.Job
	if err := json.Unmarshal([]byte(member[idx+1:]), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}
