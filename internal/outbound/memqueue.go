package outbound

import (
	"container/heap"
	"context"
	"sync"
)

// jobHeap 按 (priority, createdAt) 排序的小顶堆
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].CreatedAt.Before(h[j].CreatedAt)
}
func (h jobHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x interface{}) { *h = append(*h, x.(*Job)) }
func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

// MemQueue 内存下行队列，Redis 未启用时的缺省实现
type MemQueue struct {
	mu   sync.Mutex
	jobs jobHeap
	dead []*Job
}

func NewMemQueue() *MemQueue {
	return &MemQueue{}
}

func (q *MemQueue) Enqueue(ctx context.Context, job *Job) error {
	q.mu.Lock()
	heap.Push(&q.jobs, job)
	q.mu.Unlock()
	return nil
}

func (q *MemQueue) Dequeue(ctx context.Context) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.jobs.Len() == 0 {
		return nil, nil
	}
	return heap.Pop(&q.jobs).(*Job), nil
}

func (q *MemQueue) MarkFailed(ctx context.Context, job *Job, reason string) error {
	job.Retries++
	if job.Retries < job.MaxRetry {
		// 降一级重新入队，避免反复抢占队头
		if job.Priority < PriorityLow {
			job.Priority++
		}
		return q.Enqueue(ctx, job)
	}
	q.mu.Lock()
	q.dead = append(q.dead, job)
	q.mu.Unlock()
	return nil
}

func (q *MemQueue) PendingCount(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(q.jobs.Len()), nil
}

// DeadCount 死信数量
func (q *MemQueue) DeadCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.dead)
}
