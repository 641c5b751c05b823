package outbound

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	appmetrics "github.com/taoyao-code/xl3-server/internal/metrics"
)

// 队列为空时的轮询间隔
const idlePoll = 50 * time.Millisecond

// Worker 下行队列消费者：按速率限制把消息发往 MIDI 输出端口。
// 硬件处理不了背靠背的 SysEx dump，限流在这里统一做。
type Worker struct {
	queue   Queue
	send    func(portID string, data []byte) error
	limiter *rate.Limiter
	log     *zap.Logger
	appm    *appmetrics.AppMetrics

	sent    atomic.Int64
	failed  atomic.Int64
	retried atomic.Int64
}

func NewWorker(queue Queue, send func(portID string, data []byte) error, sendRate float64, burst int, log *zap.Logger, appm *appmetrics.AppMetrics) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	if sendRate <= 0 {
		sendRate = 8
	}
	if burst <= 0 {
		burst = 1
	}
	return &Worker{
		queue:   queue,
		send:    send,
		limiter: rate.NewLimiter(rate.Limit(sendRate), burst),
		log:     log,
		appm:    appm,
	}
}

// Submit 包装 Enqueue 并刷新队列长度指标
func (w *Worker) Submit(ctx context.Context, job *Job) error {
	if err := w.queue.Enqueue(ctx, job); err != nil {
		return err
	}
	w.updateQueueGauge(ctx)
	return nil
}

// Run 启动消费循环（阻塞直到 ctx 取消）
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("outbound worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info("outbound worker stopped")
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.log.Error("dequeue failed", zap.Error(err))
			time.Sleep(idlePoll)
			continue
		}
		if job == nil {
			time.Sleep(idlePoll)
			continue
		}

		if err := w.limiter.Wait(ctx); err != nil {
			// ctx 已取消，消息放回队列
			_ = w.queue.Enqueue(context.Background(), job)
			return
		}
		w.processOne(ctx, job)
		w.updateQueueGauge(ctx)
	}
}

func (w *Worker) processOne(ctx context.Context, job *Job) {
	if err := w.send(job.PortID, job.Data); err != nil {
		w.failed.Add(1)
		if job.Retries+1 < job.MaxRetry {
			w.retried.Add(1)
			if w.appm != nil {
				w.appm.OutboundRetries.Inc()
			}
			w.log.Warn("send failed, retrying",
				zap.String("job_id", job.ID),
				zap.String("port_id", job.PortID),
				zap.Int("retry", job.Retries+1),
				zap.Error(err))
		} else {
			w.log.Error("send failed, dropping to dead queue",
				zap.String("job_id", job.ID),
				zap.String("port_id", job.PortID),
				zap.Error(err))
		}
		if qerr := w.queue.MarkFailed(ctx, job, err.Error()); qerr != nil {
			w.log.Error("mark failed error", zap.String("job_id", job.ID), zap.Error(qerr))
		}
		return
	}

	w.sent.Add(1)
	w.log.Debug("downlink sent",
		zap.String("job_id", job.ID),
		zap.String("port_id", job.PortID),
		zap.String("kind", job.Kind),
		zap.Int("bytes", len(job.Data)))
}

func (w *Worker) updateQueueGauge(ctx context.Context) {
	if w.appm == nil {
		return
	}
	if n, err := w.queue.PendingCount(ctx); err == nil {
		w.appm.OutboundQueueLen.Set(float64(n))
	}
}

// Stats 发送统计
func (w *Worker) Stats() map[string]int64 {
	return map[string]int64{
		"sent":    w.sent.Load(),
		"failed":  w.failed.Load(),
		"retried": w.retried.Load(),
	}
}
