package storage

import (
	"context"
	"time"

	"github.com/taoyao-code/xl3-server/internal/storage/models"
)

// ModeRepo 模式库存储抽象。
// 约束：
// - 上层不得直接写 SQL，统一通过本接口访问
// - 实现需要提供事务封装 WithTx
// - 接口保持 DB-agnostic（面向模型与基础类型）
type ModeRepo interface {
	// WithTx 在单个事务中执行 fn，嵌套调用复用当前事务
	WithTx(ctx context.Context, fn func(repo ModeRepo) error) error

	// EnsureDevice 若序列号不存在则创建，返回设备记录
	EnsureDevice(ctx context.Context, serial string) (*models.Device, error)
	// TouchDeviceLastSeen 刷新设备最近活动时间
	TouchDeviceLastSeen(ctx context.Context, serial string, at time.Time) error
	// GetDeviceBySerial 通过序列号查询设备
	GetDeviceBySerial(ctx context.Context, serial string) (*models.Device, error)
	// ListDevices 按 id 倒序分页
	ListDevices(ctx context.Context, limit, offset int) ([]models.Device, error)

	// SaveSnapshot 保存一次槽位读取/写入的模式载荷
	SaveSnapshot(ctx context.Context, snap *models.ModeSnapshot) error
	// GetSnapshot 按 id 取快照
	GetSnapshot(ctx context.Context, id int64) (*models.ModeSnapshot, error)
	// ListSnapshots 列出设备某槽位的历史快照，slot < 0 表示全部槽位
	ListSnapshots(ctx context.Context, deviceID int64, slot int, limit, offset int) ([]models.ModeSnapshot, error)
	// LatestSnapshot 设备某槽位最近一次快照
	LatestSnapshot(ctx context.Context, deviceID int64, slot int) (*models.ModeSnapshot, error)
}
