package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	glogger "gorm.io/gorm/logger"

	cfgpkg "github.com/taoyao-code/xl3-server/internal/config"
	"github.com/taoyao-code/xl3-server/internal/storage"
	"github.com/taoyao-code/xl3-server/internal/storage/models"
)

// Repository 基于 GORM 的 ModeRepo 实现。
// isTx 标记区分事务上下文，避免嵌套事务重复 Begin/Commit。
type Repository struct {
	db   *gorm.DB
	isTx bool
}

// Open 按配置打开 PostgreSQL 连接并配置连接池
func Open(cfg cfgpkg.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

// Migrate 建表（devices / mode_snapshots）
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Device{}, &models.ModeSnapshot{})
}

// New 返回一个使用给定 *gorm.DB 的 ModeRepo 实例。
func New(db *gorm.DB) storage.ModeRepo {
	return &Repository{db: db}
}

// WithTx 复用现有事务或开启新事务执行 fn。
func (r *Repository) WithTx(ctx context.Context, fn func(storage.ModeRepo) error) error {
	if r.isTx {
		return fn(r)
	}

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	child := &Repository{db: tx, isTx: true}
	if err := fn(child); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// EnsureDevice 若设备不存在则插入，存在则刷新 updated_at。
func (r *Repository) EnsureDevice(ctx context.Context, serial string) (*models.Device, error) {
	now := time.Now()
	record := &models.Device{
		Serial:     serial,
		LastSeenAt: &now,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "serial"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"updated_at": gorm.Expr("NOW()")}),
		}).
		Create(record).Error
	if err != nil {
		return nil, err
	}

	return r.GetDeviceBySerial(ctx, serial)
}

// TouchDeviceLastSeen 刷新设备 last_seen_at（不存在则插入）。
func (r *Repository) TouchDeviceLastSeen(ctx context.Context, serial string, at time.Time) error {
	ts := at
	record := &models.Device{
		Serial:     serial,
		LastSeenAt: &ts,
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "serial"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"last_seen_at": gorm.Expr("excluded.last_seen_at"),
				"updated_at":   gorm.Expr("NOW()"),
			}),
		}).
		Create(record).Error
}

// GetDeviceBySerial 通过序列号查询设备。
func (r *Repository) GetDeviceBySerial(ctx context.Context, serial string) (*models.Device, error) {
	var device models.Device
	err := r.db.WithContext(ctx).Where("serial = ?", serial).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return &device, err
}

// ListDevices 分页返回设备列表，按 id 倒序。
func (r *Repository) ListDevices(ctx context.Context, limit, offset int) ([]models.Device, error) {
	var devices []models.Device
	q := r.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

// SaveSnapshot 保存模式快照。
func (r *Repository) SaveSnapshot(ctx context.Context, snap *models.ModeSnapshot) error {
	return r.db.WithContext(ctx).Create(snap).Error
}

// GetSnapshot 按 id 取快照。
func (r *Repository) GetSnapshot(ctx context.Context, id int64) (*models.ModeSnapshot, error) {
	var snap models.ModeSnapshot
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&snap).Error
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListSnapshots 列出设备快照，slot < 0 表示全部槽位。
func (r *Repository) ListSnapshots(ctx context.Context, deviceID int64, slot int, limit, offset int) ([]models.ModeSnapshot, error) {
	var snaps []models.ModeSnapshot
	q := r.db.WithContext(ctx).Where("device_id = ?", deviceID).Order("created_at DESC")
	if slot >= 0 {
		q = q.Where("slot = ?", slot)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&snaps).Error; err != nil {
		return nil, err
	}
	return snaps, nil
}

// LatestSnapshot 设备某槽位最近一次快照。
func (r *Repository) LatestSnapshot(ctx context.Context, deviceID int64, slot int) (*models.ModeSnapshot, error) {
	var snap models.ModeSnapshot
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND slot = ?", deviceID, slot).
		Order("created_at DESC").
		First(&snap).Error
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
