package models

import (
	"time"
)

// 注意：
// - 不使用 gorm.Model，显式声明每个字段，避免隐式 DeletedAt

// Device 映射 devices 表
type Device struct {
	// 主键
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// 设备序列号（握手应答获得）
	Serial string `gorm:"column:serial;type:text;not null;uniqueIndex"`
	// 固件版本，可空
	FwVer *string `gorm:"column:fw_ver;type:text"`
	// 最近一次活动
	LastSeenAt *time.Time `gorm:"column:last_seen_at"`
	// 审计字段
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Device) TableName() string { return "devices" }

// ModeSnapshot 映射 mode_snapshots 表：一次槽位读取/写入的完整模式载荷
type ModeSnapshot struct {
	ID       int64 `gorm:"column:id;primaryKey;autoIncrement"`
	DeviceID int64 `gorm:"column:device_id;not null;index:idx_snapshot_device_slot,priority:1"`
	Slot     int16 `gorm:"column:slot;not null;index:idx_snapshot_device_slot,priority:2"`
	// 模式名，可空（设备允许未命名模式）
	Name *string `gorm:"column:name;type:text"`
	// 编码后的模式载荷（不含 SysEx 包络）
	Payload []byte `gorm:"column:payload;not null"`
	// 宽松解码时是否有跳过的坏块
	Partial    bool      `gorm:"column:partial;not null;default:false"`
	IssueCount int32     `gorm:"column:issue_count;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime;index:idx_snapshot_created,sort:desc"`
}

func (ModeSnapshot) TableName() string { return "mode_snapshots" }
