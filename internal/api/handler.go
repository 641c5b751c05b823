package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/taoyao-code/xl3-server/internal/gateway"
	"github.com/taoyao-code/xl3-server/internal/outbound"
	"github.com/taoyao-code/xl3-server/internal/protocol/sysex"
	"github.com/taoyao-code/xl3-server/internal/session"
	"github.com/taoyao-code/xl3-server/internal/storage"
)

// PortOps 端口管理操作（gateway.PortManager 实现）
type PortOps interface {
	ListPorts() (inputs, outputs []string)
	OpenIDs() (inputs, outputs []string)
	OpenInput(id, name string) error
	OpenOutput(id, name string) error
	ClosePort(id string) bool
	Messages(id string) []gateway.InboundMessage
}

// DeviceOps 设备协议操作（gateway.Device 实现）
type DeviceOps interface {
	Handshake(ctx context.Context) (string, error)
	ReadSlot(ctx context.Context, slot byte) (*sysex.Result, error)
	WriteSlot(ctx context.Context, mode *sysex.CustomMode) error
	SelectSlot(ctx context.Context, slot byte) error
	CurrentSlot(ctx context.Context) (byte, error)
	Serial() string
}

// Submitter 下行队列提交（outbound.Worker 实现）
type Submitter interface {
	Submit(ctx context.Context, job *outbound.Job) error
}

// Handler HTTP API 处理器。repo 在数据库未启用时为 nil，相关路由返回 503。
type Handler struct {
	ports  PortOps
	dev    DeviceOps
	out    Submitter
	repo   storage.ModeRepo
	sess   *session.Manager
	logger *zap.Logger
}

func NewHandler(ports PortOps, dev DeviceOps, out Submitter, repo storage.ModeRepo, sess *session.Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		ports:  ports,
		dev:    dev,
		out:    out,
		repo:   repo,
		sess:   sess,
		logger: logger,
	}
}
