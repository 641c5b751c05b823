package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/xl3-server/internal/api/middleware"
	cfgpkg "github.com/taoyao-code/xl3-server/internal/config"
)

// RegisterRoutes 注册全部 API 路由
func RegisterRoutes(r *gin.Engine, h *Handler, authCfg cfgpkg.AuthConfig, logger *zap.Logger) {
	if r == nil || h == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	api := r.Group("/api")
	if authCfg.Enable {
		api.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("api authentication disabled - only for development!")
	}

	// 端口管理
	api.GET("/ports", h.ListPorts)
	api.POST("/ports/:id", h.OpenPort)
	api.DELETE("/ports/:id", h.ClosePort)
	api.POST("/ports/:id/send", h.SendMessage)
	api.GET("/ports/:id/messages", h.GetMessages)

	// 设备操作
	api.POST("/device/handshake", h.DeviceHandshake)
	api.GET("/device/slot", h.GetCurrentSlot)
	api.PUT("/device/slot/:slot", h.SelectSlot)
	api.GET("/device/slots/:slot", h.ReadSlot)
	api.PUT("/device/slots/:slot", h.WriteSlot)

	// 编解码（无硬件依赖）
	api.POST("/codec/decode", h.DecodePayload)
	api.POST("/codec/encode", h.EncodePayload)

	// 模式库
	api.GET("/devices", h.ListDevices)
	api.GET("/devices/:serial/snapshots", h.ListSnapshots)
	api.GET("/snapshots/:id/yaml", h.ExportSnapshotYAML)
}
