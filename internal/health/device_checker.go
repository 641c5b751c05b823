package health

import (
	"context"
	"time"

	"github.com/taoyao-code/xl3-server/internal/session"
)

// DeviceChecker 控制器在线状态检查器。
// 设备离线只降级不判死：编解码与模式库 API 仍可服务。
type DeviceChecker struct {
	sess *session.Manager
}

// NewDeviceChecker 创建设备检查器
func NewDeviceChecker(sess *session.Manager) *DeviceChecker {
	return &DeviceChecker{sess: sess}
}

// Name 返回检查器名称
func (c *DeviceChecker) Name() string {
	return "device"
}

// Check 执行健康检查
func (c *DeviceChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	online := c.sess.OnlineCount(time.Now())
	devices := c.sess.List()

	status := StatusHealthy
	message := "ok"
	if online == 0 {
		status = StatusDegraded
		message = "no device online"
	}

	serials := make([]string, 0, len(devices))
	for _, d := range devices {
		serials = append(serials, d.Serial)
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: map[string]interface{}{
			"online_count": online,
			"devices":      serials,
		},
		Latency: time.Since(start),
	}
}
