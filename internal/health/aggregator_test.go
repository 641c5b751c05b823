package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taoyao-code/xl3-server/internal/session"
)

// stubChecker 固定状态的检查器
type stubChecker struct {
	name   string
	status Status
}

func (s *stubChecker) Name() string { return s.name }
func (s *stubChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{Status: s.status, Message: "stub"}
}

func TestDeviceCheckerOffline(t *testing.T) {
	sess := session.New(time.Minute)
	agg := NewAggregator(NewDeviceChecker(sess))

	rep := agg.Report(context.Background())
	if rep.Status != StatusDegraded {
		t.Fatalf("无设备在线期望 degraded，实际: %v", rep.Status)
	}
	// 设备离线只降级，编解码 API 仍可服务，保持就绪
	if !agg.Ready(context.Background()) {
		t.Error("degraded 应保持就绪")
	}
}

func TestDeviceCheckerOnline(t *testing.T) {
	sess := session.New(time.Minute)
	sess.Bind(session.Device{Serial: "LX28A0123456", ConnectedAt: time.Now()})
	agg := NewAggregator(NewDeviceChecker(sess))

	rep := agg.Report(context.Background())
	if rep.Status != StatusHealthy {
		t.Fatalf("设备在线期望 healthy，实际: %v", rep.Status)
	}
	res, ok := rep.Checks["device"]
	if !ok {
		t.Fatal("缺少 device 检查结果")
	}
	if res.Details["online_count"] != 1 {
		t.Errorf("期望 online_count=1，实际: %v", res.Details["online_count"])
	}
}

func TestUnhealthyCheckerBlocksReady(t *testing.T) {
	sess := session.New(time.Minute)
	sess.Bind(session.Device{Serial: "LX28A0123456", ConnectedAt: time.Now()})
	agg := NewAggregator(NewDeviceChecker(sess))
	agg.AddChecker(&stubChecker{"database", StatusUnhealthy})

	rep := agg.Report(context.Background())
	if rep.Status != StatusUnhealthy {
		t.Fatalf("期望 unhealthy，实际: %v", rep.Status)
	}
	if agg.Ready(context.Background()) {
		t.Error("unhealthy 不应就绪")
	}
	if len(rep.Checks) != 2 {
		t.Errorf("期望 2 项检查结果，实际: %d", len(rep.Checks))
	}
}

func TestHealthRouteStatusCode(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("降级返回200", func(t *testing.T) {
		r := gin.New()
		RegisterHTTPRoutes(r, NewAggregator(NewDeviceChecker(session.New(time.Minute))))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("期望 200，实际: %d", w.Code)
		}
	})

	t.Run("不健康返回503", func(t *testing.T) {
		r := gin.New()
		RegisterHTTPRoutes(r, NewAggregator(&stubChecker{"redis", StatusUnhealthy}))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("期望 503，实际: %d", w.Code)
		}
	})
}
