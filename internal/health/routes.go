package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterHTTPRoutes 挂载详细健康报告。
// 存活/就绪探针（/healthz、/readyz）由 httpserver 注册，这里只提供 /health。
func RegisterHTTPRoutes(r *gin.Engine, agg *Aggregator) {
	r.GET("/health", func(c *gin.Context) {
		rep := agg.Report(c.Request.Context())
		code := http.StatusOK
		if rep.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, rep)
	})
}
