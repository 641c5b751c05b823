package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/taoyao-code/xl3-server/internal/modefile"
	"github.com/taoyao-code/xl3-server/internal/protocol/sysex"
)

func (h *Handler) requireRepo(c *gin.Context) bool {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "mode library disabled"})
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// ListDevices 模式库中的设备列表
func (h *Handler) ListDevices(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	limit := queryInt(c, "limit", 100)
	offset := queryInt(c, "offset", 0)

	list, err := h.repo.ListDevices(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": list})
}

// ListSnapshots 设备的历史模式快照，query 参数 slot 过滤槽位
func (h *Handler) ListSnapshots(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	serial := c.Param("serial")

	dev, err := h.repo.GetDeviceBySerial(c.Request.Context(), serial)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}

	slot := queryInt(c, "slot", -1)
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	snaps, err := h.repo.ListSnapshots(c.Request.Context(), dev.ID, slot, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps})
}

// ExportSnapshotYAML 把快照导出为 YAML 模式文件
func (h *Handler) ExportSnapshotYAML(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid snapshot id"})
		return
	}

	snap, err := h.repo.GetSnapshot(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}

	res, err := sysex.NewDecoder(sysex.Strict).DecodeBody(snap.Payload, byte(snap.Slot))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	data, err := modefile.Marshal(res.Mode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/yaml", data)
}
