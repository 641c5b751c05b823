package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/xl3-server/internal/modefile"
	"github.com/taoyao-code/xl3-server/internal/protocol/sysex"
	"github.com/taoyao-code/xl3-server/internal/storage/models"
)

func parseSlotParam(c *gin.Context) (byte, bool) {
	v, err := strconv.Atoi(c.Param("slot"))
	if err != nil || v < 0 || v > sysex.SlotMax {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot must be 0-15"})
		return 0, false
	}
	return byte(v), true
}

// DeviceHandshake 发送设备握手并返回序列号
func (h *Handler) DeviceHandshake(c *gin.Context) {
	serial, err := h.dev.Handshake(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"serial": serial})
}

// GetCurrentSlot 查询设备当前模板槽位
func (h *Handler) GetCurrentSlot(c *gin.Context) {
	slot, err := h.dev.CurrentSlot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"slot": slot})
}

// SelectSlot 切换设备当前模板槽位
func (h *Handler) SelectSlot(c *gin.Context) {
	slot, ok := parseSlotParam(c)
	if !ok {
		return
	}
	if err := h.dev.SelectSlot(c.Request.Context(), slot); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "slot": slot})
}

// issueStrings 把解码问题列表转成可序列化形式
func issueStrings(issues []error) []string {
	out := make([]string, 0, len(issues))
	for _, e := range issues {
		out = append(out, e.Error())
	}
	return out
}

// ReadSlot 读取槽位内容并返回解码后的模式
func (h *Handler) ReadSlot(c *gin.Context) {
	slot, ok := parseSlotParam(c)
	if !ok {
		return
	}

	res, err := h.dev.ReadSlot(c.Request.Context(), slot)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	h.saveSnapshot(c, res.Mode, res.Partial, len(res.Issues))

	c.JSON(http.StatusOK, gin.H{
		"mode":    modefile.FromMode(res.Mode),
		"partial": res.Partial,
		"issues":  issueStrings(res.Issues),
	})
}

// WriteSlot 写入槽位。请求体为模式 JSON，slot 以路径参数为准。
func (h *Handler) WriteSlot(c *gin.Context) {
	slot, ok := parseSlotParam(c)
	if !ok {
		return
	}

	var f modefile.File
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f.Slot = slot

	mode, err := f.ToMode()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.dev.WriteSlot(c.Request.Context(), mode); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	h.saveSnapshot(c, mode, false, 0)
	c.JSON(http.StatusOK, gin.H{"success": true, "slot": slot})
}

// saveSnapshot 模式库启用且设备已握手时落库；失败只记日志，不影响响应
func (h *Handler) saveSnapshot(c *gin.Context, mode *sysex.CustomMode, partial bool, issues int) {
	if h.repo == nil || mode == nil {
		return
	}
	serial := h.dev.Serial()
	if serial == "" {
		return
	}

	payload, err := sysex.EncodeBody(mode)
	if err != nil {
		// 宽松解码的部分结果可能编码失败，只保留能编码的
		h.logger.Debug("snapshot encode skipped", zap.Error(err))
		return
	}

	ctx := c.Request.Context()
	dev, err := h.repo.EnsureDevice(ctx, serial)
	if err != nil {
		h.logger.Warn("snapshot device upsert failed", zap.Error(err))
		return
	}
	_ = h.repo.TouchDeviceLastSeen(ctx, serial, time.Now())

	snap := &models.ModeSnapshot{
		DeviceID:   dev.ID,
		Slot:       int16(mode.Slot),
		Name:       mode.Name,
		Payload:    payload,
		Partial:    partial,
		IssueCount: int32(issues),
	}
	if err := h.repo.SaveSnapshot(ctx, snap); err != nil {
		h.logger.Warn("snapshot save failed", zap.Error(err))
	}
}
