package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/xl3-server/internal/outbound"
)

// ListPorts 列出系统可见端口与当前已打开的端口 ID
func (h *Handler) ListPorts(c *gin.Context) {
	ins, outs := h.ports.ListPorts()
	openIns, openOuts := h.ports.OpenIDs()
	c.JSON(http.StatusOK, gin.H{
		"inputs":       ins,
		"outputs":      outs,
		"open_inputs":  openIns,
		"open_outputs": openOuts,
	})
}

type openPortReq struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required"`
}

// OpenPort 按 ID 打开端口，type 取 input / output
func (h *Handler) OpenPort(c *gin.Context) {
	id := c.Param("id")

	var req openPortReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing name or type"})
		return
	}

	var err error
	switch req.Type {
	case "input":
		err = h.ports.OpenInput(id, req.Name)
	case "output":
		err = h.ports.OpenOutput(id, req.Name)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid port type"})
		return
	}
	if err != nil {
		h.logger.Warn("open port failed", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ClosePort 关闭端口
func (h *Handler) ClosePort(c *gin.Context) {
	id := c.Param("id")
	closed := h.ports.ClosePort(id)
	c.JSON(http.StatusOK, gin.H{"success": closed})
}

type sendReq struct {
	Message []int `json:"message" binding:"required"`
}

// SendMessage 经下行队列向输出端口发送原始 MIDI 消息
func (h *Handler) SendMessage(c *gin.Context) {
	id := c.Param("id")

	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Message) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing message"})
		return
	}

	data := make([]byte, len(req.Message))
	for i, v := range req.Message {
		if v < 0 || v > 0xFF {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message byte out of range"})
			return
		}
		data[i] = byte(v)
	}

	job := outbound.NewJob(id, outbound.KindRaw, data)
	if err := h.out.Submit(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "job_id": job.ID})
}

// GetMessages 取走输入端口已接收的消息（取走即清空）
func (h *Handler) GetMessages(c *gin.Context) {
	id := c.Param("id")

	msgs := h.ports.Messages(id)
	out := make([][]int, 0, len(msgs))
	for _, m := range msgs {
		row := make([]int, len(m.Data))
		for i, b := range m.Data {
			row[i] = int(b)
		}
		out = append(out, row)
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}
