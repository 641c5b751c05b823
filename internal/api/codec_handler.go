package api

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/taoyao-code/xl3-server/internal/modefile"
	"github.com/taoyao-code/xl3-server/internal/protocol/sysex"
)

type decodeReq struct {
	// Hex 整条 SysEx 消息的十六进制串（可含空格）
	Hex string `json:"hex"`
	// Message 字节数组形式，二选一
	Message []int `json:"message"`
}

func (r *decodeReq) bytes() ([]byte, bool) {
	if r.Hex != "" {
		clean := strings.ReplaceAll(strings.TrimSpace(r.Hex), " ", "")
		data, err := hex.DecodeString(clean)
		if err != nil {
			return nil, false
		}
		return data, true
	}
	if len(r.Message) > 0 {
		data := make([]byte, len(r.Message))
		for i, v := range r.Message {
			if v < 0 || v > 0xFF {
				return nil, false
			}
			data[i] = byte(v)
		}
		return data, true
	}
	return nil, false
}

// DecodePayload 解码一条模式消息。query 参数 mode=strict|lenient，缺省 strict。
func (h *Handler) DecodePayload(c *gin.Context) {
	var req decodeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	raw, ok := req.bytes()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide hex or message bytes"})
		return
	}

	decMode := sysex.Strict
	if c.Query("mode") == "lenient" {
		decMode = sysex.Lenient
	}

	res, err := sysex.NewDecoder(decMode).DecodeMessage(raw)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"mode":    modefile.FromMode(res.Mode),
		"partial": res.Partial,
		"issues":  issueStrings(res.Issues),
	})
}

// EncodePayload 把模式 JSON 编码为完整 SysEx 消息
func (h *Handler) EncodePayload(c *gin.Context) {
	var f modefile.File
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode, err := f.ToMode()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	raw, err := sysex.EncodeMessage(mode)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hex":   hex.EncodeToString(raw),
		"bytes": len(raw),
	})
}
