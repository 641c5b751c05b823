package sysex

// 控制块字段偏移（相对块起始）
const (
	ctlOffID      = 1
	ctlOffDef     = 2
	ctlOffType    = 3
	ctlOffChannel = 4
	ctlOffParam1  = 5
	ctlOffMarker2 = 6
	ctlOffMin     = 7
	ctlOffCC      = 8
	ctlOffMax     = 9
	ctlOffEnd     = 10
)

// decodeControlBlock 解码一个 11 字节控制块，游标已停在块标记上。
// 块作为一个整体取出：内部字节一律按字段消费，即使某个数据字节
// （典型如 offset 7 的 minValue 等于 0x48 或 0x20）碰巧等于其它标记
// 常量，也绝不会被重新当作标记解释。
func decodeControlBlock(c *Cursor) (Control, error) {
	start := c.Pos()
	block, err := c.Take(ControlBlockLen)
	if err != nil {
		return Control{}, err
	}

	if block[0] != MarkerControl {
		return Control{}, malformedErr(start, "want control marker %02X, got %02X", MarkerControl, block[0])
	}
	if block[ctlOffDef] != controlDefMarker {
		return Control{}, malformedErr(start+ctlOffDef,
			"want definition marker %02X, got %02X", controlDefMarker, block[ctlOffDef])
	}
	if block[ctlOffMarker2] != MarkerControl {
		return Control{}, malformedErr(start+ctlOffMarker2,
			"want secondary marker %02X, got %02X", MarkerControl, block[ctlOffMarker2])
	}
	if block[ctlOffEnd] != controlBlockEnd {
		return Control{}, malformedErr(start+ctlOffEnd,
			"want block end %02X, got %02X", controlBlockEnd, block[ctlOffEnd])
	}

	ctl := Control{
		ID:      block[ctlOffID],
		RawType: block[ctlOffType],
		Channel: block[ctlOffChannel],
		Param1:  block[ctlOffParam1],
		Min:     block[ctlOffMin],
		CC:      block[ctlOffCC],
		Max:     block[ctlOffMax],
	}

	if ctl.ID < ControlIDMin || ctl.ID > ControlIDMax {
		return ctl, fieldRangeErr(start+ctlOffID,
			"control id 0x%02X outside 0x%02X..0x%02X", ctl.ID, ControlIDMin, ControlIDMax)
	}
	if ctl.Channel > 15 {
		return ctl, fieldRangeErr(start+ctlOffChannel, "channel %d > 15", ctl.Channel)
	}
	if ctl.CC > 127 {
		return ctl, fieldRangeErr(start+ctlOffCC, "cc %d > 127", ctl.CC)
	}
	if ctl.Min > 127 || ctl.Max > 127 {
		return ctl, fieldRangeErr(start+ctlOffMin, "min/max %d/%d > 127", ctl.Min, ctl.Max)
	}
	if ctl.Min > ctl.Max {
		return ctl, fieldRangeErr(start+ctlOffMin, "min 0x%02X > max 0x%02X", ctl.Min, ctl.Max)
	}
	return ctl, nil
}

// encodeControlBlock 控制块编码，decodeControlBlock 的精确逆向
func encodeControlBlock(w *Writer, ctl Control) {
	w.PutByte(MarkerControl)
	w.PutByte(ctl.ID)
	w.PutByte(controlDefMarker)
	w.PutByte(ctl.RawType)
	w.PutByte(ctl.Channel)
	w.PutByte(ctl.Param1)
	w.PutByte(MarkerControl)
	w.PutByte(ctl.Min)
	w.PutByte(ctl.CC)
	w.PutByte(ctl.Max)
	w.PutByte(controlBlockEnd)
}
