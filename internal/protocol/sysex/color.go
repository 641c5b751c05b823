package sysex

// decodeColorEntry 解码一个灯色条目 [60][id][color][behavior]，
// 游标停在灯色标记上。行为字节原样保留（未知取值不报错）。
func decodeColorEntry(c *Cursor) (byte, ColorSpec, error) {
	start := c.Pos()
	entry, err := c.Take(ColorEntryLen)
	if err != nil {
		return 0, ColorSpec{}, err
	}
	if entry[0] != MarkerColor {
		return 0, ColorSpec{}, malformedErr(start, "want color marker %02X, got %02X", MarkerColor, entry[0])
	}
	id := entry[1]
	spec := ColorSpec{Color: entry[2], Behavior: LEDBehavior(entry[3])}
	if id < ControlIDMin || id > ControlIDMax {
		return id, spec, fieldRangeErr(start+1,
			"color entry control id 0x%02X outside 0x%02X..0x%02X", id, ControlIDMin, ControlIDMax)
	}
	return id, spec, nil
}

// encodeColorEntry 灯色条目编码
func encodeColorEntry(w *Writer, id byte, spec ColorSpec) {
	w.PutByte(MarkerColor)
	w.PutByte(id)
	w.PutByte(spec.Color)
	w.PutByte(byte(spec.Behavior))
}
