package sysex

// EncodeBody 把 CustomMode 序列化为载荷本体（不含包络）。
// 输出是规范形式：控制块按 controlId 升序，然后名称块（无名称时写
// 出厂回退哨兵），然后灯色块按 controlId 升序，最后结束标记。
// 固定次序是刻意的：历史上乱序输出造成过往返测试抖动。
func EncodeBody(m *CustomMode) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	w := NewWriter()
	for _, id := range m.ControlIDs() {
		encodeControlBlock(w, m.Controls[id])
	}
	if err := encodeNameBlock(w, m.Name); err != nil {
		return nil, err
	}
	for _, id := range m.ColorIDs() {
		encodeColorEntry(w, id, m.Colors[id])
	}
	w.PutByte(MarkerEnd)
	return w.Bytes(), nil
}

// EncodeMessage 序列化为带包络的完整写请求，可直接交给传输层
func EncodeMessage(m *CustomMode) ([]byte, error) {
	body, err := EncodeBody(m)
	if err != nil {
		return nil, err
	}
	return BuildWriteRequest(m.Slot, body), nil
}
