package sysex

import "fmt"

// SysEx 包络与自定义模式载荷的线上格式常量。
// 格式：F0 00 20 29 02 15 05 00 <verb> <flags> <slot> [body] F7
// 载荷 body：控制块* + 名称块? + 灯色块* + 结束标记
const (
	SysExStart = 0xF0
	SysExEnd   = 0xF7

	// CmdCustomMode 自定义模式读写命令字
	CmdCustomMode = 0x05
	// cmdReserved 命令字后的保留字节（offset 7），固定为 00
	cmdReserved = 0x00

	// verb 字段：请求/应答方向
	VerbReadRequest  = 0x40
	VerbWriteRequest = 0x45
	VerbReadResponse = 0x10
	VerbWriteAck     = 0x15

	// 控制块：48 <id> 02 <type> <ch> <param1> 48 <min> <cc> <max> 00
	MarkerControl    = 0x48 // offset 0 与 offset 6 的结构标记
	controlDefMarker = 0x02 // offset 2 固定常量
	controlBlockEnd  = 0x00 // offset 10 固定常量
	ControlBlockLen  = 11

	// 名称块：20 <len> <bytes...>
	MarkerName = 0x20
	// NameNoneSentinel 长度字节为 0x1F 表示无自定义名称（出厂回退）
	NameNoneSentinel = 0x1F
	// NameMaxLen 名称编码后字节上限。历史上 8 和 16 都错过，当前硬件上限 18
	NameMaxLen = 18

	// 灯色块：60 <id> <color> <behavior>
	MarkerColor   = 0x60
	ColorEntryLen = 4

	// MarkerEnd 载荷结束标记
	MarkerEnd = 0x24

	// 可寻址控件 ID 范围
	ControlIDMin = 0x10
	ControlIDMax = 0x3F

	// SlotMax 记忆槽 0..15
	SlotMax = 15
)

var (
	manufacturerID = []byte{0x00, 0x20, 0x29} // Novation
	deviceFamily   = []byte{0x02, 0x15}       // Launch Control XL3
)

// 设备握手：F0 00 20 29 00 42 02 F7，应答携带序列号
var handshakeRequest = []byte{0xF0, 0x00, 0x20, 0x29, 0x00, 0x42, 0x02, 0xF7}

// envelopeLen 不含 body 的最小消息长度：
// F0 + 厂商(3) + 族(2) + cmd + 00 + verb + flags + slot + F7
const envelopeLen = 12

// Message 去掉 SysEx 包络后的自定义模式消息
type Message struct {
	Verb  byte
	Flags byte
	Slot  byte
	Body  []byte
}

// IsResponse 是否为设备侧应答
func (m *Message) IsResponse() bool {
	return m.Verb == VerbReadResponse || m.Verb == VerbWriteAck
}

// Unwrap 校验并剥离 SysEx 包络。包络非法时返回 ErrInvalidFraming，
// 此时不得再解释载荷内容。
func Unwrap(raw []byte) (*Message, error) {
	if len(raw) < envelopeLen {
		return nil, &OffsetError{Kind: ErrInvalidFraming, Offset: 0,
			Detail: fmt.Sprintf("message too short: %d bytes", len(raw))}
	}
	if raw[0] != SysExStart {
		return nil, &OffsetError{Kind: ErrInvalidFraming, Offset: 0,
			Detail: fmt.Sprintf("want start byte F0, got %02X", raw[0])}
	}
	if raw[len(raw)-1] != SysExEnd {
		return nil, &OffsetError{Kind: ErrInvalidFraming, Offset: len(raw) - 1,
			Detail: fmt.Sprintf("want end byte F7, got %02X", raw[len(raw)-1])}
	}
	for i, b := range manufacturerID {
		if raw[1+i] != b {
			return nil, &OffsetError{Kind: ErrInvalidFraming, Offset: 1 + i,
				Detail: fmt.Sprintf("manufacturer id mismatch: got %02X, want %02X", raw[1+i], b)}
		}
	}
	for i, b := range deviceFamily {
		if raw[4+i] != b {
			return nil, &OffsetError{Kind: ErrInvalidFraming, Offset: 4 + i,
				Detail: fmt.Sprintf("device family mismatch: got %02X, want %02X", raw[4+i], b)}
		}
	}
	if raw[6] != CmdCustomMode {
		return nil, &OffsetError{Kind: ErrInvalidFraming, Offset: 6,
			Detail: fmt.Sprintf("unexpected command %02X", raw[6])}
	}
	if raw[7] != cmdReserved {
		return nil, &OffsetError{Kind: ErrInvalidFraming, Offset: 7,
			Detail: fmt.Sprintf("reserved byte must be 00, got %02X", raw[7])}
	}
	msg := &Message{
		Verb:  raw[8],
		Flags: raw[9],
		Slot:  raw[10],
		Body:  raw[11 : len(raw)-1],
	}
	return msg, nil
}

// Wrap 给消息套上 SysEx 包络，输出可直接交给传输层发送
func (m *Message) Wrap() []byte {
	out := make([]byte, 0, envelopeLen+len(m.Body))
	out = append(out, SysExStart)
	out = append(out, manufacturerID...)
	out = append(out, deviceFamily...)
	out = append(out, CmdCustomMode, cmdReserved, m.Verb, m.Flags, m.Slot)
	out = append(out, m.Body...)
	out = append(out, SysExEnd)
	return out
}

// BuildReadRequest 构造槽位读请求
func BuildReadRequest(slot byte) []byte {
	msg := &Message{Verb: VerbReadRequest, Slot: slot}
	return msg.Wrap()
}

// BuildWriteRequest 构造槽位写请求，body 为已编码的模式载荷
func BuildWriteRequest(slot byte, body []byte) []byte {
	msg := &Message{Verb: VerbWriteRequest, Slot: slot, Body: body}
	return msg.Wrap()
}

// BuildHandshake 返回设备握手消息（应答中带设备序列号）
func BuildHandshake() []byte {
	out := make([]byte, len(handshakeRequest))
	copy(out, handshakeRequest)
	return out
}

// ParseHandshakeReply 从握手应答中提取序列号；非握手应答返回空串
func ParseHandshakeReply(raw []byte) string {
	if len(raw) < 9 || raw[0] != SysExStart || raw[len(raw)-1] != SysExEnd {
		return ""
	}
	serial := make([]byte, 0, len(raw)-8)
	for _, b := range raw[7 : len(raw)-1] {
		if b >= 0x20 && b < 0x7F {
			serial = append(serial, b)
		}
	}
	return string(serial)
}
