package sysex

import (
	"fmt"
	"slices"
)

// ControlType 控件种类，由控制块 type 字段映射而来（不是由 controlId 推断）
type ControlType uint8

const (
	ControlTypeGeneric ControlType = iota // 未知类型直接透传
	ControlTypeKnobTop
	ControlTypeKnobBottom
	ControlTypeFader
	ControlTypeButton
)

func (t ControlType) String() string {
	switch t {
	case ControlTypeKnobTop:
		return "knob_top"
	case ControlTypeKnobBottom:
		return "knob_bottom"
	case ControlTypeFader:
		return "fader"
	case ControlTypeButton:
		return "button"
	default:
		return "generic"
	}
}

// 控制块 type 字段的原始取值表。表外取值保留原始字节、按 generic 处理
var controlTypeTable = map[byte]ControlType{
	0x05: ControlTypeKnobTop,
	0x0D: ControlTypeKnobBottom,
	0x00: ControlTypeFader,
	0x19: ControlTypeButton,
}

// Behavior 控件触发行为，从 param1 低两位派生。
// param1 其余位含义未经硬件确认，整字节原样保留以保证往返一致。
type Behavior uint8

const (
	BehaviorAbsolute Behavior = iota
	BehaviorRelative
	BehaviorToggle
)

func (b Behavior) String() string {
	switch b {
	case BehaviorRelative:
		return "relative"
	case BehaviorToggle:
		return "toggle"
	default:
		return "absolute"
	}
}

// Control 一个物理控件的 MIDI 映射，来自一个 11 字节控制块。
// 原始字节字段（RawType/Param1）逐位保留，派生视图通过方法取得。
type Control struct {
	ID      byte `json:"id"`      // 0x10..0x3F
	RawType byte `json:"rawType"` // 控制块 offset 3 原值
	Channel byte `json:"channel"` // 0..15
	Param1  byte `json:"param1"`  // offset 5，透传字节
	CC      byte `json:"cc"`      // 0..127
	Min     byte `json:"min"`     // 0..127
	Max     byte `json:"max"`     // 0..127，Min <= Max（允许相等）
}

// Type 映射后的控件种类
func (c Control) Type() ControlType {
	if t, ok := controlTypeTable[c.RawType]; ok {
		return t
	}
	return ControlTypeGeneric
}

// Behavior param1 低两位派生的触发行为
func (c Control) Behavior() Behavior {
	switch c.Param1 & 0x03 {
	case 0x01:
		return BehaviorRelative
	case 0x02:
		return BehaviorToggle
	default:
		return BehaviorAbsolute
	}
}

// Validate 字段范围检查（编码前调用）
func (c Control) Validate() error {
	if c.ID < ControlIDMin || c.ID > ControlIDMax {
		return fmt.Errorf("%w: control id 0x%02X outside 0x%02X..0x%02X",
			ErrFieldRange, c.ID, ControlIDMin, ControlIDMax)
	}
	if c.Channel > 15 {
		return fmt.Errorf("%w: channel %d > 15 (control 0x%02X)", ErrFieldRange, c.Channel, c.ID)
	}
	if c.CC > 127 {
		return fmt.Errorf("%w: cc %d > 127 (control 0x%02X)", ErrFieldRange, c.CC, c.ID)
	}
	if c.Min > 127 || c.Max > 127 {
		return fmt.Errorf("%w: min/max %d/%d > 127 (control 0x%02X)", ErrFieldRange, c.Min, c.Max, c.ID)
	}
	if c.Min > c.Max {
		return fmt.Errorf("%w: min 0x%02X > max 0x%02X (control 0x%02X)", ErrFieldRange, c.Min, c.Max, c.ID)
	}
	return nil
}

// LEDBehavior 灯色行为标志
type LEDBehavior byte

const (
	LEDStatic LEDBehavior = 0x00
	LEDFlash  LEDBehavior = 0x01
	LEDPulse  LEDBehavior = 0x02
)

func (b LEDBehavior) String() string {
	switch b {
	case LEDFlash:
		return "flash"
	case LEDPulse:
		return "pulse"
	default:
		return "static"
	}
}

// ColorSpec 一个控件的 LED 颜色/行为，缺省条目表示设备默认配色
type ColorSpec struct {
	Color    byte        `json:"color"`
	Behavior LEDBehavior `json:"behavior"`
}

// CustomMode 一个设备记忆槽的完整自定义配置。
// codec 两个方向都不修改传入值：解码产出新值，编码只读取。
type CustomMode struct {
	// Name 自定义名称；nil 表示出厂回退（与空字符串不同）。
	// 编码后长度上限 NameMaxLen 字节。
	Name *string `json:"name,omitempty"`
	// Controls 按 controlId 唯一索引
	Controls map[byte]Control `json:"controls"`
	// Colors 可选的灯色表，同样按 controlId 索引
	Colors map[byte]ColorSpec `json:"colors,omitempty"`
	// Slot 目标记忆槽 0..15；不进载荷本体，由传输层随消息携带
	Slot byte `json:"slot"`
}

// NewCustomMode 返回带空集合的模式值
func NewCustomMode(slot byte) *CustomMode {
	return &CustomMode{
		Controls: make(map[byte]Control),
		Colors:   make(map[byte]ColorSpec),
		Slot:     slot,
	}
}

// SetName 设置自定义名称
func (m *CustomMode) SetName(name string) {
	m.Name = &name
}

// ControlIDs 升序排列的 controlId 列表，编码顺序即由此决定
func (m *CustomMode) ControlIDs() []byte {
	ids := make([]byte, 0, len(m.Controls))
	for id := range m.Controls {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ColorIDs 升序排列的灯色条目 controlId 列表
func (m *CustomMode) ColorIDs() []byte {
	ids := make([]byte, 0, len(m.Colors))
	for id := range m.Colors {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Validate 整体校验：槽位、名称长度与所有控制块字段
func (m *CustomMode) Validate() error {
	if m.Slot > SlotMax {
		return fmt.Errorf("%w: slot %d > %d", ErrFieldRange, m.Slot, SlotMax)
	}
	if m.Name != nil && len(*m.Name) > NameMaxLen {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrNameTooLong, len(*m.Name), NameMaxLen)
	}
	for _, id := range m.ControlIDs() {
		c := m.Controls[id]
		if c.ID != id {
			return fmt.Errorf("%w: control keyed 0x%02X carries id 0x%02X", ErrFieldRange, id, c.ID)
		}
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}
