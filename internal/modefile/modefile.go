package modefile

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/taoyao-code/xl3-server/internal/protocol/sysex"
)

// ControlEntry 单个控件的 YAML 表示。type/param1/behavior 保留原始字节，
// 往返转换不丢信息。
type ControlEntry struct {
	ID      uint8 `yaml:"id" json:"id"`
	Type    uint8 `yaml:"type" json:"type"`
	Channel uint8 `yaml:"channel" json:"channel"`
	Param1  uint8 `yaml:"param1" json:"param1"`
	CC      uint8 `yaml:"cc" json:"cc"`
	Min     uint8 `yaml:"min" json:"min"`
	Max     uint8 `yaml:"max" json:"max"`
}

// ColorEntry 单个控件 LED 配色的 YAML 表示
type ColorEntry struct {
	ID       uint8 `yaml:"id" json:"id"`
	Color    uint8 `yaml:"color" json:"color"`
	Behavior uint8 `yaml:"behavior" json:"behavior"`
}

// File 自定义模式的 YAML 文件格式
type File struct {
	Name     *string        `yaml:"name,omitempty" json:"name,omitempty"`
	Slot     uint8          `yaml:"slot" json:"slot"`
	Controls []ControlEntry `yaml:"controls" json:"controls"`
	Colors   []ColorEntry   `yaml:"colors,omitempty" json:"colors,omitempty"`
}

// FromMode 把解码后的模式转成文件格式，控件按 ID 升序
func FromMode(m *sysex.CustomMode) *File {
	f := &File{Slot: m.Slot}
	if m.Name != nil {
		name := *m.Name
		f.Name = &name
	}
	for _, id := range m.ControlIDs() {
		c := m.Controls[id]
		f.Controls = append(f.Controls, ControlEntry{
			ID:      c.ID,
			Type:    c.RawType,
			Channel: c.Channel,
			Param1:  c.Param1,
			CC:      c.CC,
			Min:     c.Min,
			Max:     c.Max,
		})
	}
	for _, id := range m.ColorIDs() {
		spec := m.Colors[id]
		f.Colors = append(f.Colors, ColorEntry{
			ID:       id,
			Color:    spec.Color,
			Behavior: byte(spec.Behavior),
		})
	}
	return f
}

// ToMode 把文件格式转回模式并校验
func (f *File) ToMode() (*sysex.CustomMode, error) {
	m := sysex.NewCustomMode(f.Slot)
	if f.Name != nil {
		m.SetName(*f.Name)
	}
	for _, e := range f.Controls {
		if _, dup := m.Controls[e.ID]; dup {
			return nil, fmt.Errorf("duplicate control id %#02x", e.ID)
		}
		m.Controls[e.ID] = sysex.Control{
			ID:      e.ID,
			RawType: e.Type,
			Channel: e.Channel,
			Param1:  e.Param1,
			CC:      e.CC,
			Min:     e.Min,
			Max:     e.Max,
		}
	}
	for _, e := range f.Colors {
		if _, dup := m.Colors[e.ID]; dup {
			return nil, fmt.Errorf("duplicate color id %#02x", e.ID)
		}
		m.Colors[e.ID] = sysex.ColorSpec{Color: e.Color, Behavior: sysex.LEDBehavior(e.Behavior)}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Marshal 导出 YAML 字节
func Marshal(m *sysex.CustomMode) ([]byte, error) {
	return yaml.Marshal(FromMode(m))
}

// Unmarshal 解析 YAML 并转回模式
func Unmarshal(data []byte) (*sysex.CustomMode, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse mode file: %w", err)
	}
	return f.ToMode()
}
