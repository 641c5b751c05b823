package sysex

import (
	"errors"
	"fmt"
)

// DecodeMode 坏块处理策略
type DecodeMode int

const (
	// Strict 第一个结构错误即终止整个解码
	Strict DecodeMode = iota
	// Lenient 跳过坏块并继续，所有问题记录在 Result.Issues
	Lenient
)

// Result 一次解码的结果。Partial 为 true 表示有块被跳过或解码中途
// 失败，调用方不得把部分结果当作完整结果使用。
type Result struct {
	Mode *CustomMode
	// Issues 宽松模式下跳过的块及原因，严格模式恒为空
	Issues []error
	// Partial 结果不完整（存在 Issues 或解码中途失败）
	Partial bool
	// LastOffset 最后成功解析到的载荷偏移，用于诊断
	LastOffset int
}

// Decoder 自定义模式载荷解码器。无内部状态共享，可并发用于
// 不同缓冲区；同一调用内游标单向推进，已消费区间不会重扫。
type Decoder struct {
	mode DecodeMode
}

func NewDecoder(mode DecodeMode) *Decoder {
	return &Decoder{mode: mode}
}

// DecodeMessage 剥包络后解码完整 SysEx 消息。
// 包络非法直接返回 ErrInvalidFraming，不触碰载荷。
func (d *Decoder) DecodeMessage(raw []byte) (*Result, error) {
	msg, err := Unwrap(raw)
	if err != nil {
		return nil, err
	}
	return d.DecodeBody(msg.Body, msg.Slot)
}

// DecodeBody 解码去包络后的载荷本体。
//
// 状态机：Start → 控制块* → 名称块 → 灯色块* → 结束标记 → Done。
// 每一步只比对"当前状态期望的下一个标记"，从不对整个缓冲区做
// 按值扫描——数据字节等于标记常量不会造成歧义。
//
// 严格模式还要求规范次序（控制块与灯色块按 controlId 升序、名称块
// 必须出现、结束标记后无残留），由此保证 Encode(Decode(b)) == b。
func (d *Decoder) DecodeBody(body []byte, slot byte) (*Result, error) {
	cur := NewCursor(body)
	res := &Result{Mode: NewCustomMode(slot)}
	lenient := d.mode == Lenient

	sawName := false
	prevCtlID := -1
	prevColorID := -1

	fail := func(err error) (*Result, error) {
		res.Partial = true
		res.LastOffset = cur.Pos()
		return res, err
	}

	for {
		b, ok := cur.Peek(0)
		if !ok {
			return fail(&OffsetError{Kind: ErrUnexpectedEnd, Offset: cur.Pos(),
				Detail: "payload ended before terminator"})
		}

		switch b {
		case MarkerControl:
			start := cur.Pos()
			if sawName {
				if !lenient {
					return fail(malformedErr(start, "control block after name block"))
				}
				res.Issues = append(res.Issues, malformedErr(start, "control block after name block"))
			}
			ctl, err := decodeControlBlock(cur)
			if err != nil {
				if errors.Is(err, ErrTruncated) || !lenient {
					return fail(err)
				}
				// 坏块已被整块消费，下一个位置就是重同步点
				res.Issues = append(res.Issues, err)
				continue
			}
			if _, dup := res.Mode.Controls[ctl.ID]; dup {
				dupErr := malformedErr(start, "duplicate control id 0x%02X", ctl.ID)
				if !lenient {
					return fail(dupErr)
				}
				res.Issues = append(res.Issues, dupErr)
				continue
			}
			if !lenient && int(ctl.ID) <= prevCtlID {
				return fail(malformedErr(start,
					"control id 0x%02X out of canonical order", ctl.ID))
			}
			prevCtlID = int(ctl.ID)
			res.Mode.Controls[ctl.ID] = ctl

		case MarkerName:
			if sawName {
				nameErr := malformedErr(cur.Pos(), "second name block")
				if !lenient {
					return fail(nameErr)
				}
				res.Issues = append(res.Issues, nameErr)
				cur.Skip(1)
				continue
			}
			name, issue, err := decodeNameBlock(cur, lenient)
			if err != nil {
				return fail(err)
			}
			if issue != nil {
				res.Issues = append(res.Issues, issue)
			}
			res.Mode.Name = name
			sawName = true

		case MarkerColor:
			start := cur.Pos()
			if !sawName && !lenient {
				return fail(malformedErr(start, "color block before name block"))
			}
			id, spec, err := decodeColorEntry(cur)
			if err != nil {
				if errors.Is(err, ErrTruncated) || !lenient {
					return fail(err)
				}
				res.Issues = append(res.Issues, err)
				continue
			}
			if _, dup := res.Mode.Colors[id]; dup {
				dupErr := malformedErr(start, "duplicate color entry for control 0x%02X", id)
				if !lenient {
					return fail(dupErr)
				}
				res.Issues = append(res.Issues, dupErr)
				continue
			}
			if !lenient && int(id) <= prevColorID {
				return fail(malformedErr(start, "color entry 0x%02X out of canonical order", id))
			}
			prevColorID = int(id)
			res.Mode.Colors[id] = spec

		case MarkerEnd:
			cur.Skip(1)
			if !sawName && !lenient {
				return fail(malformedErr(cur.Pos()-1, "terminator before name block"))
			}
			if cur.Remaining() > 0 {
				trail := malformedErr(cur.Pos(), "%d trailing bytes after terminator", cur.Remaining())
				if !lenient {
					return fail(trail)
				}
				res.Issues = append(res.Issues, trail)
			}
			res.LastOffset = cur.Pos()
			res.Partial = len(res.Issues) > 0
			return res, nil

		default:
			start := cur.Pos()
			if !lenient {
				return fail(malformedErr(start, "unexpected byte %02X", b))
			}
			skipped := resync(cur)
			res.Issues = append(res.Issues, malformedErr(start,
				"unexpected byte %02X, skipped %d bytes to next marker", b, skipped))
			if cur.Remaining() == 0 {
				return fail(&OffsetError{Kind: ErrUnexpectedEnd, Offset: cur.Pos(),
					Detail: "resync ran off end of payload"})
			}
		}
	}
}

// resync 宽松模式重同步：向前跳到下一个标记类字节。
// 返回跳过的字节数。
func resync(c *Cursor) int {
	n := 0
	for {
		b, ok := c.Peek(0)
		if !ok {
			return n
		}
		switch b {
		case MarkerControl, MarkerName, MarkerColor, MarkerEnd:
			return n
		}
		c.Skip(1)
		n++
	}
}

// DecodeCustomMode 严格模式一步解码（最常用入口）
func DecodeCustomMode(raw []byte) (*CustomMode, error) {
	res, err := NewDecoder(Strict).DecodeMessage(raw)
	if err != nil {
		return nil, err
	}
	if res.Partial {
		return nil, fmt.Errorf("%w: partial decode at offset %d", ErrMalformedBlock, res.LastOffset)
	}
	return res.Mode, nil
}
