package sysex

import (
	"encoding/hex"
	"errors"
	"testing"
)

func TestDecodeControlBlock_MarkerValueAsData(t *testing.T) {
	// 历史缺陷回归：minValue (offset 7) 等于控制块标记常量 0x48。
	// 该字节必须按数据消费，不得被再解释为新块的开头。
	block, _ := hex.DecodeString("4817020000014840297f00")

	c := NewCursor(block)
	ctl, err := decodeControlBlock(c)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if ctl.ID != 0x17 {
		t.Errorf("expected id 0x17, got 0x%02X", ctl.ID)
	}
	if ctl.Min != 0x40 {
		t.Errorf("expected min 0x40, got 0x%02X", ctl.Min)
	}
	if ctl.CC != 0x29 {
		t.Errorf("expected cc 0x29, got 0x%02X", ctl.CC)
	}
	if ctl.Max != 0x7F {
		t.Errorf("expected max 0x7F, got 0x%02X", ctl.Max)
	}
	// 块被整体消费，游标正好推进 11 字节
	if c.Pos() != ControlBlockLen {
		t.Errorf("expected cursor at %d, got %d", ControlBlockLen, c.Pos())
	}
}

func TestDecodeControlBlock_MinEqualsNameMarker(t *testing.T) {
	// minValue == 0x20（名称标记常量）同样只能是数据
	block, _ := hex.DecodeString("4811020502004820147f00")

	ctl, err := decodeControlBlock(NewCursor(block))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if ctl.Min != 0x20 {
		t.Errorf("expected min 0x20, got 0x%02X", ctl.Min)
	}
	if ctl.Type() != ControlTypeKnobTop {
		t.Errorf("expected knob_top, got %s", ctl.Type())
	}
	if ctl.Channel != 2 {
		t.Errorf("expected channel 2, got %d", ctl.Channel)
	}
}

func TestDecodeControlBlock_BadSecondaryMarker(t *testing.T) {
	// offset 6 的次级标记被破坏
	block, _ := hex.DecodeString("4817020000014740297f00")

	_, err := decodeControlBlock(NewCursor(block))
	if !errors.Is(err, ErrMalformedBlock) {
		t.Fatalf("expected ErrMalformedBlock, got %v", err)
	}

	var oe *OffsetError
	if !errors.As(err, &oe) {
		t.Fatalf("expected OffsetError, got %T", err)
	}
	if oe.Offset != 6 {
		t.Errorf("expected error at offset 6, got %d", oe.Offset)
	}
}

func TestDecodeControlBlock_Truncated(t *testing.T) {
	// 只有 5/11 字节：必须报 ErrTruncated 并指向块起点
	block, _ := hex.DecodeString("4817020000")

	c := NewCursor(block)
	_, err := decodeControlBlock(c)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}

	var oe *OffsetError
	if !errors.As(err, &oe) {
		t.Fatalf("expected OffsetError, got %T", err)
	}
	if oe.Offset != 0 {
		t.Errorf("expected offset 0, got %d", oe.Offset)
	}
}

func TestDecodeControlBlock_IDOutOfRange(t *testing.T) {
	// controlId 0x09 低于 0x10 下限
	block, _ := hex.DecodeString("4809020000014840297f00")

	_, err := decodeControlBlock(NewCursor(block))
	if !errors.Is(err, ErrFieldRange) {
		t.Fatalf("expected ErrFieldRange, got %v", err)
	}
}

func TestDecodeControlBlock_MinGreaterThanMax(t *testing.T) {
	// min 0x50 > max 0x10
	block, _ := hex.DecodeString("4817020000014850291000")

	_, err := decodeControlBlock(NewCursor(block))
	if !errors.Is(err, ErrFieldRange) {
		t.Fatalf("expected ErrFieldRange, got %v", err)
	}

	// min == max 是退化但合法的映射
	block2, _ := hex.DecodeString("4817020000014840294000")
	if _, err := decodeControlBlock(NewCursor(block2)); err != nil {
		t.Errorf("min == max should decode, got %v", err)
	}
}

func TestEncodeControlBlock_RoundTrip(t *testing.T) {
	ctl := Control{ID: 0x23, RawType: 0x0D, Channel: 9, Param1: 0x02, Min: 0x48, CC: 0x14, Max: 0x7F}

	w := NewWriter()
	encodeControlBlock(w, ctl)
	if w.Len() != ControlBlockLen {
		t.Fatalf("expected %d bytes, got %d", ControlBlockLen, w.Len())
	}

	got, err := decodeControlBlock(NewCursor(w.Bytes()))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != ctl {
		t.Errorf("round trip mismatch: %+v vs %+v", got, ctl)
	}
	if got.Behavior() != BehaviorToggle {
		t.Errorf("param1 0x02 should derive toggle, got %s", got.Behavior())
	}
}

func TestControlType_UnknownRawPassesThrough(t *testing.T) {
	ctl := Control{ID: 0x10, RawType: 0x33}
	if ctl.Type() != ControlTypeGeneric {
		t.Errorf("unknown raw type should map to generic, got %s", ctl.Type())
	}
}
