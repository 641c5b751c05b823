package sysex

import (
	"encoding/hex"
	"errors"
	"testing"
)

// 规范形式的完整载荷：两个控制块（0x11 的 minValue 是名称标记
// 常量 0x20）、名称 "Live Set"（内含空格 0x20）、两条灯色、结束标记
const canonicalBodyHex = "481002050000480c0d7f00" + // 控制块 0x10
	"48110200010148200e7f00" + // 控制块 0x11，min=0x20
	"2008" + "4c69766520536574" + // 20 08 "Live Set"
	"60100d00" + "60112501" + // 灯色 0x10 / 0x11
	"24"

func canonicalBody(t *testing.T) []byte {
	t.Helper()
	body, err := hex.DecodeString(canonicalBodyHex)
	if err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return body
}

func TestDecodeBody_Canonical(t *testing.T) {
	res, err := NewDecoder(Strict).DecodeBody(canonicalBody(t), 5)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if res.Partial {
		t.Fatal("canonical payload should not be partial")
	}

	m := res.Mode
	if len(m.Controls) != 2 {
		t.Fatalf("expected 2 controls, got %d", len(m.Controls))
	}
	if m.Name == nil || *m.Name != "Live Set" {
		t.Errorf("expected name 'Live Set', got %v", m.Name)
	}
	if m.Slot != 5 {
		t.Errorf("expected slot 5, got %d", m.Slot)
	}

	// 0x11 的 minValue 等于名称标记常量，必须按数据落到字段里，
	// 并且不能多出伪控制
	ctl := m.Controls[0x11]
	if ctl.Min != 0x20 {
		t.Errorf("expected min 0x20, got 0x%02X", ctl.Min)
	}
	if ctl.CC != 0x0E {
		t.Errorf("expected cc 0x0E, got 0x%02X", ctl.CC)
	}

	if len(m.Colors) != 2 {
		t.Fatalf("expected 2 color entries, got %d", len(m.Colors))
	}
	if spec := m.Colors[0x11]; spec.Color != 0x25 || spec.Behavior != LEDFlash {
		t.Errorf("unexpected color spec %+v", spec)
	}
}

func TestDecodeBody_MalformedBlockLenientResync(t *testing.T) {
	// 第一个控制块的次级标记被破坏，其后跟两个完好的块
	body, _ := hex.DecodeString(
		"481002050000470c0d7f00" + // 坏块：offset 6 是 0x47
			"48110200010148200e7f00" +
			"481202000002480a0b7f00" +
			"201f" + // 无自定义名称
			"24")

	// 宽松模式：恰好两个完好控制 + 一条错误记录
	res, err := NewDecoder(Lenient).DecodeBody(body, 0)
	if err != nil {
		t.Fatalf("lenient decode should complete: %v", err)
	}
	if !res.Partial {
		t.Error("skipped block must mark the result partial")
	}
	if len(res.Issues) != 1 {
		t.Fatalf("expected 1 issue, got %d: %v", len(res.Issues), res.Issues)
	}
	if !errors.Is(res.Issues[0], ErrMalformedBlock) {
		t.Errorf("expected ErrMalformedBlock issue, got %v", res.Issues[0])
	}
	if len(res.Mode.Controls) != 2 {
		t.Fatalf("expected 2 controls, got %d", len(res.Mode.Controls))
	}
	if _, ok := res.Mode.Controls[0x11]; !ok {
		t.Error("control 0x11 missing")
	}
	if _, ok := res.Mode.Controls[0x12]; !ok {
		t.Error("control 0x12 missing")
	}

	// 严格模式：致命错误，零控制
	res2, err2 := NewDecoder(Strict).DecodeBody(body, 0)
	if !errors.Is(err2, ErrMalformedBlock) {
		t.Fatalf("strict decode should fail with ErrMalformedBlock, got %v", err2)
	}
	if res2 == nil || !res2.Partial {
		t.Fatal("strict failure should still expose a partial result")
	}
	if len(res2.Mode.Controls) != 0 {
		t.Errorf("expected 0 controls on strict failure, got %d", len(res2.Mode.Controls))
	}
}

func TestDecodeBody_TruncatedMidBlock(t *testing.T) {
	// 控制块只剩 5/11 字节
	full := canonicalBody(t)
	body := full[:5]

	res, err := NewDecoder(Strict).DecodeBody(body, 0)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}

	var oe *OffsetError
	if !errors.As(err, &oe) {
		t.Fatalf("expected OffsetError, got %T", err)
	}
	if oe.Offset != 0 {
		t.Errorf("expected truncation reported at block start 0, got %d", oe.Offset)
	}
	if !res.Partial {
		t.Error("truncated decode must be partial")
	}
}

func TestDecodeBody_MissingTerminator(t *testing.T) {
	// 载荷在结束标记之前耗尽
	body, _ := hex.DecodeString("481002050000480c0d7f00" + "201f")

	_, err := NewDecoder(Strict).DecodeBody(body, 0)
	if !errors.Is(err, ErrUnexpectedEnd) {
		t.Fatalf("expected ErrUnexpectedEnd, got %v", err)
	}
}

func TestDecodeBody_GarbageLenientResync(t *testing.T) {
	// 控制块之间混入两个非标记字节
	body, _ := hex.DecodeString("481002050000480c0d7f00" + "0102" + "201f" + "24")

	res, err := NewDecoder(Lenient).DecodeBody(body, 0)
	if err != nil {
		t.Fatalf("lenient decode should complete: %v", err)
	}
	if len(res.Issues) != 1 {
		t.Fatalf("expected 1 resync issue, got %d", len(res.Issues))
	}
	if len(res.Mode.Controls) != 1 {
		t.Errorf("expected 1 control, got %d", len(res.Mode.Controls))
	}

	// 严格模式直接拒绝
	if _, err := NewDecoder(Strict).DecodeBody(body, 0); !errors.Is(err, ErrMalformedBlock) {
		t.Errorf("strict decode should reject garbage, got %v", err)
	}
}

func TestDecodeBody_StrictCanonicalOrder(t *testing.T) {
	// 控制块乱序（0x11 在 0x10 之前）：严格模式拒绝，宽松模式接受
	body, _ := hex.DecodeString(
		"48110200010148200e7f00" +
			"481002050000480c0d7f00" +
			"201f" + "24")

	if _, err := NewDecoder(Strict).DecodeBody(body, 0); !errors.Is(err, ErrMalformedBlock) {
		t.Errorf("strict decode should enforce ascending order, got %v", err)
	}

	res, err := NewDecoder(Lenient).DecodeBody(body, 0)
	if err != nil {
		t.Fatalf("lenient decode failed: %v", err)
	}
	if len(res.Mode.Controls) != 2 {
		t.Errorf("expected 2 controls, got %d", len(res.Mode.Controls))
	}
}

func TestDecodeBody_DuplicateControlID(t *testing.T) {
	body, _ := hex.DecodeString(
		"481002050000480c0d7f00" +
			"481002050000480c0d7f00" +
			"201f" + "24")

	if _, err := NewDecoder(Strict).DecodeBody(body, 0); !errors.Is(err, ErrMalformedBlock) {
		t.Errorf("strict decode should reject duplicate id, got %v", err)
	}

	// 宽松模式保留第一个块并记录问题
	res, err := NewDecoder(Lenient).DecodeBody(body, 0)
	if err != nil {
		t.Fatalf("lenient decode failed: %v", err)
	}
	if len(res.Mode.Controls) != 1 || len(res.Issues) != 1 {
		t.Errorf("expected 1 control and 1 issue, got %d/%d", len(res.Mode.Controls), len(res.Issues))
	}
}

func TestDecodeMessage_FramingCheckedFirst(t *testing.T) {
	// 厂商 ID 错误时载荷哪怕完好也不得解析
	good := append([]byte{}, canonicalBody(t)...)
	msg := &Message{Verb: VerbReadResponse, Slot: 1, Body: good}
	raw := msg.Wrap()
	raw[2] = 0x7F // 破坏厂商 ID

	res, err := NewDecoder(Strict).DecodeMessage(raw)
	if !errors.Is(err, ErrInvalidFraming) {
		t.Fatalf("expected ErrInvalidFraming, got %v", err)
	}
	if res != nil {
		t.Error("framing failure must not yield any result")
	}
}
