package sysex

import (
	"errors"
	"fmt"
)

// 错误分类（哨兵值）。结构化错误通过 Unwrap 归属到这些分类，
// 调用方统一用 errors.Is 判断。
var (
	// ErrTruncated 缓冲区在定长读取完成前结束，对当前解码致命
	ErrTruncated = errors.New("truncated data")
	// ErrMalformedBlock 块的固定标记字节不匹配
	ErrMalformedBlock = errors.New("malformed block")
	// ErrInvalidFraming 外层 SysEx 包络非法，不得继续解析载荷
	ErrInvalidFraming = errors.New("invalid sysex framing")
	// ErrNameTooLong 编码侧名称超过设备上限（禁止静默截断）
	ErrNameTooLong = errors.New("mode name too long")
	// ErrUnexpectedEnd 扫描期望标记时越过了缓冲区末尾
	ErrUnexpectedEnd = errors.New("unexpected end of message")
	// ErrFieldRange 解码出的字段超出合法取值范围
	ErrFieldRange = errors.New("field out of range")
)

// OffsetError 携带出错偏移量的结构化错误。
// Kind 必须是上面的哨兵之一，offset 是相对载荷起始的字节位置。
type OffsetError struct {
	Kind   error
	Offset int
	Detail string
}

func (e *OffsetError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v at offset %d", e.Kind, e.Offset)
	}
	return fmt.Sprintf("%v at offset %d: %s", e.Kind, e.Offset, e.Detail)
}

func (e *OffsetError) Unwrap() error { return e.Kind }

func truncatedErr(offset, need, have int) error {
	return &OffsetError{
		Kind:   ErrTruncated,
		Offset: offset,
		Detail: fmt.Sprintf("need %d bytes, have %d", need, have),
	}
}

func malformedErr(offset int, format string, args ...interface{}) error {
	return &OffsetError{Kind: ErrMalformedBlock, Offset: offset, Detail: fmt.Sprintf(format, args...)}
}

func fieldRangeErr(offset int, format string, args ...interface{}) error {
	return &OffsetError{Kind: ErrFieldRange, Offset: offset, Detail: fmt.Sprintf(format, args...)}
}
