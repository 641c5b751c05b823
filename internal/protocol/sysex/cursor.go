package sysex

import "fmt"

// Cursor 对字节缓冲区的顺序只读游标。
// 所有读取都做边界检查；已消费的区间不会被回退重扫。
type Cursor struct {
	buf []byte
	pos int
}

func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Pos 当前读偏移，用于错误上下文
func (c *Cursor) Pos() int { return c.pos }

// Remaining 剩余未消费字节数
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Peek 向前看 off 个字节（0 为当前位置），越界返回 ok=false 而非错误，
// 标记扫描的前瞻依赖这一点
func (c *Cursor) Peek(off int) (byte, bool) {
	idx := c.pos + off
	if idx < 0 || idx >= len(c.buf) {
		return 0, false
	}
	return c.buf[idx], true
}

// TakeByte 消费一个字节
func (c *Cursor) TakeByte() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, truncatedErr(c.pos, 1, 0)
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// Take 消费 n 个字节，不足时返回 ErrTruncated（偏移为读取起点）
func (c *Cursor) Take(n int) ([]byte, error) {
	if c.Remaining() < n {
		return nil, truncatedErr(c.pos, n, c.Remaining())
	}
	out := c.buf[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

// Skip 丢弃 n 个字节（宽松模式重同步用），不足时走到末尾
func (c *Cursor) Skip(n int) {
	c.pos += n
	if c.pos > len(c.buf) {
		c.pos = len(c.buf)
	}
}

// Writer 编码侧的缓冲写入器，是 Cursor 的逆向
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) PutByte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *Writer) PutBytes(p []byte) {
	w.buf = append(w.buf, p...)
}

// WriteLengthPrefixed 写入 [长度][字节…]。超出 maxLen 返回
// ErrNameTooLong 而不是截断：静默截断曾是线上事故
func (w *Writer) WriteLengthPrefixed(s string, maxLen int) error {
	raw := []byte(s)
	if len(raw) > maxLen {
		return &OffsetError{
			Kind:   ErrNameTooLong,
			Offset: w.Len(),
			Detail: fmt.Sprintf("got %d bytes, limit %d", len(raw), maxLen),
		}
	}
	w.buf = append(w.buf, byte(len(raw)))
	w.buf = append(w.buf, raw...)
	return nil
}

func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) Bytes() []byte { return w.buf }
