package sysex

// decodeNameBlock 解码名称块 [20][len][bytes...]，游标停在名称标记上。
//
// 长度规则（每条都对应一次历史回归，单独测试）：
//  1. 长度字节等于 NameNoneSentinel → 无自定义名称，返回 nil 而非空串；
//  2. 否则按长度字节精确读取，名称内部等于标记常量的字节照常消费，
//     绝不提前停；也绝不多读；
//  3. 长度字节非法（超过 NameMaxLen）时：严格模式报 ErrMalformedBlock；
//     宽松模式退化为扫到下一个标记类字节为止，并报告一个 issue。
//
// 返回值：name 解出的名称；issue 宽松模式下的可恢复问题；err 致命错误。
func decodeNameBlock(c *Cursor, lenient bool) (name *string, issue error, err error) {
	start := c.Pos()
	if _, err = c.TakeByte(); err != nil { // 名称标记，调用方已比对
		return nil, nil, err
	}
	length, err := c.TakeByte()
	if err != nil {
		return nil, nil, err
	}

	if length == NameNoneSentinel {
		return nil, nil, nil
	}

	if int(length) > NameMaxLen {
		if !lenient {
			return nil, nil, malformedErr(start+1, "name length %d exceeds limit %d", length, NameMaxLen)
		}
		// 长度前缀不可信：回退为标记边界扫描
		raw := takeUntilMarker(c)
		s := string(raw)
		return &s, malformedErr(start+1, "name length %d exceeds limit %d, recovered %d bytes by marker scan",
			length, NameMaxLen, len(raw)), nil
	}

	raw, err := c.Take(int(length))
	if err != nil {
		return nil, nil, err
	}
	s := string(raw)
	return &s, nil, nil
}

// takeUntilMarker 消费字节直到遇到任一标记类字节或缓冲区结束
func takeUntilMarker(c *Cursor) []byte {
	var out []byte
	for {
		b, ok := c.Peek(0)
		if !ok {
			return out
		}
		switch b {
		case MarkerControl, MarkerName, MarkerColor, MarkerEnd:
			return out
		}
		c.Skip(1)
		out = append(out, b)
	}
}

// encodeNameBlock 名称块编码。nil 名称写出厂回退哨兵；
// 超长名称由 WriteLengthPrefixed 拒绝，绝不截断。
func encodeNameBlock(w *Writer, name *string) error {
	w.PutByte(MarkerName)
	if name == nil {
		w.PutByte(NameNoneSentinel)
		return nil
	}
	return w.WriteLengthPrefixed(*name, NameMaxLen)
}
