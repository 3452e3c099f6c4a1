package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf16"
)

var (
	// ErrShortBuffer 帧长度不足以读出声明的字段
	ErrShortBuffer = errors.New("wire: short buffer")
	// ErrUnknownMessage 未知的消息判别字节
	ErrUnknownMessage = errors.New("wire: unknown message")
	// ErrTrailingBytes 帧末尾存在未消费的字节
	ErrTrailingBytes = errors.New("wire: trailing bytes")
)

// NoID 表示“不存在”的实体引用
const NoID int32 = -1

var order = binary.BigEndian

// Writer 顺序追加定长字段，所有多字节字段均为大端序
type Writer struct {
	buf []byte
}

func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) Bytes() []byte { return w.buf }
func (w *Writer) Len() int      { return len(w.buf) }

func (w *Writer) Uint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) Uint16(v uint16) { w.buf = order.AppendUint16(w.buf, v) }

func (w *Writer) Int16(v int16) { w.buf = order.AppendUint16(w.buf, uint16(v)) }

func (w *Writer) Uint32(v uint32) { w.buf = order.AppendUint32(w.buf, v) }

func (w *Writer) Int32(v int32) { w.buf = order.AppendUint32(w.buf, uint32(v)) }

func (w *Writer) Float64(v float64) { w.buf = order.AppendUint64(w.buf, math.Float64bits(v)) }

// OptionalInt32 写入可选 id，缺省时写 NoID
func (w *Writer) OptionalInt32(v int32, ok bool) {
	if !ok {
		v = NoID
	}
	w.Int32(v)
}

// String 以 16 位长度前缀 + UTF-16 码元写入；超过 uint16 个码元的字符串无法编码
func (w *Writer) String(s string) error {
	units := utf16.Encode([]rune(s))
	if len(units) > math.MaxUint16 {
		return fmt.Errorf("wire: string of %d code units out of range", len(units))
	}
	w.Uint16(uint16(len(units)))
	for _, u := range units {
		w.Uint16(u)
	}
	return nil
}

// Len16 写数组长度前缀；超过 uint16 的数组无法编码
func (w *Writer) Len16(n int) error {
	if n < 0 || n > math.MaxUint16 {
		return fmt.Errorf("wire: array length %d out of range", n)
	}
	w.Uint16(uint16(n))
	return nil
}

// Reader 与 Writer 对称；遇到第一个错误后后续读取均返回零值
type Reader struct {
	buf []byte
	off int
	err error
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

func (r *Reader) Err() error { return r.err }

// Remaining 返回尚未读取的字节数
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, r.off, len(r.buf)-r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) Uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) Uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return order.Uint16(b)
}

func (r *Reader) Int16() int16 { return int16(r.Uint16()) }

func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return order.Uint32(b)
}

func (r *Reader) Int32() int32 { return int32(r.Uint32()) }

func (r *Reader) Float64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(order.Uint64(b))
}

// OptionalInt32 读出可选 id，NoID 返回 ok=false
func (r *Reader) OptionalInt32() (int32, bool) {
	v := r.Int32()
	if r.err != nil || v == NoID {
		return 0, false
	}
	return v, true
}

func (r *Reader) String() string {
	n := int(r.Uint16())
	if n == 0 {
		return ""
	}
	units := make([]uint16, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		units = append(units, r.Uint16())
	}
	if r.err != nil {
		return ""
	}
	return string(utf16.Decode(units))
}

// Len16 读数组长度前缀；长度超出剩余字节可容纳的最小元素数时直接报错
func (r *Reader) Len16(minElem int) int {
	n := int(r.Uint16())
	if r.err == nil && minElem > 0 && n*minElem > r.Remaining() {
		r.err = fmt.Errorf("%w: array of %d elements exceeds frame", ErrShortBuffer, n)
		return 0
	}
	return n
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return fmt.Errorf("%w: %d bytes", ErrTrailingBytes, len(r.buf)-r.off)
	}
	return nil
}
