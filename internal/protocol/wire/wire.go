package wire

import (
	"errors"
	"fmt"
	"sort"
)

// Type is the wire type carried in the low three bits of a field tag.
type Type uint8

const (
	TypeVarint  Type = 0
	TypeFixed64 Type = 1
	TypeBytes   Type = 2
	TypeFixed32 Type = 5
)

// MaxVarintLen is the longest encoding of a 64-bit varint.
const MaxVarintLen = 10

var (
	ErrTruncated       = errors.New("wire: truncated data")
	ErrVarintOverflow  = errors.New("wire: varint overflows 64 bits")
	ErrInvalidLength   = errors.New("wire: length exceeds remaining bytes")
	ErrUnknownWireType = errors.New("wire: unknown wire type")
	ErrTypeMismatch    = errors.New("wire: field wire type mismatch")
)

func (t Type) String() string {
	switch t {
	case TypeVarint:
		return "varint"
	case TypeFixed64:
		return "fixed64"
	case TypeBytes:
		return "bytes"
	case TypeFixed32:
		return "fixed32"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// AppendVarint appends v as a base-128 varint.
func AppendVarint(b []byte, v uint64) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

// AppendTag appends the tag for field num with wire type typ.
func AppendTag(b []byte, num uint32, typ Type) []byte {
	return AppendVarint(b, uint64(num)<<3|uint64(typ))
}

// AppendMessage appends msg as a length-delimited field. Unlike the scalar
// helpers it always writes, so an empty sub-message still marks its field.
func AppendMessage(b []byte, num uint32, msg []byte) []byte {
	b = AppendTag(b, num, TypeBytes)
	b = AppendVarint(b, uint64(len(msg)))
	return append(b, msg...)
}

// AppendBytes appends a bytes field, omitted when empty.
func AppendBytes(b []byte, num uint32, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	return AppendMessage(b, num, v)
}

// AppendString appends a string field, omitted when empty.
func AppendString(b []byte, num uint32, v string) []byte {
	if v == "" {
		return b
	}
	b = AppendTag(b, num, TypeBytes)
	b = AppendVarint(b, uint64(len(v)))
	return append(b, v...)
}

// AppendBool appends a bool field, omitted when false.
func AppendBool(b []byte, num uint32, v bool) []byte {
	if !v {
		return b
	}
	b = AppendTag(b, num, TypeVarint)
	return append(b, 1)
}

// AppendUint32 appends a uint32 field, omitted when zero.
func AppendUint32(b []byte, num uint32, v uint32) []byte {
	if v == 0 {
		return b
	}
	b = AppendTag(b, num, TypeVarint)
	return AppendVarint(b, uint64(v))
}

// AppendStringMap appends m as repeated {1: key, 2: value} entries in key order.
func AppendStringMap(b []byte, num uint32, m map[string]string) []byte {
	if len(m) == 0 {
		return b
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var entry []byte
	for _, k := range keys {
		entry = entry[:0]
		entry = AppendString(entry, 1, k)
		entry = AppendString(entry, 2, m[k])
		b = AppendMessage(b, num, entry)
	}
	return b
}

// Reader walks an encoded message. Every method checks bounds before it
// reads and leaves the offset untouched on error.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Done reports whether the whole buffer has been consumed.
func (r *Reader) Done() bool {
	return r.off >= len(r.buf)
}

// Varint reads one base-128 varint.
func (r *Reader) Varint() (uint64, error) {
	var v uint64
	off := r.off
	for i := 0; i < MaxVarintLen; i++ {
		if off >= len(r.buf) {
			return 0, ErrTruncated
		}
		c := r.buf[off]
		off++
		// the tenth byte may only carry bit 63
		if i == MaxVarintLen-1 && c > 1 {
			return 0, ErrVarintOverflow
		}
		v |= uint64(c&0x7f) << (7 * uint(i))
		if c < 0x80 {
			r.off = off
			return v, nil
		}
	}
	return 0, ErrVarintOverflow
}

// Tag reads a field tag.
func (r *Reader) Tag() (uint32, Type, error) {
	v, err := r.Varint()
	if err != nil {
		return 0, 0, err
	}
	return uint32(v >> 3), Type(v & 0x7), nil
}

// Bytes reads a length-delimited value. The result aliases the buffer.
func (r *Reader) Bytes() ([]byte, error) {
	start := r.off
	n, err := r.Varint()
	if err != nil {
		return nil, err
	}
	if n > uint64(len(r.buf)-r.off) {
		r.off = start
		return nil, ErrInvalidLength
	}
	end := r.off + int(n)
	out := r.buf[r.off:end:end]
	r.off = end
	return out, nil
}

// String reads a length-delimited value as a string.
func (r *Reader) String() (string, error) {
	b, err := r.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Bool reads a varint as a bool.
func (r *Reader) Bool() (bool, error) {
	v, err := r.Varint()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Uint32 reads a varint truncated to 32 bits.
func (r *Reader) Uint32() (uint32, error) {
	v, err := r.Varint()
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// Skip consumes one value of wire type typ.
func (r *Reader) Skip(typ Type) error {
	switch typ {
	case TypeVarint:
		_, err := r.Varint()
		return err
	case TypeFixed64:
		return r.skipN(8)
	case TypeBytes:
		_, err := r.Bytes()
		return err
	case TypeFixed32:
		return r.skipN(4)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownWireType, uint8(typ))
	}
}

func (r *Reader) skipN(n int) error {
	if len(r.buf)-r.off < n {
		return ErrTruncated
	}
	r.off += n
	return nil
}

// Expect returns ErrTypeMismatch when a known field arrives with the wrong wire type.
func Expect(num uint32, got, want Type) error {
	if got != want {
		return fmt.Errorf("%w: field %d got %s want %s", ErrTypeMismatch, num, got, want)
	}
	return nil
}

// ReadStringMapEntry decodes one {1: key, 2: value} map entry, skipping unknown fields.
func ReadStringMapEntry(entry []byte) (string, string, error) {
	r := NewReader(entry)
	var key, value string
	for !r.Done() {
		num, typ, err := r.Tag()
		if err != nil {
			return "", "", err
		}
		switch {
		case num == 1 && typ == TypeBytes:
			if key, err = r.String(); err != nil {
				return "", "", err
			}
		case num == 2 && typ == TypeBytes:
			if value, err = r.String(); err != nil {
				return "", "", err
			}
		default:
			if err := r.Skip(typ); err != nil {
				return "", "", err
			}
		}
	}
	return key, value, nil
}
