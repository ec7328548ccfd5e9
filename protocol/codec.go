package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// Type specifiers understood by Dump and Load. A spec string is one
// specifier per field, e.g. "sSSb" for short, shortstr, shortstr, bit.
const (
	TypeOctet     = 'o' // uint8
	TypeShort     = 's' // uint16
	TypeLong      = 'l' // uint32
	TypeLongLong  = 'L' // uint64
	TypeBit       = 'b' // bool, consecutive bits share one octet
	TypeShortStr  = 'S' // string, at most 255 bytes
	TypeLongStr   = 'X' // string
	TypeTimestamp = 'T' // time.Time, whole seconds
	TypeTable     = 'F' // Table
)

// ErrTruncated is returned when data ends before the spec is satisfied.
var ErrTruncated = errors.New("truncated data")

// Dump encodes values according to spec.
func Dump(spec string, values ...interface{}) ([]byte, error) {
	if len(spec) != len(values) {
		return nil, fmt.Errorf("spec %q expects %d values, got %d", spec, len(spec), len(values))
	}

	buf := getBuffer()
	defer putBuffer(buf)

	if err := dumpTo(buf, spec, values); err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func dumpTo(buf *bytes.Buffer, spec string, values []interface{}) error {
	var bits byte
	var nbits uint

	flush := func() {
		if nbits > 0 {
			buf.WriteByte(bits)
			bits, nbits = 0, 0
		}
	}

	for i := 0; i < len(spec); i++ {
		if spec[i] == TypeBit {
			b, ok := values[i].(bool)
			if !ok {
				return fmt.Errorf("field %d: want bool, got %T", i, values[i])
			}
			if nbits == 8 {
				flush()
			}
			if b {
				bits |= 1 << nbits
			}
			nbits++
			continue
		}

		flush()
		if err := dumpValue(buf, spec[i], values[i]); err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
	}
	flush()
	return nil
}

func dumpValue(buf *bytes.Buffer, kind byte, value interface{}) error {
	var scratch [8]byte

	switch kind {
	case TypeOctet:
		v, ok := value.(uint8)
		if !ok {
			return typeMismatch(kind, value)
		}
		buf.WriteByte(v)
	case TypeShort:
		v, ok := value.(uint16)
		if !ok {
			return typeMismatch(kind, value)
		}
		binary.BigEndian.PutUint16(scratch[:2], v)
		buf.Write(scratch[:2])
	case TypeLong:
		v, ok := value.(uint32)
		if !ok {
			return typeMismatch(kind, value)
		}
		binary.BigEndian.PutUint32(scratch[:4], v)
		buf.Write(scratch[:4])
	case TypeLongLong:
		v, ok := value.(uint64)
		if !ok {
			return typeMismatch(kind, value)
		}
		binary.BigEndian.PutUint64(scratch[:], v)
		buf.Write(scratch[:])
	case TypeShortStr:
		v, ok := value.(string)
		if !ok {
			return typeMismatch(kind, value)
		}
		if len(v) > math.MaxUint8 {
			return fmt.Errorf("short string of %d bytes exceeds 255", len(v))
		}
		buf.WriteByte(byte(len(v)))
		buf.WriteString(v)
	case TypeLongStr:
		v, ok := value.(string)
		if !ok {
			return typeMismatch(kind, value)
		}
		writeLongStr(buf, v)
	case TypeTimestamp:
		v, ok := value.(time.Time)
		if !ok {
			return typeMismatch(kind, value)
		}
		binary.BigEndian.PutUint64(scratch[:], uint64(v.Unix()))
		buf.Write(scratch[:])
	case TypeTable:
		switch v := value.(type) {
		case Table:
			return encodeTable(buf, v)
		case map[string]interface{}:
			return encodeTable(buf, Table(v))
		case nil:
			return encodeTable(buf, nil)
		default:
			return typeMismatch(kind, value)
		}
	default:
		return fmt.Errorf("unknown type specifier %q", kind)
	}
	return nil
}

func writeLongStr(buf *bytes.Buffer, s string) {
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(s)))
	buf.Write(size[:])
	buf.WriteString(s)
}

func typeMismatch(kind byte, value interface{}) error {
	return fmt.Errorf("type %q cannot hold %T", kind, value)
}

// Load decodes data according to spec and returns the values along with the
// number of bytes consumed.
func Load(spec string, data []byte) ([]interface{}, int, error) {
	d := &decoder{data: data}
	values, err := d.load(spec)
	if err != nil {
		return nil, d.off, err
	}
	return values, d.off, nil
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) load(spec string) ([]interface{}, error) {
	values := make([]interface{}, 0, len(spec))

	var bits byte
	var nbits uint = 8

	for i := 0; i < len(spec); i++ {
		kind := spec[i]
		if kind == TypeBit {
			if nbits == 8 {
				b, err := d.uint8()
				if err != nil {
					return nil, fmt.Errorf("field %d: %w", i, err)
				}
				bits, nbits = b, 0
			}
			values = append(values, bits&(1<<nbits) != 0)
			nbits++
			continue
		}
		nbits = 8

		var value interface{}
		var err error
		switch kind {
		case TypeOctet:
			value, err = d.uint8()
		case TypeShort:
			value, err = d.uint16()
		case TypeLong:
			value, err = d.uint32()
		case TypeLongLong:
			value, err = d.uint64()
		case TypeShortStr:
			value, err = d.shortStr()
		case TypeLongStr:
			value, err = d.longStr()
		case TypeTimestamp:
			value, err = d.timestamp()
		case TypeTable:
			value, err = d.table()
		default:
			err = fmt.Errorf("unknown type specifier %q", kind)
		}
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		values = append(values, value)
	}
	return values, nil
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || len(d.data)-d.off < n {
		return nil, ErrTruncated
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) uint8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) uint16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *decoder) uint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *decoder) uint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (d *decoder) shortStr() (string, error) {
	n, err := d.uint8()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) longStr() (string, error) {
	n, err := d.uint32()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) timestamp() (time.Time, error) {
	v, err := d.uint64()
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(v), 0).UTC(), nil
}
