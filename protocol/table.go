package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"
)

// Table is an AMQP field table. Values are restricted to the types accepted
// by the field-value codec below.
type Table map[string]interface{}

// Decimal is the AMQP decimal-value: Value scaled down by 10^Scale.
type Decimal struct {
	Scale uint8
	Value int32
}

// Field value type tags, following the RabbitMQ errata for 0-9-1.
const (
	fieldBoolean   = 't'
	fieldInt8      = 'b'
	fieldUint8     = 'B'
	fieldInt16     = 's'
	fieldUint16    = 'u'
	fieldInt32     = 'I'
	fieldUint32    = 'i'
	fieldInt64     = 'l'
	fieldFloat32   = 'f'
	fieldFloat64   = 'd'
	fieldDecimal   = 'D'
	fieldLongStr   = 'S'
	fieldBytes     = 'x'
	fieldArray     = 'A'
	fieldTimestamp = 'T'
	fieldTable     = 'F'
	fieldVoid      = 'V'
)

// encodeTable writes a field table, keys in sorted order so that equal
// tables always encode to equal bytes.
func encodeTable(buf *bytes.Buffer, table Table) error {
	body := getBuffer()
	defer putBuffer(body)

	for _, key := range slices.Sorted(maps.Keys(table)) {
		if len(key) > math.MaxUint8 {
			return fmt.Errorf("table key %q too long", key[:16])
		}
		body.WriteByte(byte(len(key)))
		body.WriteString(key)
		if err := encodeFieldValue(body, table[key]); err != nil {
			return fmt.Errorf("table key %q: %w", key, err)
		}
	}

	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(body.Len()))
	buf.Write(size[:])
	buf.Write(body.Bytes())
	return nil
}

func encodeArray(buf *bytes.Buffer, values []interface{}) error {
	body := getBuffer()
	defer putBuffer(body)

	for i, v := range values {
		if err := encodeFieldValue(body, v); err != nil {
			return fmt.Errorf("array index %d: %w", i, err)
		}
	}

	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(body.Len()))
	buf.Write(size[:])
	buf.Write(body.Bytes())
	return nil
}

func encodeFieldValue(buf *bytes.Buffer, value interface{}) error {
	var scratch [8]byte

	switch v := value.(type) {
	case nil:
		buf.WriteByte(fieldVoid)
	case bool:
		buf.WriteByte(fieldBoolean)
		if v {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case int8:
		buf.WriteByte(fieldInt8)
		buf.WriteByte(byte(v))
	case uint8:
		buf.WriteByte(fieldUint8)
		buf.WriteByte(v)
	case int16:
		buf.WriteByte(fieldInt16)
		binary.BigEndian.PutUint16(scratch[:2], uint16(v))
		buf.Write(scratch[:2])
	case uint16:
		buf.WriteByte(fieldUint16)
		binary.BigEndian.PutUint16(scratch[:2], v)
		buf.Write(scratch[:2])
	case int32:
		buf.WriteByte(fieldInt32)
		binary.BigEndian.PutUint32(scratch[:4], uint32(v))
		buf.Write(scratch[:4])
	case uint32:
		buf.WriteByte(fieldUint32)
		binary.BigEndian.PutUint32(scratch[:4], v)
		buf.Write(scratch[:4])
	case int:
		buf.WriteByte(fieldInt64)
		binary.BigEndian.PutUint64(scratch[:], uint64(v))
		buf.Write(scratch[:])
	case int64:
		buf.WriteByte(fieldInt64)
		binary.BigEndian.PutUint64(scratch[:], uint64(v))
		buf.Write(scratch[:])
	case float32:
		buf.WriteByte(fieldFloat32)
		binary.BigEndian.PutUint32(scratch[:4], math.Float32bits(v))
		buf.Write(scratch[:4])
	case float64:
		buf.WriteByte(fieldFloat64)
		binary.BigEndian.PutUint64(scratch[:], math.Float64bits(v))
		buf.Write(scratch[:])
	case Decimal:
		buf.WriteByte(fieldDecimal)
		buf.WriteByte(v.Scale)
		binary.BigEndian.PutUint32(scratch[:4], uint32(v.Value))
		buf.Write(scratch[:4])
	case string:
		buf.WriteByte(fieldLongStr)
		writeLongStr(buf, v)
	case []byte:
		buf.WriteByte(fieldBytes)
		binary.BigEndian.PutUint32(scratch[:4], uint32(len(v)))
		buf.Write(scratch[:4])
		buf.Write(v)
	case time.Time:
		buf.WriteByte(fieldTimestamp)
		binary.BigEndian.PutUint64(scratch[:], uint64(v.Unix()))
		buf.Write(scratch[:])
	case []interface{}:
		buf.WriteByte(fieldArray)
		return encodeArray(buf, v)
	case Table:
		buf.WriteByte(fieldTable)
		return encodeTable(buf, v)
	case map[string]interface{}:
		buf.WriteByte(fieldTable)
		return encodeTable(buf, Table(v))
	default:
		return fmt.Errorf("unsupported field value type %T", value)
	}
	return nil
}

func (d *decoder) table() (Table, error) {
	size, err := d.uint32()
	if err != nil {
		return nil, err
	}
	raw, err := d.take(int(size))
	if err != nil {
		return nil, err
	}

	table := make(Table)
	inner := &decoder{data: raw}
	for inner.off < len(raw) {
		key, err := inner.shortStr()
		if err != nil {
			return nil, fmt.Errorf("table key: %w", err)
		}
		value, err := inner.fieldValue()
		if err != nil {
			return nil, fmt.Errorf("table key %q: %w", key, err)
		}
		table[key] = value
	}
	return table, nil
}

func (d *decoder) array() ([]interface{}, error) {
	size, err := d.uint32()
	if err != nil {
		return nil, err
	}
	raw, err := d.take(int(size))
	if err != nil {
		return nil, err
	}

	values := []interface{}{}
	inner := &decoder{data: raw}
	for inner.off < len(raw) {
		value, err := inner.fieldValue()
		if err != nil {
			return nil, fmt.Errorf("array index %d: %w", len(values), err)
		}
		values = append(values, value)
	}
	return values, nil
}

func (d *decoder) fieldValue() (interface{}, error) {
	tag, err := d.uint8()
	if err != nil {
		return nil, err
	}

	switch tag {
	case fieldBoolean:
		b, err := d.uint8()
		return b != 0, err
	case fieldInt8:
		b, err := d.uint8()
		return int8(b), err
	case fieldUint8:
		return d.uint8()
	case fieldInt16:
		v, err := d.uint16()
		return int16(v), err
	case fieldUint16:
		return d.uint16()
	case fieldInt32:
		v, err := d.uint32()
		return int32(v), err
	case fieldUint32:
		return d.uint32()
	case fieldInt64:
		v, err := d.uint64()
		return int64(v), err
	case fieldFloat32:
		v, err := d.uint32()
		return math.Float32frombits(v), err
	case fieldFloat64:
		v, err := d.uint64()
		return math.Float64frombits(v), err
	case fieldDecimal:
		scale, err := d.uint8()
		if err != nil {
			return nil, err
		}
		v, err := d.uint32()
		return Decimal{Scale: scale, Value: int32(v)}, err
	case fieldLongStr:
		return d.longStr()
	case fieldBytes:
		size, err := d.uint32()
		if err != nil {
			return nil, err
		}
		raw, err := d.take(int(size))
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), raw...), nil
	case fieldTimestamp:
		return d.timestamp()
	case fieldArray:
		return d.array()
	case fieldTable:
		return d.table()
	case fieldVoid:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown field value type %q", tag)
	}
}
