package protocol

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"sync"
	"time"

	amqperr "github.com/maxpert/amqp-go-client/errors"
)

// Class IDs
const (
	ClassConnection = 10
	ClassChannel    = 20
	ClassExchange   = 40
	ClassQueue      = 50
	ClassBasic      = 60
	ClassConfirm    = 85
	ClassTx         = 90
)

// flagsPerWord is the number of property bits carried by one 16-bit flag
// word. Bit 0 of every word is the continuation flag.
const flagsPerWord = 15

// PropertyField is one optional property of a content class.
type PropertyField struct {
	Name string
	Type byte
}

// Basic class property names
const (
	PropContentType     = "content_type"
	PropContentEncoding = "content_encoding"
	PropHeaders         = "headers"
	PropDeliveryMode    = "delivery_mode"
	PropPriority        = "priority"
	PropCorrelationID   = "correlation_id"
	PropReplyTo         = "reply_to"
	PropExpiration      = "expiration"
	PropMessageID       = "message_id"
	PropTimestamp       = "timestamp"
	PropType            = "type"
	PropUserID          = "user_id"
	PropAppID           = "app_id"
	PropClusterID       = "cluster_id"
)

var basicPropertyFields = []PropertyField{
	{PropContentType, TypeShortStr},
	{PropContentEncoding, TypeShortStr},
	{PropHeaders, TypeTable},
	{PropDeliveryMode, TypeOctet},
	{PropPriority, TypeOctet},
	{PropCorrelationID, TypeShortStr},
	{PropReplyTo, TypeShortStr},
	{PropExpiration, TypeShortStr},
	{PropMessageID, TypeShortStr},
	{PropTimestamp, TypeTimestamp},
	{PropType, TypeShortStr},
	{PropUserID, TypeShortStr},
	{PropAppID, TypeShortStr},
	{PropClusterID, TypeShortStr},
}

var (
	propertyClassesMu sync.RWMutex
	propertyClasses   = map[uint16][]PropertyField{
		ClassBasic: basicPropertyFields,
	}
)

// RegisterPropertyClass declares the ordered property list of a content
// class. The order is the wire order and cannot change once registered.
func RegisterPropertyClass(classID uint16, fields []PropertyField) error {
	propertyClassesMu.Lock()
	defer propertyClassesMu.Unlock()

	if _, exists := propertyClasses[classID]; exists {
		return fmt.Errorf("property class %d already registered", classID)
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			return fmt.Errorf("property class %d: duplicate field %q", classID, f.Name)
		}
		seen[f.Name] = true
		switch f.Type {
		case TypeOctet, TypeShort, TypeLong, TypeLongLong, TypeBit,
			TypeShortStr, TypeLongStr, TypeTimestamp, TypeTable:
		default:
			return fmt.Errorf("property class %d: field %q has unknown type %q", classID, f.Name, f.Type)
		}
	}
	propertyClasses[classID] = append([]PropertyField(nil), fields...)
	return nil
}

func lookupPropertyClass(classID uint16) ([]PropertyField, bool) {
	propertyClassesMu.RLock()
	defer propertyClassesMu.RUnlock()
	fields, ok := propertyClasses[classID]
	return fields, ok
}

// Properties is the set of optional properties of a content header. A nil
// slot means the property is absent and is not transmitted.
type Properties struct {
	ClassID uint16
	fields  []PropertyField
	values  []interface{}
}

// NewProperties returns an empty property set for a registered class.
func NewProperties(classID uint16) (*Properties, error) {
	fields, ok := lookupPropertyClass(classID)
	if !ok {
		return nil, amqperr.NewCommandInvalid(fmt.Sprintf("no content class %d", classID), classID, 0)
	}
	return &Properties{
		ClassID: classID,
		fields:  fields,
		values:  make([]interface{}, len(fields)),
	}, nil
}

// NewBasicProperties returns an empty property set for the basic class.
func NewBasicProperties() *Properties {
	p, _ := NewProperties(ClassBasic)
	return p
}

// Fields returns the declared properties in wire order.
func (p *Properties) Fields() []PropertyField {
	return p.fields
}

func (p *Properties) index(name string) (int, bool) {
	for i, f := range p.fields {
		if f.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Get returns the value of a property and whether it is present.
func (p *Properties) Get(name string) (interface{}, bool) {
	i, ok := p.index(name)
	if !ok || p.values[i] == nil {
		return nil, false
	}
	return p.values[i], true
}

// Set assigns a property. A nil value unsets it.
func (p *Properties) Set(name string, value interface{}) error {
	i, ok := p.index(name)
	if !ok {
		return fmt.Errorf("class %d has no property %q", p.ClassID, name)
	}
	if value == nil {
		p.values[i] = nil
		return nil
	}

	kind := p.fields[i].Type
	switch v := value.(type) {
	case time.Time:
		if kind == TypeTimestamp {
			value = time.Unix(v.Unix(), 0).UTC()
		}
	case map[string]interface{}:
		if kind == TypeTable {
			value = Table(v)
		}
	case bool:
		if kind == TypeBit && !v {
			p.values[i] = nil
			return nil
		}
	}
	if err := checkKind(kind, value); err != nil {
		return fmt.Errorf("property %q: %w", name, err)
	}
	p.values[i] = value
	return nil
}

// Unset removes a property.
func (p *Properties) Unset(name string) {
	if i, ok := p.index(name); ok {
		p.values[i] = nil
	}
}

// Has reports whether a property is present.
func (p *Properties) Has(name string) bool {
	_, ok := p.Get(name)
	return ok
}

// Len returns the number of present properties.
func (p *Properties) Len() int {
	n := 0
	for _, v := range p.values {
		if v != nil {
			n++
		}
	}
	return n
}

// Clone returns a copy sharing no slots with p.
func (p *Properties) Clone() *Properties {
	return &Properties{
		ClassID: p.ClassID,
		fields:  p.fields,
		values:  append([]interface{}(nil), p.values...),
	}
}

// Equal compares class and property values.
func (p *Properties) Equal(other *Properties) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.ClassID != other.ClassID || len(p.values) != len(other.values) {
		return false
	}
	for i := range p.values {
		a, b := p.values[i], other.values[i]
		if ta, ok := a.(time.Time); ok {
			tb, ok := b.(time.Time)
			if !ok || !ta.Equal(tb) {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(a, b) {
			return false
		}
	}
	return true
}

func checkKind(kind byte, value interface{}) error {
	var ok bool
	switch kind {
	case TypeOctet:
		_, ok = value.(uint8)
	case TypeShort:
		_, ok = value.(uint16)
	case TypeLong:
		_, ok = value.(uint32)
	case TypeLongLong:
		_, ok = value.(uint64)
	case TypeBit:
		_, ok = value.(bool)
	case TypeShortStr:
		var s string
		if s, ok = value.(string); ok && len(s) > 255 {
			return fmt.Errorf("short string of %d bytes exceeds 255", len(s))
		}
	case TypeLongStr:
		_, ok = value.(string)
	case TypeTimestamp:
		_, ok = value.(time.Time)
	case TypeTable:
		_, ok = value.(Table)
	}
	if !ok {
		return typeMismatch(kind, value)
	}
	return nil
}

// flagWords returns the number of flag words the class always transmits.
func (p *Properties) flagWords() int {
	n := (len(p.fields) + flagsPerWord - 1) / flagsPerWord
	if n == 0 {
		return 1
	}
	return n
}

// Encode serializes the property flags followed by the present values.
// Flag words chain: every word but the last has bit 0 set, so classes with
// more than 15 properties round-trip through DecodeProperties.
func (p *Properties) Encode() ([]byte, error) {
	flags := make([]uint16, p.flagWords())
	spec := make([]byte, 0, len(p.fields))
	values := make([]interface{}, 0, len(p.fields))

	for i, f := range p.fields {
		v := p.values[i]
		if v == nil {
			continue
		}
		flags[i/flagsPerWord] |= 1 << (15 - uint(i%flagsPerWord))
		if f.Type == TypeBit {
			continue
		}
		spec = append(spec, f.Type)
		values = append(values, v)
	}
	for w := 0; w < len(flags)-1; w++ {
		flags[w] |= 1
	}

	buf := getBuffer()
	defer putBuffer(buf)

	var word [2]byte
	for _, w := range flags {
		binary.BigEndian.PutUint16(word[:], w)
		buf.Write(word[:])
	}
	if err := dumpTo(buf, string(spec), values); err != nil {
		return nil, fmt.Errorf("encode properties of class %d: %w", p.ClassID, err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// DecodeProperties reads chained flag words and the values they announce.
// It returns the property set and the number of bytes consumed.
func DecodeProperties(classID uint16, data []byte) (*Properties, int, error) {
	props, err := NewProperties(classID)
	if err != nil {
		return nil, 0, err
	}

	d := &decoder{data: data}
	var words []uint16
	for {
		w, err := d.uint16()
		if err != nil {
			return nil, d.off, fmt.Errorf("property flags of class %d: %w", classID, err)
		}
		words = append(words, w)
		if w&1 == 0 {
			break
		}
	}

	spec := make([]byte, 0, len(props.fields))
	slots := make([]int, 0, len(props.fields))
	for wi, w := range words {
		for bit := 0; bit < flagsPerWord; bit++ {
			if w&(1<<(15-uint(bit))) == 0 {
				continue
			}
			i := wi*flagsPerWord + bit
			if i >= len(props.fields) {
				return nil, d.off, amqperr.NewSyntaxError(fmt.Sprintf(
					"property flag %d set but class %d declares %d properties", i, classID, len(props.fields)))
			}
			if props.fields[i].Type == TypeBit {
				props.values[i] = true
				continue
			}
			spec = append(spec, props.fields[i].Type)
			slots = append(slots, i)
		}
	}

	values, err := d.load(string(spec))
	if err != nil {
		return nil, d.off, fmt.Errorf("properties of class %d: %w", classID, err)
	}
	for j, v := range values {
		props.values[slots[j]] = v
	}
	return props, d.off, nil
}

// Typed accessors for the basic class. They return the zero value when the
// property is absent.

func (p *Properties) str(name string) string {
	v, _ := p.Get(name)
	s, _ := v.(string)
	return s
}

func (p *Properties) octet(name string) uint8 {
	v, _ := p.Get(name)
	o, _ := v.(uint8)
	return o
}

func (p *Properties) ContentType() string     { return p.str(PropContentType) }
func (p *Properties) ContentEncoding() string { return p.str(PropContentEncoding) }
func (p *Properties) DeliveryMode() uint8     { return p.octet(PropDeliveryMode) }
func (p *Properties) Priority() uint8         { return p.octet(PropPriority) }
func (p *Properties) CorrelationID() string   { return p.str(PropCorrelationID) }
func (p *Properties) ReplyTo() string         { return p.str(PropReplyTo) }
func (p *Properties) Expiration() string      { return p.str(PropExpiration) }
func (p *Properties) MessageID() string       { return p.str(PropMessageID) }
func (p *Properties) Type() string            { return p.str(PropType) }
func (p *Properties) UserID() string          { return p.str(PropUserID) }
func (p *Properties) AppID() string           { return p.str(PropAppID) }

func (p *Properties) Headers() Table {
	v, _ := p.Get(PropHeaders)
	t, _ := v.(Table)
	return t
}

func (p *Properties) Timestamp() time.Time {
	v, _ := p.Get(PropTimestamp)
	t, _ := v.(time.Time)
	return t
}
