package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"

	amqperr "github.com/maxpert/amqp-go-client/errors"
)

// Method IDs for connection class
const (
	ConnectionStart     = 10
	ConnectionStartOK   = 11
	ConnectionSecure    = 20
	ConnectionSecureOK  = 21
	ConnectionTune      = 30
	ConnectionTuneOK    = 31
	ConnectionOpen      = 40
	ConnectionOpenOK    = 41
	ConnectionClose     = 50
	ConnectionCloseOK   = 51
	ConnectionBlocked   = 60
	ConnectionUnblocked = 61
)

// Method IDs for channel class
const (
	ChannelOpen    = 10
	ChannelOpenOK  = 11
	ChannelFlow    = 20
	ChannelFlowOK  = 21
	ChannelClose   = 40
	ChannelCloseOK = 41
)

// Method IDs for exchange class
const (
	ExchangeDeclare   = 10 // 40.10
	ExchangeDeclareOK = 11 // 40.11
	ExchangeDelete    = 20 // 40.20
	ExchangeDeleteOK  = 21 // 40.21
	ExchangeBind      = 30 // 40.30
	ExchangeBindOK    = 31 // 40.31
	ExchangeUnbind    = 40 // 40.40
	ExchangeUnbindOK  = 51 // 40.51
)

// Method IDs for queue class
const (
	QueueDeclare   = 10 // 50.10
	QueueDeclareOK = 11 // 50.11
	QueueBind      = 20 // 50.20
	QueueBindOK    = 21 // 50.21
	QueuePurge     = 30 // 50.30
	QueuePurgeOK   = 31 // 50.31
	QueueDelete    = 40 // 50.40
	QueueDeleteOK  = 41 // 50.41
	QueueUnbind    = 50 // 50.50
	QueueUnbindOK  = 51 // 50.51
)

// Method IDs for basic class
const (
	BasicQos          = 10  // 60.10
	BasicQosOK        = 11  // 60.11
	BasicConsume      = 20  // 60.20
	BasicConsumeOK    = 21  // 60.21
	BasicCancel       = 30  // 60.30
	BasicCancelOK     = 31  // 60.31
	BasicPublish      = 40  // 60.40
	BasicReturn       = 50  // 60.50
	BasicDeliver      = 60  // 60.60
	BasicGet          = 70  // 60.70
	BasicGetOK        = 71  // 60.71
	BasicGetEmpty     = 72  // 60.72
	BasicAck          = 80  // 60.80
	BasicReject       = 90  // 60.90
	BasicRecoverAsync = 100 // 60.100
	BasicRecover      = 110 // 60.110
	BasicRecoverOK    = 111 // 60.111
	BasicNack         = 120 // 60.120
)

// Method IDs for confirm class
const (
	ConfirmSelect   = 10 // 85.10
	ConfirmSelectOK = 11 // 85.11
)

// Method IDs for tx class
const (
	TxSelect     = 10 // 90.10
	TxSelectOK   = 11 // 90.11
	TxCommit     = 20 // 90.20
	TxCommitOK   = 21 // 90.21
	TxRollback   = 30 // 90.30
	TxRollbackOK = 31 // 90.31
)

// Method is one AMQP method. Arguments are encoded with the primitive codec
// using a fixed spec string per method.
type Method interface {
	ClassID() uint16
	MethodID() uint16
	Serialize() ([]byte, error)
	Deserialize(data []byte) error
}

// MethodName returns the dotted AMQP name of m, e.g. "basic.deliver".
func MethodName(m Method) string {
	return amqperr.MethodName(m.ClassID(), m.MethodID())
}

// HasContent reports whether m is followed by a content header and body.
func HasContent(m Method) bool {
	switch m.(type) {
	case *BasicPublishMethod, *BasicReturnMethod, *BasicDeliverMethod, *BasicGetOKMethod:
		return true
	}
	return false
}

func loadArgs(m Method, spec string, data []byte) ([]interface{}, error) {
	values, _, err := Load(spec, data)
	if err != nil {
		return nil, amqperr.NewProtocolError(amqperr.SyntaxError,
			fmt.Sprintf("malformed %s: %v", MethodName(m), err), FrameMethod, m.ClassID(), m.MethodID())
	}
	return values, nil
}

// noArgs implements Serialize and Deserialize for methods without arguments.
type noArgs struct{}

func (noArgs) Serialize() ([]byte, error)    { return nil, nil }
func (noArgs) Deserialize(data []byte) error { return nil }

// Connection class

// ConnectionStartMethod represents the connection.start method
type ConnectionStartMethod struct {
	VersionMajor     byte
	VersionMinor     byte
	ServerProperties Table
	Mechanisms       string
	Locales          string
}

func (*ConnectionStartMethod) ClassID() uint16  { return ClassConnection }
func (*ConnectionStartMethod) MethodID() uint16 { return ConnectionStart }

func (m *ConnectionStartMethod) Serialize() ([]byte, error) {
	return Dump("ooFXX", m.VersionMajor, m.VersionMinor, m.ServerProperties, m.Mechanisms, m.Locales)
}

func (m *ConnectionStartMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "ooFXX", data)
	if err != nil {
		return err
	}
	m.VersionMajor, m.VersionMinor = v[0].(uint8), v[1].(uint8)
	m.ServerProperties = v[2].(Table)
	m.Mechanisms, m.Locales = v[3].(string), v[4].(string)
	return nil
}

// MechanismList splits the space-separated mechanisms offered by the server.
func (m *ConnectionStartMethod) MechanismList() []string {
	return strings.Fields(m.Mechanisms)
}

// LocaleList splits the space-separated locales offered by the server.
func (m *ConnectionStartMethod) LocaleList() []string {
	return strings.Fields(m.Locales)
}

// ConnectionStartOKMethod represents the connection.start-ok method
type ConnectionStartOKMethod struct {
	ClientProperties Table
	Mechanism        string
	Response         []byte
	Locale           string
}

func (*ConnectionStartOKMethod) ClassID() uint16  { return ClassConnection }
func (*ConnectionStartOKMethod) MethodID() uint16 { return ConnectionStartOK }

func (m *ConnectionStartOKMethod) Serialize() ([]byte, error) {
	return Dump("FSXS", m.ClientProperties, m.Mechanism, string(m.Response), m.Locale)
}

func (m *ConnectionStartOKMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "FSXS", data)
	if err != nil {
		return err
	}
	m.ClientProperties = v[0].(Table)
	m.Mechanism = v[1].(string)
	m.Response = []byte(v[2].(string))
	m.Locale = v[3].(string)
	return nil
}

// ConnectionSecureMethod carries a SASL challenge
type ConnectionSecureMethod struct {
	Challenge []byte
}

func (*ConnectionSecureMethod) ClassID() uint16  { return ClassConnection }
func (*ConnectionSecureMethod) MethodID() uint16 { return ConnectionSecure }

func (m *ConnectionSecureMethod) Serialize() ([]byte, error) {
	return Dump("X", string(m.Challenge))
}

func (m *ConnectionSecureMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "X", data)
	if err != nil {
		return err
	}
	m.Challenge = []byte(v[0].(string))
	return nil
}

// ConnectionSecureOKMethod carries the response to a SASL challenge
type ConnectionSecureOKMethod struct {
	Response []byte
}

func (*ConnectionSecureOKMethod) ClassID() uint16  { return ClassConnection }
func (*ConnectionSecureOKMethod) MethodID() uint16 { return ConnectionSecureOK }

func (m *ConnectionSecureOKMethod) Serialize() ([]byte, error) {
	return Dump("X", string(m.Response))
}

func (m *ConnectionSecureOKMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "X", data)
	if err != nil {
		return err
	}
	m.Response = []byte(v[0].(string))
	return nil
}

// ConnectionTuneMethod represents the connection.tune method
type ConnectionTuneMethod struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (*ConnectionTuneMethod) ClassID() uint16  { return ClassConnection }
func (*ConnectionTuneMethod) MethodID() uint16 { return ConnectionTune }

func (m *ConnectionTuneMethod) Serialize() ([]byte, error) {
	return Dump("sls", m.ChannelMax, m.FrameMax, m.Heartbeat)
}

func (m *ConnectionTuneMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "sls", data)
	if err != nil {
		return err
	}
	m.ChannelMax, m.FrameMax, m.Heartbeat = v[0].(uint16), v[1].(uint32), v[2].(uint16)
	return nil
}

// ConnectionTuneOKMethod represents the connection.tune-ok method
type ConnectionTuneOKMethod struct {
	ChannelMax uint16
	FrameMax   uint32
	Heartbeat  uint16
}

func (*ConnectionTuneOKMethod) ClassID() uint16  { return ClassConnection }
func (*ConnectionTuneOKMethod) MethodID() uint16 { return ConnectionTuneOK }

func (m *ConnectionTuneOKMethod) Serialize() ([]byte, error) {
	return Dump("sls", m.ChannelMax, m.FrameMax, m.Heartbeat)
}

func (m *ConnectionTuneOKMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "sls", data)
	if err != nil {
		return err
	}
	m.ChannelMax, m.FrameMax, m.Heartbeat = v[0].(uint16), v[1].(uint32), v[2].(uint16)
	return nil
}

// ConnectionOpenMethod represents the connection.open method
type ConnectionOpenMethod struct {
	VirtualHost string
}

func (*ConnectionOpenMethod) ClassID() uint16  { return ClassConnection }
func (*ConnectionOpenMethod) MethodID() uint16 { return ConnectionOpen }

func (m *ConnectionOpenMethod) Serialize() ([]byte, error) {
	return Dump("SSb", m.VirtualHost, "", false)
}

func (m *ConnectionOpenMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "SSb", data)
	if err != nil {
		return err
	}
	m.VirtualHost = v[0].(string)
	return nil
}

// ConnectionOpenOKMethod represents the connection.open-ok method
type ConnectionOpenOKMethod struct{}

func (*ConnectionOpenOKMethod) ClassID() uint16  { return ClassConnection }
func (*ConnectionOpenOKMethod) MethodID() uint16 { return ConnectionOpenOK }

func (m *ConnectionOpenOKMethod) Serialize() ([]byte, error) {
	return Dump("S", "")
}

func (m *ConnectionOpenOKMethod) Deserialize(data []byte) error {
	_, err := loadArgs(m, "S", data)
	return err
}

// ConnectionCloseMethod represents the connection.close method
type ConnectionCloseMethod struct {
	ReplyCode uint16
	ReplyText string
	ClassId   uint16
	MethodId  uint16
}

func (*ConnectionCloseMethod) ClassID() uint16  { return ClassConnection }
func (*ConnectionCloseMethod) MethodID() uint16 { return ConnectionClose }

func (m *ConnectionCloseMethod) Serialize() ([]byte, error) {
	return Dump("sSss", m.ReplyCode, m.ReplyText, m.ClassId, m.MethodId)
}

func (m *ConnectionCloseMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "sSss", data)
	if err != nil {
		return err
	}
	m.ReplyCode, m.ReplyText = v[0].(uint16), v[1].(string)
	m.ClassId, m.MethodId = v[2].(uint16), v[3].(uint16)
	return nil
}

// ConnectionCloseOKMethod represents the connection.close-ok method
type ConnectionCloseOKMethod struct{ noArgs }

func (*ConnectionCloseOKMethod) ClassID() uint16  { return ClassConnection }
func (*ConnectionCloseOKMethod) MethodID() uint16 { return ConnectionCloseOK }

// ConnectionBlockedMethod is sent by RabbitMQ when it stops reading from
// publishers because of a resource alarm.
type ConnectionBlockedMethod struct {
	Reason string
}

func (*ConnectionBlockedMethod) ClassID() uint16  { return ClassConnection }
func (*ConnectionBlockedMethod) MethodID() uint16 { return ConnectionBlocked }

func (m *ConnectionBlockedMethod) Serialize() ([]byte, error) {
	return Dump("S", m.Reason)
}

func (m *ConnectionBlockedMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "S", data)
	if err != nil {
		return err
	}
	m.Reason = v[0].(string)
	return nil
}

// ConnectionUnblockedMethod lifts a previous connection.blocked
type ConnectionUnblockedMethod struct{ noArgs }

func (*ConnectionUnblockedMethod) ClassID() uint16  { return ClassConnection }
func (*ConnectionUnblockedMethod) MethodID() uint16 { return ConnectionUnblocked }

// Channel class

// ChannelOpenMethod represents the channel.open method
type ChannelOpenMethod struct{}

func (*ChannelOpenMethod) ClassID() uint16  { return ClassChannel }
func (*ChannelOpenMethod) MethodID() uint16 { return ChannelOpen }

func (m *ChannelOpenMethod) Serialize() ([]byte, error) {
	return Dump("S", "")
}

func (m *ChannelOpenMethod) Deserialize(data []byte) error {
	_, err := loadArgs(m, "S", data)
	return err
}

// ChannelOpenOKMethod represents the channel.open-ok method
type ChannelOpenOKMethod struct{}

func (*ChannelOpenOKMethod) ClassID() uint16  { return ClassChannel }
func (*ChannelOpenOKMethod) MethodID() uint16 { return ChannelOpenOK }

func (m *ChannelOpenOKMethod) Serialize() ([]byte, error) {
	return Dump("X", "")
}

func (m *ChannelOpenOKMethod) Deserialize(data []byte) error {
	_, err := loadArgs(m, "X", data)
	return err
}

// ChannelFlowMethod represents the channel.flow method
type ChannelFlowMethod struct {
	Active bool
}

func (*ChannelFlowMethod) ClassID() uint16  { return ClassChannel }
func (*ChannelFlowMethod) MethodID() uint16 { return ChannelFlow }

func (m *ChannelFlowMethod) Serialize() ([]byte, error) {
	return Dump("b", m.Active)
}

func (m *ChannelFlowMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "b", data)
	if err != nil {
		return err
	}
	m.Active = v[0].(bool)
	return nil
}

// ChannelFlowOKMethod represents the channel.flow-ok method
type ChannelFlowOKMethod struct {
	Active bool
}

func (*ChannelFlowOKMethod) ClassID() uint16  { return ClassChannel }
func (*ChannelFlowOKMethod) MethodID() uint16 { return ChannelFlowOK }

func (m *ChannelFlowOKMethod) Serialize() ([]byte, error) {
	return Dump("b", m.Active)
}

func (m *ChannelFlowOKMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "b", data)
	if err != nil {
		return err
	}
	m.Active = v[0].(bool)
	return nil
}

// ChannelCloseMethod represents the channel.close method
type ChannelCloseMethod struct {
	ReplyCode uint16
	ReplyText string
	ClassId   uint16
	MethodId  uint16
}

func (*ChannelCloseMethod) ClassID() uint16  { return ClassChannel }
func (*ChannelCloseMethod) MethodID() uint16 { return ChannelClose }

func (m *ChannelCloseMethod) Serialize() ([]byte, error) {
	return Dump("sSss", m.ReplyCode, m.ReplyText, m.ClassId, m.MethodId)
}

func (m *ChannelCloseMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "sSss", data)
	if err != nil {
		return err
	}
	m.ReplyCode, m.ReplyText = v[0].(uint16), v[1].(string)
	m.ClassId, m.MethodId = v[2].(uint16), v[3].(uint16)
	return nil
}

// ChannelCloseOKMethod represents the channel.close-ok method
type ChannelCloseOKMethod struct{ noArgs }

func (*ChannelCloseOKMethod) ClassID() uint16  { return ClassChannel }
func (*ChannelCloseOKMethod) MethodID() uint16 { return ChannelCloseOK }

// Exchange class

// ExchangeDeclareMethod represents the exchange.declare method
type ExchangeDeclareMethod struct {
	Exchange   string
	Type       string
	Passive    bool
	Durable    bool
	AutoDelete bool
	Internal   bool
	NoWait     bool
	Arguments  Table
}

func (*ExchangeDeclareMethod) ClassID() uint16  { return ClassExchange }
func (*ExchangeDeclareMethod) MethodID() uint16 { return ExchangeDeclare }

func (m *ExchangeDeclareMethod) Serialize() ([]byte, error) {
	return Dump("sSSbbbbbF", uint16(0), m.Exchange, m.Type,
		m.Passive, m.Durable, m.AutoDelete, m.Internal, m.NoWait, m.Arguments)
}

func (m *ExchangeDeclareMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "sSSbbbbbF", data)
	if err != nil {
		return err
	}
	m.Exchange, m.Type = v[1].(string), v[2].(string)
	m.Passive, m.Durable, m.AutoDelete = v[3].(bool), v[4].(bool), v[5].(bool)
	m.Internal, m.NoWait = v[6].(bool), v[7].(bool)
	m.Arguments = v[8].(Table)
	return nil
}

// ExchangeDeclareOKMethod represents the exchange.declare-ok method
type ExchangeDeclareOKMethod struct{ noArgs }

func (*ExchangeDeclareOKMethod) ClassID() uint16  { return ClassExchange }
func (*ExchangeDeclareOKMethod) MethodID() uint16 { return ExchangeDeclareOK }

// ExchangeDeleteMethod represents the exchange.delete method
type ExchangeDeleteMethod struct {
	Exchange string
	IfUnused bool
	NoWait   bool
}

func (*ExchangeDeleteMethod) ClassID() uint16  { return ClassExchange }
func (*ExchangeDeleteMethod) MethodID() uint16 { return ExchangeDelete }

func (m *ExchangeDeleteMethod) Serialize() ([]byte, error) {
	return Dump("sSbb", uint16(0), m.Exchange, m.IfUnused, m.NoWait)
}

func (m *ExchangeDeleteMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "sSbb", data)
	if err != nil {
		return err
	}
	m.Exchange, m.IfUnused, m.NoWait = v[1].(string), v[2].(bool), v[3].(bool)
	return nil
}

// ExchangeDeleteOKMethod represents the exchange.delete-ok method
type ExchangeDeleteOKMethod struct{ noArgs }

func (*ExchangeDeleteOKMethod) ClassID() uint16  { return ClassExchange }
func (*ExchangeDeleteOKMethod) MethodID() uint16 { return ExchangeDeleteOK }

// ExchangeBindMethod represents the exchange.bind method
type ExchangeBindMethod struct {
	Destination string
	Source      string
	RoutingKey  string
	NoWait      bool
	Arguments   Table
}

func (*ExchangeBindMethod) ClassID() uint16  { return ClassExchange }
func (*ExchangeBindMethod) MethodID() uint16 { return ExchangeBind }

func (m *ExchangeBindMethod) Serialize() ([]byte, error) {
	return Dump("sSSSbF", uint16(0), m.Destination, m.Source, m.RoutingKey, m.NoWait, m.Arguments)
}

func (m *ExchangeBindMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "sSSSbF", data)
	if err != nil {
		return err
	}
	m.Destination, m.Source, m.RoutingKey = v[1].(string), v[2].(string), v[3].(string)
	m.NoWait, m.Arguments = v[4].(bool), v[5].(Table)
	return nil
}

// ExchangeBindOKMethod represents the exchange.bind-ok method
type ExchangeBindOKMethod struct{ noArgs }

func (*ExchangeBindOKMethod) ClassID() uint16  { return ClassExchange }
func (*ExchangeBindOKMethod) MethodID() uint16 { return ExchangeBindOK }

// ExchangeUnbindMethod represents the exchange.unbind method
type ExchangeUnbindMethod struct {
	Destination string
	Source      string
	RoutingKey  string
	NoWait      bool
	Arguments   Table
}

func (*ExchangeUnbindMethod) ClassID() uint16  { return ClassExchange }
func (*ExchangeUnbindMethod) MethodID() uint16 { return ExchangeUnbind }

func (m *ExchangeUnbindMethod) Serialize() ([]byte, error) {
	return Dump("sSSSbF", uint16(0), m.Destination, m.Source, m.RoutingKey, m.NoWait, m.Arguments)
}

func (m *ExchangeUnbindMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "sSSSbF", data)
	if err != nil {
		return err
	}
	m.Destination, m.Source, m.RoutingKey = v[1].(string), v[2].(string), v[3].(string)
	m.NoWait, m.Arguments = v[4].(bool), v[5].(Table)
	return nil
}

// ExchangeUnbindOKMethod represents the exchange.unbind-ok method
type ExchangeUnbindOKMethod struct{ noArgs }

func (*ExchangeUnbindOKMethod) ClassID() uint16  { return ClassExchange }
func (*ExchangeUnbindOKMethod) MethodID() uint16 { return ExchangeUnbindOK }

// Queue class

// QueueDeclareMethod represents the queue.declare method
type QueueDeclareMethod struct {
	Queue      string
	Passive    bool
	Durable    bool
	Exclusive  bool
	AutoDelete bool
	NoWait     bool
	Arguments  Table
}

func (*QueueDeclareMethod) ClassID() uint16  { return ClassQueue }
func (*QueueDeclareMethod) MethodID() uint16 { return QueueDeclare }

func (m *QueueDeclareMethod) Serialize() ([]byte, error) {
	return Dump("sSbbbbbF", uint16(0), m.Queue,
		m.Passive, m.Durable, m.Exclusive, m.AutoDelete, m.NoWait, m.Arguments)
}

func (m *QueueDeclareMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "sSbbbbbF", data)
	if err != nil {
		return err
	}
	m.Queue = v[1].(string)
	m.Passive, m.Durable, m.Exclusive = v[2].(bool), v[3].(bool), v[4].(bool)
	m.AutoDelete, m.NoWait = v[5].(bool), v[6].(bool)
	m.Arguments = v[7].(Table)
	return nil
}

// QueueDeclareOKMethod represents the queue.declare-ok method
type QueueDeclareOKMethod struct {
	Queue         string
	MessageCount  uint32
	ConsumerCount uint32
}

func (*QueueDeclareOKMethod) ClassID() uint16  { return ClassQueue }
func (*QueueDeclareOKMethod) MethodID() uint16 { return QueueDeclareOK }

func (m *QueueDeclareOKMethod) Serialize() ([]byte, error) {
	return Dump("Sll", m.Queue, m.MessageCount, m.ConsumerCount)
}

func (m *QueueDeclareOKMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "Sll", data)
	if err != nil {
		return err
	}
	m.Queue, m.MessageCount, m.ConsumerCount = v[0].(string), v[1].(uint32), v[2].(uint32)
	return nil
}

// QueueBindMethod represents the queue.bind method
type QueueBindMethod struct {
	Queue      string
	Exchange   string
	RoutingKey string
	NoWait     bool
	Arguments  Table
}

func (*QueueBindMethod) ClassID() uint16  { return ClassQueue }
func (*QueueBindMethod) MethodID() uint16 { return QueueBind }

func (m *QueueBindMethod) Serialize() ([]byte, error) {
	return Dump("sSSSbF", uint16(0), m.Queue, m.Exchange, m.RoutingKey, m.NoWait, m.Arguments)
}

func (m *QueueBindMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "sSSSbF", data)
	if err != nil {
		return err
	}
	m.Queue, m.Exchange, m.RoutingKey = v[1].(string), v[2].(string), v[3].(string)
	m.NoWait, m.Arguments = v[4].(bool), v[5].(Table)
	return nil
}

// QueueBindOKMethod represents the queue.bind-ok method
type QueueBindOKMethod struct{ noArgs }

func (*QueueBindOKMethod) ClassID() uint16  { return ClassQueue }
func (*QueueBindOKMethod) MethodID() uint16 { return QueueBindOK }

// QueuePurgeMethod represents the queue.purge method
type QueuePurgeMethod struct {
	Queue  string
	NoWait bool
}

func (*QueuePurgeMethod) ClassID() uint16  { return ClassQueue }
func (*QueuePurgeMethod) MethodID() uint16 { return QueuePurge }

func (m *QueuePurgeMethod) Serialize() ([]byte, error) {
	return Dump("sSb", uint16(0), m.Queue, m.NoWait)
}

func (m *QueuePurgeMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "sSb", data)
	if err != nil {
		return err
	}
	m.Queue, m.NoWait = v[1].(string), v[2].(bool)
	return nil
}

// QueuePurgeOKMethod represents the queue.purge-ok method
type QueuePurgeOKMethod struct {
	MessageCount uint32
}

func (*QueuePurgeOKMethod) ClassID() uint16  { return ClassQueue }
func (*QueuePurgeOKMethod) MethodID() uint16 { return QueuePurgeOK }

func (m *QueuePurgeOKMethod) Serialize() ([]byte, error) {
	return Dump("l", m.MessageCount)
}

func (m *QueuePurgeOKMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "l", data)
	if err != nil {
		return err
	}
	m.MessageCount = v[0].(uint32)
	return nil
}

// QueueDeleteMethod represents the queue.delete method
type QueueDeleteMethod struct {
	Queue    string
	IfUnused bool
	IfEmpty  bool
	NoWait   bool
}

func (*QueueDeleteMethod) ClassID() uint16  { return ClassQueue }
func (*QueueDeleteMethod) MethodID() uint16 { return QueueDelete }

func (m *QueueDeleteMethod) Serialize() ([]byte, error) {
	return Dump("sSbbb", uint16(0), m.Queue, m.IfUnused, m.IfEmpty, m.NoWait)
}

func (m *QueueDeleteMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "sSbbb", data)
	if err != nil {
		return err
	}
	m.Queue = v[1].(string)
	m.IfUnused, m.IfEmpty, m.NoWait = v[2].(bool), v[3].(bool), v[4].(bool)
	return nil
}

// QueueDeleteOKMethod represents the queue.delete-ok method
type QueueDeleteOKMethod struct {
	MessageCount uint32
}

func (*QueueDeleteOKMethod) ClassID() uint16  { return ClassQueue }
func (*QueueDeleteOKMethod) MethodID() uint16 { return QueueDeleteOK }

func (m *QueueDeleteOKMethod) Serialize() ([]byte, error) {
	return Dump("l", m.MessageCount)
}

func (m *QueueDeleteOKMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "l", data)
	if err != nil {
		return err
	}
	m.MessageCount = v[0].(uint32)
	return nil
}

// QueueUnbindMethod represents the queue.unbind method
type QueueUnbindMethod struct {
	Queue      string
	Exchange   string
	RoutingKey string
	Arguments  Table
}

func (*QueueUnbindMethod) ClassID() uint16  { return ClassQueue }
func (*QueueUnbindMethod) MethodID() uint16 { return QueueUnbind }

func (m *QueueUnbindMethod) Serialize() ([]byte, error) {
	return Dump("sSSSF", uint16(0), m.Queue, m.Exchange, m.RoutingKey, m.Arguments)
}

func (m *QueueUnbindMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "sSSSF", data)
	if err != nil {
		return err
	}
	m.Queue, m.Exchange, m.RoutingKey = v[1].(string), v[2].(string), v[3].(string)
	m.Arguments = v[4].(Table)
	return nil
}

// QueueUnbindOKMethod represents the queue.unbind-ok method
type QueueUnbindOKMethod struct{ noArgs }

func (*QueueUnbindOKMethod) ClassID() uint16  { return ClassQueue }
func (*QueueUnbindOKMethod) MethodID() uint16 { return QueueUnbindOK }

// Basic class

// BasicQosMethod represents the basic.qos method
type BasicQosMethod struct {
	PrefetchSize  uint32
	PrefetchCount uint16
	Global        bool
}

func (*BasicQosMethod) ClassID() uint16  { return ClassBasic }
func (*BasicQosMethod) MethodID() uint16 { return BasicQos }

func (m *BasicQosMethod) Serialize() ([]byte, error) {
	return Dump("lsb", m.PrefetchSize, m.PrefetchCount, m.Global)
}

func (m *BasicQosMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "lsb", data)
	if err != nil {
		return err
	}
	m.PrefetchSize, m.PrefetchCount, m.Global = v[0].(uint32), v[1].(uint16), v[2].(bool)
	return nil
}

// BasicQosOKMethod represents the basic.qos-ok method
type BasicQosOKMethod struct{ noArgs }

func (*BasicQosOKMethod) ClassID() uint16  { return ClassBasic }
func (*BasicQosOKMethod) MethodID() uint16 { return BasicQosOK }

// BasicConsumeMethod represents the basic.consume method
type BasicConsumeMethod struct {
	Queue       string
	ConsumerTag string
	NoLocal     bool
	NoAck       bool
	Exclusive   bool
	NoWait      bool
	Arguments   Table
}

func (*BasicConsumeMethod) ClassID() uint16  { return ClassBasic }
func (*BasicConsumeMethod) MethodID() uint16 { return BasicConsume }

func (m *BasicConsumeMethod) Serialize() ([]byte, error) {
	return Dump("sSSbbbbF", uint16(0), m.Queue, m.ConsumerTag,
		m.NoLocal, m.NoAck, m.Exclusive, m.NoWait, m.Arguments)
}

func (m *BasicConsumeMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "sSSbbbbF", data)
	if err != nil {
		return err
	}
	m.Queue, m.ConsumerTag = v[1].(string), v[2].(string)
	m.NoLocal, m.NoAck, m.Exclusive, m.NoWait = v[3].(bool), v[4].(bool), v[5].(bool), v[6].(bool)
	m.Arguments = v[7].(Table)
	return nil
}

// BasicConsumeOKMethod represents the basic.consume-ok method
type BasicConsumeOKMethod struct {
	ConsumerTag string
}

func (*BasicConsumeOKMethod) ClassID() uint16  { return ClassBasic }
func (*BasicConsumeOKMethod) MethodID() uint16 { return BasicConsumeOK }

func (m *BasicConsumeOKMethod) Serialize() ([]byte, error) {
	return Dump("S", m.ConsumerTag)
}

func (m *BasicConsumeOKMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "S", data)
	if err != nil {
		return err
	}
	m.ConsumerTag = v[0].(string)
	return nil
}

// BasicCancelMethod represents the basic.cancel method. RabbitMQ also sends
// it to the client when a consumed queue is deleted.
type BasicCancelMethod struct {
	ConsumerTag string
	NoWait      bool
}

func (*BasicCancelMethod) ClassID() uint16  { return ClassBasic }
func (*BasicCancelMethod) MethodID() uint16 { return BasicCancel }

func (m *BasicCancelMethod) Serialize() ([]byte, error) {
	return Dump("Sb", m.ConsumerTag, m.NoWait)
}

func (m *BasicCancelMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "Sb", data)
	if err != nil {
		return err
	}
	m.ConsumerTag, m.NoWait = v[0].(string), v[1].(bool)
	return nil
}

// BasicCancelOKMethod represents the basic.cancel-ok method
type BasicCancelOKMethod struct {
	ConsumerTag string
}

func (*BasicCancelOKMethod) ClassID() uint16  { return ClassBasic }
func (*BasicCancelOKMethod) MethodID() uint16 { return BasicCancelOK }

func (m *BasicCancelOKMethod) Serialize() ([]byte, error) {
	return Dump("S", m.ConsumerTag)
}

func (m *BasicCancelOKMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "S", data)
	if err != nil {
		return err
	}
	m.ConsumerTag = v[0].(string)
	return nil
}

// BasicPublishMethod represents the basic.publish method
type BasicPublishMethod struct {
	Exchange   string
	RoutingKey string
	Mandatory  bool
	Immediate  bool
}

func (*BasicPublishMethod) ClassID() uint16  { return ClassBasic }
func (*BasicPublishMethod) MethodID() uint16 { return BasicPublish }

func (m *BasicPublishMethod) Serialize() ([]byte, error) {
	return Dump("sSSbb", uint16(0), m.Exchange, m.RoutingKey, m.Mandatory, m.Immediate)
}

func (m *BasicPublishMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "sSSbb", data)
	if err != nil {
		return err
	}
	m.Exchange, m.RoutingKey = v[1].(string), v[2].(string)
	m.Mandatory, m.Immediate = v[3].(bool), v[4].(bool)
	return nil
}

// BasicReturnMethod represents the basic.return method
type BasicReturnMethod struct {
	ReplyCode  uint16
	ReplyText  string
	Exchange   string
	RoutingKey string
}

func (*BasicReturnMethod) ClassID() uint16  { return ClassBasic }
func (*BasicReturnMethod) MethodID() uint16 { return BasicReturn }

func (m *BasicReturnMethod) Serialize() ([]byte, error) {
	return Dump("sSSS", m.ReplyCode, m.ReplyText, m.Exchange, m.RoutingKey)
}

func (m *BasicReturnMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "sSSS", data)
	if err != nil {
		return err
	}
	m.ReplyCode, m.ReplyText = v[0].(uint16), v[1].(string)
	m.Exchange, m.RoutingKey = v[2].(string), v[3].(string)
	return nil
}

// BasicDeliverMethod represents the basic.deliver method
type BasicDeliverMethod struct {
	ConsumerTag string
	DeliveryTag uint64
	Redelivered bool
	Exchange    string
	RoutingKey  string
}

func (*BasicDeliverMethod) ClassID() uint16  { return ClassBasic }
func (*BasicDeliverMethod) MethodID() uint16 { return BasicDeliver }

func (m *BasicDeliverMethod) Serialize() ([]byte, error) {
	return Dump("SLbSS", m.ConsumerTag, m.DeliveryTag, m.Redelivered, m.Exchange, m.RoutingKey)
}

func (m *BasicDeliverMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "SLbSS", data)
	if err != nil {
		return err
	}
	m.ConsumerTag, m.DeliveryTag, m.Redelivered = v[0].(string), v[1].(uint64), v[2].(bool)
	m.Exchange, m.RoutingKey = v[3].(string), v[4].(string)
	return nil
}

// BasicGetMethod represents the basic.get method
type BasicGetMethod struct {
	Queue string
	NoAck bool
}

func (*BasicGetMethod) ClassID() uint16  { return ClassBasic }
func (*BasicGetMethod) MethodID() uint16 { return BasicGet }

func (m *BasicGetMethod) Serialize() ([]byte, error) {
	return Dump("sSb", uint16(0), m.Queue, m.NoAck)
}

func (m *BasicGetMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "sSb", data)
	if err != nil {
		return err
	}
	m.Queue, m.NoAck = v[1].(string), v[2].(bool)
	return nil
}

// BasicGetOKMethod represents the basic.get-ok method
type BasicGetOKMethod struct {
	DeliveryTag  uint64
	Redelivered  bool
	Exchange     string
	RoutingKey   string
	MessageCount uint32
}

func (*BasicGetOKMethod) ClassID() uint16  { return ClassBasic }
func (*BasicGetOKMethod) MethodID() uint16 { return BasicGetOK }

func (m *BasicGetOKMethod) Serialize() ([]byte, error) {
	return Dump("LbSSl", m.DeliveryTag, m.Redelivered, m.Exchange, m.RoutingKey, m.MessageCount)
}

func (m *BasicGetOKMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "LbSSl", data)
	if err != nil {
		return err
	}
	m.DeliveryTag, m.Redelivered = v[0].(uint64), v[1].(bool)
	m.Exchange, m.RoutingKey, m.MessageCount = v[2].(string), v[3].(string), v[4].(uint32)
	return nil
}

// BasicGetEmptyMethod represents the basic.get-empty method
type BasicGetEmptyMethod struct{}

func (*BasicGetEmptyMethod) ClassID() uint16  { return ClassBasic }
func (*BasicGetEmptyMethod) MethodID() uint16 { return BasicGetEmpty }

func (m *BasicGetEmptyMethod) Serialize() ([]byte, error) {
	return Dump("S", "")
}

func (m *BasicGetEmptyMethod) Deserialize(data []byte) error {
	_, err := loadArgs(m, "S", data)
	return err
}

// BasicAckMethod represents the basic.ack method, sent by either peer
type BasicAckMethod struct {
	DeliveryTag uint64
	Multiple    bool
}

func (*BasicAckMethod) ClassID() uint16  { return ClassBasic }
func (*BasicAckMethod) MethodID() uint16 { return BasicAck }

func (m *BasicAckMethod) Serialize() ([]byte, error) {
	return Dump("Lb", m.DeliveryTag, m.Multiple)
}

func (m *BasicAckMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "Lb", data)
	if err != nil {
		return err
	}
	m.DeliveryTag, m.Multiple = v[0].(uint64), v[1].(bool)
	return nil
}

// BasicRejectMethod represents the basic.reject method
type BasicRejectMethod struct {
	DeliveryTag uint64
	Requeue     bool
}

func (*BasicRejectMethod) ClassID() uint16  { return ClassBasic }
func (*BasicRejectMethod) MethodID() uint16 { return BasicReject }

func (m *BasicRejectMethod) Serialize() ([]byte, error) {
	return Dump("Lb", m.DeliveryTag, m.Requeue)
}

func (m *BasicRejectMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "Lb", data)
	if err != nil {
		return err
	}
	m.DeliveryTag, m.Requeue = v[0].(uint64), v[1].(bool)
	return nil
}

// BasicRecoverAsyncMethod represents the deprecated basic.recover-async method
type BasicRecoverAsyncMethod struct {
	Requeue bool
}

func (*BasicRecoverAsyncMethod) ClassID() uint16  { return ClassBasic }
func (*BasicRecoverAsyncMethod) MethodID() uint16 { return BasicRecoverAsync }

func (m *BasicRecoverAsyncMethod) Serialize() ([]byte, error) {
	return Dump("b", m.Requeue)
}

func (m *BasicRecoverAsyncMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "b", data)
	if err != nil {
		return err
	}
	m.Requeue = v[0].(bool)
	return nil
}

// BasicRecoverMethod represents the basic.recover method
type BasicRecoverMethod struct {
	Requeue bool
}

func (*BasicRecoverMethod) ClassID() uint16  { return ClassBasic }
func (*BasicRecoverMethod) MethodID() uint16 { return BasicRecover }

func (m *BasicRecoverMethod) Serialize() ([]byte, error) {
	return Dump("b", m.Requeue)
}

func (m *BasicRecoverMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "b", data)
	if err != nil {
		return err
	}
	m.Requeue = v[0].(bool)
	return nil
}

// BasicRecoverOKMethod represents the basic.recover-ok method
type BasicRecoverOKMethod struct{ noArgs }

func (*BasicRecoverOKMethod) ClassID() uint16  { return ClassBasic }
func (*BasicRecoverOKMethod) MethodID() uint16 { return BasicRecoverOK }

// BasicNackMethod represents the basic.nack method, sent by either peer
type BasicNackMethod struct {
	DeliveryTag uint64
	Multiple    bool
	Requeue     bool
}

func (*BasicNackMethod) ClassID() uint16  { return ClassBasic }
func (*BasicNackMethod) MethodID() uint16 { return BasicNack }

func (m *BasicNackMethod) Serialize() ([]byte, error) {
	return Dump("Lbb", m.DeliveryTag, m.Multiple, m.Requeue)
}

func (m *BasicNackMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "Lbb", data)
	if err != nil {
		return err
	}
	m.DeliveryTag, m.Multiple, m.Requeue = v[0].(uint64), v[1].(bool), v[2].(bool)
	return nil
}

// Confirm class

// ConfirmSelectMethod puts a channel into publisher confirm mode
type ConfirmSelectMethod struct {
	NoWait bool
}

func (*ConfirmSelectMethod) ClassID() uint16  { return ClassConfirm }
func (*ConfirmSelectMethod) MethodID() uint16 { return ConfirmSelect }

func (m *ConfirmSelectMethod) Serialize() ([]byte, error) {
	return Dump("b", m.NoWait)
}

func (m *ConfirmSelectMethod) Deserialize(data []byte) error {
	v, err := loadArgs(m, "b", data)
	if err != nil {
		return err
	}
	m.NoWait = v[0].(bool)
	return nil
}

// ConfirmSelectOKMethod represents the confirm.select-ok method
type ConfirmSelectOKMethod struct{ noArgs }

func (*ConfirmSelectOKMethod) ClassID() uint16  { return ClassConfirm }
func (*ConfirmSelectOKMethod) MethodID() uint16 { return ConfirmSelectOK }

// Tx class

type TxSelectMethod struct{ noArgs }

func (*TxSelectMethod) ClassID() uint16  { return ClassTx }
func (*TxSelectMethod) MethodID() uint16 { return TxSelect }

type TxSelectOKMethod struct{ noArgs }

func (*TxSelectOKMethod) ClassID() uint16  { return ClassTx }
func (*TxSelectOKMethod) MethodID() uint16 { return TxSelectOK }

type TxCommitMethod struct{ noArgs }

func (*TxCommitMethod) ClassID() uint16  { return ClassTx }
func (*TxCommitMethod) MethodID() uint16 { return TxCommit }

type TxCommitOKMethod struct{ noArgs }

func (*TxCommitOKMethod) ClassID() uint16  { return ClassTx }
func (*TxCommitOKMethod) MethodID() uint16 { return TxCommitOK }

type TxRollbackMethod struct{ noArgs }

func (*TxRollbackMethod) ClassID() uint16  { return ClassTx }
func (*TxRollbackMethod) MethodID() uint16 { return TxRollback }

type TxRollbackOKMethod struct{ noArgs }

func (*TxRollbackOKMethod) ClassID() uint16  { return ClassTx }
func (*TxRollbackOKMethod) MethodID() uint16 { return TxRollbackOK }

// newMethod returns an empty method value for a class/method pair.
func newMethod(classID, methodID uint16) Method {
	switch classID {
	case ClassConnection:
		switch methodID {
		case ConnectionStart:
			return &ConnectionStartMethod{}
		case ConnectionStartOK:
			return &ConnectionStartOKMethod{}
		case ConnectionSecure:
			return &ConnectionSecureMethod{}
		case ConnectionSecureOK:
			return &ConnectionSecureOKMethod{}
		case ConnectionTune:
			return &ConnectionTuneMethod{}
		case ConnectionTuneOK:
			return &ConnectionTuneOKMethod{}
		case ConnectionOpen:
			return &ConnectionOpenMethod{}
		case ConnectionOpenOK:
			return &ConnectionOpenOKMethod{}
		case ConnectionClose:
			return &ConnectionCloseMethod{}
		case ConnectionCloseOK:
			return &ConnectionCloseOKMethod{}
		case ConnectionBlocked:
			return &ConnectionBlockedMethod{}
		case ConnectionUnblocked:
			return &ConnectionUnblockedMethod{}
		}
	case ClassChannel:
		switch methodID {
		case ChannelOpen:
			return &ChannelOpenMethod{}
		case ChannelOpenOK:
			return &ChannelOpenOKMethod{}
		case ChannelFlow:
			return &ChannelFlowMethod{}
		case ChannelFlowOK:
			return &ChannelFlowOKMethod{}
		case ChannelClose:
			return &ChannelCloseMethod{}
		case ChannelCloseOK:
			return &ChannelCloseOKMethod{}
		}
	case ClassExchange:
		switch methodID {
		case ExchangeDeclare:
			return &ExchangeDeclareMethod{}
		case ExchangeDeclareOK:
			return &ExchangeDeclareOKMethod{}
		case ExchangeDelete:
			return &ExchangeDeleteMethod{}
		case ExchangeDeleteOK:
			return &ExchangeDeleteOKMethod{}
		case ExchangeBind:
			return &ExchangeBindMethod{}
		case ExchangeBindOK:
			return &ExchangeBindOKMethod{}
		case ExchangeUnbind:
			return &ExchangeUnbindMethod{}
		case ExchangeUnbindOK:
			return &ExchangeUnbindOKMethod{}
		}
	case ClassQueue:
		switch methodID {
		case QueueDeclare:
			return &QueueDeclareMethod{}
		case QueueDeclareOK:
			return &QueueDeclareOKMethod{}
		case QueueBind:
			return &QueueBindMethod{}
		case QueueBindOK:
			return &QueueBindOKMethod{}
		case QueuePurge:
			return &QueuePurgeMethod{}
		case QueuePurgeOK:
			return &QueuePurgeOKMethod{}
		case QueueDelete:
			return &QueueDeleteMethod{}
		case QueueDeleteOK:
			return &QueueDeleteOKMethod{}
		case QueueUnbind:
			return &QueueUnbindMethod{}
		case QueueUnbindOK:
			return &QueueUnbindOKMethod{}
		}
	case ClassBasic:
		switch methodID {
		case BasicQos:
			return &BasicQosMethod{}
		case BasicQosOK:
			return &BasicQosOKMethod{}
		case BasicConsume:
			return &BasicConsumeMethod{}
		case BasicConsumeOK:
			return &BasicConsumeOKMethod{}
		case BasicCancel:
			return &BasicCancelMethod{}
		case BasicCancelOK:
			return &BasicCancelOKMethod{}
		case BasicPublish:
			return &BasicPublishMethod{}
		case BasicReturn:
			return &BasicReturnMethod{}
		case BasicDeliver:
			return &BasicDeliverMethod{}
		case BasicGet:
			return &BasicGetMethod{}
		case BasicGetOK:
			return &BasicGetOKMethod{}
		case BasicGetEmpty:
			return &BasicGetEmptyMethod{}
		case BasicAck:
			return &BasicAckMethod{}
		case BasicReject:
			return &BasicRejectMethod{}
		case BasicRecoverAsync:
			return &BasicRecoverAsyncMethod{}
		case BasicRecover:
			return &BasicRecoverMethod{}
		case BasicRecoverOK:
			return &BasicRecoverOKMethod{}
		case BasicNack:
			return &BasicNackMethod{}
		}
	case ClassConfirm:
		switch methodID {
		case ConfirmSelect:
			return &ConfirmSelectMethod{}
		case ConfirmSelectOK:
			return &ConfirmSelectOKMethod{}
		}
	case ClassTx:
		switch methodID {
		case TxSelect:
			return &TxSelectMethod{}
		case TxSelectOK:
			return &TxSelectOKMethod{}
		case TxCommit:
			return &TxCommitMethod{}
		case TxCommitOK:
			return &TxCommitOKMethod{}
		case TxRollback:
			return &TxRollbackMethod{}
		case TxRollbackOK:
			return &TxRollbackOKMethod{}
		}
	}
	return nil
}

// ReadMethod decodes a method frame payload.
func ReadMethod(payload []byte) (Method, error) {
	if len(payload) < 4 {
		return nil, amqperr.NewFrameError(fmt.Sprintf("method frame of %d bytes is too short", len(payload)), FrameMethod)
	}
	classID := binary.BigEndian.Uint16(payload[0:2])
	methodID := binary.BigEndian.Uint16(payload[2:4])

	m := newMethod(classID, methodID)
	if m == nil {
		return nil, amqperr.NewCommandInvalid(fmt.Sprintf("unknown method %d.%d", classID, methodID), classID, methodID)
	}
	if err := m.Deserialize(payload[4:]); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMethodFrame encodes a method into a method frame for a channel.
func NewMethodFrame(channelID uint16, m Method) (*Frame, error) {
	args, err := m.Serialize()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", MethodName(m), err)
	}

	payload := make([]byte, 4+len(args))
	binary.BigEndian.PutUint16(payload[0:2], m.ClassID())
	binary.BigEndian.PutUint16(payload[2:4], m.MethodID())
	copy(payload[4:], args)

	return &Frame{
		Type:    FrameMethod,
		Channel: channelID,
		Size:    uint32(len(payload)),
		Payload: payload,
	}, nil
}
