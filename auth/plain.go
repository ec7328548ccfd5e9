package auth

import (
	"github.com/maxpert/amqp-go-client/protocol"
)

// PlainMechanism implements SASL PLAIN authentication
type PlainMechanism struct {
	Username string
	Password string
}

// Name returns the mechanism name
func (p *PlainMechanism) Name() string {
	return MechanismPlain
}

// Response builds the PLAIN response: \0username\0password. The
// authorization identity is left empty.
func (p *PlainMechanism) Response() ([]byte, error) {
	resp := make([]byte, 0, 2+len(p.Username)+len(p.Password))
	resp = append(resp, 0)
	resp = append(resp, p.Username...)
	resp = append(resp, 0)
	resp = append(resp, p.Password...)
	return resp, nil
}

// Challenge always fails; PLAIN is a single round trip.
func (p *PlainMechanism) Challenge(challenge []byte) ([]byte, error) {
	return nil, noChallenge(MechanismPlain)
}

// AMQPlainMechanism implements the AMQP 0-8 AMQPLAIN mechanism, which
// RabbitMQ still enables by default.
type AMQPlainMechanism struct {
	Username string
	Password string
}

// Name returns the mechanism name
func (a *AMQPlainMechanism) Name() string {
	return MechanismAMQPlain
}

// Response encodes LOGIN and PASSWORD as field table entries. The table is
// sent without its length prefix.
func (a *AMQPlainMechanism) Response() ([]byte, error) {
	table, err := protocol.Dump("F", protocol.Table{
		"LOGIN":    a.Username,
		"PASSWORD": a.Password,
	})
	if err != nil {
		return nil, err
	}
	return table[4:], nil
}

// Challenge always fails; AMQPLAIN is a single round trip.
func (a *AMQPlainMechanism) Challenge(challenge []byte) ([]byte, error) {
	return nil, noChallenge(MechanismAMQPlain)
}
