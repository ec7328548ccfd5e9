package auth

import (
	"bytes"
	"testing"

	amqperr "github.com/maxpert/amqp-go-client/errors"
	"github.com/maxpert/amqp-go-client/protocol"
)

func TestPlainMechanism(t *testing.T) {
	plain := &PlainMechanism{Username: "guest", Password: "secret"}

	if plain.Name() != "PLAIN" {
		t.Errorf("Expected mechanism name 'PLAIN', got '%s'", plain.Name())
	}

	response, err := plain.Response()
	if err != nil {
		t.Fatalf("Expected response, got error: %v", err)
	}
	want := []byte("\x00guest\x00secret")
	if !bytes.Equal(response, want) {
		t.Errorf("Expected response %q, got %q", want, response)
	}

	if _, err := plain.Challenge([]byte("challenge")); err == nil {
		t.Error("Expected PLAIN to reject challenges")
	}
}

func TestAMQPlainMechanism(t *testing.T) {
	amqplain := &AMQPlainMechanism{Username: "guest", Password: "secret"}

	if amqplain.Name() != "AMQPLAIN" {
		t.Errorf("Expected mechanism name 'AMQPLAIN', got '%s'", amqplain.Name())
	}

	response, err := amqplain.Response()
	if err != nil {
		t.Fatalf("Expected response, got error: %v", err)
	}

	// Restore the length prefix and decode as a field table.
	framed := []byte{0, 0, 0, byte(len(response))}
	framed = append(framed, response...)
	values, _, err := protocol.Load("F", framed)
	if err != nil {
		t.Fatalf("Response is not a field table body: %v", err)
	}
	table := values[0].(protocol.Table)
	if table["LOGIN"] != "guest" || table["PASSWORD"] != "secret" {
		t.Errorf("Unexpected AMQPLAIN table: %v", table)
	}

	_, err = amqplain.Challenge(nil)
	if !amqperr.IsAccessRefused(err) {
		t.Errorf("Expected access-refused for a challenge, got %v", err)
	}
}

func TestAnonymousMechanism(t *testing.T) {
	anon := &AnonymousMechanism{}

	if anon.Name() != "ANONYMOUS" {
		t.Errorf("Expected mechanism name 'ANONYMOUS', got '%s'", anon.Name())
	}

	response, err := anon.Response()
	if err != nil || len(response) != 0 {
		t.Errorf("Expected empty response, got %q (%v)", response, err)
	}
}

func TestRegistry(t *testing.T) {
	registry := DefaultRegistry()

	if got := registry.String(); got != "AMQPLAIN ANONYMOUS PLAIN" {
		t.Errorf("Expected sorted mechanism list, got '%s'", got)
	}

	m, err := registry.Get("PLAIN", "u", "p")
	if err != nil {
		t.Fatalf("Expected PLAIN to be registered: %v", err)
	}
	if plain, ok := m.(*PlainMechanism); !ok || plain.Username != "u" || plain.Password != "p" {
		t.Errorf("Expected PLAIN mechanism with credentials, got %#v", m)
	}

	if _, err := registry.Get("SCRAM-SHA-256", "u", "p"); err == nil {
		t.Error("Expected error for unregistered mechanism")
	}
}

func TestRegistrySelect(t *testing.T) {
	registry := DefaultRegistry()

	tests := []struct {
		name      string
		preferred []string
		offered   []string
		want      string
		wantErr   bool
	}{
		{"first preference offered", []string{"PLAIN", "AMQPLAIN"}, []string{"AMQPLAIN", "PLAIN"}, "PLAIN", false},
		{"falls back to second preference", []string{"PLAIN", "AMQPLAIN"}, []string{"AMQPLAIN"}, "AMQPLAIN", false},
		{"skips unknown preference", []string{"EXTERNAL", "PLAIN"}, []string{"EXTERNAL", "PLAIN"}, "PLAIN", false},
		{"nothing in common", []string{"PLAIN"}, []string{"EXTERNAL"}, "", true},
		{"server offers nothing", []string{"PLAIN"}, nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := registry.Select(tt.preferred, tt.offered, "guest", "guest")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error, got mechanism %s", m.Name())
				}
				if !amqperr.IsAccessRefused(err) {
					t.Errorf("Expected access-refused, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if m.Name() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, m.Name())
			}
		})
	}
}
