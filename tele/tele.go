// Package tele is the telemetry client, vending machine side. The core
// never depends on how telemetry is delivered; sessions call the Teler
// interface and the transport is chosen by configuration.
package tele

import (
	"github.com/vendtech/vendcore/currency"
	"github.com/vendtech/vendcore/log2"
)

// Transaction is one completed or aborted customer order.
type Transaction struct {
	Session  string            `json:"session"`
	Items    map[string]uint32 `json:"items"` // item name -> quantity
	Price    currency.Amount   `json:"price"`
	Paid     currency.Amount   `json:"paid"`
	Change   currency.Amount   `json:"change"`
	Aborted  bool              `json:"aborted,omitempty"`
	Residual currency.Amount   `json:"residual,omitempty"` // unresolved change, operator attention needed
}

type Config struct {
	Enabled  bool   `hcl:"enable,optional"`
	URL      string `hcl:"url,optional"` // tcp://host:1883
	ClientID string `hcl:"client_id,optional"`
	Topic    string `hcl:"topic,optional"`
	Username string `hcl:"username,optional"`
	Password string `hcl:"password,optional"`
}

// Teler is not for external public usage.
type Teler interface {
	Init(log *log2.Log, c Config) error
	Close()
	Error(error)
	State(string)
	Transaction(*Transaction)
}

type Noop struct{}

var _ Teler = Noop{} // compile-time interface test

func (Noop) Init(*log2.Log, Config) error { return nil }
func (Noop) Close()                       {}
func (Noop) Error(error)                  {}
func (Noop) State(string)                 {}
func (Noop) Transaction(*Transaction)     {}

// New returns the transport matching c, Noop when telemetry is disabled.
func New(log *log2.Log, c Config) (Teler, error) {
	if !c.Enabled {
		return Noop{}, nil
	}
	t := &mqttTeler{}
	if err := t.Init(log, c); err != nil {
		return nil, err
	}
	return t, nil
}
