package tele

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"

	"github.com/vendtech/vendcore/log2"
)

// mqttTeler publishes telemetry as JSON over MQTT. Publishing is
// fire-and-forget; a broker outage must never block a sale.
type mqttTeler struct {
	log   *log2.Log
	m     mqtt.Client
	alive *alive.Alive

	topicState       string
	topicTransaction string
	topicError       string
}

var _ Teler = &mqttTeler{} // compile-time interface test

func (tm *mqttTeler) Init(log *log2.Log, c Config) error {
	tm.log = log
	tm.alive = alive.NewAlive()
	mqtt.ERROR = log
	mqtt.CRITICAL = log
	mqtt.WARN = log

	clientID := c.ClientID
	if clientID == "" {
		clientID = "vendcore"
	}
	topic := c.Topic
	if topic == "" {
		topic = clientID
	}
	tm.topicState = fmt.Sprintf("%s/w/state", topic)
	tm.topicTransaction = fmt.Sprintf("%s/w/transaction", topic)
	tm.topicError = fmt.Sprintf("%s/w/error", topic)

	if c.URL == "" {
		return errors.New("tele.mqtt url is not set")
	}
	opt := mqtt.NewClientOptions().
		AddBroker(c.URL).
		SetClientID(clientID).
		SetUsername(c.Username).
		SetPassword(c.Password).
		SetOrderMatters(false).
		SetConnectRetry(true)
	tm.m = mqtt.NewClient(opt)
	if token := tm.m.Connect(); token.Error() != nil {
		return errors.Annotate(token.Error(), "tele.mqtt connect")
	}
	return nil
}

func (tm *mqttTeler) Close() {
	tm.alive.Stop()
	tm.alive.Wait()
	tm.m.Disconnect(250)
}

func (tm *mqttTeler) publish(topic string, payload interface{}) {
	if !tm.alive.Add(1) {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		tm.log.Errorf("tele marshal topic=%s err=%v", topic, err)
		tm.alive.Done()
		return
	}
	tm.m.Publish(topic, 1, false, b)
	tm.alive.Done()
}

func (tm *mqttTeler) Error(e error) {
	if e == nil {
		return
	}
	tm.publish(tm.topicError, map[string]string{"error": e.Error()})
}

func (tm *mqttTeler) State(s string) {
	tm.publish(tm.topicState, map[string]string{"state": s})
}

func (tm *mqttTeler) Transaction(tx *Transaction) {
	tm.publish(tm.topicTransaction, tx)
}
