package source

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nixlim/fleetwatch/internal/config"
	"github.com/nixlim/fleetwatch/internal/receiver"
	"github.com/nixlim/fleetwatch/internal/state"
)

const (
	connectBackoffStart = time.Second
	connectBackoffMax   = 30 * time.Second
)

// MQTTSubscriber stores events published on an MQTT topic.
type MQTTSubscriber struct {
	cfg    config.MQTTConfig
	store  state.Store
	logger receiver.Logger
	client mqtt.Client

	wg sync.WaitGroup
}

// NewMQTTSubscriber builds the client; nothing connects until Start.
func NewMQTTSubscriber(cfg config.MQTTConfig, store state.Store, logger receiver.Logger) *MQTTSubscriber {
	s := &MQTTSubscriber{cfg: cfg, store: store, logger: logger}
	s.client = s.buildClient()
	return s
}

func (s *MQTTSubscriber) buildClient() mqtt.Client {
	h := func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	}

	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetOrderMatters(false).
		SetCleanSession(false).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetMaxReconnectInterval(connectBackoffMax)

	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
	}
	if s.cfg.Password != "" {
		opts.SetPassword(s.cfg.Password)
	}

	// Subscribing on every connect restores the subscription after a
	// reconnect.
	opts.OnConnect = func(c mqtt.Client) {
		log.Printf("connected to MQTT broker: %s", s.cfg.Broker)
		if token := c.Subscribe(s.cfg.Topic, byte(s.cfg.QoS), h); token.Wait() && token.Error() != nil {
			log.Printf("ERROR: mqtt subscribe to %s: %v", s.cfg.Topic, token.Error())
		} else {
			log.Printf("subscribed to topic: %s (QoS %d)", s.cfg.Topic, s.cfg.QoS)
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Printf("WARNING: mqtt connection lost: %v", err)
	}

	return mqtt.NewClient(opts)
}

// Start connects in the background, retrying with exponential backoff
// until ctx is cancelled.
func (s *MQTTSubscriber) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		connectWithBackoff(ctx, s.client, connectBackoffStart, connectBackoffMax)
	}()
}

// Stop waits for a pending connect attempt and disconnects.
func (s *MQTTSubscriber) Stop() {
	s.wg.Wait()
	if s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}

func connectWithBackoff(ctx context.Context, client mqtt.Client, start, limit time.Duration) {
	backoff := start
	for {
		token := client.Connect()
		if token.Wait() && token.Error() == nil {
			return
		}
		log.Printf("WARNING: mqtt connect error: %v; retrying in %s", token.Error(), backoff)
		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, limit)
		case <-ctx.Done():
			log.Printf("context cancelled before mqtt connect")
			return
		}
	}
}

// handleMessage decodes and stores one message. It returns the number of
// new events.
func (s *MQTTSubscriber) handleMessage(topic string, payload []byte) int {
	evts, err := Decode(payload)
	if err != nil {
		log.Printf("WARNING: dropping mqtt message on %s: %v", topic, err)
		return 0
	}
	if device := deviceFromTopic(topic); device != "" {
		for i := range evts {
			if evts[i].Device == "" {
				evts[i].Device = device
			}
		}
	}
	return receiver.Ingest(s.store, s.logger, "mqtt", evts)
}

// deviceFromTopic returns the segment after "devices" in topics shaped
// like devices/<id>/events.
func deviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "devices" && parts[i+1] != "" {
			return parts[i+1]
		}
	}
	return ""
}
