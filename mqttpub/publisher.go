// Package mqttpub publishes scoreboard snapshots to an MQTT broker so remote
// displays (a club website, a second screen in the mess tent) can follow the
// score without reaching the field network.
//
// Publishing model:
//   - One retained message per interval on the configured topic.
//   - Skipped when nothing but the generation timestamp changed.
//   - Auto-reconnect is left to the paho client; failed publishes are logged
//     and retried on the next tick.
package mqttpub

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	jsoniter "github.com/json-iterator/go"
	"github.com/zeebo/xxh3"

	"scoreboard/aggregate"
	"scoreboard/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const publishTimeout = 5 * time.Second

// SnapshotFunc produces the document to publish.
type SnapshotFunc func() aggregate.Snapshot

// broker is the subset of mqtt.Client the publisher uses.
type broker interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher pushes snapshots on a fixed interval.
type Publisher struct {
	cfg      config.MQTTConfig
	snapshot SnapshotFunc
	client   broker
	lastHash uint64
	sent     int
}

// New creates a publisher; Connect must be called before Run.
func New(cfg config.MQTTConfig, snapshot SnapshotFunc) *Publisher {
	return &Publisher{cfg: cfg, snapshot: snapshot}
}

// Connect dials the broker. The first connection must succeed; later drops
// are handled by paho's auto-reconnect.
func (p *Publisher) Connect(sessionID string) error {
	opts := mqtt.NewClientOptions()
	brokerURL := fmt.Sprintf("tcp://%s:%d", p.cfg.Broker, p.cfg.Port)
	opts.AddBroker(brokerURL)

	clientID := strings.TrimSpace(p.cfg.ClientID)
	if clientID == "" {
		clientID = "scoreboard-" + shortID(sessionID)
	}
	opts.SetClientID(clientID)
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Printf("MQTT: connected to %s, publishing to %s", brokerURL, p.cfg.Topic)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("MQTT: connection lost: %v (will reconnect)", err)
	})

	client := mqtt.NewClient(opts)
	log.Printf("MQTT: connecting to %s...", brokerURL)
	token := client.Connect()
	if !token.WaitTimeout(15*time.Second) || token.Error() != nil {
		err := token.Error()
		if err == nil {
			err = errors.New("timed out")
		}
		return fmt.Errorf("mqtt: connect to %s: %w", brokerURL, err)
	}
	p.client = client
	return nil
}

// Run publishes until ctx is cancelled, then disconnects.
func (p *Publisher) Run(ctx context.Context) error {
	if p.client == nil {
		return errors.New("mqtt: Run called before Connect")
	}
	defer p.client.Disconnect(250)

	interval := config.Seconds(p.cfg.IntervalSeconds)
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.PublishOnce()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.PublishOnce()
		}
	}
}

// PublishOnce publishes the current snapshot if it differs from the last one
// sent. It reports whether a message went out.
func (p *Publisher) PublishOnce() bool {
	if p.client == nil || !p.client.IsConnected() {
		return false
	}
	snap := p.snapshot()
	payload, hash, err := encode(snap)
	if err != nil {
		log.Printf("MQTT: encode snapshot: %v", err)
		return false
	}
	if p.sent > 0 && hash == p.lastHash {
		return false
	}
	token := p.client.Publish(p.cfg.Topic, p.cfg.QoS, p.cfg.Retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Printf("MQTT: publish to %s timed out", p.cfg.Topic)
		return false
	}
	if err := token.Error(); err != nil {
		log.Printf("MQTT: publish to %s failed: %v", p.cfg.Topic, err)
		return false
	}
	p.lastHash = hash
	p.sent++
	return true
}

// encode returns the payload and a fingerprint that ignores the generation
// timestamp, so an idle scoreboard does not republish every tick.
func encode(snap aggregate.Snapshot) ([]byte, uint64, error) {
	generated := snap.Meta.GeneratedUTC
	snap.Meta.GeneratedUTC = ""
	stable, err := json.Marshal(snap)
	if err != nil {
		return nil, 0, err
	}
	snap.Meta.GeneratedUTC = generated
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, 0, err
	}
	return payload, xxh3.Hash(stable), nil
}

// Sent returns how many snapshots have been published.
func (p *Publisher) Sent() int {
	return p.sent
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return fmt.Sprintf("%d", time.Now().Unix())
	}
	return id
}
