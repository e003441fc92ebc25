package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"vmdesk.app/internal/core/logger"
	"vmdesk.app/internal/core/ports"
)

const defaultPrefix = "vmdesk"

// Client is the subset of the paho client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher consumes the run event bus and republishes it to MQTT
type Publisher struct {
	client Client
	pubsub ports.EventPubSub
	prefix string
}

// NewPublisher connects to the broker and returns a publisher fed by pubsub.
func NewPublisher(pubsub ports.EventPubSub, brokerURL string) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(fmt.Sprintf("vmdesk-server-%d", time.Now().UnixNano()))
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	logger.Info("Connected to MQTT broker", "broker", brokerURL)
	return newPublisher(client, pubsub), nil
}

func newPublisher(client Client, pubsub ports.EventPubSub) *Publisher {
	return &Publisher{
		client: client,
		pubsub: pubsub,
		prefix: defaultPrefix,
	}
}

// Start consumers
func (p *Publisher) Start(ctx context.Context) {
	go p.consumeSlotEvents(ctx)
	go p.consumeRunUpdates(ctx)
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

func (p *Publisher) consumeSlotEvents(ctx context.Context) {
	ch, err := p.pubsub.SubscribeStatus(ctx, "")
	if err != nil {
		logger.Error("MQTT: failed to subscribe to slot events", "error", err)
		return
	}

	logger.Info("MQTT: started slot event consumer")

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			// Topic: vmdesk/runs/{run_id}/slots
			p.publish(p.slotTopic(event.RunID), "slot_update", event)
		}
	}
}

func (p *Publisher) consumeRunUpdates(ctx context.Context) {
	ch, err := p.pubsub.SubscribeRunUpdates(ctx)
	if err != nil {
		logger.Error("MQTT: failed to subscribe to run updates", "error", err)
		return
	}

	logger.Info("MQTT: started run update consumer")

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			if update.RunID == "" {
				logger.Warn("MQTT: run update missing run_id", "status", update.Status)
				continue
			}
			p.publish(p.runTopic(update.RunID), "run_update", update)
		}
	}
}

func (p *Publisher) publish(topic, eventType string, payload any) {
	// Wrap in the same envelope the websocket hub uses.
	data, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		logger.Warn("MQTT: failed to encode event", "type", eventType, "error", err)
		return
	}
	p.client.Publish(topic, 0, false, data)
}

func (p *Publisher) runTopic(runID string) string {
	return fmt.Sprintf("%s/runs/%s", p.prefix, runID)
}

func (p *Publisher) slotTopic(runID string) string {
	return p.runTopic(runID) + "/slots"
}
