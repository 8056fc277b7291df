package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const mqttConnectTimeout = 5 * time.Second

// Publisher is the part of an MQTT client used to republish updates.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSubscriber republishes every delivered message as JSON to a broker topic.
type MQTTSubscriber struct {
	id     string
	client Publisher
	topic  string
	qos    byte
}

// NewMQTTSubscriber returns a subscriber publishing to topic with the given QoS.
func NewMQTTSubscriber(client Publisher, topic string, qos byte) *MQTTSubscriber {
	return &MQTTSubscriber{
		id:     "mqtt:" + topic,
		client: client,
		topic:  topic,
		qos:    qos,
	}
}

// ID implements Subscriber.
func (s *MQTTSubscriber) ID() string { return s.id }

// Deliver implements Subscriber.
func (s *MQTTSubscriber) Deliver(ctx context.Context, msg *Message) error {
	data, err := msg.Encode(EncodingJSON)
	if err != nil {
		return err
	}

	token := s.client.Publish(s.topic, s.qos, false, data)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt publish to %s: %w", s.topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish to %s: %w", s.topic, ctx.Err())
	}
}

// ConnectMQTT registers an MQTT subscriber for topic on l. A subscriber that
// is still registered from an earlier connection is left in place.
func ConnectMQTT(ctx context.Context, l *Loop, client Publisher, topic string, qos byte) error {
	err := l.Connect(ctx, NewMQTTSubscriber(client, topic, qos))
	if errors.Is(err, ErrSubscriberExists) {
		return nil
	}
	return err
}

// DialMQTT connects to broker (host:port) with auto-reconnect enabled.
// onConnect runs on its own goroutine after every successful connection,
// including reconnects, and may be nil.
func DialMQTT(ctx context.Context, broker, clientID string, log *slog.Logger, onConnect func(Publisher)) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker("tcp://" + broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(c mqtt.Client) {
		log.Info("mqtt connection established", slog.String("broker", broker), slog.String("client_id", clientID))
		if onConnect != nil {
			onConnect(c)
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", slog.String("broker", broker), slog.String("error", err.Error()))
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()

	timeout := mqttConnectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect to %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return client, nil
}
