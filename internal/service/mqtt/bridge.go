package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"ecosort/internal/config"
	"ecosort/internal/dto"
	"ecosort/internal/logger"
	"ecosort/internal/service/capture"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// ErrResultDeadline is published when the bridge gave up waiting while the
// capture may still be classifying.
var ErrResultDeadline = errors.New("capture result not ready before deadline")

// Trigger runs a capture and waits for its outcome.
type Trigger interface {
	TriggerCapture(ctx context.Context) (*capture.Outcome, error)
}

// Bridge lets devices trigger captures over MQTT. Any message on the trigger
// topic starts a capture; the trigger response is published on the result topic.
type Bridge struct {
	client       paho.Client
	broker       string
	clientID     string
	triggerTopic string
	resultTopic  string
	qos          byte
	timeout      time.Duration
	trigger      Trigger
	logger       *logger.Logger
}

func NewBridge(config *config.Config, trigger Trigger, logger *logger.Logger) *Bridge {
	return &Bridge{
		broker:       config.MQTTBroker,
		clientID:     config.MQTTClientID,
		triggerTopic: config.MQTTTriggerTopic,
		resultTopic:  config.MQTTResultTopic,
		qos:          byte(config.MQTTQoS),
		timeout:      config.CaptureTimeout + 2*config.ClassifierTimeout, // first call plus the retry
		trigger:      trigger,
		logger:       logger,
	}
}

// Connect dials the broker. The trigger topic is subscribed on every
// (re)connect.
func (b *Bridge) Connect() error {
	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL(b.broker))
	opts.SetClientID(b.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c paho.Client) {
		b.logger.Info("MQTT connected to %s", b.broker)
		token := c.Subscribe(b.triggerTopic, b.qos, b.handleTrigger)
		if !token.WaitTimeout(connectTimeout) {
			b.logger.Error("MQTT subscription to %s timed out", b.triggerTopic)
			return
		}
		if err := token.Error(); err != nil {
			b.logger.Error("MQTT subscription to %s failed: %v", b.triggerTopic, err)
			return
		}
		b.logger.Info("Listening for capture triggers on %s", b.triggerTopic)
	}
	opts.OnConnectionLost = func(c paho.Client, err error) {
		b.logger.Warning("MQTT connection lost, reconnecting: %v", err)
	}

	b.client = paho.NewClient(opts)

	token := b.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

func (b *Bridge) Close() {
	if b.client == nil {
		return
	}
	if b.client.IsConnected() {
		b.client.Unsubscribe(b.triggerTopic).WaitTimeout(publishTimeout)
	}
	b.client.Disconnect(250)
	b.logger.Info("MQTT bridge stopped")
}

// handleTrigger must not block the paho router.
func (b *Bridge) handleTrigger(_ paho.Client, msg paho.Message) {
	b.logger.Info("Capture trigger received on %s", msg.Topic())
	go b.respond()
}

func (b *Bridge) respond() {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	outcome, err := b.trigger.TriggerCapture(ctx)

	var payload interface{}
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		payload = dto.NewCaptureError(ErrResultDeadline)
	case err != nil:
		payload = dto.NewCaptureError(err)
	default:
		payload = dto.NewTriggerResponse(outcome.Result, outcome.Image, time.Now())
	}

	if err := b.publish(payload); err != nil {
		b.logger.Error("Failed to publish capture result: %v", err)
	}
}

func (b *Bridge) publish(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	token := b.client.Publish(b.resultTopic, b.qos, false, data)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	return token.Error()
}

// brokerURL accepts host:port and adds the tcp scheme.
func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}
