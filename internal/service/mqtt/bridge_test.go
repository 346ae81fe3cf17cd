package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"ecosort/internal/config"
	"ecosort/internal/logger"
	"ecosort/internal/model"
	"ecosort/internal/service/capture"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// fakeClient implements only what the bridge publishes with.
type fakeClient struct {
	paho.Client
	out chan published
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.out <- published{topic: topic, qos: qos, payload: payload.([]byte)}
	return &fakeToken{}
}

type fakeMessage struct {
	paho.Message
	topic string
}

func (m *fakeMessage) Topic() string { return m.topic }

type fakeTrigger struct {
	outcome *capture.Outcome
	err     error
}

func (f *fakeTrigger) TriggerCapture(ctx context.Context) (*capture.Outcome, error) {
	return f.outcome, f.err
}

func newTestBridge(t *testing.T, trigger Trigger) (*Bridge, *fakeClient) {
	t.Helper()
	l, err := logger.New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	cfg := &config.Config{
		MQTTBroker:        "localhost:1883",
		MQTTClientID:      "test",
		MQTTTriggerTopic:  "ecosort/trigger",
		MQTTResultTopic:   "ecosort/result",
		MQTTQoS:           1,
		CaptureTimeout:    time.Second,
		ClassifierTimeout: time.Second,
	}
	b := NewBridge(cfg, trigger, l)
	client := &fakeClient{out: make(chan published, 1)}
	b.client = client
	return b, client
}

func receive(t *testing.T, c *fakeClient) published {
	t.Helper()
	select {
	case p := <-c.out:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("Nothing published")
	}
	return published{}
}

func TestBridge_PublishesResult(t *testing.T) {
	outcome := &capture.Outcome{
		Result: model.ClassificationResult{
			Status: model.StatusSuccess,
			Data:   model.ClassificationData{Classification: model.CategoryRecycle},
		},
		Image: model.CapturedImage{Filename: "capture_x.jpg", Timestamp: "x"},
	}
	b, client := newTestBridge(t, &fakeTrigger{outcome: outcome})

	b.handleTrigger(nil, &fakeMessage{topic: "ecosort/trigger"})
	p := receive(t, client)

	if p.topic != "ecosort/result" || p.qos != 1 {
		t.Errorf("Unexpected publish target %s qos %d", p.topic, p.qos)
	}

	var body struct {
		Status         string `json:"status"`
		Classification string `json:"classification"`
		Data           struct {
			Image struct {
				Filename string `json:"filename"`
			} `json:"image"`
		} `json:"data"`
	}
	if err := json.Unmarshal(p.payload, &body); err != nil {
		t.Fatalf("Invalid payload: %v", err)
	}
	if body.Status != "success" || body.Classification != "recycle" || body.Data.Image.Filename != "capture_x.jpg" {
		t.Errorf("Unexpected payload %s", p.payload)
	}
}

func TestBridge_PublishesError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", capture.ErrCaptureTimeout, capture.ErrCaptureTimeout.Error()},
		{"deadline", context.DeadlineExceeded, ErrResultDeadline.Error()},
		{"other", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, client := newTestBridge(t, &fakeTrigger{err: tt.err})
			b.respond()
			p := receive(t, client)

			var body map[string]string
			if err := json.Unmarshal(p.payload, &body); err != nil {
				t.Fatalf("Invalid payload: %v", err)
			}
			if body["status"] != "error" || body["message"] != "Failed to capture image" || body["error"] != tt.want {
				t.Errorf("Unexpected payload %v", body)
			}
		})
	}
}

func TestNewBridge_TimeoutCoversClassifierRetry(t *testing.T) {
	b, _ := newTestBridge(t, &fakeTrigger{})
	if want := 3 * time.Second; b.timeout != want {
		t.Errorf("Expected timeout %s, got %s", want, b.timeout)
	}
}

func TestBrokerURL(t *testing.T) {
	if got := brokerURL("localhost:1883"); got != "tcp://localhost:1883" {
		t.Errorf("Expected tcp scheme, got %s", got)
	}
	if got := brokerURL("ssl://broker:8883"); got != "ssl://broker:8883" {
		t.Errorf("Expected scheme kept, got %s", got)
	}
}

func TestBridge_CloseWithoutConnect(t *testing.T) {
	l, _ := logger.New(t.TempDir())
	defer l.Close()
	b := NewBridge(&config.Config{}, &fakeTrigger{}, l)
	b.Close()
}
