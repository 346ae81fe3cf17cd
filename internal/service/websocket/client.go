package websocket

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ecosort/internal/logger"
)

// Events exchanged with browser camera clients.
const (
	EventStartCapture     = "start_capture"
	EventImageCaptured    = "image_captured"
	EventCaptureImage     = "capture_image"
	EventProcessingResult = "processing_result"
	EventError            = "error"
)

// Message is the envelope of every websocket frame.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn is the part of *websocket.Conn the hub relies on.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type subscriber struct {
	id      uint64
	handler ImageHandler
}

// Client is a connected browser camera.
type Client struct {
	id     string
	conn   Conn
	hub    *Hub
	logger *logger.Logger

	writeMu sync.Mutex

	subMu   sync.Mutex
	subs    []subscriber
	nextSub uint64
}

func newClient(conn Conn, hub *Hub, logger *logger.Logger) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		hub:    hub,
		logger: logger,
	}
}

func (c *Client) ID() string {
	return c.id
}

// Emit sends an event to the client. A nil payload sends the bare event.
func (c *Client) Emit(event string, payload interface{}) error {
	msg := Message{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		msg.Data = data
	}

	frame, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// Once registers handler for the next image_captured event of this client.
// The returned func removes the handler if it has not fired yet.
func (c *Client) Once(handler ImageHandler) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs = append(c.subs, subscriber{id: id, handler: handler})
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// PendingCaptures returns how many one-shot handlers are waiting for an image.
func (c *Client) PendingCaptures() int {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	return len(c.subs)
}

// HandleMessage dispatches one frame read from the connection.
func (c *Client) HandleMessage(raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.Warning("Malformed message from client %s: %v", c.id, err)
		return
	}

	switch msg.Event {
	case EventImageCaptured:
		var dataURI string
		if err := json.Unmarshal(msg.Data, &dataURI); err != nil {
			c.logger.Warning("Client %s sent image_captured without image data: %v", c.id, err)
			dataURI = ""
		}
		c.logger.Info("Received captured image from client %s (%d bytes)", c.id, len(dataURI))
		c.deliver(dataURI)
	case EventCaptureImage:
		c.logger.Info("Received capture request from client %s", c.id)
		if c.hub != nil {
			c.hub.captureRequested(c)
		}
	default:
		c.logger.Warning("Unknown event %q from client %s", msg.Event, c.id)
	}
}

// deliver hands the image to every waiting handler exactly once.
func (c *Client) deliver(dataURI string) {
	c.subMu.Lock()
	pending := c.subs
	c.subs = nil
	c.subMu.Unlock()

	if len(pending) == 0 {
		c.logger.Warning("Image from client %s arrived with no capture in progress", c.id)
		return
	}

	for _, s := range pending {
		s.handler(dataURI, c)
	}
}

func (c *Client) close() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.Close()
}
