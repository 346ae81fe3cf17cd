package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ecosort/internal/config"
	"ecosort/internal/logger"
)

// Hub tracks connected camera clients and fans capture signals out to them.
type Hub struct {
	clients  map[string]*Client
	hooks    map[uint64]func(*Client)
	nextHook uint64
	mutex    sync.RWMutex

	onCaptureRequest func(*Client)

	ready        atomic.Bool
	window       time.Duration
	pingInterval time.Duration
	logger       *logger.Logger
}

func NewHub(config *config.Config, logger *logger.Logger) *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		hooks:        make(map[uint64]func(*Client)),
		window:       config.CaptureWindow,
		pingInterval: config.PingInterval,
		logger:       logger,
	}
}

// Run marks the hub ready and keeps connections alive until ctx ends, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	h.ready.Store(true)
	defer h.ready.Store(false)

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, client := range h.Clients() {
				h.Unregister(client)
			}
			h.logger.Info("Websocket hub stopped")
			return
		case <-ticker.C:
			for _, client := range h.Clients() {
				if err := client.ping(); err != nil {
					h.logger.Warning("Ping to client %s failed: %v", client.ID(), err)
					h.Unregister(client)
				}
			}
		}
	}
}

// Ready reports whether Run is active.
func (h *Hub) Ready() bool {
	return h.ready.Load()
}

// Register adds a connection and runs any pending capture-window hooks for it.
func (h *Hub) Register(conn Conn) *Client {
	client := newClient(conn, h, h.logger)

	h.mutex.Lock()
	h.clients[client.id] = client
	total := len(h.clients)
	hooks := make([]func(*Client), 0, len(h.hooks))
	for _, hook := range h.hooks {
		hooks = append(hooks, hook)
	}
	h.mutex.Unlock()

	h.logger.Info("Client %s connected. Total: %d", client.id, total)

	for _, hook := range hooks {
		h.logger.Info("Client %s connected during capture window", client.id)
		hook(client)
	}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mutex.Lock()
	_, ok := h.clients[client.id]
	if ok {
		delete(h.clients, client.id)
	}
	total := len(h.clients)
	h.mutex.Unlock()

	if ok {
		client.close()
		h.logger.Info("Client %s disconnected. Total: %d", client.id, total)
	}
}

// Clients returns a snapshot of the connected clients.
func (h *Hub) Clients() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to every connected client, dropping clients whose
// connection fails.
func (h *Hub) Broadcast(event string, payload interface{}) {
	for _, client := range h.Clients() {
		if err := client.Emit(event, payload); err != nil {
			h.logger.Error("Error sending %s to client %s: %v", event, client.id, err)
			h.Unregister(client)
		}
	}
}

// OnCaptureRequest sets the callback for client-initiated capture_image events.
func (h *Hub) OnCaptureRequest(fn func(*Client)) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.onCaptureRequest = fn
}

func (h *Hub) captureRequested(client *Client) {
	h.mutex.RLock()
	fn := h.onCaptureRequest
	h.mutex.RUnlock()

	if fn == nil {
		h.logger.Warning("Capture request from client %s ignored, no handler set", client.id)
		return
	}
	fn(client)
}

// StartCapture asks clients for an image. Every connected client gets a one-shot
// handler and a start_capture signal. With nobody connected, clients that
// connect within the capture window are signalled instead.
func (h *Hub) StartCapture(onImage ImageHandler) *Subscription {
	var (
		mu        sync.Mutex
		cancels   []func()
		cancelled bool
	)

	attach := func(client *Client) {
		mu.Lock()
		if cancelled {
			mu.Unlock()
			return
		}
		cancels = append(cancels, client.Once(onImage))
		mu.Unlock()

		if err := client.Emit(EventStartCapture, nil); err != nil {
			h.logger.Error("Error sending start_capture to client %s: %v", client.id, err)
			return
		}
		h.logger.Info("Emitted start_capture to client %s", client.id)
	}

	cancelAll := func() {
		mu.Lock()
		defer mu.Unlock()
		cancelled = true
		for _, cancel := range cancels {
			cancel()
		}
		cancels = nil
	}

	// The snapshot and the hook are taken under one lock so a client
	// registering in between still gets attached.
	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	var removeHook func()
	if len(clients) == 0 {
		removeHook = h.addHookLocked(attach)
	}
	h.mutex.Unlock()

	if len(clients) > 0 {
		h.logger.Info("Setting up capture listeners for %d connected clients", len(clients))
		for _, client := range clients {
			attach(client)
		}
		return NewSubscription(cancelAll)
	}

	h.logger.Info("No clients connected, waiting %s for a camera client", h.window)
	timer := time.AfterFunc(h.window, removeHook)

	return NewSubscription(func() {
		timer.Stop()
		removeHook()
		cancelAll()
	})
}

// addHookLocked registers fn for every new connection and returns its
// removal func. The caller holds h.mutex.
func (h *Hub) addHookLocked(fn func(*Client)) func() {
	id := h.nextHook
	h.nextHook++
	h.hooks[id] = fn

	return func() {
		h.mutex.Lock()
		delete(h.hooks, id)
		h.mutex.Unlock()
	}
}

// PendingHooks returns the number of open capture windows.
func (h *Hub) PendingHooks() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.hooks)
}
