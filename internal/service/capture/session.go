package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"ecosort/internal/logger"
	"ecosort/internal/model"
	"ecosort/internal/service/websocket"
)

// ErrCaptureTimeout is returned when no client sent an image in time.
var ErrCaptureTimeout = errors.New("capture timeout - no image received")

// State is the position of a session in its lifecycle.
type State int

const (
	StatePending State = iota
	StateClassifying
	StateResolved
	StateRejected
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateClassifying:
		return "classifying"
	case StateResolved:
		return model.CaptureResolved
	case StateRejected:
		return model.CaptureRejected
	case StateTimedOut:
		return model.CaptureTimedOut
	}
	return "unknown"
}

// Broadcaster asks camera clients for an image.
type Broadcaster interface {
	StartCapture(onImage websocket.ImageHandler) *websocket.Subscription
}

// Session is one trigger waiting for one image. It ends exactly once: resolved,
// rejected or timed out.
type Session struct {
	id          string
	timeout     time.Duration
	broadcaster Broadcaster
	pipeline    *Pipeline
	logger      *logger.Logger

	mu      sync.Mutex
	state   State
	ctx     context.Context
	timer   *time.Timer
	sub     *websocket.Subscription
	outcome *Outcome
	err     error
	done    chan struct{}
}

func NewSession(broadcaster Broadcaster, pipeline *Pipeline, timeout time.Duration, logger *logger.Logger) *Session {
	return &Session{
		id:          uuid.NewString(),
		timeout:     timeout,
		broadcaster: broadcaster,
		pipeline:    pipeline,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start resets the registers, arms the deadline and signals the clients.
// ctx is used while classifying and should outlive the waiting caller.
func (s *Session) Start(ctx context.Context) {
	s.pipeline.registers.Reset()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx = ctx
	s.timer = time.AfterFunc(s.timeout, s.expire)
	s.sub = s.broadcaster.StartCapture(s.onImage)
	s.logger.Info("Session %s started, waiting up to %s for an image", s.id, s.timeout)
}

// Wait blocks until the session ends or ctx is done. Giving up on ctx does
// not stop the session.
func (s *Session) Wait(ctx context.Context) (*Outcome, error) {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.outcome, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the session reached a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) onImage(dataURI string, from websocket.Responder) {
	s.mu.Lock()
	if s.state != StatePending {
		state := s.state
		s.mu.Unlock()
		s.logger.Warning("Session %s: ignoring image from client %s, session is %s", s.id, from.ID(), state)
		return
	}
	s.state = StateClassifying
	s.timer.Stop()
	sub := s.sub
	ctx := s.ctx
	s.mu.Unlock()

	sub.Cancel()
	s.logger.Info("Session %s: received image from client %s", s.id, from.ID())

	go s.process(ctx, dataURI, from)
}

func (s *Session) process(ctx context.Context, dataURI string, from websocket.Responder) {
	outcome, err := s.pipeline.Process(ctx, s.id, dataURI, from)
	if err != nil {
		s.finish(StateClassifying, StateRejected, outcome, err)
		return
	}
	s.finish(StateClassifying, StateResolved, outcome, nil)
}

func (s *Session) expire() {
	s.finish(StatePending, StateTimedOut, nil, ErrCaptureTimeout)
}

// finish moves the session from one state to a terminal one. It reports
// false when the session was not in from, leaving it untouched.
func (s *Session) finish(from, to State, outcome *Outcome, err error) bool {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return false
	}
	s.state = to
	s.outcome = outcome
	s.err = err
	sub := s.sub
	s.mu.Unlock()

	sub.Cancel()

	if err != nil {
		s.logger.Error("Session %s %s: %v", s.id, to, err)
	} else {
		s.logger.Info("Session %s %s as %s", s.id, to, outcome.Result.Data.Classification)
	}

	s.pipeline.Record(s.id, to.String(), outcome, err)
	close(s.done)
	return true
}
