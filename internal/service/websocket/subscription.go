package websocket

import "sync"

// ImageHandler receives the data URI of an image_captured event together with
// the client that sent it.
type ImageHandler func(dataURI string, from Responder)

// Responder is the side of a client a capture flow may answer to.
type Responder interface {
	ID() string
	Emit(event string, payload interface{}) error
}

// Subscription undoes everything registered by one StartCapture call.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func NewSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Cancel is safe to call more than once and on a nil Subscription.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}
