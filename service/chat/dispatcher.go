package chat

import (
	"sync"

	"IMGateway/logger"
)

// Context is passed to every handler and exposes the server services.
type Context struct {
	S *Server
}

// Handler processes one inbound frame type.
type Handler interface {
	Type() string
	Handle(ctx *Context, f *Frame, conn *WsConn) error
}

// Dispatcher routes inbound frames to the handler registered for their
// type. Registration happens once at startup; dispatch is read-only.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.handlers[h.Type()]; ok {
		logger.Warnf("handler for %s registered twice, keeping the last", h.Type())
	}
	d.handlers[h.Type()] = h
}

func (d *Dispatcher) Get(frameType string) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[frameType]
	return h, ok
}
