package chat

import (
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"IMGateway/logger"
)

// ErrConnConflict is returned when a connection id is already registered.
var ErrConnConflict = errors.New("connection id already registered")

// WsConn is one live client connection. Frames destined for the client
// are enqueued on SendChan and drained by the connection's write pump.
type WsConn struct {
	ID        string
	UserID    string
	Conn      *websocket.Conn
	Remote    net.Addr
	SendChan  chan []byte
	CreatedAt time.Time

	// Heartbeat is guarded by the owning manager's lock.
	Heartbeat time.Time
}

// ManagerConf tunes the registry. Zero values fall back to defaults.
type ManagerConf struct {
	HeartbeatTTL time.Duration // liveness deadline since last pong
	SweepEvery   time.Duration
	SendQueueLen int
	Clock        func() time.Time
}

func (c *ManagerConf) normalize() {
	if c.HeartbeatTTL <= 0 {
		c.HeartbeatTTL = 75 * time.Second
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 30 * time.Second
	}
	if c.SendQueueLen <= 0 {
		c.SendQueueLen = 256
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// ConnManager indexes live connections by connection id and by user id.
// Both indexes are mutated under one lock so they can never disagree.
type ConnManager struct {
	mu     sync.RWMutex
	byConn map[string]*WsConn
	byUser map[string]map[string]*WsConn

	conf      ManagerConf
	gatewayID string

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewConnManager(gatewayID string, conf ManagerConf) *ConnManager {
	conf.normalize()
	m := &ConnManager{
		byConn:    make(map[string]*WsConn),
		byUser:    make(map[string]map[string]*WsConn),
		conf:      conf,
		gatewayID: gatewayID,
		stopCh:    make(chan struct{}),
	}
	go m.sweeper()
	return m
}

// Register adds a connection and reports whether it is the user's first
// live connection. A duplicate connection id is rejected.
func (m *ConnManager) Register(connID, userID string, ws *websocket.Conn) (*WsConn, bool, error) {
	now := m.conf.Clock()
	rec := &WsConn{
		ID:        connID,
		UserID:    userID,
		Conn:      ws,
		SendChan:  make(chan []byte, m.conf.SendQueueLen),
		CreatedAt: now,
		Heartbeat: now,
	}
	if ws != nil {
		rec.Remote = ws.RemoteAddr()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byConn[connID]; ok {
		return nil, false, errors.Wrap(ErrConnConflict, connID)
	}
	m.byConn[connID] = rec
	set := m.byUser[userID]
	first := len(set) == 0
	if set == nil {
		set = make(map[string]*WsConn)
		m.byUser[userID] = set
	}
	set[connID] = rec
	return rec, first, nil
}

// Unregister removes a connection and reports whether it was the user's
// last one. Both indexes are updated in a single critical section so
// the last-connection answer is atomic. Unknown ids are a no-op.
func (m *ConnManager) Unregister(connID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byConn[connID]
	if !ok {
		return "", false
	}
	delete(m.byConn, connID)
	set := m.byUser[rec.UserID]
	delete(set, connID)
	if len(set) == 0 {
		delete(m.byUser, rec.UserID)
		return rec.UserID, true
	}
	return rec.UserID, false
}

func (m *ConnManager) IsOnline(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[userID]) > 0
}

// ConnectionsOf returns a snapshot of the user's live connections.
func (m *ConnManager) ConnectionsOf(userID string) []*WsConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.byUser[userID]
	if len(set) == 0 {
		return nil
	}
	out := make([]*WsConn, 0, len(set))
	for _, rec := range set {
		out = append(out, rec)
	}
	return out
}

// ConnectionsOfAll collects live connections for a set of users.
func (m *ConnManager) ConnectionsOfAll(userIDs []string) []*WsConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*WsConn
	for _, uid := range userIDs {
		for _, rec := range m.byUser[uid] {
			out = append(out, rec)
		}
	}
	return out
}

func (m *ConnManager) Get(connID string) (*WsConn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byConn[connID]
	return rec, ok
}

func (m *ConnManager) ConnCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byConn)
}

// RefreshHeartbeat marks the connection live now.
func (m *ConnManager) RefreshHeartbeat(connID string) {
	now := m.conf.Clock()
	m.mu.Lock()
	if rec, ok := m.byConn[connID]; ok {
		rec.Heartbeat = now
	}
	m.mu.Unlock()
}

// AttachPongHandler refreshes the heartbeat whenever the client answers
// a ping control frame.
func (m *ConnManager) AttachPongHandler(ws *websocket.Conn, connID string) {
	if ws == nil {
		return
	}
	ws.SetPongHandler(func(string) error {
		m.RefreshHeartbeat(connID)
		return nil
	})
}

func (m *ConnManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *ConnManager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			m.sweepOnce()
		}
	}
}

// sweepOnce closes sockets whose heartbeat is stale. It does not touch
// the indexes: closing the socket makes the owning read loop exit and
// run the full disconnect path, so cleanup has a single owner.
func (m *ConnManager) sweepOnce() {
	deadline := m.conf.Clock().Add(-m.conf.HeartbeatTTL)
	var stale []*WsConn
	m.mu.RLock()
	for _, rec := range m.byConn {
		if rec.Heartbeat.Before(deadline) {
			stale = append(stale, rec)
		}
	}
	m.mu.RUnlock()
	for _, rec := range stale {
		logger.Warnf("closing stale connection conn=%s user=%s", rec.ID, rec.UserID)
		if rec.Conn != nil {
			_ = rec.Conn.Close()
		}
	}
}
