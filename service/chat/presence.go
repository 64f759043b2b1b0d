package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"IMGateway/logger"
	"IMGateway/service/storage"
	"IMGateway/tools/errs"
)

// Status values a connected user may hold. Offline is implicit: a user
// with no live connections has no entry in the tracker.
const (
	StatusOnline    = "online"
	StatusAway      = "away"
	StatusBusy      = "busy"
	StatusInvisible = "invisible"
	StatusOffline   = "offline"
)

func validStatus(s string) bool {
	switch s {
	case StatusOnline, StatusAway, StatusBusy, StatusInvisible:
		return true
	}
	return false
}

const presenceWriteTimeout = 3 * time.Second

// PresenceService tracks the status of connected users and broadcasts
// transitions to everyone who shares a room with them or is a friend.
// Invisible users are shown as offline to others but stay tracked as
// connected.
type PresenceService struct {
	store    storage.Store
	registry *ConnManager
	rooms    *RoomIndex
	fanout   *Fanout
	redisTTL time.Duration

	mu       sync.Mutex
	statuses map[string]string
	inflight map[string]*sync.Mutex
}

func NewPresenceService(store storage.Store, registry *ConnManager, rooms *RoomIndex, fanout *Fanout, redisTTL time.Duration) *PresenceService {
	return &PresenceService{
		store:    store,
		registry: registry,
		rooms:    rooms,
		fanout:   fanout,
		redisTTL: redisTTL,
		statuses: make(map[string]string),
		inflight: make(map[string]*sync.Mutex),
	}
}

// transition serializes presence writes per user so a reconnect racing a
// disconnect cannot interleave their persist and broadcast steps.
func (p *PresenceService) transition(userID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.inflight[userID]
	if m == nil {
		m = &sync.Mutex{}
		p.inflight[userID] = m
	}
	return m
}

// HandleConnect transitions the user to online on their first live
// connection and broadcasts it.
func (p *PresenceService) HandleConnect(ctx context.Context, userID string) {
	lk := p.transition(userID)
	lk.Lock()
	defer lk.Unlock()

	p.mu.Lock()
	p.statuses[userID] = StatusOnline
	p.mu.Unlock()

	p.persist(ctx, userID, StatusOnline, time.Time{})
	p.broadcast(ctx, userID, StatusOnline, 0)
}

// SetStatus applies a client-driven status change. It only applies
// while the user has at least one live connection.
func (p *PresenceService) SetStatus(ctx context.Context, userID, status string) error {
	if !validStatus(status) {
		return errs.ErrValidation.WrapMsg("unknown status", "status", status)
	}
	if !p.registry.IsOnline(userID) {
		return errs.ErrValidation.WrapMsg("user has no live connection")
	}

	lk := p.transition(userID)
	lk.Lock()
	defer lk.Unlock()

	p.mu.Lock()
	p.statuses[userID] = status
	p.mu.Unlock()

	public := status
	if status == StatusInvisible {
		public = StatusOffline
	}
	p.persist(ctx, userID, public, time.Time{})
	p.broadcast(ctx, userID, public, 0)
	return nil
}

// HandleDisconnect runs after the user's last connection is gone:
// record offline with a last-seen stamp and tell the audience.
func (p *PresenceService) HandleDisconnect(ctx context.Context, userID string) {
	lk := p.transition(userID)
	lk.Lock()
	defer lk.Unlock()

	// The registry answered "last connection" before this ran. A
	// reconnect can land in between; in that case the offline
	// transition is stale and must not overwrite the fresh online one.
	if p.registry.IsOnline(userID) {
		return
	}

	p.mu.Lock()
	delete(p.statuses, userID)
	p.mu.Unlock()

	now := time.Now()
	p.persist(ctx, userID, StatusOffline, now)
	p.broadcast(ctx, userID, StatusOffline, now.UnixMilli())
}

// StatusOf reports the user's public status.
func (p *PresenceService) StatusOf(userID string) string {
	p.mu.Lock()
	s, ok := p.statuses[userID]
	p.mu.Unlock()
	if !ok || s == StatusInvisible {
		return StatusOffline
	}
	return s
}

// Lookup reports the user's public status, consulting the redis mirror
// for users this instance does not track. Another gateway in the fleet
// may hold their connections.
func (p *PresenceService) Lookup(ctx context.Context, userID string) string {
	p.mu.Lock()
	s, tracked := p.statuses[userID]
	p.mu.Unlock()
	if tracked {
		if s == StatusInvisible {
			return StatusOffline
		}
		return s
	}
	status, online, err := storage.PresenceLookup(ctx, userID)
	if err != nil {
		logger.Debugf("presence mirror read failed user=%s err=%v", userID, err)
		return StatusOffline
	}
	if !online {
		return StatusOffline
	}
	return status
}

// persist writes through to the store and the redis mirror. Failures
// are logged and never block the broadcast.
func (p *PresenceService) persist(ctx context.Context, userID, status string, lastSeen time.Time) {
	wctx, cancel := context.WithTimeout(ctx, presenceWriteTimeout)
	defer cancel()
	if err := p.store.UpdateUserPresence(wctx, userID, status, lastSeen); err != nil {
		logger.Errorf("presence write failed user=%s status=%s err=%v", userID, status, err)
	}
	if status == StatusOffline {
		if err := storage.PresenceOffline(wctx, userID, lastSeen); err != nil {
			logger.Warnf("presence mirror offline failed user=%s err=%v", userID, err)
		}
		return
	}
	if err := storage.PresenceOnline(wctx, userID, status, p.redisTTL); err != nil {
		logger.Warnf("presence mirror online failed user=%s err=%v", userID, err)
	}
}

func (p *PresenceService) broadcast(ctx context.Context, userID, status string, lastSeen int64) {
	audience := p.audience(ctx, userID)
	if len(audience) == 0 {
		return
	}
	payload := BuildEvent(EventPresence, PresenceEvent{
		UserID:   userID,
		Status:   status,
		LastSeen: lastSeen,
	})
	p.fanout.Broadcast(p.registry.ConnectionsOfAll(audience), payload)
}

// audience is the user's friends plus everyone sharing a cached room
// with them, deduplicated and excluding the user.
func (p *PresenceService) audience(ctx context.Context, userID string) []string {
	seen := make(map[string]struct{})
	friends, err := p.store.Friends(ctx, userID)
	if err != nil {
		logger.Warnf("friend lookup failed user=%s err=%v", userID, err)
	}
	for _, f := range friends {
		seen[f] = struct{}{}
	}
	for _, roomID := range p.rooms.RoomsOf(userID) {
		for _, member := range p.rooms.MembersOf(roomID) {
			seen[member] = struct{}{}
		}
	}
	delete(seen, userID)
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for uid := range seen {
		out = append(out, uid)
	}
	sort.Strings(out)
	return out
}
