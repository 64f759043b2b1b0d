package chat

import (
	"sync"
	"time"
)

type typingEntry struct {
	gen   uint64
	timer *time.Timer
}

// TypingTracker keeps one expiring entry per (room, user). Callbacks
// fire outside the lock: onStart when an entry is created, onStop when
// it is removed, whether by an explicit stop, TTL expiry or disconnect.
// Exactly one onStop fires per entry however those races resolve.
type TypingTracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]map[string]*typingEntry // roomID -> userID
	onStart func(roomID, userID string)
	onStop  func(roomID, userID string)
}

func NewTypingTracker(ttl time.Duration, onStart, onStop func(roomID, userID string)) *TypingTracker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if onStart == nil {
		onStart = func(string, string) {}
	}
	if onStop == nil {
		onStop = func(string, string) {}
	}
	return &TypingTracker{
		ttl:     ttl,
		entries: make(map[string]map[string]*typingEntry),
		onStart: onStart,
		onStop:  onStop,
	}
}

// Start creates or refreshes the typing entry. Only a fresh entry
// broadcasts; refreshing an existing one just extends its deadline.
func (t *TypingTracker) Start(roomID, userID string) {
	t.mu.Lock()
	set := t.entries[roomID]
	if set == nil {
		set = make(map[string]*typingEntry)
		t.entries[roomID] = set
	}
	e, exists := set[userID]
	if exists {
		// A refresh bumps the generation so an already-fired timer
		// callback for the old deadline becomes a no-op.
		e.timer.Stop()
		e.gen++
		gen := e.gen
		e.timer = time.AfterFunc(t.ttl, func() { t.expire(roomID, userID, gen) })
		t.mu.Unlock()
		return
	}
	e = &typingEntry{}
	gen := e.gen
	e.timer = time.AfterFunc(t.ttl, func() { t.expire(roomID, userID, gen) })
	set[userID] = e
	t.mu.Unlock()
	t.onStart(roomID, userID)
}

// Stop removes the entry if present and broadcasts the stop.
func (t *TypingTracker) Stop(roomID, userID string) {
	t.mu.Lock()
	removed := t.remove(roomID, userID)
	t.mu.Unlock()
	if removed {
		t.onStop(roomID, userID)
	}
}

// StopAll clears every entry the user holds, for the disconnect path.
func (t *TypingTracker) StopAll(userID string) {
	t.mu.Lock()
	var rooms []string
	for roomID, set := range t.entries {
		if _, ok := set[userID]; ok {
			rooms = append(rooms, roomID)
		}
	}
	for _, roomID := range rooms {
		t.remove(roomID, userID)
	}
	t.mu.Unlock()
	for _, roomID := range rooms {
		t.onStop(roomID, userID)
	}
}

// TypingIn returns a snapshot of who is typing in the room.
func (t *TypingTracker) TypingIn(roomID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.entries[roomID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for uid := range set {
		out = append(out, uid)
	}
	return out
}

func (t *TypingTracker) expire(roomID, userID string, gen uint64) {
	t.mu.Lock()
	e := t.entries[roomID][userID]
	if e == nil || e.gen != gen {
		// Entry already stopped or refreshed since this timer was armed.
		t.mu.Unlock()
		return
	}
	t.remove(roomID, userID)
	t.mu.Unlock()
	t.onStop(roomID, userID)
}

// remove must be called with the lock held.
func (t *TypingTracker) remove(roomID, userID string) bool {
	set := t.entries[roomID]
	e, ok := set[userID]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(set, userID)
	if len(set) == 0 {
		delete(t.entries, roomID)
	}
	return true
}
