package chat

import (
	"context"
	"sync"

	"IMGateway/service/storage"
	"IMGateway/tools/errs"
)

// RoomIndex caches which connected users are subscribed to which rooms.
// Entries survive disconnects; they are removed only by explicit leaves
// or by membership invalidation events from the broker.
type RoomIndex struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{} // roomID -> userID set
	store   storage.Store
}

func NewRoomIndex(store storage.Store) *RoomIndex {
	return &RoomIndex{
		members: make(map[string]map[string]struct{}),
		store:   store,
	}
}

// Join verifies persistent membership and then subscribes the user.
// The store lookup runs before the lock is taken.
func (r *RoomIndex) Join(ctx context.Context, roomID, userID string) error {
	_, err := r.store.Membership(ctx, roomID, userID)
	if err == storage.ErrNotFound {
		room, rerr := r.store.Room(ctx, roomID)
		if rerr != nil && rerr != storage.ErrNotFound {
			return errs.ErrPersistence.WrapMsg("room lookup failed", "room", roomID)
		}
		if rerr == nil && room.Private {
			return errs.ErrRoomPrivate.Wrap()
		}
		return errs.ErrNotAMember.Wrap()
	}
	if err != nil {
		return errs.ErrPersistence.WrapMsg("membership lookup failed", "room", roomID, "user", userID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.members[roomID]
	if set == nil {
		set = make(map[string]struct{})
		r.members[roomID] = set
	}
	set[userID] = struct{}{}
	return nil
}

// Leave unsubscribes the user. Leaving a room the user is not in is a
// no-op.
func (r *RoomIndex) Leave(roomID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drop(roomID, userID)
}

// MembersOf returns a snapshot of the subscribed users of a room.
func (r *RoomIndex) MembersOf(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.members[roomID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for uid := range set {
		out = append(out, uid)
	}
	return out
}

// RoomsOf returns a snapshot of the rooms the user is subscribed to.
func (r *RoomIndex) RoomsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for roomID, set := range r.members {
		if _, ok := set[userID]; ok {
			out = append(out, roomID)
		}
	}
	return out
}

func (r *RoomIndex) Contains(roomID, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[roomID][userID]
	return ok
}

// Invalidate removes one user from one room, used when a membership
// revocation event arrives from the broker.
func (r *RoomIndex) Invalidate(roomID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drop(roomID, userID)
}

// DropRoom removes a whole room from the cache.
func (r *RoomIndex) DropRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, roomID)
}

func (r *RoomIndex) drop(roomID, userID string) {
	set := r.members[roomID]
	if set == nil {
		return
	}
	delete(set, userID)
	if len(set) == 0 {
		delete(r.members, roomID)
	}
}
