package storage

import (
	"context"
	"sync"
	"time"

	"IMGateway/tools/ids"
)

// Memory is a map-backed Store for unit tests and -dev runs. It mirrors
// the mongo implementation's semantics including the reaction
// uniqueness rule and SaveMessage id assignment.
type Memory struct {
	mu            sync.Mutex
	rooms         map[string]*Room
	memberships   map[string]map[string]*Membership // roomID -> userID
	friends       map[string]map[string]struct{}    // userID -> accepted friends
	blocks        map[string]map[string]struct{}    // ownerID -> blocked users
	messages      map[string]*Message
	reactions     map[string]map[string]map[string]struct{} // msgID -> emoji -> userID
	presence      map[string]string
	lastSeen      map[string]time.Time
	readNotifs    map[string]map[string]struct{} // userID -> notification ids
	failNextSaves int
}

func NewMemory() *Memory {
	return &Memory{
		rooms:       make(map[string]*Room),
		memberships: make(map[string]map[string]*Membership),
		friends:     make(map[string]map[string]struct{}),
		blocks:      make(map[string]map[string]struct{}),
		messages:    make(map[string]*Message),
		reactions:   make(map[string]map[string]map[string]struct{}),
		presence:    make(map[string]string),
		lastSeen:    make(map[string]time.Time),
		readNotifs:  make(map[string]map[string]struct{}),
	}
}

// ---- test fixtures ----

func (s *Memory) AddRoom(roomID, name string, private bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[roomID] = &Room{ID: roomID, Name: name, Private: private, CreatedAt: time.Now()}
}

func (s *Memory) AddMember(roomID, userID string, role Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.memberships[roomID] == nil {
		s.memberships[roomID] = make(map[string]*Membership)
	}
	s.memberships[roomID][userID] = &Membership{
		RoomID: roomID, UserID: userID, Role: role, JoinedAt: time.Now(),
	}
}

func (s *Memory) RemoveMember(roomID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mm := s.memberships[roomID]; mm != nil {
		delete(mm, userID)
	}
}

func (s *Memory) MuteMember(roomID, userID string, until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mm := s.memberships[roomID]; mm != nil {
		if m := mm[userID]; m != nil {
			m.MutedUntil = until
		}
	}
}

func (s *Memory) AddFriend(userID, friendID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pair := range [][2]string{{userID, friendID}, {friendID, userID}} {
		if s.friends[pair[0]] == nil {
			s.friends[pair[0]] = make(map[string]struct{})
		}
		s.friends[pair[0]][pair[1]] = struct{}{}
	}
}

func (s *Memory) Block(ownerID, otherID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocks[ownerID] == nil {
		s.blocks[ownerID] = make(map[string]struct{})
	}
	s.blocks[ownerID][otherID] = struct{}{}
}

// FailSaves makes the next n SaveMessage calls fail, for exercising the
// no-partial-delivery path.
func (s *Memory) FailSaves(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextSaves = n
}

// Presence returns the last persisted status and last-seen for a user.
func (s *Memory) Presence(userID string) (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence[userID], s.lastSeen[userID]
}

// ReadNotifications lists notification ids marked read for a user.
func (s *Memory) ReadNotifications(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.readNotifs[userID]))
	for id := range s.readNotifs[userID] {
		out = append(out, id)
	}
	return out
}

// ---- Store ----

func (s *Memory) Room(_ context.Context, roomID string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Memory) Membership(_ context.Context, roomID, userID string) (*Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mm := s.memberships[roomID]
	if mm == nil {
		return nil, ErrNotFound
	}
	m, ok := mm[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Memory) RoomMemberIDs(_ context.Context, roomID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mm := s.memberships[roomID]
	out := make([]string, 0, len(mm))
	for uid := range mm {
		out = append(out, uid)
	}
	return out, nil
}

func (s *Memory) Friends(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.friends[userID]))
	for uid := range s.friends[userID] {
		out = append(out, uid)
	}
	return out, nil
}

func (s *Memory) IsBlocked(_ context.Context, ownerID, otherID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, blocked := s.blocks[ownerID][otherID]
	return blocked, nil
}

func (s *Memory) SaveMessage(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextSaves > 0 {
		s.failNextSaves--
		return context.DeadlineExceeded
	}
	if msg.ID == "" {
		msg.ID = ids.GenerateString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	cp := *msg
	s.messages[msg.ID] = &cp
	return nil
}

func (s *Memory) Message(_ context.Context, id string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Memory) UpdateMessageContent(_ context.Context, id, content string, editedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	m.Content = content
	m.EditedAt = editedAt
	return nil
}

func (s *Memory) SoftDeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	m.Deleted = true
	return nil
}

func (s *Memory) AddReaction(_ context.Context, messageID, userID, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[messageID]; !ok {
		return ErrNotFound
	}
	if s.reactions[messageID] == nil {
		s.reactions[messageID] = make(map[string]map[string]struct{})
	}
	if s.reactions[messageID][emoji] == nil {
		s.reactions[messageID][emoji] = make(map[string]struct{})
	}
	s.reactions[messageID][emoji][userID] = struct{}{}
	return nil
}

func (s *Memory) RemoveReaction(_ context.Context, messageID, userID, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if em := s.reactions[messageID]; em != nil {
		if users := em[emoji]; users != nil {
			delete(users, userID)
			if len(users) == 0 {
				delete(em, emoji)
			}
		}
	}
	return nil
}

func (s *Memory) ReactionCounts(_ context.Context, messageID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for emoji, users := range s.reactions[messageID] {
		out[emoji] = len(users)
	}
	return out, nil
}

func (s *Memory) UpdateUserPresence(_ context.Context, userID, status string, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence[userID] = status
	s.lastSeen[userID] = lastSeen
	return nil
}

func (s *Memory) MarkNotificationsRead(_ context.Context, userID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readNotifs[userID] == nil {
		s.readNotifs[userID] = make(map[string]struct{})
	}
	for _, id := range ids {
		s.readNotifs[userID][id] = struct{}{}
	}
	return nil
}
