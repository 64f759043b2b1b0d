package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups with no matching row.
var ErrNotFound = errors.New("storage: not found")

type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
	RoleOwner     Role = "owner"
)

// CanModerate reports whether the role may delete other users' messages.
func (r Role) CanModerate() bool {
	return r == RoleModerator || r == RoleAdmin || r == RoleOwner
}

type Room struct {
	ID        string    `bson:"_id"        json:"id"`
	Name      string    `bson:"name"       json:"name"`
	Private   bool      `bson:"private"    json:"private"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type Membership struct {
	RoomID     string    `bson:"room_id"     json:"room_id"`
	UserID     string    `bson:"user_id"     json:"user_id"`
	Role       Role      `bson:"role"        json:"role"`
	MutedUntil time.Time `bson:"muted_until" json:"muted_until"`
	JoinedAt   time.Time `bson:"joined_at"   json:"joined_at"`
}

// Muted reports whether the member's mute deadline is still in the future.
func (m *Membership) Muted(now time.Time) bool {
	return m.MutedUntil.After(now)
}

type Message struct {
	ID         string    `bson:"_id"         json:"id"`
	RoomID     string    `bson:"room_id,omitempty"     json:"room_id,omitempty"`
	SenderID   string    `bson:"sender_id"   json:"sender_id"`
	ReceiverID string    `bson:"receiver_id,omitempty" json:"receiver_id,omitempty"`
	Content    string    `bson:"content"     json:"content"`
	Type       string    `bson:"type"        json:"type"`
	ReplyTo    string    `bson:"reply_to,omitempty"    json:"reply_to,omitempty"`
	ForwardOf  string    `bson:"forward_of,omitempty"  json:"forward_of,omitempty"`
	CreatedAt  time.Time `bson:"created_at"  json:"created_at"`
	EditedAt   time.Time `bson:"edited_at,omitempty"   json:"edited_at,omitempty"`
	Deleted    bool      `bson:"deleted"     json:"deleted"`
}

// Direct reports whether the message targets a single receiver instead
// of a room.
func (m *Message) Direct() bool { return m.ReceiverID != "" }

// Store is the persistent collaborator behind the gateway. Every call
// may block on I/O; callers must not hold registry locks across calls.
// The store stays the single source of truth for membership, role, mute
// and block decisions; the gateway caches are routing aids only.
type Store interface {
	// Rooms and membership.
	Room(ctx context.Context, roomID string) (*Room, error)
	Membership(ctx context.Context, roomID, userID string) (*Membership, error)
	RoomMemberIDs(ctx context.Context, roomID string) ([]string, error)

	// Social graph.
	Friends(ctx context.Context, userID string) ([]string, error)
	IsBlocked(ctx context.Context, ownerID, otherID string) (bool, error)

	// Messages. SaveMessage assigns the id and server timestamp.
	SaveMessage(ctx context.Context, msg *Message) error
	Message(ctx context.Context, id string) (*Message, error)
	UpdateMessageContent(ctx context.Context, id, content string, editedAt time.Time) error
	SoftDeleteMessage(ctx context.Context, id string) error

	// Reactions, unique on (message, user, emoji) so add is idempotent.
	AddReaction(ctx context.Context, messageID, userID, emoji string) error
	RemoveReaction(ctx context.Context, messageID, userID, emoji string) error
	ReactionCounts(ctx context.Context, messageID string) (map[string]int, error)

	// User record.
	UpdateUserPresence(ctx context.Context, userID, status string, lastSeen time.Time) error
	MarkNotificationsRead(ctx context.Context, userID string, ids []string) error
}
