package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveMessageAssignsIDAndTimestamp(t *testing.T) {
	s := NewMemory()
	msg := &Message{RoomID: "general", SenderID: "alice", Content: "hi", Type: "text"}
	require.NoError(t, s.SaveMessage(context.Background(), msg))
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())

	got, err := s.Message(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Content)
}

func TestReactionUniqueness(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	msg := &Message{RoomID: "general", SenderID: "alice", Content: "hi", Type: "text"}
	require.NoError(t, s.SaveMessage(ctx, msg))

	require.NoError(t, s.AddReaction(ctx, msg.ID, "bob", "👍"))
	require.NoError(t, s.AddReaction(ctx, msg.ID, "bob", "👍"))
	require.NoError(t, s.AddReaction(ctx, msg.ID, "carol", "👍"))

	counts, err := s.ReactionCounts(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"👍": 2}, counts)

	require.NoError(t, s.RemoveReaction(ctx, msg.ID, "bob", "👍"))
	require.NoError(t, s.RemoveReaction(ctx, msg.ID, "bob", "👍"))
	counts, err = s.ReactionCounts(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"👍": 1}, counts)

	assert.ErrorIs(t, s.AddReaction(ctx, "missing", "bob", "👍"), ErrNotFound)
}

func TestLookupsReturnCopies(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	s.AddRoom("general", "General", false)
	s.AddMember("general", "alice", RoleOwner)

	m, err := s.Membership(ctx, "general", "alice")
	require.NoError(t, err)
	m.Role = RoleMember

	again, err := s.Membership(ctx, "general", "alice")
	require.NoError(t, err)
	assert.Equal(t, RoleOwner, again.Role, "mutating a result must not touch the store")
}

func TestBlocksAreOneDirectional(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	s.Block("bob", "alice")

	blocked, err := s.IsBlocked(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = s.IsBlocked(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestRoleCanModerate(t *testing.T) {
	assert.False(t, RoleMember.CanModerate())
	assert.True(t, RoleModerator.CanModerate())
	assert.True(t, RoleAdmin.CanModerate())
	assert.True(t, RoleOwner.CanModerate())
}
