package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	invalidated [][2]string
	dropped     []string
}

func (c *fakeCache) Invalidate(roomID, userID string) {
	c.invalidated = append(c.invalidated, [2]string{roomID, userID})
}

func (c *fakeCache) DropRoom(roomID string) {
	c.dropped = append(c.dropped, roomID)
}

func TestMembershipHandlerShrinksCache(t *testing.T) {
	cache := &fakeCache{}
	h := &membershipHandler{cache: cache}

	for _, action := range []string{"leave", "kick", "ban"} {
		err := h.Handle("t", nil, []byte(`{"action":"`+action+`","room_id":"general","user_id":"bob"}`))
		require.NoError(t, err)
	}
	assert.Equal(t, [][2]string{
		{"general", "bob"}, {"general", "bob"}, {"general", "bob"},
	}, cache.invalidated)

	require.NoError(t, h.Handle("t", nil, []byte(`{"action":"room_deleted","room_id":"general"}`)))
	assert.Equal(t, []string{"general"}, cache.dropped)
}

func TestMembershipHandlerDropsPoison(t *testing.T) {
	cache := &fakeCache{}
	h := &membershipHandler{cache: cache}

	// Malformed and unknown events must not error, or the consumer
	// group would spin on them forever.
	require.NoError(t, h.Handle("t", nil, []byte(`not json`)))
	require.NoError(t, h.Handle("t", nil, []byte(`{"action":"promote","room_id":"general"}`)))
	assert.Empty(t, cache.invalidated)
	assert.Empty(t, cache.dropped)
}
