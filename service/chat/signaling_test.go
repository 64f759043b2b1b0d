package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IMGateway/tools/errs"
)

func newSignalFixture(t *testing.T) (*ConnManager, *SignalRelay) {
	registry := testManager()
	fanout := NewFanout(2, 64)
	t.Cleanup(func() {
		registry.Close()
		fanout.Close()
	})
	return registry, NewSignalRelay(registry, fanout)
}

func TestRelayDeliversToEveryTargetConnection(t *testing.T) {
	registry, relay := newSignalFixture(t)
	b1, _, err := registry.Register("b1", "bob", nil)
	require.NoError(t, err)
	b2, _, err := registry.Register("b2", "bob", nil)
	require.NoError(t, err)

	sdp := json.RawMessage(`{"sdp":"v=0 fake offer","type":"offer"}`)
	require.NoError(t, relay.Relay("alice", FrameCallOffer, "bob", sdp))

	for _, conn := range []*WsConn{b1, b2} {
		frame := recvFrameOfType(t, conn, EventCallOffer)
		var ev CallEvent
		decodeData(t, frame, &ev)
		assert.Equal(t, "alice", ev.FromUserID)
		assert.JSONEq(t, string(sdp), string(ev.Payload), "payload passes through verbatim")
	}
}

func TestRelayOfflineTarget(t *testing.T) {
	_, relay := newSignalFixture(t)
	err := relay.Relay("alice", FrameCallOffer, "bob", nil)
	assertCode(t, err, errs.TargetUnavailableCode)
}

func TestRelayKinds(t *testing.T) {
	registry, relay := newSignalFixture(t)
	bob, _, err := registry.Register("b1", "bob", nil)
	require.NoError(t, err)

	kinds := map[string]string{
		FrameCallAnswer:    EventCallAnswer,
		FrameCallCandidate: EventCallCandidate,
		FrameCallEnd:       EventCallEnd,
	}
	for frameType, event := range kinds {
		require.NoError(t, relay.Relay("alice", frameType, "bob", json.RawMessage(`{}`)))
		recvFrameOfType(t, bob, event)
	}

	err = relay.Relay("alice", "call_mystery", "bob", nil)
	assertCode(t, err, errs.ArgsError)
	err = relay.Relay("alice", FrameCallOffer, "", nil)
	assertCode(t, err, errs.ArgsError)
}
