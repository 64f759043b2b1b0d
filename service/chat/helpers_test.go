package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"IMGateway/tools/errs"
)

const recvTimeout = 2 * time.Second

func testManager() *ConnManager {
	return NewConnManager("gw-test", ManagerConf{})
}

// recvFrame pulls the next frame off a connection's send queue.
func recvFrame(t *testing.T, c *WsConn) *Frame {
	t.Helper()
	select {
	case raw := <-c.SendChan:
		f, err := ParseFrameJSON(raw)
		require.NoError(t, err)
		return f
	case <-time.After(recvTimeout):
		t.Fatalf("no frame for conn %s within %s", c.ID, recvTimeout)
		return nil
	}
}

// recvFrameOfType skips frames until one of the wanted type arrives.
func recvFrameOfType(t *testing.T, c *WsConn, frameType string) *Frame {
	t.Helper()
	deadline := time.After(recvTimeout)
	for {
		select {
		case raw := <-c.SendChan:
			f, err := ParseFrameJSON(raw)
			require.NoError(t, err)
			if f.Type == frameType {
				return f
			}
		case <-deadline:
			t.Fatalf("no %s frame for conn %s within %s", frameType, c.ID, recvTimeout)
			return nil
		}
	}
}

// expectNoFrame asserts the queue stays quiet for a short window.
func expectNoFrame(t *testing.T, c *WsConn) {
	t.Helper()
	select {
	case raw := <-c.SendChan:
		f, _ := ParseFrameJSON(raw)
		t.Fatalf("unexpected frame %s for conn %s", f.Type, c.ID)
	case <-time.After(150 * time.Millisecond):
	}
}

func decodeData(t *testing.T, f *Frame, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(f.Data, out))
}

func assertCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	coded, ok := errs.AsCodeError(err)
	require.True(t, ok, "expected a coded error, got %v", err)
	require.Equal(t, code, coded.Code, "unexpected code for %v", err)
}
