package chat

import (
	"encoding/json"

	"IMGateway/tools/errs"
)

// SignalRelay forwards call negotiation frames between users. Payloads
// are opaque to the gateway; they are passed through verbatim with the
// sender attached.
type SignalRelay struct {
	registry *ConnManager
	fanout   *Fanout
}

func NewSignalRelay(registry *ConnManager, fanout *Fanout) *SignalRelay {
	return &SignalRelay{registry: registry, fanout: fanout}
}

var relayEvents = map[string]string{
	FrameCallOffer:     EventCallOffer,
	FrameCallAnswer:    EventCallAnswer,
	FrameCallCandidate: EventCallCandidate,
	FrameCallEnd:       EventCallEnd,
}

// Relay delivers one signaling frame to every live connection of the
// target. A target with no live connection is rejected so the caller
// can fall back to ringing through other channels.
func (r *SignalRelay) Relay(fromUserID, frameType, targetUserID string, payload json.RawMessage) error {
	event, ok := relayEvents[frameType]
	if !ok {
		return errs.ErrValidation.WrapMsg("unknown signaling frame", "type", frameType)
	}
	if targetUserID == "" {
		return errs.ErrValidation.WrapMsg("target user is required")
	}
	conns := r.registry.ConnectionsOf(targetUserID)
	if len(conns) == 0 {
		return errs.ErrTargetUnavailable.Wrap()
	}
	r.fanout.Broadcast(conns, BuildEvent(event, CallEvent{
		FromUserID: fromUserID,
		Payload:    payload,
	}))
	return nil
}
