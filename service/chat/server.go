package chat

import (
	"IMGateway/global"
	"IMGateway/service/storage"
	"IMGateway/tools/safe"
)

// Server owns the gateway services and wires them together. Handlers
// reach the services through the Context passed on dispatch.
type Server struct {
	conf *global.AppConfig

	store    storage.Store
	conns    *ConnManager
	rooms    *RoomIndex
	typing   *TypingTracker
	presence *PresenceService
	messages *MessageService
	signal   *SignalRelay
	fanout   *Fanout
	disp     *Dispatcher
}

// NewServer requires conf and store; notifier may be nil when offline
// pushes are not wired.
func NewServer(conf *global.AppConfig, store storage.Store, notifier Notifier) *Server {
	safe.MustNotNil(conf, "conf")
	safe.MustNotNil(store, "store")
	s := &Server{
		conf:   conf,
		store:  store,
		fanout: NewFanout(8, 4096),
		disp:   NewDispatcher(),
	}
	s.conns = NewConnManager(conf.GatewayID, ManagerConf{
		HeartbeatTTL: conf.HeartbeatTTL(),
	})
	s.rooms = NewRoomIndex(store)
	s.presence = NewPresenceService(store, s.conns, s.rooms, s.fanout, conf.HeartbeatTTL())
	s.messages = NewMessageService(store, s.conns, s.rooms, s.fanout, notifier, conf.EditWindow())
	s.signal = NewSignalRelay(s.conns, s.fanout)
	s.typing = NewTypingTracker(conf.TypingTTL(),
		func(roomID, userID string) { s.broadcastTyping(EventTypingStart, roomID, userID) },
		func(roomID, userID string) { s.broadcastTyping(EventTypingStop, roomID, userID) },
	)
	return s
}

// broadcastTyping tells everyone subscribed to the room except the
// typist.
func (s *Server) broadcastTyping(event, roomID, userID string) {
	members := s.rooms.MembersOf(roomID)
	audience := members[:0:0]
	for _, uid := range members {
		if uid != userID {
			audience = append(audience, uid)
		}
	}
	if len(audience) == 0 {
		return
	}
	payload := BuildEvent(event, TypingEvent{RoomID: roomID, UserID: userID})
	s.fanout.Broadcast(s.conns.ConnectionsOfAll(audience), payload)
}

func (s *Server) Conf() *global.AppConfig    { return s.conf }
func (s *Server) Store() storage.Store       { return s.store }
func (s *Server) Conns() *ConnManager        { return s.conns }
func (s *Server) Rooms() *RoomIndex          { return s.rooms }
func (s *Server) Typing() *TypingTracker     { return s.typing }
func (s *Server) Presence() *PresenceService { return s.presence }
func (s *Server) Messages() *MessageService  { return s.messages }
func (s *Server) Signal() *SignalRelay       { return s.signal }
func (s *Server) Fanout() *Fanout            { return s.fanout }
func (s *Server) Dispatcher() *Dispatcher    { return s.disp }

// Close stops the background workers. Live connections are closed by
// their own read loops.
func (s *Server) Close() {
	s.conns.Close()
	s.fanout.Close()
}
