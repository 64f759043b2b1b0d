package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IMGateway/service/storage"
	"IMGateway/tools/errs"
)

type captureNotifier struct {
	mu    sync.Mutex
	users []string
}

func (n *captureNotifier) NotifyOffline(_ context.Context, userID string, _ *storage.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, userID)
}

func (n *captureNotifier) notified() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.users...)
}

type msgFixture struct {
	store    *storage.Memory
	registry *ConnManager
	rooms    *RoomIndex
	fanout   *Fanout
	notifier *captureNotifier
	svc      *MessageService
}

func newMsgFixture(t *testing.T) *msgFixture {
	store := storage.NewMemory()
	registry := testManager()
	rooms := NewRoomIndex(store)
	fanout := NewFanout(2, 64)
	notifier := &captureNotifier{}
	t.Cleanup(func() {
		registry.Close()
		fanout.Close()
	})
	return &msgFixture{
		store:    store,
		registry: registry,
		rooms:    rooms,
		fanout:   fanout,
		notifier: notifier,
		svc:      NewMessageService(store, registry, rooms, fanout, notifier, 5*time.Minute),
	}
}

// seedRoom creates a public room, persists the members and subscribes
// the connected ones.
func (f *msgFixture) seedRoom(t *testing.T, roomID string, members ...string) {
	t.Helper()
	f.store.AddRoom(roomID, roomID, false)
	for _, uid := range members {
		f.store.AddMember(roomID, uid, storage.RoleMember)
	}
}

func (f *msgFixture) connect(t *testing.T, connID, userID string) *WsConn {
	t.Helper()
	rec, _, err := f.registry.Register(connID, userID, nil)
	require.NoError(t, err)
	return rec
}

func (f *msgFixture) subscribe(t *testing.T, roomID string, users ...string) {
	t.Helper()
	for _, uid := range users {
		require.NoError(t, f.rooms.Join(context.Background(), roomID, uid))
	}
}

func TestSendValidation(t *testing.T) {
	f := newMsgFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  *SendMessageReq
	}{
		{"no target", &SendMessageReq{Content: "hi"}},
		{"both targets", &SendMessageReq{RoomID: "a", ReceiverID: "bob", Content: "hi"}},
		{"empty content", &SendMessageReq{RoomID: "a"}},
		{"blank content", &SendMessageReq{RoomID: "a", Content: "   "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Send(ctx, "alice", tc.req)
			assertCode(t, err, errs.ArgsError)
		})
	}
}

func TestSendRoomMessageDelivers(t *testing.T) {
	f := newMsgFixture(t)
	f.seedRoom(t, "general", "alice", "bob")
	alice := f.connect(t, "a1", "alice")
	bob := f.connect(t, "b1", "bob")
	f.subscribe(t, "general", "alice", "bob")

	msg, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		RoomID: "general", Content: "hello room",
	})
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID, "store assigns the id")
	assert.Equal(t, "text", msg.Type)

	for _, conn := range []*WsConn{alice, bob} {
		frame := recvFrameOfType(t, conn, EventMessageSent)
		var got storage.Message
		decodeData(t, frame, &got)
		assert.Equal(t, msg.ID, got.ID)
		assert.Equal(t, "hello room", got.Content)
		assert.Equal(t, "alice", got.SenderID)
	}
	assert.Empty(t, f.notifier.notified(), "everyone online, no push")
}

func TestSendRoomRequiresMembership(t *testing.T) {
	f := newMsgFixture(t)
	f.seedRoom(t, "general", "alice")

	_, err := f.svc.Send(context.Background(), "mallory", &SendMessageReq{
		RoomID: "general", Content: "let me in",
	})
	assertCode(t, err, errs.NotAMemberCode)
}

func TestSendWhileMuted(t *testing.T) {
	f := newMsgFixture(t)
	f.seedRoom(t, "general", "alice")
	f.store.MuteMember("general", "alice", time.Now().Add(time.Hour))

	_, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		RoomID: "general", Content: "hi",
	})
	assertCode(t, err, errs.MutedCode)
}

func TestSendAfterMuteExpired(t *testing.T) {
	f := newMsgFixture(t)
	f.seedRoom(t, "general", "alice")
	f.store.MuteMember("general", "alice", time.Now().Add(-time.Minute))

	_, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		RoomID: "general", Content: "hi",
	})
	require.NoError(t, err)
}

func TestSendDirectBlocked(t *testing.T) {
	f := newMsgFixture(t)
	f.store.Block("bob", "alice")

	_, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		ReceiverID: "bob", Content: "hi",
	})
	assertCode(t, err, errs.BlockedCode)
}

func TestSendDirectDeliversToBothEndpoints(t *testing.T) {
	f := newMsgFixture(t)
	alice := f.connect(t, "a1", "alice")
	bob := f.connect(t, "b1", "bob")

	msg, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		ReceiverID: "bob", Content: "psst",
	})
	require.NoError(t, err)

	for _, conn := range []*WsConn{alice, bob} {
		frame := recvFrameOfType(t, conn, EventMessageSent)
		var got storage.Message
		decodeData(t, frame, &got)
		assert.Equal(t, msg.ID, got.ID)
	}
	assert.Empty(t, f.notifier.notified())
}

func TestSendDirectOfflineReceiverGetsPush(t *testing.T) {
	f := newMsgFixture(t)
	f.connect(t, "a1", "alice")

	_, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		ReceiverID: "bob", Content: "you there?",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, f.notifier.notified())
}

func TestSendRoomOfflineMembersGetPush(t *testing.T) {
	f := newMsgFixture(t)
	f.seedRoom(t, "general", "alice", "bob", "carol")
	f.connect(t, "a1", "alice")
	f.subscribe(t, "general", "alice")

	_, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		RoomID: "general", Content: "anyone?",
	})
	require.NoError(t, err)
	// bob and carol are persistent members with no live connection.
	assert.ElementsMatch(t, []string{"bob", "carol"}, f.notifier.notified())
}

func TestSendPersistFailureAbortsDelivery(t *testing.T) {
	f := newMsgFixture(t)
	f.seedRoom(t, "general", "alice", "bob")
	bob := f.connect(t, "b1", "bob")
	f.subscribe(t, "general", "bob")
	f.store.FailSaves(1)

	_, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		RoomID: "general", Content: "lost",
	})
	assertCode(t, err, errs.PersistenceCode)
	expectNoFrame(t, bob)
	assert.Empty(t, f.notifier.notified())
}

func TestEditOwnRecentMessage(t *testing.T) {
	f := newMsgFixture(t)
	f.seedRoom(t, "general", "alice", "bob")
	bob := f.connect(t, "b1", "bob")
	f.subscribe(t, "general", "bob")

	msg, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		RoomID: "general", Content: "helo",
	})
	require.NoError(t, err)
	recvFrameOfType(t, bob, EventMessageSent)

	edited, err := f.svc.Edit(context.Background(), "alice", msg.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", edited.Content)
	assert.False(t, edited.EditedAt.IsZero())

	frame := recvFrameOfType(t, bob, EventMessageEdited)
	var ev EditEvent
	decodeData(t, frame, &ev)
	assert.Equal(t, msg.ID, ev.MessageID)
	assert.Equal(t, "hello", ev.NewContent)

	stored, err := f.store.Message(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", stored.Content)
}

func TestEditRejectsNonAuthor(t *testing.T) {
	f := newMsgFixture(t)
	f.seedRoom(t, "general", "alice", "bob")
	msg, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		RoomID: "general", Content: "mine",
	})
	require.NoError(t, err)

	_, err = f.svc.Edit(context.Background(), "bob", msg.ID, "hijacked")
	assertCode(t, err, errs.NotAuthorCode)
}

func TestEditWindowExpires(t *testing.T) {
	f := newMsgFixture(t)
	f.seedRoom(t, "general", "alice")
	msg, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		RoomID: "general", Content: "old",
	})
	require.NoError(t, err)

	f.svc.clock = func() time.Time { return msg.CreatedAt.Add(6 * time.Minute) }
	_, err = f.svc.Edit(context.Background(), "alice", msg.ID, "too late")
	assertCode(t, err, errs.EditWindowExpiredCode)

	f.svc.clock = func() time.Time { return msg.CreatedAt.Add(4 * time.Minute) }
	_, err = f.svc.Edit(context.Background(), "alice", msg.ID, "in time")
	require.NoError(t, err)
}

func TestEditMissingMessage(t *testing.T) {
	f := newMsgFixture(t)
	_, err := f.svc.Edit(context.Background(), "alice", "nope", "x")
	assertCode(t, err, errs.MessageNotFoundCode)
}

func TestDeleteByAuthor(t *testing.T) {
	f := newMsgFixture(t)
	f.seedRoom(t, "general", "alice", "bob")
	bob := f.connect(t, "b1", "bob")
	f.subscribe(t, "general", "bob")

	msg, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		RoomID: "general", Content: "oops",
	})
	require.NoError(t, err)
	recvFrameOfType(t, bob, EventMessageSent)

	require.NoError(t, f.svc.Delete(context.Background(), "alice", msg.ID))
	frame := recvFrameOfType(t, bob, EventMessageDeleted)
	var ev DeleteEvent
	decodeData(t, frame, &ev)
	assert.Equal(t, msg.ID, ev.MessageID)

	// A deleted message reads as missing afterwards.
	_, err = f.svc.Edit(context.Background(), "alice", msg.ID, "x")
	assertCode(t, err, errs.MessageNotFoundCode)
}

func TestDeleteByModerator(t *testing.T) {
	f := newMsgFixture(t)
	f.store.AddRoom("general", "general", false)
	f.store.AddMember("general", "alice", storage.RoleMember)
	f.store.AddMember("general", "mod", storage.RoleModerator)
	f.store.AddMember("general", "bob", storage.RoleMember)

	msg, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		RoomID: "general", Content: "spam",
	})
	require.NoError(t, err)

	assertCode(t, f.svc.Delete(context.Background(), "bob", msg.ID), errs.InsufficientRoleCode)
	require.NoError(t, f.svc.Delete(context.Background(), "mod", msg.ID))
}

func TestDeleteDirectOnlyByAuthor(t *testing.T) {
	f := newMsgFixture(t)
	msg, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		ReceiverID: "bob", Content: "secret",
	})
	require.NoError(t, err)

	assertCode(t, f.svc.Delete(context.Background(), "bob", msg.ID), errs.InsufficientRoleCode)
	require.NoError(t, f.svc.Delete(context.Background(), "alice", msg.ID))
}

func TestReactAddIsIdempotent(t *testing.T) {
	f := newMsgFixture(t)
	f.seedRoom(t, "general", "alice", "bob")
	msg, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		RoomID: "general", Content: "react to me",
	})
	require.NoError(t, err)
	ctx := context.Background()

	counts, err := f.svc.React(ctx, "bob", msg.ID, "👍", "add")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"👍": 1}, counts)

	counts, err = f.svc.React(ctx, "bob", msg.ID, "👍", "add")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"👍": 1}, counts, "same user, same emoji counts once")

	counts, err = f.svc.React(ctx, "alice", msg.ID, "👍", "add")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"👍": 2}, counts)

	counts, err = f.svc.React(ctx, "bob", msg.ID, "👍", "remove")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"👍": 1}, counts)
}

func TestReactBroadcastsCounts(t *testing.T) {
	f := newMsgFixture(t)
	f.seedRoom(t, "general", "alice", "bob")
	bob := f.connect(t, "b1", "bob")
	f.subscribe(t, "general", "bob")
	msg, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		RoomID: "general", Content: "hi",
	})
	require.NoError(t, err)
	recvFrameOfType(t, bob, EventMessageSent)

	_, err = f.svc.React(context.Background(), "alice", msg.ID, "🎉", "add")
	require.NoError(t, err)

	frame := recvFrameOfType(t, bob, EventReaction)
	var ev ReactionEvent
	decodeData(t, frame, &ev)
	assert.Equal(t, "add", ev.Action)
	assert.Equal(t, map[string]int{"🎉": 1}, ev.Counts)
}

func TestReactRequiresVisibility(t *testing.T) {
	f := newMsgFixture(t)
	f.seedRoom(t, "general", "alice")
	msg, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		RoomID: "general", Content: "members only",
	})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = f.svc.React(ctx, "mallory", msg.ID, "👀", "add")
	assertCode(t, err, errs.NotAMemberCode)

	direct, err := f.svc.Send(ctx, "alice", &SendMessageReq{
		ReceiverID: "bob", Content: "private",
	})
	require.NoError(t, err)
	_, err = f.svc.React(ctx, "mallory", direct.ID, "👀", "add")
	assertCode(t, err, errs.InsufficientRoleCode)
}

func TestReactValidation(t *testing.T) {
	f := newMsgFixture(t)
	f.seedRoom(t, "general", "alice")
	msg, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		RoomID: "general", Content: "hi",
	})
	require.NoError(t, err)

	_, err = f.svc.React(context.Background(), "alice", msg.ID, "👍", "toggle")
	assertCode(t, err, errs.ArgsError)
	_, err = f.svc.React(context.Background(), "alice", msg.ID, "", "add")
	assertCode(t, err, errs.ArgsError)
}

func TestForwardRecordsProvenance(t *testing.T) {
	f := newMsgFixture(t)
	f.seedRoom(t, "general", "alice", "bob")
	f.seedRoom(t, "side", "bob")

	src, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		RoomID: "general", Content: "worth sharing",
	})
	require.NoError(t, err)

	fwd, err := f.svc.Forward(context.Background(), "bob", &ForwardMessageReq{
		MessageID: src.ID, RoomID: "side",
	})
	require.NoError(t, err)
	assert.Equal(t, src.ID, fwd.ForwardOf)
	assert.Equal(t, "worth sharing", fwd.Content)
	assert.Equal(t, "bob", fwd.SenderID)

	stored, err := f.store.Message(context.Background(), fwd.ID)
	require.NoError(t, err)
	assert.Equal(t, src.ID, stored.ForwardOf)
}

func TestForwardReAuthorizesTarget(t *testing.T) {
	f := newMsgFixture(t)
	f.seedRoom(t, "general", "alice", "bob")
	f.seedRoom(t, "staff", "alice")

	src, err := f.svc.Send(context.Background(), "alice", &SendMessageReq{
		RoomID: "general", Content: "hi",
	})
	require.NoError(t, err)

	// bob can view the source but is not in the target room.
	_, err = f.svc.Forward(context.Background(), "bob", &ForwardMessageReq{
		MessageID: src.ID, RoomID: "staff",
	})
	assertCode(t, err, errs.NotAMemberCode)

	// mallory cannot even view the source.
	_, err = f.svc.Forward(context.Background(), "mallory", &ForwardMessageReq{
		MessageID: src.ID, RoomID: "general",
	})
	assertCode(t, err, errs.NotAMemberCode)
}
