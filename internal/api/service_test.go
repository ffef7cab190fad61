package api

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/stagechat/internal/bus"
	"github.com/matheus3301/stagechat/internal/messaging"
	"github.com/matheus3301/stagechat/internal/status"
	"github.com/matheus3301/stagechat/internal/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type harness struct {
	db      *store.DB
	bus     *bus.Bus
	machine *status.Machine
	client  *MessagingClient
}

func newHarness(t *testing.T, users ...string) *harness {
	t.Helper()
	db, err := store.Open(store.Options{Driver: store.DriverSQLite, DSN: filepath.Join(t.TempDir(), "api.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Migrate()
	require.NoError(t, err)
	for _, id := range users {
		require.NoError(t, db.UpsertProfile(context.Background(), &store.Profile{ID: id, FullName: "User " + id}))
	}

	b := bus.New()
	machine := status.NewMachine(b)
	core, err := messaging.New(db, b, zap.NewNop(), nil, messaging.Options{})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterMessagingServer(srv, NewMessagingService("test", core, db, b, machine, zap.NewNop()))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &harness{db: db, bus: b, machine: machine, client: NewMessagingClient(conn)}
}

func as(user string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), UserIDHeader, user)
}

func requireKind(t *testing.T, err error, code codes.Code, kind string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, grpcstatus.Code(err), err.Error())
	require.Equal(t, kind, ErrorKind(err))
}

func TestMissingUserIsUnauthenticated(t *testing.T) {
	h := newHarness(t)

	_, err := h.client.ListConversations(context.Background())
	requireKind(t, err, codes.Unauthenticated, KindUnauthenticated)
}

func TestDirectConversationRoundTrip(t *testing.T) {
	h := newHarness(t, "alice", "bob")

	created, err := h.client.CreateConversation(as("alice"), &CreateConversationRequest{ParticipantIDs: []string{"bob"}})
	require.NoError(t, err)
	conv := created.Conversation
	require.False(t, conv.IsGroup)
	require.Len(t, conv.Participants, 2)

	again, err := h.client.CreateConversation(as("bob"), &CreateConversationRequest{ParticipantIDs: []string{"alice"}})
	require.NoError(t, err)
	require.Equal(t, conv.ID, again.Conversation.ID)

	sent, err := h.client.SendMessage(as("alice"), &SendMessageRequest{ConversationID: conv.ID, Content: " hi "})
	require.NoError(t, err)
	require.Equal(t, "hi", sent.Message.Content)
	require.Equal(t, "alice", sent.Message.Sender.ID)

	page, err := h.client.ListMessages(as("bob"), &ListMessagesRequest{ConversationID: conv.ID})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	require.Equal(t, "hi", page.Messages[0].Content)
	require.Equal(t, sent.Message.CreatedAtUnixMs, page.NextBeforeUnixMs)
	require.Equal(t, sent.Message.ID, page.NextBeforeID)

	older, err := h.client.ListMessages(as("bob"), &ListMessagesRequest{
		ConversationID: conv.ID,
		BeforeUnixMs:   page.NextBeforeUnixMs,
		BeforeID:       page.NextBeforeID,
	})
	require.NoError(t, err)
	require.Empty(t, older.Messages)

	list, err := h.client.ListConversations(as("bob"))
	require.NoError(t, err)
	require.Len(t, list.Conversations, 1)
	require.Equal(t, "hi", list.Conversations[0].LastMessage.Content)
}

func TestUnreadAndMarkRead(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	created, err := h.client.CreateConversation(as("alice"), &CreateConversationRequest{ParticipantIDs: []string{"bob"}})
	require.NoError(t, err)
	convID := created.Conversation.ID

	// Timestamps come from the wall clock at millisecond resolution.
	time.Sleep(5 * time.Millisecond)
	_, err = h.client.SendMessage(as("alice"), &SendMessageRequest{ConversationID: convID, Content: "ping"})
	require.NoError(t, err)

	unread, err := h.client.UnreadTotal(as("bob"))
	require.NoError(t, err)
	require.EqualValues(t, 1, unread.Count)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, h.client.MarkRead(as("bob"), &ConversationRequest{ConversationID: convID}))
	unread, err = h.client.UnreadTotal(as("bob"))
	require.NoError(t, err)
	require.Zero(t, unread.Count)

	err = h.client.MarkRead(as("mallory"), &ConversationRequest{ConversationID: convID})
	requireKind(t, err, codes.PermissionDenied, "NOT_A_PARTICIPANT")
}

func TestNonParticipantIsDenied(t *testing.T) {
	h := newHarness(t, "alice", "bob", "mallory")
	created, err := h.client.CreateConversation(as("alice"), &CreateConversationRequest{ParticipantIDs: []string{"bob"}})
	require.NoError(t, err)

	_, err = h.client.GetConversation(as("mallory"), &ConversationRequest{ConversationID: created.Conversation.ID})
	requireKind(t, err, codes.PermissionDenied, "NOT_A_PARTICIPANT")

	// A conversation that does not exist is indistinguishable.
	_, err = h.client.GetConversation(as("mallory"), &ConversationRequest{ConversationID: "nope"})
	requireKind(t, err, codes.PermissionDenied, "NOT_A_PARTICIPANT")

	_, err = h.client.SendMessage(as("mallory"), &SendMessageRequest{ConversationID: created.Conversation.ID, Content: "hey"})
	requireKind(t, err, codes.PermissionDenied, "NOT_A_PARTICIPANT")
}

func TestOwnershipFailuresLookLikeNotFound(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	created, err := h.client.CreateConversation(as("alice"), &CreateConversationRequest{ParticipantIDs: []string{"bob"}})
	require.NoError(t, err)
	sent, err := h.client.SendMessage(as("alice"), &SendMessageRequest{ConversationID: created.Conversation.ID, Content: "mine"})
	require.NoError(t, err)

	_, err = h.client.EditMessage(as("bob"), &EditMessageRequest{MessageID: sent.Message.ID, Content: "theirs"})
	requireKind(t, err, codes.NotFound, "NOT_FOUND")
	err = h.client.DeleteMessage(as("bob"), &MessageRequest{MessageID: sent.Message.ID})
	requireKind(t, err, codes.NotFound, "NOT_FOUND")
	err = h.client.DeleteMessage(as("bob"), &MessageRequest{MessageID: "missing"})
	requireKind(t, err, codes.NotFound, "NOT_FOUND")

	require.NoError(t, h.client.DeleteMessage(as("alice"), &MessageRequest{MessageID: sent.Message.ID}))
	page, err := h.client.ListMessages(as("bob"), &ListMessagesRequest{ConversationID: created.Conversation.ID})
	require.NoError(t, err)
	require.True(t, page.Messages[0].IsDeleted)
	require.Empty(t, page.Messages[0].Content)
}

func TestCreateDirectRunsGate(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	require.NoError(t, h.db.SetConnectionStatus(context.Background(), "bob", "alice", store.ConnectionBlocked))

	_, err := h.client.CreateConversation(as("alice"), &CreateConversationRequest{ParticipantIDs: []string{"bob"}})
	requireKind(t, err, codes.PermissionDenied, KindNotAllowed)
	require.Equal(t, messaging.ReasonUnavailable, grpcstatus.Convert(err).Message())

	dec, err := h.client.CanMessage(as("alice"), &CanMessageRequest{RecipientID: "bob"})
	require.NoError(t, err)
	require.False(t, dec.Allowed)
	require.Equal(t, messaging.ReasonUnavailable, dec.Reason)

	// Groups are not gated.
	_, err = h.client.CreateConversation(as("alice"), &CreateConversationRequest{ParticipantIDs: []string{"bob"}, IsGroup: true, Name: "g"})
	require.NoError(t, err)
}

func TestGroupMembership(t *testing.T) {
	h := newHarness(t, "alice", "bob", "carol")
	created, err := h.client.CreateConversation(as("alice"), &CreateConversationRequest{ParticipantIDs: []string{"bob"}, IsGroup: true, Name: "crew"})
	require.NoError(t, err)
	convID := created.Conversation.ID

	added, err := h.client.AddParticipant(as("alice"), &ParticipantRequest{ConversationID: convID, UserID: "carol"})
	require.NoError(t, err)
	require.Equal(t, "member", added.Participant.Role)

	_, err = h.client.AddParticipant(as("alice"), &ParticipantRequest{ConversationID: convID, UserID: "carol"})
	requireKind(t, err, codes.AlreadyExists, "ALREADY_MEMBER")
	_, err = h.client.AddParticipant(as("bob"), &ParticipantRequest{ConversationID: convID, UserID: "carol"})
	requireKind(t, err, codes.PermissionDenied, "FORBIDDEN")

	err = h.client.RemoveParticipant(as("alice"), &ParticipantRequest{ConversationID: convID, UserID: "alice"})
	requireKind(t, err, codes.InvalidArgument, "INVALID_SELF_REMOVAL")
	require.NoError(t, h.client.RemoveParticipant(as("alice"), &ParticipantRequest{ConversationID: convID, UserID: "carol"}))

	require.NoError(t, h.client.SetMuted(as("bob"), &SetMutedRequest{ConversationID: convID, Muted: true}))
	require.NoError(t, h.client.LeaveConversation(as("bob"), &ConversationRequest{ConversationID: convID}))

	list, err := h.client.ListConversations(as("carol"))
	require.NoError(t, err)
	require.Empty(t, list.Conversations)
}

func TestValidationErrors(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	created, err := h.client.CreateConversation(as("alice"), &CreateConversationRequest{ParticipantIDs: []string{"bob"}})
	require.NoError(t, err)

	_, err = h.client.SendMessage(as("alice"), &SendMessageRequest{ConversationID: created.Conversation.ID, Content: "   "})
	requireKind(t, err, codes.InvalidArgument, "EMPTY_MESSAGE")

	_, err = h.client.CreateConversation(as("alice"), &CreateConversationRequest{})
	requireKind(t, err, codes.InvalidArgument, "INVALID_INPUT")

	_, err = h.client.CreateConversation(as("alice"), &CreateConversationRequest{ParticipantIDs: []string{"ghost"}, IsGroup: true})
	requireKind(t, err, codes.Aborted, "CREATION_FAILED")
}

func TestStatus(t *testing.T) {
	h := newHarness(t, "alice", "bob")
	require.NoError(t, h.machine.Transition(status.Migrating))
	require.NoError(t, h.machine.Transition(status.Serving))
	_, err := h.client.CreateConversation(as("alice"), &CreateConversationRequest{ParticipantIDs: []string{"bob"}})
	require.NoError(t, err)

	resp, err := h.client.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, "test", resp.Instance)
	require.Equal(t, string(status.Serving), resp.State)
	require.Equal(t, store.DriverSQLite, resp.StoreDriver)
	require.EqualValues(t, 1, resp.ConversationCount)
	require.Zero(t, resp.MessageCount)
	require.NotZero(t, resp.PID)
}

func TestWatchEventsOnlyShowsOwnConversations(t *testing.T) {
	h := newHarness(t, "alice", "bob", "mallory")
	dm, err := h.client.CreateConversation(as("alice"), &CreateConversationRequest{ParticipantIDs: []string{"bob"}})
	require.NoError(t, err)
	shared, err := h.client.CreateConversation(as("alice"), &CreateConversationRequest{ParticipantIDs: []string{"mallory"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(as("mallory"))
	defer cancel()
	stream, err := h.client.WatchEvents(ctx, &WatchEventsRequest{Prefix: "message."})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.bus.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = h.client.SendMessage(as("alice"), &SendMessageRequest{ConversationID: dm.Conversation.ID, Content: "private"})
	require.NoError(t, err)
	visible, err := h.client.SendMessage(as("alice"), &SendMessageRequest{ConversationID: shared.Conversation.ID, Content: "for mallory"})
	require.NoError(t, err)

	evt, err := stream.Recv()
	require.NoError(t, err)
	require.Equal(t, messaging.EventMessageSent, evt.Kind)
	require.Equal(t, shared.Conversation.ID, evt.ConversationID, "events of other conversations are filtered")
	require.Equal(t, visible.Message.ID, evt.MessageID)
	require.Equal(t, "test", evt.Instance)
}
