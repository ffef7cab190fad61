package api

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/stagechat/internal/bus"
	"github.com/matheus3301/stagechat/internal/messaging"
	"github.com/matheus3301/stagechat/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
)

// Counter reports store totals for the Status RPC. *store.DB implements it.
type Counter interface {
	Driver() string
	ConversationCount(ctx context.Context) (int64, error)
	MessageCount(ctx context.Context) (int64, error)
}

// MessagingService implements the stagechat.v1.Messaging gRPC service on top
// of the messaging core.
type MessagingService struct {
	instance  string
	startedAt time.Time
	core      *messaging.Core
	counter   Counter
	bus       *bus.Bus
	machine   *status.Machine
	logger    *zap.Logger
}

// NewMessagingService creates the service. counter and machine may be nil.
func NewMessagingService(instance string, core *messaging.Core, counter Counter, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *MessagingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessagingService{
		instance:  instance,
		startedAt: time.Now(),
		core:      core,
		counter:   counter,
		bus:       b,
		machine:   machine,
		logger:    logger,
	}
}

// callerID reads the authenticated user from the request metadata.
func callerID(ctx context.Context) (string, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(UserIDHeader); len(v) > 0 && v[0] != "" {
			return v[0], nil
		}
	}
	return "", statusError(KindUnauthenticated, "missing "+UserIDHeader+" metadata")
}

func (s *MessagingService) ListConversations(ctx context.Context, _ *emptypb.Empty) (*ListConversationsResponse, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.core.Directory.ListForUser(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &ListConversationsResponse{Conversations: make([]*ConversationSummary, 0, len(list))}
	for i := range list {
		resp.Conversations = append(resp.Conversations, &ConversationSummary{
			Conversation: conversationToWire(&list[i].Conversation),
			LastMessage:  messageToWire(list[i].LastMessage),
			UnreadCount:  int32(list[i].UnreadCount),
		})
	}
	return resp, nil
}

func (s *MessagingService) GetConversation(ctx context.Context, req *ConversationRequest) (*ConversationResponse, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	conv, err := s.core.Directory.Get(ctx, req.ConversationID, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ConversationResponse{Conversation: conversationToWire(conv)}, nil
}

// CreateConversation runs the permission gate for new 1:1 threads before
// creating them.
func (s *MessagingService) CreateConversation(ctx context.Context, req *CreateConversationRequest) (*ConversationResponse, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if !req.IsGroup {
		for _, id := range req.ParticipantIDs {
			if id == userID || id == "" {
				continue
			}
			dec, err := s.core.Gate.CanMessage(ctx, userID, id)
			if err != nil {
				return nil, toStatus(err)
			}
			if !dec.Allowed {
				return nil, statusError(KindNotAllowed, dec.Reason)
			}
		}
	}
	conv, err := s.core.Directory.Create(ctx, messaging.CreateInput{
		ParticipantIDs: req.ParticipantIDs,
		Name:           req.Name,
		IsGroup:        req.IsGroup,
		CreatedBy:      userID,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &ConversationResponse{Conversation: conversationToWire(conv)}, nil
}

func (s *MessagingService) AddParticipant(ctx context.Context, req *ParticipantRequest) (*ParticipantResponse, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.core.Membership.AddParticipant(ctx, req.ConversationID, userID, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ParticipantResponse{Participant: participantToWire(p)}, nil
}

func (s *MessagingService) RemoveParticipant(ctx context.Context, req *ParticipantRequest) (*emptypb.Empty, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.core.Membership.RemoveParticipant(ctx, req.ConversationID, userID, req.UserID); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *MessagingService) LeaveConversation(ctx context.Context, req *ConversationRequest) (*emptypb.Empty, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.core.Membership.Leave(ctx, req.ConversationID, userID); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *MessagingService) SetMuted(ctx context.Context, req *SetMutedRequest) (*emptypb.Empty, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.core.Membership.ToggleMute(ctx, req.ConversationID, userID, req.Muted); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *MessagingService) ListMessages(ctx context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	opts := messaging.ListOptions{Limit: int(req.Limit)}
	if req.BeforeUnixMs > 0 {
		before := time.UnixMilli(req.BeforeUnixMs).UTC()
		opts.Before = &before
		opts.BeforeID = req.BeforeID
	}
	msgs, err := s.core.Messages.List(ctx, req.ConversationID, userID, opts)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &ListMessagesResponse{Messages: make([]*Message, 0, len(msgs))}
	for i := range msgs {
		resp.Messages = append(resp.Messages, messageToWire(&msgs[i]))
	}
	if len(msgs) > 0 {
		resp.NextBeforeUnixMs = msgs[0].CreatedAt.UnixMilli()
		resp.NextBeforeID = msgs[0].ID
	}
	return resp, nil
}

func (s *MessagingService) SendMessage(ctx context.Context, req *SendMessageRequest) (*MessageResponse, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	msg, err := s.core.Messages.Send(ctx, req.ConversationID, userID, req.Content)
	if err != nil {
		return nil, toStatus(err)
	}
	return &MessageResponse{Message: messageToWire(msg)}, nil
}

func (s *MessagingService) EditMessage(ctx context.Context, req *EditMessageRequest) (*MessageResponse, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	msg, err := s.core.Messages.Edit(ctx, req.MessageID, userID, req.Content)
	if err != nil {
		return nil, toStatus(concealOwnership(err))
	}
	return &MessageResponse{Message: messageToWire(msg)}, nil
}

func (s *MessagingService) DeleteMessage(ctx context.Context, req *MessageRequest) (*emptypb.Empty, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.core.Messages.Delete(ctx, req.MessageID, userID); err != nil {
		return nil, toStatus(concealOwnership(err))
	}
	return &emptypb.Empty{}, nil
}

func (s *MessagingService) MarkRead(ctx context.Context, req *ConversationRequest) (*emptypb.Empty, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.core.ReadState.MarkRead(ctx, req.ConversationID, userID); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *MessagingService) UnreadTotal(ctx context.Context, _ *emptypb.Empty) (*UnreadTotalResponse, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.core.ReadState.UnreadCountTotal(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &UnreadTotalResponse{Count: int32(n)}, nil
}

func (s *MessagingService) CanMessage(ctx context.Context, req *CanMessageRequest) (*CanMessageResponse, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	dec, err := s.core.Gate.CanMessage(ctx, userID, req.RecipientID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CanMessageResponse{Allowed: dec.Allowed, Reason: dec.Reason}, nil
}

// Status needs no caller identity.
func (s *MessagingService) Status(ctx context.Context, _ *emptypb.Empty) (*StatusResponse, error) {
	resp := &StatusResponse{
		Instance: s.instance,
		UptimeMs: time.Since(s.startedAt).Milliseconds(),
		PID:      int32(os.Getpid()),
	}
	if s.machine != nil {
		resp.State = string(s.machine.Current())
		resp.StateSinceUnixMs = s.machine.Since().UnixMilli()
	}
	if s.counter != nil {
		resp.StoreDriver = s.counter.Driver()
		if n, err := s.counter.ConversationCount(ctx); err == nil {
			resp.ConversationCount = n
		}
		if n, err := s.counter.MessageCount(ctx); err == nil {
			resp.MessageCount = n
		}
	}
	return resp, nil
}

// WatchEvents streams bus events the caller may see: membership events about
// them, daemon state changes, and events of conversations they are an
// active participant of.
func (s *MessagingService) WatchEvents(req *WatchEventsRequest, stream Messaging_WatchEventsServer) error {
	ctx := stream.Context()
	userID, err := callerID(ctx)
	if err != nil {
		return err
	}
	if s.bus == nil {
		return statusError("INTERNAL", "event bus unavailable")
	}

	sub := s.bus.Subscribe(req.Prefix, 256)
	defer sub.Close()
	s.logger.Debug("event watcher attached", zap.String("user_id", userID), zap.String("prefix", req.Prefix))

	for {
		select {
		case evt := <-sub.Events():
			env, ok := s.envelope(ctx, userID, evt)
			if !ok {
				continue
			}
			if err := stream.Send(env); err != nil {
				return err
			}
		case <-ctx.Done():
			if n := sub.Dropped(); n > 0 {
				s.logger.Warn("event watcher dropped events", zap.String("user_id", userID), zap.Uint64("dropped", n))
			}
			return nil
		}
	}
}

// envelope converts evt for userID, reporting false when userID must not see
// it.
func (s *MessagingService) envelope(ctx context.Context, userID string, evt bus.Event) (*EventEnvelope, bool) {
	env := &EventEnvelope{
		EventID:          uuid.NewString(),
		Instance:         s.instance,
		OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
		Kind:             evt.Kind,
		PayloadVersion:   1,
	}
	switch p := evt.Payload.(type) {
	case status.StateChange:
		env.State = string(p.To)
		return env, true
	case messaging.Event:
		env.ConversationID = p.ConversationID
		env.MessageID = p.MessageID
		env.ActorID = p.ActorID
		env.SubjectID = p.SubjectID
		if p.SubjectID == userID {
			return env, true
		}
		active, err := s.core.Membership.IsActive(ctx, p.ConversationID, userID)
		if err != nil {
			s.logger.Warn("event visibility check failed", zap.String("kind", evt.Kind), zap.Error(err))
			return nil, false
		}
		return env, active
	default:
		return nil, false
	}
}
