package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "stagechat.v1.Messaging"

// UserIDHeader carries the authenticated caller in request metadata. The
// identity layer in front of the daemon sets it; the service trusts it.
const UserIDHeader = "x-user-id"

// MessagingServer is the server API of stagechat.v1.Messaging.
type MessagingServer interface {
	ListConversations(context.Context, *emptypb.Empty) (*ListConversationsResponse, error)
	GetConversation(context.Context, *ConversationRequest) (*ConversationResponse, error)
	CreateConversation(context.Context, *CreateConversationRequest) (*ConversationResponse, error)
	AddParticipant(context.Context, *ParticipantRequest) (*ParticipantResponse, error)
	RemoveParticipant(context.Context, *ParticipantRequest) (*emptypb.Empty, error)
	LeaveConversation(context.Context, *ConversationRequest) (*emptypb.Empty, error)
	SetMuted(context.Context, *SetMutedRequest) (*emptypb.Empty, error)
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*MessageResponse, error)
	EditMessage(context.Context, *EditMessageRequest) (*MessageResponse, error)
	DeleteMessage(context.Context, *MessageRequest) (*emptypb.Empty, error)
	MarkRead(context.Context, *ConversationRequest) (*emptypb.Empty, error)
	UnreadTotal(context.Context, *emptypb.Empty) (*UnreadTotalResponse, error)
	CanMessage(context.Context, *CanMessageRequest) (*CanMessageResponse, error)
	Status(context.Context, *emptypb.Empty) (*StatusResponse, error)
	WatchEvents(*WatchEventsRequest, Messaging_WatchEventsServer) error
}

// Messaging_WatchEventsServer is the server side of the WatchEvents stream.
type Messaging_WatchEventsServer interface {
	Send(*EventEnvelope) error
	grpc.ServerStream
}

type watchEventsServer struct {
	grpc.ServerStream
}

func (x *watchEventsServer) Send(m *EventEnvelope) error {
	return x.ServerStream.SendMsg(m)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unary builds the method descriptor of a unary RPC.
func unary[Req, Resp any](name string, call func(MessagingServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MessagingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MessagingServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchEventsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(MessagingServer).WatchEvents(in, &watchEventsServer{stream})
}

// ServiceDesc describes stagechat.v1.Messaging for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MessagingServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListConversations", MessagingServer.ListConversations),
		unary("GetConversation", MessagingServer.GetConversation),
		unary("CreateConversation", MessagingServer.CreateConversation),
		unary("AddParticipant", MessagingServer.AddParticipant),
		unary("RemoveParticipant", MessagingServer.RemoveParticipant),
		unary("LeaveConversation", MessagingServer.LeaveConversation),
		unary("SetMuted", MessagingServer.SetMuted),
		unary("ListMessages", MessagingServer.ListMessages),
		unary("SendMessage", MessagingServer.SendMessage),
		unary("EditMessage", MessagingServer.EditMessage),
		unary("DeleteMessage", MessagingServer.DeleteMessage),
		unary("MarkRead", MessagingServer.MarkRead),
		unary("UnreadTotal", MessagingServer.UnreadTotal),
		unary("CanMessage", MessagingServer.CanMessage),
		unary("Status", MessagingServer.Status),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "stagechat/v1/messaging",
}

// RegisterMessagingServer registers srv on s.
func RegisterMessagingServer(s grpc.ServiceRegistrar, srv MessagingServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// MessagingClient is the client API of stagechat.v1.Messaging. Calls use
// the JSON codec; the caller identity must be in the outgoing metadata.
type MessagingClient struct {
	cc grpc.ClientConnInterface
}

// NewMessagingClient wraps a connection.
func NewMessagingClient(cc grpc.ClientConnInterface) *MessagingClient {
	return &MessagingClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, name string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MessagingClient) ListConversations(ctx context.Context, opts ...grpc.CallOption) (*ListConversationsResponse, error) {
	return invoke[ListConversationsResponse](ctx, c.cc, "ListConversations", &emptypb.Empty{}, opts)
}

func (c *MessagingClient) GetConversation(ctx context.Context, in *ConversationRequest, opts ...grpc.CallOption) (*ConversationResponse, error) {
	return invoke[ConversationResponse](ctx, c.cc, "GetConversation", in, opts)
}

func (c *MessagingClient) CreateConversation(ctx context.Context, in *CreateConversationRequest, opts ...grpc.CallOption) (*ConversationResponse, error) {
	return invoke[ConversationResponse](ctx, c.cc, "CreateConversation", in, opts)
}

func (c *MessagingClient) AddParticipant(ctx context.Context, in *ParticipantRequest, opts ...grpc.CallOption) (*ParticipantResponse, error) {
	return invoke[ParticipantResponse](ctx, c.cc, "AddParticipant", in, opts)
}

func (c *MessagingClient) RemoveParticipant(ctx context.Context, in *ParticipantRequest, opts ...grpc.CallOption) error {
	_, err := invoke[emptypb.Empty](ctx, c.cc, "RemoveParticipant", in, opts)
	return err
}

func (c *MessagingClient) LeaveConversation(ctx context.Context, in *ConversationRequest, opts ...grpc.CallOption) error {
	_, err := invoke[emptypb.Empty](ctx, c.cc, "LeaveConversation", in, opts)
	return err
}

func (c *MessagingClient) SetMuted(ctx context.Context, in *SetMutedRequest, opts ...grpc.CallOption) error {
	_, err := invoke[emptypb.Empty](ctx, c.cc, "SetMuted", in, opts)
	return err
}

func (c *MessagingClient) ListMessages(ctx context.Context, in *ListMessagesRequest, opts ...grpc.CallOption) (*ListMessagesResponse, error) {
	return invoke[ListMessagesResponse](ctx, c.cc, "ListMessages", in, opts)
}

func (c *MessagingClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	return invoke[MessageResponse](ctx, c.cc, "SendMessage", in, opts)
}

func (c *MessagingClient) EditMessage(ctx context.Context, in *EditMessageRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	return invoke[MessageResponse](ctx, c.cc, "EditMessage", in, opts)
}

func (c *MessagingClient) DeleteMessage(ctx context.Context, in *MessageRequest, opts ...grpc.CallOption) error {
	_, err := invoke[emptypb.Empty](ctx, c.cc, "DeleteMessage", in, opts)
	return err
}

func (c *MessagingClient) MarkRead(ctx context.Context, in *ConversationRequest, opts ...grpc.CallOption) error {
	_, err := invoke[emptypb.Empty](ctx, c.cc, "MarkRead", in, opts)
	return err
}

func (c *MessagingClient) UnreadTotal(ctx context.Context, opts ...grpc.CallOption) (*UnreadTotalResponse, error) {
	return invoke[UnreadTotalResponse](ctx, c.cc, "UnreadTotal", &emptypb.Empty{}, opts)
}

func (c *MessagingClient) CanMessage(ctx context.Context, in *CanMessageRequest, opts ...grpc.CallOption) (*CanMessageResponse, error) {
	return invoke[CanMessageResponse](ctx, c.cc, "CanMessage", in, opts)
}

func (c *MessagingClient) Status(ctx context.Context, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c.cc, "Status", &emptypb.Empty{}, opts)
}

// EventStream is the client side of WatchEvents.
type EventStream struct {
	grpc.ClientStream
}

// Recv blocks for the next event.
func (x *EventStream) Recv() (*EventEnvelope, error) {
	m := new(EventEnvelope)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *MessagingClient) WatchEvents(ctx context.Context, in *WatchEventsRequest, opts ...grpc.CallOption) (*EventStream, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], fullMethod("WatchEvents"), opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{stream}, nil
}
