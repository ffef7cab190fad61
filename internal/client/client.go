package client

import (
	"context"
	"fmt"

	"github.com/matheus3301/stagechat/internal/api"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// Client wraps the gRPC connection to a daemon and acts as one user.
type Client struct {
	conn      *grpc.ClientConn
	Messaging *api.MessagingClient
}

// New dials the daemon's Unix domain socket. Every call carries userID in
// the identity header; an empty userID only works for Status.
func New(socketPath, userID string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(unaryIdentity(userID)),
		grpc.WithChainStreamInterceptor(streamIdentity(userID)),
	}, opts...)

	conn, err := grpc.NewClient("unix://"+socketPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn, Messaging: api.NewMessagingClient(conn)}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func withIdentity(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, api.UserIDHeader, userID)
}

func unaryIdentity(userID string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(withIdentity(ctx, userID), method, req, reply, cc, opts...)
	}
}

func streamIdentity(userID string) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return streamer(withIdentity(ctx, userID), desc, cc, method, opts...)
	}
}
