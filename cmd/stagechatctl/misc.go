package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/matheus3301/stagechat/internal/api"
	"github.com/matheus3301/stagechat/internal/client"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

func newStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return g.run(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.Status(ctx)
				if err != nil {
					return err
				}
				g.print(resp, func() {
					fmt.Printf("Instance:      %s\n", resp.Instance)
					fmt.Printf("State:         %s (since %s)\n", resp.State, formatMs(resp.StateSinceUnixMs))
					fmt.Printf("PID:           %d\n", resp.PID)
					fmt.Printf("Uptime:        %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).String())
					fmt.Printf("Store:         %s\n", resp.StoreDriver)
					fmt.Printf("Conversations: %d\n", resp.ConversationCount)
					fmt.Printf("Messages:      %d\n", resp.MessageCount)
				})
				return nil
			})
		},
	}
}

func newReadCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read state",
	}
	mark := &cobra.Command{
		Use:   "mark <conversation-id>",
		Short: "Mark a conversation as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return g.run(func(ctx context.Context, c *client.Client) error {
				if err := c.Messaging.MarkRead(ctx, &api.ConversationRequest{ConversationID: args[0]}); err != nil {
					return err
				}
				fmt.Println("Marked as read.")
				return nil
			})
		},
	}
	unread := &cobra.Command{
		Use:   "unread",
		Short: "Show your total unread count",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return g.run(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.UnreadTotal(ctx)
				if err != nil {
					return err
				}
				g.print(resp, func() { fmt.Println(resp.Count) })
				return nil
			})
		},
	}
	cmd.AddCommand(mark, unread)
	return cmd
}

func newCanMessageCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "can-message <user-id>",
		Short: "Check whether you may start a conversation with a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return g.run(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.CanMessage(ctx, &api.CanMessageRequest{RecipientID: args[0]})
				if err != nil {
					return err
				}
				g.print(resp, func() {
					if resp.Allowed {
						fmt.Println("Allowed.")
					} else {
						fmt.Printf("Not allowed: %s\n", resp.Reason)
					}
				})
				return nil
			})
		},
	}
}

func newWatchCmd(g *globals) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Streams outlive the per-command timeout.
			g.timeout = 365 * 24 * time.Hour
			return g.run(func(ctx context.Context, c *client.Client) error {
				stream, err := c.Messaging.WatchEvents(ctx, &api.WatchEventsRequest{Prefix: prefix})
				if err != nil {
					return err
				}
				for {
					evt, err := stream.Recv()
					if errors.Is(err, io.EOF) || grpcstatus.Code(err) == codes.Canceled {
						return nil
					}
					if err != nil {
						return err
					}
					g.print(evt, func() {
						fmt.Printf("%s %-22s conv=%s msg=%s actor=%s subject=%s%s\n",
							formatMs(evt.OccurredAtUnixMs), evt.Kind, evt.ConversationID,
							evt.MessageID, evt.ActorID, evt.SubjectID, evt.State)
					})
				}
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", `event kind prefix, e.g. "message."`)
	return cmd
}
