package main

import (
	"context"
	"fmt"

	"github.com/matheus3301/stagechat/internal/api"
	"github.com/matheus3301/stagechat/internal/client"
	"github.com/spf13/cobra"
)

func newMembersCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Manage conversation membership",
	}

	add := &cobra.Command{
		Use:   "add <conversation-id> <user-id>",
		Short: "Add a user to a group (admins only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return g.run(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.AddParticipant(ctx, &api.ParticipantRequest{ConversationID: args[0], UserID: args[1]})
				if err != nil {
					return err
				}
				g.print(resp, func() { fmt.Printf("Added %s as %s.\n", resp.Participant.UserID, resp.Participant.Role) })
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <conversation-id> <user-id>",
		Short: "Remove a user from a group (admins only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return g.run(func(ctx context.Context, c *client.Client) error {
				if err := c.Messaging.RemoveParticipant(ctx, &api.ParticipantRequest{ConversationID: args[0], UserID: args[1]}); err != nil {
					return err
				}
				fmt.Printf("Removed %s.\n", args[1])
				return nil
			})
		},
	}

	leave := &cobra.Command{
		Use:   "leave <conversation-id>",
		Short: "Leave a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return g.run(func(ctx context.Context, c *client.Client) error {
				if err := c.Messaging.LeaveConversation(ctx, &api.ConversationRequest{ConversationID: args[0]}); err != nil {
					return err
				}
				fmt.Println("Left conversation.")
				return nil
			})
		},
	}

	var off bool
	mute := &cobra.Command{
		Use:   "mute <conversation-id>",
		Short: "Mute a conversation, or unmute with --off",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return g.run(func(ctx context.Context, c *client.Client) error {
				if err := c.Messaging.SetMuted(ctx, &api.SetMutedRequest{ConversationID: args[0], Muted: !off}); err != nil {
					return err
				}
				if off {
					fmt.Println("Unmuted.")
				} else {
					fmt.Println("Muted.")
				}
				return nil
			})
		},
	}
	mute.Flags().BoolVar(&off, "off", false, "unmute instead")

	cmd.AddCommand(add, remove, leave, mute)
	return cmd
}
