package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/matheus3301/stagechat/internal/api"
	"github.com/matheus3301/stagechat/internal/client"
	"github.com/spf13/cobra"
)

func newConversationsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "List, show and create conversations",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List your active conversations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return g.run(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.ListConversations(ctx)
				if err != nil {
					return err
				}
				g.print(resp, func() { printSummaries(resp.Conversations) })
				return nil
			})
		},
	}

	get := &cobra.Command{
		Use:   "get <conversation-id>",
		Short: "Show a conversation and its participants",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return g.run(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.GetConversation(ctx, &api.ConversationRequest{ConversationID: args[0]})
				if err != nil {
					return err
				}
				g.print(resp, func() { printConversation(resp.Conversation) })
				return nil
			})
		},
	}

	var (
		group bool
		name  string
	)
	create := &cobra.Command{
		Use:   "create <user-id>...",
		Short: "Start a 1:1 conversation, or a group with --group",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return g.run(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.CreateConversation(ctx, &api.CreateConversationRequest{
					ParticipantIDs: args,
					Name:           name,
					IsGroup:        group,
				})
				if err != nil {
					return err
				}
				g.print(resp, func() { printConversation(resp.Conversation) })
				return nil
			})
		},
	}
	create.Flags().BoolVar(&group, "group", false, "create a group conversation")
	create.Flags().StringVar(&name, "name", "", "group name")

	cmd.AddCommand(list, get, create)
	return cmd
}

func conversationTitle(c *api.Conversation) string {
	if c.IsGroup && c.Name != "" {
		return c.Name
	}
	names := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		names = append(names, displayName(p.Profile, p.UserID))
	}
	return strings.Join(names, ", ")
}

func printSummaries(list []*api.ConversationSummary) {
	if len(list) == 0 {
		fmt.Println("No conversations.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tUNREAD\tUPDATED\tLAST MESSAGE")
	for _, s := range list {
		last := ""
		if s.LastMessage != nil {
			last = s.LastMessage.Content
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			s.Conversation.ID, conversationTitle(s.Conversation), s.UnreadCount,
			formatMs(s.Conversation.UpdatedAtUnixMs), last)
	}
	_ = w.Flush()
}

func printConversation(c *api.Conversation) {
	kind := "direct"
	if c.IsGroup {
		kind = "group"
	}
	fmt.Printf("ID:      %s\n", c.ID)
	fmt.Printf("Title:   %s\n", conversationTitle(c))
	fmt.Printf("Kind:    %s\n", kind)
	fmt.Printf("Updated: %s\n", formatMs(c.UpdatedAtUnixMs))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tNAME\tROLE\tJOINED\tLEFT\tMUTED")
	for _, p := range c.Participants {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n",
			p.UserID, displayName(p.Profile, p.UserID), p.Role,
			formatMs(p.JoinedAtUnixMs), formatMs(p.LeftAtUnixMs), p.IsMuted)
	}
	_ = w.Flush()
}
