package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/matheus3301/stagechat/internal/api"
	"github.com/matheus3301/stagechat/internal/client"
	"github.com/spf13/cobra"
)

func newMessagesCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "messages",
		Aliases: []string{"msg"},
		Short:   "Read and write messages",
	}

	var (
		limit    int32
		before   int64
		beforeID string
	)
	list := &cobra.Command{
		Use:   "list <conversation-id>",
		Short: "Show a page of messages, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return g.run(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.ListMessages(ctx, &api.ListMessagesRequest{
					ConversationID: args[0],
					Limit:          limit,
					BeforeUnixMs:   before,
					BeforeID:       beforeID,
				})
				if err != nil {
					return err
				}
				g.print(resp, func() {
					for _, m := range resp.Messages {
						printMessage(m)
					}
					if resp.NextBeforeUnixMs != 0 {
						fmt.Printf("-- older: --before %d --before-id %s\n", resp.NextBeforeUnixMs, resp.NextBeforeID)
					}
				})
				return nil
			})
		},
	}
	list.Flags().Int32Var(&limit, "limit", 0, "page size (server default when 0)")
	list.Flags().Int64Var(&before, "before", 0, "only messages older than this Unix ms timestamp")
	list.Flags().StringVar(&beforeID, "before-id", "", "id of the oldest message seen, paired with --before")

	send := &cobra.Command{
		Use:   "send <conversation-id> <text>...",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return g.run(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.SendMessage(ctx, &api.SendMessageRequest{
					ConversationID: args[0],
					Content:        strings.Join(args[1:], " "),
				})
				if err != nil {
					return err
				}
				g.print(resp, func() { fmt.Printf("Sent %s.\n", resp.Message.ID) })
				return nil
			})
		},
	}

	edit := &cobra.Command{
		Use:   "edit <message-id> <text>...",
		Short: "Edit one of your messages",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return g.run(func(ctx context.Context, c *client.Client) error {
				resp, err := c.Messaging.EditMessage(ctx, &api.EditMessageRequest{
					MessageID: args[0],
					Content:   strings.Join(args[1:], " "),
				})
				if err != nil {
					return err
				}
				g.print(resp, func() { printMessage(resp.Message) })
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <message-id>",
		Short: "Delete one of your messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return g.run(func(ctx context.Context, c *client.Client) error {
				if err := c.Messaging.DeleteMessage(ctx, &api.MessageRequest{MessageID: args[0]}); err != nil {
					return err
				}
				fmt.Println("Deleted.")
				return nil
			})
		},
	}

	cmd.AddCommand(list, send, edit, del)
	return cmd
}

func printMessage(m *api.Message) {
	content := m.Content
	switch {
	case m.IsDeleted:
		content = "(message deleted)"
	case m.IsEdited:
		content += " (edited)"
	}
	fmt.Printf("[%s] %s: %s\n", formatMs(m.CreatedAtUnixMs), displayName(m.Sender, m.SenderID), content)
}
