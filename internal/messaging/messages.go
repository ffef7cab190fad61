package messaging

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/matheus3301/stagechat/internal/store"
	"go.uber.org/zap"
)

// Messages reads and writes conversation messages.
type Messages struct {
	*deps
}

// ListOptions pages through a conversation's history. Before is an exclusive
// cursor on created_at; nil starts at the newest message. BeforeID, the id of
// the oldest message already seen, breaks ties between messages created in
// the same millisecond.
type ListOptions struct {
	Limit    int
	Before   *time.Time
	BeforeID string
}

// normalize trims content and enforces the length limit.
func (m *Messages) normalize(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(content); n > m.opts.MaxMessageLength {
		return "", fmt.Errorf("%d characters, limit %d: %w", n, m.opts.MaxMessageLength, ErrMessageTooLong)
	}
	return content, nil
}

// List returns a page of messages in ascending chronological order. The page
// is the newest Limit messages older than Before. Deleted messages keep their
// place with empty content.
func (m *Messages) List(ctx context.Context, conversationID, userID string, opts ListOptions) (msgs []store.Message, err error) {
	defer observe("list_messages", time.Now(), &err)

	if _, err := m.requireActive(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	limit := opts.Limit
	switch {
	case limit <= 0:
		limit = m.opts.DefaultPageSize
	case limit > m.opts.MaxPageSize:
		limit = m.opts.MaxPageSize
	}
	var cursor *store.Cursor
	if opts.Before != nil {
		cursor = &store.Cursor{CreatedAt: *opts.Before, ID: opts.BeforeID}
	}
	msgs, err = m.store.ListMessages(ctx, conversationID, cursor, limit)
	if err != nil {
		return nil, m.storeFailure("list messages", err)
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// Send appends a message from an active participant and bumps the
// conversation's updated_at.
func (m *Messages) Send(ctx context.Context, conversationID, senderID, content string) (msg *store.Message, err error) {
	defer observe("send_message", time.Now(), &err)

	content, err = m.normalize(content)
	if err != nil {
		return nil, err
	}
	if _, err := m.requireActive(ctx, conversationID, senderID); err != nil {
		return nil, err
	}

	msg = &store.Message{
		ID:             newID(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      m.now(),
	}
	if err := m.store.InsertMessage(ctx, msg); err != nil {
		return nil, m.storeFailure("insert message", err)
	}

	m.logger.Debug("message sent",
		zap.String("conversation_id", conversationID),
		zap.String("message_id", msg.ID))
	m.publish(EventMessageSent, Event{ConversationID: conversationID, MessageID: msg.ID, ActorID: senderID})

	stored, err := m.store.GetMessage(ctx, msg.ID)
	if err != nil {
		return nil, m.storeFailure("get message", err)
	}
	if stored != nil {
		msg = stored
	}
	return msg, nil
}

// authored loads a live message and checks that userID wrote it. Ownership
// is checked first; the author of a deleted message gets ErrNotFound.
func (m *Messages) authored(ctx context.Context, messageID, userID string) (*store.Message, error) {
	msg, err := m.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, m.storeFailure("get message", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if msg.SenderID == "" || msg.SenderID != userID {
		return nil, fmt.Errorf("message %s, user %s: %w", messageID, userID, ErrForbidden)
	}
	if msg.IsDeleted {
		return nil, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	return msg, nil
}

// Edit replaces the content of the caller's own message. Concurrent edits
// resolve last-write-wins.
func (m *Messages) Edit(ctx context.Context, messageID, userID, content string) (msg *store.Message, err error) {
	defer observe("edit_message", time.Now(), &err)

	content, err = m.normalize(content)
	if err != nil {
		return nil, err
	}
	msg, err = m.authored(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if err := m.store.UpdateMessageContent(ctx, messageID, content, now); err != nil {
		return nil, m.storeFailure("update message", err)
	}
	msg.Content = content
	msg.IsEdited = true
	msg.EditedAt = &now

	m.publish(EventMessageEdited, Event{ConversationID: msg.ConversationID, MessageID: messageID, ActorID: userID})
	return msg, nil
}

// Delete soft-deletes the caller's own message. Deleting an already deleted
// message succeeds without change.
func (m *Messages) Delete(ctx context.Context, messageID, userID string) (err error) {
	defer observe("delete_message", time.Now(), &err)

	msg, err := m.store.GetMessage(ctx, messageID)
	if err != nil {
		return m.storeFailure("get message", err)
	}
	if msg == nil {
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if msg.SenderID == "" || msg.SenderID != userID {
		return fmt.Errorf("message %s, user %s: %w", messageID, userID, ErrForbidden)
	}
	if msg.IsDeleted {
		return nil
	}
	if err := m.store.MarkMessageDeleted(ctx, messageID); err != nil {
		return m.storeFailure("delete message", err)
	}

	m.logger.Info("message deleted",
		zap.String("conversation_id", msg.ConversationID),
		zap.String("message_id", messageID))
	m.publish(EventMessageDeleted, Event{ConversationID: msg.ConversationID, MessageID: messageID, ActorID: userID})
	return nil
}
