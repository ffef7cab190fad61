package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// messageSelect never returns the stored content of a deleted message.
func (db *DB) messageSelect() sq.SelectBuilder {
	return db.sb.Select(
		"m.id", "m.conversation_id", "m.sender_id",
		"CASE WHEN m.is_deleted THEN '' ELSE m.content END",
		"m.is_edited", "m.is_deleted", "m.created_at", "m.edited_at",
		"s.id", "s.full_name", "s.avatar_url", "s.display_name",
	).
		From("messages m").
		LeftJoin("profiles s ON s.id = m.sender_id")
}

func scanMessage(r rowScanner) (*Message, error) {
	var (
		m                Message
		senderID         sql.NullString
		createdAt        int64
		editedAt         sql.NullInt64
		profileID        sql.NullString
		fullName, avatar sql.NullString
		displayName      sql.NullString
	)
	if err := r.Scan(&m.ID, &m.ConversationID, &senderID, &m.Content, &m.IsEdited, &m.IsDeleted, &createdAt, &editedAt,
		&profileID, &fullName, &avatar, &displayName); err != nil {
		return nil, err
	}
	m.SenderID = senderID.String
	m.CreatedAt = fromMillis(createdAt)
	m.EditedAt = timePtr(editedAt)
	m.Sender = profileFrom(profileID, fullName, avatar, displayName)
	return &m, nil
}

func (db *DB) queryMessages(ctx context.Context, b sq.SelectBuilder) ([]Message, error) {
	rows, err := queryStmt(ctx, db, b)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, translate(rows.Err())
}

// InsertMessage stores a new message and bumps the conversation's
// updated_at in the same transaction.
func (db *DB) InsertMessage(ctx context.Context, m *Message) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := execStmt(ctx, tx, db.sb.Insert("messages").
			Columns("id", "conversation_id", "sender_id", "content", "is_edited", "is_deleted", "created_at").
			Values(m.ID, m.ConversationID, nullableString(m.SenderID), m.Content, m.IsEdited, m.IsDeleted, toMillis(m.CreatedAt))); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return touchConversation(ctx, tx, db.sb, m.ConversationID, toMillis(m.CreatedAt))
	})
}

// GetMessage returns a message by ID, or nil if it does not exist.
func (db *DB) GetMessage(ctx context.Context, id string) (*Message, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	query, args, err := db.messageSelect().Where(sq.Eq{"m.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	m, err := scanMessage(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return m, nil
}

// Cursor is an exclusive position in a conversation's (created_at, id)
// ordering. An empty ID matches on created_at alone.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

func (c Cursor) where() sq.Sqlizer {
	ms := toMillis(c.CreatedAt)
	if c.ID == "" {
		return sq.Lt{"m.created_at": ms}
	}
	return sq.Or{
		sq.Lt{"m.created_at": ms},
		sq.And{sq.Eq{"m.created_at": ms}, sq.Lt{"m.id": c.ID}},
	}
}

// ListMessages returns up to limit messages of a conversation, newest first,
// using keyset pagination on (created_at, id). A nil before starts at the
// newest.
func (db *DB) ListMessages(ctx context.Context, conversationID string, before *Cursor, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	b := db.messageSelect().Where(sq.Eq{"m.conversation_id": conversationID})
	if before != nil {
		b = b.Where(before.where())
	}
	return db.queryMessages(ctx, b.OrderBy("m.created_at DESC", "m.id DESC").Limit(uint64(limit)))
}

// LastMessage returns the newest non-deleted message of a conversation, or
// nil if there is none.
func (db *DB) LastMessage(ctx context.Context, conversationID string) (*Message, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	msgs, err := db.queryMessages(ctx, db.messageSelect().
		Where(sq.Eq{"m.conversation_id": conversationID, "m.is_deleted": false}).
		OrderBy("m.created_at DESC", "m.id DESC").
		Limit(1))
	if err != nil || len(msgs) == 0 {
		return nil, err
	}
	return &msgs[0], nil
}

// UpdateMessageContent replaces the content of a message and marks it edited.
func (db *DB) UpdateMessageContent(ctx context.Context, id, content string, at time.Time) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	_, err := execStmt(ctx, db, db.sb.Update("messages").
		Set("content", content).
		Set("is_edited", true).
		Set("edited_at", toMillis(at)).
		Where(sq.Eq{"id": id}))
	return err
}

// MarkMessageDeleted soft-deletes a message. The row and its content stay in
// place; reads never return the content again.
func (db *DB) MarkMessageDeleted(ctx context.Context, id string) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	_, err := execStmt(ctx, db, db.sb.Update("messages").
		Set("is_deleted", true).
		Where(sq.Eq{"id": id}))
	return err
}

// unreadFilter matches non-deleted messages not written by userID. Messages
// without a sender count as unread.
func unreadFilter(userID string) sq.Sqlizer {
	return sq.And{
		sq.Eq{"m.is_deleted": false},
		sq.Or{sq.Eq{"m.sender_id": nil}, sq.NotEq{"m.sender_id": userID}},
	}
}

// CountUnread counts messages in a conversation created after since that
// userID did not write.
func (db *DB) CountUnread(ctx context.Context, conversationID, userID string, since time.Time) (int, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	var count int
	err := scanStmt(ctx, db, db.sb.Select("COUNT(*)").
		From("messages m").
		Where(sq.Eq{"m.conversation_id": conversationID}).
		Where(sq.Gt{"m.created_at": toMillis(since)}).
		Where(unreadFilter(userID)), &count)
	return count, err
}

// UnreadTotal sums unread messages across every active participation of the
// user that has a read position. Participations never read contribute zero.
func (db *DB) UnreadTotal(ctx context.Context, userID string) (int, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	var count int
	err := scanStmt(ctx, db, db.sb.Select("COUNT(*)").
		From("messages m").
		Join("conversation_participants p ON p.conversation_id = m.conversation_id").
		Where(sq.Eq{"p.user_id": userID, "p.left_at": nil}).
		Where(sq.NotEq{"p.last_read_at": nil}).
		Where("m.created_at > p.last_read_at").
		Where(unreadFilter(userID)), &count)
	return count, err
}

// MessageCount returns the total number of messages.
func (db *DB) MessageCount(ctx context.Context) (int64, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	var count int64
	err := scanStmt(ctx, db, db.sb.Select("COUNT(*)").From("messages"), &count)
	return count, err
}
