package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var conversationColumns = []string{
	"c.id", "c.name", "c.is_group", "c.created_by", "c.direct_key", "c.created_at", "c.updated_at",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(r rowScanner) (*Conversation, error) {
	var (
		c                          Conversation
		name, createdBy, directKey sql.NullString
		createdAt, updatedAt       int64
	)
	if err := r.Scan(&c.ID, &name, &c.IsGroup, &createdBy, &directKey, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.Name = name.String
	c.CreatedBy = createdBy.String
	c.DirectKey = directKey.String
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return &c, nil
}

// CreateConversation inserts a conversation and its participant rows in a
// single transaction. Either every row is written or none is.
func (db *DB) CreateConversation(ctx context.Context, c *Conversation, participants []Participant) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := execStmt(ctx, tx, db.sb.Insert("conversations").
			Columns("id", "name", "is_group", "created_by", "direct_key", "created_at", "updated_at").
			Values(c.ID, nullableString(c.Name), c.IsGroup, nullableString(c.CreatedBy),
				nullableString(c.DirectKey), toMillis(c.CreatedAt), toMillis(c.UpdatedAt))); err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}

		for _, p := range participants {
			if err := insertParticipant(ctx, tx, db.sb, c.ID, &p); err != nil {
				return fmt.Errorf("insert participant %q: %w", p.UserID, err)
			}
		}
		return nil
	})
}

// GetConversation returns a conversation by ID, or nil if it does not exist.
func (db *DB) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	return db.findConversation(ctx, sq.Eq{"c.id": id})
}

// FindDirectConversation returns the 1:1 conversation for a canonical user
// pair key, or nil if none exists.
func (db *DB) FindDirectConversation(ctx context.Context, directKey string) (*Conversation, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	return db.findConversation(ctx, sq.Eq{"c.direct_key": directKey, "c.is_group": false})
}

func (db *DB) findConversation(ctx context.Context, where sq.Sqlizer) (*Conversation, error) {
	query, args, err := db.sb.Select(conversationColumns...).
		From("conversations c").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	c, err := scanConversation(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return c, nil
}

// ListConversationsForUser returns the conversations the user actively
// participates in, most recently updated first.
func (db *DB) ListConversationsForUser(ctx context.Context, userID string) ([]Conversation, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	rows, err := queryStmt(ctx, db, db.sb.Select(conversationColumns...).
		From("conversations c").
		Join("conversation_participants p ON p.conversation_id = c.id").
		Where(sq.Eq{"p.user_id": userID, "p.left_at": nil}).
		OrderBy("c.updated_at DESC", "c.id DESC"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *c)
	}
	return convs, translate(rows.Err())
}

// ConversationCount returns the total number of conversations.
func (db *DB) ConversationCount(ctx context.Context) (int64, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	var count int64
	err := scanStmt(ctx, db, db.sb.Select("COUNT(*)").From("conversations"), &count)
	return count, err
}

func touchConversation(ctx context.Context, r runner, sb sq.StatementBuilderType, id string, at int64) error {
	_, err := execStmt(ctx, r, sb.Update("conversations").
		Set("updated_at", at).
		Where(sq.Eq{"id": id}))
	return err
}
