package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

func (db *DB) participantSelect() sq.SelectBuilder {
	return db.sb.Select(
		"p.conversation_id", "p.user_id", "p.role", "p.joined_at", "p.left_at", "p.last_read_at", "p.is_muted",
		"pr.id", "pr.full_name", "pr.avatar_url", "pr.display_name",
	).
		From("conversation_participants p").
		LeftJoin("profiles pr ON pr.id = p.user_id")
}

func scanParticipant(r rowScanner) (*Participant, error) {
	var (
		p                Participant
		role             string
		joinedAt         int64
		leftAt, lastRead sql.NullInt64
		profileID        sql.NullString
		fullName, avatar sql.NullString
		displayName      sql.NullString
	)
	if err := r.Scan(&p.ConversationID, &p.UserID, &role, &joinedAt, &leftAt, &lastRead, &p.IsMuted,
		&profileID, &fullName, &avatar, &displayName); err != nil {
		return nil, err
	}
	p.Role = Role(role)
	p.JoinedAt = fromMillis(joinedAt)
	p.LeftAt = timePtr(leftAt)
	p.LastReadAt = timePtr(lastRead)
	p.Profile = profileFrom(profileID, fullName, avatar, displayName)
	return &p, nil
}

// insertParticipant writes a membership row. Profiles are owned elsewhere and
// carry no foreign key from this table, so the profile is checked here, inside
// the caller's transaction.
func insertParticipant(ctx context.Context, r runner, sb sq.StatementBuilderType, conversationID string, p *Participant) error {
	if err := requireProfile(ctx, r, sb, p.UserID); err != nil {
		return err
	}
	role := p.Role
	if role == "" {
		role = RoleMember
	}
	_, err := execStmt(ctx, r, sb.Insert("conversation_participants").
		Columns("conversation_id", "user_id", "role", "joined_at", "last_read_at", "is_muted").
		Values(conversationID, p.UserID, string(role), toMillis(p.JoinedAt), nullableMillis(p.LastReadAt), p.IsMuted))
	return err
}

func requireProfile(ctx context.Context, r runner, sb sq.StatementBuilderType, userID string) error {
	query, args, err := sb.Select("1").From("profiles").Where(sq.Eq{"id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	var one int
	err = r.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: no profile %q", ErrInvalidReference, userID)
	}
	return translate(err)
}

// GetParticipant returns the membership row for a user in a conversation,
// active or not. Returns nil if the user was never a participant.
func (db *DB) GetParticipant(ctx context.Context, conversationID, userID string) (*Participant, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	query, args, err := db.participantSelect().
		Where(sq.Eq{"p.conversation_id": conversationID, "p.user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	p, err := scanParticipant(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// ListParticipants returns every participant of a conversation, including
// those who have left, in join order.
func (db *DB) ListParticipants(ctx context.Context, conversationID string) ([]Participant, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	rows, err := queryStmt(ctx, db, db.participantSelect().
		Where(sq.Eq{"p.conversation_id": conversationID}).
		OrderBy("p.joined_at ASC", "p.user_id ASC"))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var parts []Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		parts = append(parts, *p)
	}
	return parts, translate(rows.Err())
}

// AddParticipant inserts a new membership row and bumps the conversation.
func (db *DB) AddParticipant(ctx context.Context, p *Participant) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	return db.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertParticipant(ctx, tx, db.sb, p.ConversationID, p); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
		return touchConversation(ctx, tx, db.sb, p.ConversationID, toMillis(p.JoinedAt))
	})
}

// ReactivateParticipant clears left_at on a previously left membership and
// resets joined_at and last_read_at to the rejoin time. Returns false if no
// left row matched.
func (db *DB) ReactivateParticipant(ctx context.Context, conversationID, userID string, at time.Time) (bool, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	var ok bool
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireProfile(ctx, tx, db.sb, userID); err != nil {
			return err
		}
		res, err := execStmt(ctx, tx, db.sb.Update("conversation_participants").
			Set("left_at", nil).
			Set("joined_at", toMillis(at)).
			Set("last_read_at", toMillis(at)).
			Where(sq.Eq{"conversation_id": conversationID, "user_id": userID}).
			Where(sq.NotEq{"left_at": nil}))
		if err != nil {
			return fmt.Errorf("reactivate participant: %w", err)
		}
		if ok, err = affected(res); err != nil || !ok {
			return err
		}
		return touchConversation(ctx, tx, db.sb, conversationID, toMillis(at))
	})
	return ok, err
}

// MarkParticipantLeft sets left_at on an active membership. Returns false if
// the user had no active row.
func (db *DB) MarkParticipantLeft(ctx context.Context, conversationID, userID string, at time.Time) (bool, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	var ok bool
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := execStmt(ctx, tx, db.sb.Update("conversation_participants").
			Set("left_at", toMillis(at)).
			Where(sq.Eq{"conversation_id": conversationID, "user_id": userID, "left_at": nil}))
		if err != nil {
			return fmt.Errorf("mark participant left: %w", err)
		}
		if ok, err = affected(res); err != nil || !ok {
			return err
		}
		return touchConversation(ctx, tx, db.sb, conversationID, toMillis(at))
	})
	return ok, err
}

// SetParticipantMuted sets is_muted on an active membership. Returns false
// if the user had no active row.
func (db *DB) SetParticipantMuted(ctx context.Context, conversationID, userID string, muted bool) (bool, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	res, err := execStmt(ctx, db, db.sb.Update("conversation_participants").
		Set("is_muted", muted).
		Where(sq.Eq{"conversation_id": conversationID, "user_id": userID, "left_at": nil}))
	if err != nil {
		return false, err
	}
	return affected(res)
}

// SetLastRead records the read position of an active participant. Returns
// false if the user had no active row.
func (db *DB) SetLastRead(ctx context.Context, conversationID, userID string, at time.Time) (bool, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	res, err := execStmt(ctx, db, db.sb.Update("conversation_participants").
		Set("last_read_at", toMillis(at)).
		Where(sq.Eq{"conversation_id": conversationID, "user_id": userID, "left_at": nil}))
	if err != nil {
		return false, err
	}
	return affected(res)
}
