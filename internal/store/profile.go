package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Profiles, user settings and user connections are owned by other parts of
// the platform. The messaging core only reads them; the writers below exist
// for provisioning and tests.

func profileFrom(id, fullName, avatar, displayName sql.NullString) *Profile {
	if !id.Valid {
		return nil
	}
	return &Profile{
		ID:          id.String,
		FullName:    fullName.String,
		AvatarURL:   avatar.String,
		DisplayName: displayName.String,
	}
}

// UpsertProfile inserts or updates a profile projection.
func (db *DB) UpsertProfile(ctx context.Context, p *Profile) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	_, err := execStmt(ctx, db, db.sb.Insert("profiles").
		Columns("id", "full_name", "avatar_url", "display_name", "updated_at").
		Values(p.ID, nullableString(p.FullName), nullableString(p.AvatarURL), nullableString(p.DisplayName), time.Now().UnixMilli()).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			full_name = excluded.full_name,
			avatar_url = excluded.avatar_url,
			display_name = excluded.display_name,
			updated_at = excluded.updated_at`))
	return err
}

// DeleteProfile removes a profile. Messages keep their rows with a null
// sender and participant rows are left in place.
func (db *DB) DeleteProfile(ctx context.Context, id string) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	_, err := execStmt(ctx, db, db.sb.Delete("profiles").Where(sq.Eq{"id": id}))
	return err
}

// GetProfile returns a profile by ID, or nil if it does not exist.
func (db *DB) GetProfile(ctx context.Context, id string) (*Profile, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	var profileID, fullName, avatar, displayName sql.NullString
	err := scanStmt(ctx, db, db.sb.Select("id", "full_name", "avatar_url", "display_name").
		From("profiles").
		Where(sq.Eq{"id": id}), &profileID, &fullName, &avatar, &displayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return profileFrom(profileID, fullName, avatar, displayName), nil
}

// GetUserSettings returns a user's messaging settings, or nil if the user
// never saved any.
func (db *DB) GetUserSettings(ctx context.Context, userID string) (*UserSettings, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	s := UserSettings{UserID: userID}
	err := scanStmt(ctx, db, db.sb.Select("allow_direct_messages").
		From("user_settings").
		Where(sq.Eq{"user_id": userID}), &s.AllowDirectMessages)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertUserSettings inserts or updates a user's messaging settings.
func (db *DB) UpsertUserSettings(ctx context.Context, s *UserSettings) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	_, err := execStmt(ctx, db, db.sb.Insert("user_settings").
		Columns("user_id", "allow_direct_messages", "updated_at").
		Values(s.UserID, s.AllowDirectMessages, time.Now().UnixMilli()).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			allow_direct_messages = excluded.allow_direct_messages,
			updated_at = excluded.updated_at`))
	return err
}

// ConnectionStatus returns the status userID recorded toward otherUserID,
// or "" when there is none.
func (db *DB) ConnectionStatus(ctx context.Context, userID, otherUserID string) (string, error) {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	var status string
	err := scanStmt(ctx, db, db.sb.Select("status").
		From("user_connections").
		Where(sq.Eq{"user_id": userID, "connected_user_id": otherUserID}), &status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return status, err
}

// SetConnectionStatus records the status userID holds toward otherUserID.
func (db *DB) SetConnectionStatus(ctx context.Context, userID, otherUserID, status string) error {
	ctx, cancel := db.bounded(ctx)
	defer cancel()

	_, err := execStmt(ctx, db, db.sb.Insert("user_connections").
		Columns("user_id", "connected_user_id", "status", "updated_at").
		Values(userID, otherUserID, status, time.Now().UnixMilli()).
		Suffix(`ON CONFLICT (user_id, connected_user_id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at`))
	return err
}
