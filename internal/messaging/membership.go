package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/stagechat/internal/store"
	"go.uber.org/zap"
)

// Membership manages who belongs to a conversation. Adding and removing
// others is reserved to active admins of group conversations.
type Membership struct {
	*deps
}

// requireAdmin checks that adminID is an active admin of the conversation
// and returns the conversation.
func (m *Membership) requireAdmin(ctx context.Context, conversationID, adminID string) (*store.Conversation, error) {
	p, err := m.store.GetParticipant(ctx, conversationID, adminID)
	if err != nil {
		return nil, m.storeFailure("get participant", err)
	}
	if p == nil || !p.Active() || p.Role != store.RoleAdmin {
		return nil, fmt.Errorf("user %s is not an admin of %s: %w", adminID, conversationID, ErrForbidden)
	}
	c, err := m.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, m.storeFailure("get conversation", err)
	}
	if c == nil {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	return c, nil
}

// AddParticipant adds userID to a group as a member. A user who left earlier
// is reactivated with the role they held before.
func (m *Membership) AddParticipant(ctx context.Context, conversationID, adminID, userID string) (p *store.Participant, err error) {
	defer observe("add_participant", time.Now(), &err)

	if err := validate.Var(userID, "required"); err != nil {
		return nil, fmt.Errorf("%w: user id: %v", ErrInvalidInput, err)
	}
	c, err := m.requireAdmin(ctx, conversationID, adminID)
	if err != nil {
		return nil, err
	}
	if !c.IsGroup {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotGroup)
	}

	existing, err := m.store.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, m.storeFailure("get participant", err)
	}
	now := m.now()
	switch {
	case existing != nil && existing.Active():
		return nil, fmt.Errorf("user %s in %s: %w", userID, conversationID, ErrAlreadyMember)

	case existing != nil:
		ok, err := m.store.ReactivateParticipant(ctx, conversationID, userID, now)
		if errors.Is(err, store.ErrInvalidReference) {
			return nil, fmt.Errorf("%w: unknown user %s", ErrInvalidInput, userID)
		}
		if err != nil {
			return nil, m.storeFailure("reactivate participant", err)
		}
		if !ok {
			// Rejoined concurrently.
			return nil, fmt.Errorf("user %s in %s: %w", userID, conversationID, ErrAlreadyMember)
		}

	default:
		read := now
		err := m.store.AddParticipant(ctx, &store.Participant{
			ConversationID: conversationID,
			UserID:         userID,
			Role:           store.RoleMember,
			JoinedAt:       now,
			LastReadAt:     &read,
		})
		switch {
		case errors.Is(err, store.ErrConflict):
			return nil, fmt.Errorf("user %s in %s: %w", userID, conversationID, ErrAlreadyMember)
		case errors.Is(err, store.ErrInvalidReference):
			return nil, fmt.Errorf("%w: unknown user %s", ErrInvalidInput, userID)
		case err != nil:
			return nil, m.storeFailure("add participant", err)
		}
	}

	m.logger.Info("participant added",
		zap.String("conversation_id", conversationID),
		zap.String("user_id", userID),
		zap.Bool("rejoined", existing != nil))
	m.publish(EventParticipantAdded, Event{ConversationID: conversationID, ActorID: adminID, SubjectID: userID})

	p, err = m.store.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, m.storeFailure("get participant", err)
	}
	return p, nil
}

// RemoveParticipant marks userID as departed from a group. Admins cannot
// remove themselves; they leave instead.
func (m *Membership) RemoveParticipant(ctx context.Context, conversationID, adminID, userID string) (err error) {
	defer observe("remove_participant", time.Now(), &err)

	if userID == adminID {
		return ErrInvalidSelfRemoval
	}
	c, err := m.requireAdmin(ctx, conversationID, adminID)
	if err != nil {
		return err
	}
	if !c.IsGroup {
		return fmt.Errorf("conversation %s: %w", conversationID, ErrNotGroup)
	}
	ok, err := m.store.MarkParticipantLeft(ctx, conversationID, userID, m.now())
	if err != nil {
		return m.storeFailure("mark participant left", err)
	}
	if !ok {
		return fmt.Errorf("user %s in %s: %w", userID, conversationID, ErrNotAParticipant)
	}

	m.logger.Info("participant removed",
		zap.String("conversation_id", conversationID),
		zap.String("user_id", userID),
		zap.String("by", adminID))
	m.publish(EventParticipantRemoved, Event{ConversationID: conversationID, ActorID: adminID, SubjectID: userID})
	return nil
}

// Leave marks the caller as departed. Their messages stay.
func (m *Membership) Leave(ctx context.Context, conversationID, userID string) (err error) {
	defer observe("leave_conversation", time.Now(), &err)

	ok, err := m.store.MarkParticipantLeft(ctx, conversationID, userID, m.now())
	if err != nil {
		return m.storeFailure("mark participant left", err)
	}
	if !ok {
		return fmt.Errorf("conversation %s, user %s: %w", conversationID, userID, ErrNotAParticipant)
	}

	m.logger.Info("participant left",
		zap.String("conversation_id", conversationID),
		zap.String("user_id", userID))
	m.publish(EventParticipantLeft, Event{ConversationID: conversationID, ActorID: userID, SubjectID: userID})
	return nil
}

// ToggleMute sets the caller's mute flag. Muting only affects notification
// delivery, never visibility or unread counts.
func (m *Membership) ToggleMute(ctx context.Context, conversationID, userID string, muted bool) (err error) {
	defer observe("toggle_mute", time.Now(), &err)

	ok, err := m.store.SetParticipantMuted(ctx, conversationID, userID, muted)
	if err != nil {
		return m.storeFailure("set muted", err)
	}
	if !ok {
		return fmt.Errorf("conversation %s, user %s: %w", conversationID, userID, ErrNotAParticipant)
	}
	return nil
}

// IsActive reports whether userID currently participates in the
// conversation.
func (m *Membership) IsActive(ctx context.Context, conversationID, userID string) (bool, error) {
	p, err := m.store.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return false, m.storeFailure("get participant", err)
	}
	return p != nil && p.Active(), nil
}
