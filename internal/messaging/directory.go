package messaging

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/matheus3301/stagechat/internal/store"
	"go.uber.org/zap"
)

// Conversation is a conversation together with its participants, active and
// departed.
type Conversation struct {
	store.Conversation
	Participants []store.Participant
}

// Summary is one row of a user's conversation list.
type Summary struct {
	Conversation
	LastMessage *store.Message // nil when no non-deleted message exists
	UnreadCount int
}

// CreateInput describes a conversation to create. The creator is always a
// participant, whether or not ParticipantIDs lists them.
type CreateInput struct {
	ParticipantIDs []string `validate:"required,min=1,dive,required"`
	Name           string   `validate:"max=120"`
	IsGroup        bool
	CreatedBy      string `validate:"required"`
}

// Directory creates conversations and lists them per user.
type Directory struct {
	*deps
	direct *lru.Cache[string, string] // direct key -> conversation id
}

func newDirectory(d *deps) (*Directory, error) {
	cache, err := lru.New[string, string](d.opts.DirectCacheSize)
	if err != nil {
		return nil, fmt.Errorf("direct key cache: %w", err)
	}
	return &Directory{deps: d, direct: cache}, nil
}

// DirectKey returns the canonical key of the unordered pair {a, b}.
func DirectKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// participantSet returns the distinct participant ids with the creator first.
func participantSet(creator string, ids []string) []string {
	set := []string{creator}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(set, id) {
			set = append(set, id)
		}
	}
	return set
}

// Create creates a conversation with the creator as admin and every other
// participant as member, atomically. Creating a 1:1 conversation for a pair
// that already has one returns the existing conversation unchanged.
func (d *Directory) Create(ctx context.Context, in CreateInput) (conv *Conversation, err error) {
	defer observe("create_conversation", time.Now(), &err)

	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	ids := participantSet(in.CreatedBy, in.ParticipantIDs)

	var key string
	if !in.IsGroup {
		if len(ids) != 2 {
			return nil, fmt.Errorf("%w: a direct conversation needs exactly two distinct participants, got %d", ErrInvalidInput, len(ids))
		}
		key = DirectKey(ids[0], ids[1])
		existing, err := d.findDirect(ctx, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			d.logger.Debug("direct conversation exists", zap.String("conversation_id", existing.ID))
			return d.withParticipants(ctx, existing)
		}
	}

	now := d.now()
	c := &store.Conversation{
		ID:        newID(),
		IsGroup:   in.IsGroup,
		CreatedBy: in.CreatedBy,
		DirectKey: key,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.IsGroup {
		c.Name = strings.TrimSpace(in.Name)
	}
	parts := make([]store.Participant, 0, len(ids))
	for _, id := range ids {
		role := store.RoleMember
		if id == in.CreatedBy {
			role = store.RoleAdmin
		}
		read := now
		parts = append(parts, store.Participant{
			ConversationID: c.ID,
			UserID:         id,
			Role:           role,
			JoinedAt:       now,
			LastReadAt:     &read,
		})
	}

	if err := d.store.CreateConversation(ctx, c, parts); err != nil {
		if key != "" && errors.Is(err, store.ErrConflict) {
			// A concurrent create for the same pair won.
			if existing, findErr := d.findDirect(ctx, key); findErr == nil && existing != nil {
				return d.withParticipants(ctx, existing)
			}
		}
		return nil, fmt.Errorf("%w: %w", ErrCreationFailed, d.storeFailure("create conversation", err))
	}
	if key != "" {
		d.direct.Add(key, c.ID)
	}

	d.logger.Info("conversation created",
		zap.String("conversation_id", c.ID),
		zap.Bool("is_group", c.IsGroup),
		zap.Int("participants", len(parts)))
	d.publish(EventConversationCreated, Event{ConversationID: c.ID, ActorID: in.CreatedBy})

	return d.withParticipants(ctx, c)
}

func (d *Directory) findDirect(ctx context.Context, key string) (*store.Conversation, error) {
	if id, ok := d.direct.Get(key); ok {
		c, err := d.store.GetConversation(ctx, id)
		if err != nil {
			return nil, d.storeFailure("get conversation", err)
		}
		if c != nil {
			return c, nil
		}
		d.direct.Remove(key)
	}
	c, err := d.store.FindDirectConversation(ctx, key)
	if err != nil {
		return nil, d.storeFailure("find direct conversation", err)
	}
	if c != nil {
		d.direct.Add(key, c.ID)
	}
	return c, nil
}

func (d *Directory) withParticipants(ctx context.Context, c *store.Conversation) (*Conversation, error) {
	parts, err := d.store.ListParticipants(ctx, c.ID)
	if err != nil {
		return nil, d.storeFailure("list participants", err)
	}
	return &Conversation{Conversation: *c, Participants: parts}, nil
}

// Get returns a conversation the user actively participates in.
func (d *Directory) Get(ctx context.Context, conversationID, userID string) (conv *Conversation, err error) {
	defer observe("get_conversation", time.Now(), &err)

	if _, err := d.requireActive(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	c, err := d.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, d.storeFailure("get conversation", err)
	}
	if c == nil {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	return d.withParticipants(ctx, c)
}

// ListForUser returns the user's active conversations, most recently
// updated first, each with its participants, last non-deleted message and
// the user's unread count.
func (d *Directory) ListForUser(ctx context.Context, userID string) (list []Summary, err error) {
	defer observe("list_conversations", time.Now(), &err)

	convs, err := d.store.ListConversationsForUser(ctx, userID)
	if err != nil {
		return nil, d.storeFailure("list conversations", err)
	}
	list = make([]Summary, 0, len(convs))
	for i := range convs {
		conv, err := d.withParticipants(ctx, &convs[i])
		if err != nil {
			return nil, err
		}
		last, err := d.store.LastMessage(ctx, conv.ID)
		if err != nil {
			return nil, d.storeFailure("last message", err)
		}
		unread, err := d.unreadFor(ctx, conv, userID)
		if err != nil {
			return nil, err
		}
		list = append(list, Summary{Conversation: *conv, LastMessage: last, UnreadCount: unread})
	}
	return list, nil
}

// unreadFor counts the user's unread messages in conv. A participation with
// no read position counts zero.
func (d *Directory) unreadFor(ctx context.Context, conv *Conversation, userID string) (int, error) {
	var self *store.Participant
	for i := range conv.Participants {
		if conv.Participants[i].UserID == userID {
			self = &conv.Participants[i]
			break
		}
	}
	if self == nil || self.LastReadAt == nil {
		return 0, nil
	}
	n, err := d.store.CountUnread(ctx, conv.ID, userID, *self.LastReadAt)
	if err != nil {
		return 0, d.storeFailure("count unread", err)
	}
	return n, nil
}
