// Package messaging implements the messaging core: conversation directory,
// membership, message store, read state and the permission gate. Every
// component reads and writes through a Store and never holds state of its
// own beyond a small cache of 1:1 conversation keys.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/matheus3301/stagechat/internal/bus"
	"github.com/matheus3301/stagechat/internal/store"
	"go.uber.org/zap"
)

// Store is the persistence gateway the core depends on. *store.DB
// implements it.
type Store interface {
	CreateConversation(ctx context.Context, c *store.Conversation, participants []store.Participant) error
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	FindDirectConversation(ctx context.Context, directKey string) (*store.Conversation, error)
	ListConversationsForUser(ctx context.Context, userID string) ([]store.Conversation, error)

	GetParticipant(ctx context.Context, conversationID, userID string) (*store.Participant, error)
	ListParticipants(ctx context.Context, conversationID string) ([]store.Participant, error)
	AddParticipant(ctx context.Context, p *store.Participant) error
	ReactivateParticipant(ctx context.Context, conversationID, userID string, at time.Time) (bool, error)
	MarkParticipantLeft(ctx context.Context, conversationID, userID string, at time.Time) (bool, error)
	SetParticipantMuted(ctx context.Context, conversationID, userID string, muted bool) (bool, error)
	SetLastRead(ctx context.Context, conversationID, userID string, at time.Time) (bool, error)

	InsertMessage(ctx context.Context, m *store.Message) error
	GetMessage(ctx context.Context, id string) (*store.Message, error)
	ListMessages(ctx context.Context, conversationID string, before *store.Cursor, limit int) ([]store.Message, error)
	LastMessage(ctx context.Context, conversationID string) (*store.Message, error)
	UpdateMessageContent(ctx context.Context, id, content string, at time.Time) error
	MarkMessageDeleted(ctx context.Context, id string) error
	CountUnread(ctx context.Context, conversationID, userID string, since time.Time) (int, error)
	UnreadTotal(ctx context.Context, userID string) (int, error)

	GetUserSettings(ctx context.Context, userID string) (*store.UserSettings, error)
	ConnectionStatus(ctx context.Context, userID, otherUserID string) (string, error)
}

// Options tunes limits of the core. Zero values take the defaults.
type Options struct {
	MaxMessageLength int // in runes
	DefaultPageSize  int
	MaxPageSize      int
	DirectCacheSize  int
}

const (
	DefaultMaxMessageLength = 4000
	DefaultPageSize         = 50
	DefaultMaxPageSize      = 100
	DefaultDirectCacheSize  = 1024
)

func (o Options) withDefaults() Options {
	if o.MaxMessageLength <= 0 {
		o.MaxMessageLength = DefaultMaxMessageLength
	}
	if o.DefaultPageSize <= 0 {
		o.DefaultPageSize = DefaultPageSize
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = DefaultMaxPageSize
	}
	if o.DefaultPageSize > o.MaxPageSize {
		o.DefaultPageSize = o.MaxPageSize
	}
	if o.DirectCacheSize <= 0 {
		o.DirectCacheSize = DefaultDirectCacheSize
	}
	return o
}

// Event kinds published on the bus.
const (
	EventConversationCreated = "conversation.created"
	EventParticipantAdded    = "participant.added"
	EventParticipantRemoved  = "participant.removed"
	EventParticipantLeft     = "participant.left"
	EventMessageSent         = "message.sent"
	EventMessageEdited       = "message.edited"
	EventMessageDeleted      = "message.deleted"
)

// Event is the payload of every messaging bus event.
type Event struct {
	ConversationID string
	MessageID      string
	ActorID        string
	SubjectID      string // user a membership event is about
}

// Core bundles the messaging components built over one store.
type Core struct {
	Directory  *Directory
	Membership *Membership
	Messages   *Messages
	ReadState  *ReadState
	Gate       *Gate
}

// New builds the messaging core. b may be nil to disable events; a nil
// logger or clock falls back to a no-op logger and the wall clock.
func New(st Store, b *bus.Bus, logger *zap.Logger, clock clockwork.Clock, opts Options) (*Core, error) {
	if st == nil {
		return nil, errors.New("messaging: nil store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	d := &deps{store: st, bus: b, logger: logger, clock: clock, opts: opts.withDefaults()}

	dir, err := newDirectory(d)
	if err != nil {
		return nil, err
	}
	return &Core{
		Directory:  dir,
		Membership: &Membership{deps: d},
		Messages:   &Messages{deps: d},
		ReadState:  &ReadState{deps: d},
		Gate:       &Gate{deps: d},
	}, nil
}

var validate = validator.New()

type deps struct {
	store  Store
	bus    *bus.Bus
	logger *zap.Logger
	clock  clockwork.Clock
	opts   Options
}

// now returns the clock time at the store's millisecond resolution.
func (d *deps) now() time.Time {
	return d.clock.Now().UTC().Truncate(time.Millisecond)
}

func (d *deps) publish(kind string, evt Event) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(bus.Event{Kind: kind, Timestamp: d.clock.Now(), Payload: evt})
}

// storeFailure logs a failed store call and wraps it. Deadline errors are
// tagged ErrTimeout.
func (d *deps) storeFailure(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		d.logger.Warn("store call timed out", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	}
	d.logger.Error("store call failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

// requireActive returns the caller's active membership or ErrNotAParticipant.
// It never reveals whether the conversation exists.
func (d *deps) requireActive(ctx context.Context, conversationID, userID string) (*store.Participant, error) {
	p, err := d.store.GetParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, d.storeFailure("get participant", err)
	}
	if p == nil || !p.Active() {
		return nil, fmt.Errorf("conversation %s, user %s: %w", conversationID, userID, ErrNotAParticipant)
	}
	return p, nil
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
