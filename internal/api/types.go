package api

import (
	"time"

	"github.com/matheus3301/stagechat/internal/messaging"
	"github.com/matheus3301/stagechat/internal/store"
)

// Wire types of the stagechat.v1.Messaging service. Timestamps are Unix
// milliseconds; zero means unset.

type Profile struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

type Participant struct {
	UserID           string   `json:"user_id"`
	Role             string   `json:"role"`
	JoinedAtUnixMs   int64    `json:"joined_at_unix_ms"`
	LeftAtUnixMs     int64    `json:"left_at_unix_ms,omitempty"`
	LastReadAtUnixMs int64    `json:"last_read_at_unix_ms,omitempty"`
	IsMuted          bool     `json:"is_muted"`
	Profile          *Profile `json:"profile,omitempty"`
}

type Message struct {
	ID              string   `json:"id"`
	ConversationID  string   `json:"conversation_id"`
	SenderID        string   `json:"sender_id,omitempty"`
	Content         string   `json:"content"`
	IsEdited        bool     `json:"is_edited"`
	IsDeleted       bool     `json:"is_deleted"`
	CreatedAtUnixMs int64    `json:"created_at_unix_ms"`
	EditedAtUnixMs  int64    `json:"edited_at_unix_ms,omitempty"`
	Sender          *Profile `json:"sender,omitempty"`
}

type Conversation struct {
	ID              string         `json:"id"`
	Name            string         `json:"name,omitempty"`
	IsGroup         bool           `json:"is_group"`
	CreatedBy       string         `json:"created_by,omitempty"`
	CreatedAtUnixMs int64          `json:"created_at_unix_ms"`
	UpdatedAtUnixMs int64          `json:"updated_at_unix_ms"`
	Participants    []*Participant `json:"participants"`
}

type ConversationSummary struct {
	Conversation *Conversation `json:"conversation"`
	LastMessage  *Message      `json:"last_message,omitempty"`
	UnreadCount  int32         `json:"unread_count"`
}

type ConversationRequest struct {
	ConversationID string `json:"conversation_id"`
}

type CreateConversationRequest struct {
	ParticipantIDs []string `json:"participant_ids"`
	Name           string   `json:"name,omitempty"`
	IsGroup        bool     `json:"is_group"`
}

type ParticipantRequest struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

type SetMutedRequest struct {
	ConversationID string `json:"conversation_id"`
	Muted          bool   `json:"muted"`
}

type ListMessagesRequest struct {
	ConversationID string `json:"conversation_id"`
	Limit          int32  `json:"limit,omitempty"`
	BeforeUnixMs   int64  `json:"before_unix_ms,omitempty"`
	BeforeID       string `json:"before_id,omitempty"`
}

type SendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

type EditMessageRequest struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

type MessageRequest struct {
	MessageID string `json:"message_id"`
}

type CanMessageRequest struct {
	RecipientID string `json:"recipient_id"`
}

type WatchEventsRequest struct {
	Prefix string `json:"prefix,omitempty"` // e.g. "message."; empty watches everything
}

type ListConversationsResponse struct {
	Conversations []*ConversationSummary `json:"conversations"`
}

type ConversationResponse struct {
	Conversation *Conversation `json:"conversation"`
}

type ParticipantResponse struct {
	Participant *Participant `json:"participant"`
}

type ListMessagesResponse struct {
	Messages []*Message `json:"messages"`
	// NextBeforeUnixMs and NextBeforeID are the cursor for the next older
	// page; both empty when the page was empty.
	NextBeforeUnixMs int64  `json:"next_before_unix_ms,omitempty"`
	NextBeforeID     string `json:"next_before_id,omitempty"`
}

type MessageResponse struct {
	Message *Message `json:"message"`
}

type UnreadTotalResponse struct {
	Count int32 `json:"count"`
}

type CanMessageResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

type StatusResponse struct {
	Instance          string `json:"instance"`
	State             string `json:"state"`
	StateSinceUnixMs  int64  `json:"state_since_unix_ms"`
	UptimeMs          int64  `json:"uptime_ms"`
	PID               int32  `json:"pid"`
	StoreDriver       string `json:"store_driver"`
	ConversationCount int64  `json:"conversation_count"`
	MessageCount      int64  `json:"message_count"`
}

type EventEnvelope struct {
	EventID          string `json:"event_id"`
	Instance         string `json:"instance"`
	OccurredAtUnixMs int64  `json:"occurred_at_unix_ms"`
	Kind             string `json:"kind"`
	ConversationID   string `json:"conversation_id,omitempty"`
	MessageID        string `json:"message_id,omitempty"`
	ActorID          string `json:"actor_id,omitempty"`
	SubjectID        string `json:"subject_id,omitempty"`
	State            string `json:"state,omitempty"` // daemon.state_changed only
	PayloadVersion   int32  `json:"payload_version"`
}

func unixMs(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}

func profileToWire(p *store.Profile) *Profile {
	if p == nil {
		return nil
	}
	return &Profile{ID: p.ID, FullName: p.FullName, AvatarURL: p.AvatarURL, DisplayName: p.DisplayName}
}

func participantToWire(p *store.Participant) *Participant {
	return &Participant{
		UserID:           p.UserID,
		Role:             string(p.Role),
		JoinedAtUnixMs:   p.JoinedAt.UnixMilli(),
		LeftAtUnixMs:     unixMs(p.LeftAt),
		LastReadAtUnixMs: unixMs(p.LastReadAt),
		IsMuted:          p.IsMuted,
		Profile:          profileToWire(p.Profile),
	}
}

func messageToWire(m *store.Message) *Message {
	if m == nil {
		return nil
	}
	return &Message{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		Content:         m.Content,
		IsEdited:        m.IsEdited,
		IsDeleted:       m.IsDeleted,
		CreatedAtUnixMs: m.CreatedAt.UnixMilli(),
		EditedAtUnixMs:  unixMs(m.EditedAt),
		Sender:          profileToWire(m.Sender),
	}
}

func conversationToWire(c *messaging.Conversation) *Conversation {
	out := &Conversation{
		ID:              c.ID,
		Name:            c.Name,
		IsGroup:         c.IsGroup,
		CreatedBy:       c.CreatedBy,
		CreatedAtUnixMs: c.CreatedAt.UnixMilli(),
		UpdatedAtUnixMs: c.UpdatedAt.UnixMilli(),
		Participants:    make([]*Participant, 0, len(c.Participants)),
	}
	for i := range c.Participants {
		out.Participants = append(out.Participants, participantToWire(&c.Participants[i]))
	}
	return out
}
