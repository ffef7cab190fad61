package store

import "time"

// Role is a participant's role within a conversation.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// ConnectionBlocked is the user_connections status that records a block.
const ConnectionBlocked = "blocked"

// Profile is the minimal profile projection embedded in responses.
type Profile struct {
	ID          string
	FullName    string
	AvatarURL   string
	DisplayName string
}

// Conversation is a 1:1 or group thread.
type Conversation struct {
	ID        string
	Name      string // groups only
	IsGroup   bool
	CreatedBy string
	DirectKey string // canonical user pair, 1:1 only
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Participant is a user's membership in a conversation. A nil LeftAt means
// the membership is active.
type Participant struct {
	ConversationID string
	UserID         string
	Role           Role
	JoinedAt       time.Time
	LeftAt         *time.Time
	LastReadAt     *time.Time
	IsMuted        bool
	Profile        *Profile
}

// Active reports whether the participant has not left.
func (p *Participant) Active() bool {
	return p.LeftAt == nil
}

// Message is a conversation message. Content is always empty for deleted
// messages; SenderID is empty once the sender's profile is gone.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	IsEdited       bool
	IsDeleted      bool
	CreatedAt      time.Time
	EditedAt       *time.Time
	Sender         *Profile
}

// UserSettings holds the messaging preferences of a user.
type UserSettings struct {
	UserID              string
	AllowDirectMessages bool
}
