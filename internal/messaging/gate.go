package messaging

import (
	"context"
	"time"

	"github.com/matheus3301/stagechat/internal/store"
)

// Denial reasons returned by the gate. They are user-facing and never name
// the block.
const (
	ReasonNotAccepting = "This user is not accepting messages"
	ReasonUnavailable  = "Unable to message this user"
)

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed bool
	Reason  string // set when Allowed is false
}

// Gate decides whether one user may start a direct conversation with another.
type Gate struct {
	*deps
}

// CanMessage checks the recipient's direct-message preference, then whether
// the recipient has blocked the sender. A user without settings accepts
// messages.
func (g *Gate) CanMessage(ctx context.Context, senderID, recipientID string) (dec Decision, err error) {
	defer observe("can_message", time.Now(), &err)

	settings, err := g.store.GetUserSettings(ctx, recipientID)
	if err != nil {
		return Decision{}, g.storeFailure("get user settings", err)
	}
	if settings != nil && !settings.AllowDirectMessages {
		return Decision{Reason: ReasonNotAccepting}, nil
	}

	status, err := g.store.ConnectionStatus(ctx, recipientID, senderID)
	if err != nil {
		return Decision{}, g.storeFailure("connection status", err)
	}
	if status == store.ConnectionBlocked {
		return Decision{Reason: ReasonUnavailable}, nil
	}
	return Decision{Allowed: true}, nil
}
