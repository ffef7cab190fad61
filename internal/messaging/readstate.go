package messaging

import (
	"context"
	"fmt"
	"time"
)

// ReadState tracks per-participant read positions.
type ReadState struct {
	*deps
}

// MarkRead moves the caller's read position to now.
func (r *ReadState) MarkRead(ctx context.Context, conversationID, userID string) (err error) {
	defer observe("mark_read", time.Now(), &err)

	ok, err := r.store.SetLastRead(ctx, conversationID, userID, r.now())
	if err != nil {
		return r.storeFailure("set last read", err)
	}
	if !ok {
		return fmt.Errorf("conversation %s, user %s: %w", conversationID, userID, ErrNotAParticipant)
	}
	return nil
}

// UnreadCountTotal counts unread messages across the user's active
// conversations.
func (r *ReadState) UnreadCountTotal(ctx context.Context, userID string) (n int, err error) {
	defer observe("unread_total", time.Now(), &err)

	n, err = r.store.UnreadTotal(ctx, userID)
	if err != nil {
		return 0, r.storeFailure("unread total", err)
	}
	return n, nil
}
