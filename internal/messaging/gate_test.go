package messaging

import (
	"context"
	"testing"

	"github.com/matheus3301/stagechat/internal/store"
	"github.com/stretchr/testify/require"
)

func TestCanMessage(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol", "dave")
	ctx := context.Background()

	require.NoError(t, f.db.UpsertUserSettings(ctx, &store.UserSettings{UserID: "carol", AllowDirectMessages: false}))
	require.NoError(t, f.db.UpsertUserSettings(ctx, &store.UserSettings{UserID: "dave", AllowDirectMessages: true}))
	require.NoError(t, f.db.SetConnectionStatus(ctx, "bob", "alice", store.ConnectionBlocked))
	require.NoError(t, f.db.SetConnectionStatus(ctx, "dave", "alice", "following"))

	tests := []struct {
		name      string
		sender    string
		recipient string
		want      Decision
	}{
		{"blocker can still message", "bob", "alice", Decision{Allowed: true}},
		{"recipient blocked sender", "alice", "bob", Decision{Reason: ReasonUnavailable}},
		{"block only applies to the blocked user", "carol", "bob", Decision{Allowed: true}},
		{"recipient disabled direct messages", "alice", "carol", Decision{Reason: ReasonNotAccepting}},
		{"other connection statuses allow", "alice", "dave", Decision{Allowed: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.core.Gate.CanMessage(ctx, tt.sender, tt.recipient)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCanMessageHasNoSideEffects(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	_, err := f.core.Gate.CanMessage(ctx, "alice", "bob")
	require.NoError(t, err)

	n, err := f.db.ConversationCount(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	settings, err := f.db.GetUserSettings(ctx, "bob")
	require.NoError(t, err)
	require.Nil(t, settings)
}
