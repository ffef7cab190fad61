package messaging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnreadMonotonicity(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()
	dm := f.direct(t, "alice", "bob")
	grp := f.group(t, "crew", "carol", "bob")

	unread := func(user string) int {
		t.Helper()
		n, err := f.core.ReadState.UnreadCountTotal(ctx, user)
		require.NoError(t, err)
		return n
	}
	require.Zero(t, unread("bob"))

	f.send(t, dm.ID, "alice", "one")
	require.Equal(t, 1, unread("bob"))
	f.send(t, grp.ID, "carol", "two")
	require.Equal(t, 2, unread("bob"))

	// Own messages never count.
	f.send(t, dm.ID, "bob", "reply")
	require.Equal(t, 2, unread("bob"))

	require.NoError(t, f.core.ReadState.MarkRead(ctx, dm.ID, "bob"))
	f.tick()
	require.Equal(t, 1, unread("bob"), "only the dm was read")

	require.NoError(t, f.core.ReadState.MarkRead(ctx, grp.ID, "bob"))
	f.tick()
	require.Zero(t, unread("bob"))

	f.send(t, dm.ID, "alice", "three")
	require.Equal(t, 1, unread("bob"))
}

func TestUnreadIgnoresDeletedMessagesAndDepartures(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()
	dm := f.direct(t, "alice", "bob")
	grp := f.group(t, "crew", "carol", "bob")

	msg := f.send(t, dm.ID, "alice", "oops")
	require.NoError(t, f.core.Messages.Delete(ctx, msg.ID, "alice"))
	f.send(t, grp.ID, "carol", "hello")

	n, err := f.core.ReadState.UnreadCountTotal(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, f.core.Membership.Leave(ctx, grp.ID, "bob"))
	n, err = f.core.ReadState.UnreadCountTotal(ctx, "bob")
	require.NoError(t, err)
	require.Zero(t, n, "departed conversations do not count")
}

func TestMarkReadRequiresActiveParticipation(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()
	dm := f.direct(t, "alice", "bob")

	require.ErrorIs(t, f.core.ReadState.MarkRead(ctx, "missing", "alice"), ErrNotAParticipant)

	require.NoError(t, f.core.Membership.Leave(ctx, dm.ID, "bob"))
	require.ErrorIs(t, f.core.ReadState.MarkRead(ctx, dm.ID, "bob"), ErrNotAParticipant)
}
