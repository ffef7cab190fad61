package messaging

import (
	"context"
	"testing"

	"github.com/matheus3301/stagechat/internal/store"
	"github.com/stretchr/testify/require"
)

func TestAddParticipant(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()
	grp := f.group(t, "crew", "alice", "bob")

	p, err := f.core.Membership.AddParticipant(ctx, grp.ID, "alice", "carol")
	require.NoError(t, err)
	require.Equal(t, store.RoleMember, p.Role)
	require.True(t, p.Active())
	require.NotNil(t, p.LastReadAt)
	require.True(t, p.LastReadAt.Equal(p.JoinedAt), "a new member starts with nothing unread")

	_, err = f.core.Membership.AddParticipant(ctx, grp.ID, "alice", "carol")
	require.ErrorIs(t, err, ErrAlreadyMember)
}

func TestAddParticipantChecks(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol", "dave")
	ctx := context.Background()
	grp := f.group(t, "crew", "alice", "bob")
	dm := f.direct(t, "alice", "carol")

	_, err := f.core.Membership.AddParticipant(ctx, grp.ID, "bob", "carol")
	require.ErrorIs(t, err, ErrForbidden, "members cannot add")

	_, err = f.core.Membership.AddParticipant(ctx, grp.ID, "dave", "carol")
	require.ErrorIs(t, err, ErrForbidden, "outsiders cannot add")

	_, err = f.core.Membership.AddParticipant(ctx, dm.ID, "alice", "dave")
	require.ErrorIs(t, err, ErrNotGroup)

	_, err = f.core.Membership.AddParticipant(ctx, grp.ID, "alice", "")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.core.Membership.AddParticipant(ctx, grp.ID, "alice", "ghost")
	require.ErrorIs(t, err, ErrInvalidInput, "unknown users cannot join")
}

func TestAddParticipantReactivatesDepartedMember(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()
	grp := f.group(t, "crew", "alice", "bob", "carol")

	require.NoError(t, f.core.Membership.RemoveParticipant(ctx, grp.ID, "alice", "bob"))
	f.tick()
	f.send(t, grp.ID, "carol", "while bob was away")

	p, err := f.core.Membership.AddParticipant(ctx, grp.ID, "alice", "bob")
	require.NoError(t, err)
	require.True(t, p.Active())
	require.True(t, p.JoinedAt.Equal(f.core.Directory.now()), "joined_at is reset on rejoin")

	parts, err := f.db.ListParticipants(ctx, grp.ID)
	require.NoError(t, err)
	require.Len(t, parts, 3, "rejoin reuses the existing row")

	n, err := f.core.ReadState.UnreadCountTotal(ctx, "bob")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRemoveParticipant(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()
	grp := f.group(t, "crew", "alice", "bob", "carol")
	f.send(t, grp.ID, "bob", "bye soon")

	require.ErrorIs(t, f.core.Membership.RemoveParticipant(ctx, grp.ID, "alice", "alice"), ErrInvalidSelfRemoval)
	require.ErrorIs(t, f.core.Membership.RemoveParticipant(ctx, grp.ID, "carol", "bob"), ErrForbidden)

	require.NoError(t, f.core.Membership.RemoveParticipant(ctx, grp.ID, "alice", "bob"))
	require.ErrorIs(t, f.core.Membership.RemoveParticipant(ctx, grp.ID, "alice", "bob"), ErrNotAParticipant)

	// The removed member loses access.
	_, err := f.core.Directory.Get(ctx, grp.ID, "bob")
	require.ErrorIs(t, err, ErrNotAParticipant)
	list, err := f.core.Directory.ListForUser(ctx, "bob")
	require.NoError(t, err)
	require.Empty(t, list)

	// Everyone else is unaffected, and the history keeps bob's message.
	conv, err := f.core.Directory.Get(ctx, grp.ID, "carol")
	require.NoError(t, err)
	require.Len(t, conv.Participants, 3)
	msgs, err := f.core.Messages.List(ctx, grp.ID, "carol", ListOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "bob", msgs[0].SenderID)
}

func TestRemoveParticipantRequiresGroup(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	dm := f.direct(t, "alice", "bob")

	err := f.core.Membership.RemoveParticipant(context.Background(), dm.ID, "alice", "bob")
	require.ErrorIs(t, err, ErrNotGroup)
}

func TestLeave(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()
	grp := f.group(t, "crew", "alice", "bob", "carol")
	sub := f.bus.Subscribe("participant.", 4)
	defer sub.Close()

	require.NoError(t, f.core.Membership.Leave(ctx, grp.ID, "bob"))
	require.ErrorIs(t, f.core.Membership.Leave(ctx, grp.ID, "bob"), ErrNotAParticipant)
	require.ErrorIs(t, f.core.Membership.Leave(ctx, "missing", "bob"), ErrNotAParticipant)

	evt := <-sub.Events()
	require.Equal(t, EventParticipantLeft, evt.Kind)

	_, err := f.core.Messages.Send(ctx, grp.ID, "bob", "still here?")
	require.ErrorIs(t, err, ErrNotAParticipant)
}

func TestToggleMute(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()
	dm := f.direct(t, "alice", "bob")

	require.NoError(t, f.core.Membership.ToggleMute(ctx, dm.ID, "bob", true))
	require.NoError(t, f.core.Membership.ToggleMute(ctx, dm.ID, "bob", true), "muting twice is a no-op")

	p, err := f.db.GetParticipant(ctx, dm.ID, "bob")
	require.NoError(t, err)
	require.True(t, p.IsMuted)

	// Muting never hides unread messages.
	f.send(t, dm.ID, "alice", "ping")
	n, err := f.core.ReadState.UnreadCountTotal(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, f.core.Membership.ToggleMute(ctx, dm.ID, "bob", false))
	require.ErrorIs(t, f.core.Membership.ToggleMute(ctx, dm.ID, "mallory", true), ErrNotAParticipant)
}

func TestIsActive(t *testing.T) {
	f := newFixture(t, "alice", "bob", "mallory")
	ctx := context.Background()
	dm := f.direct(t, "alice", "bob")

	for user, want := range map[string]bool{"alice": true, "bob": true, "mallory": false} {
		got, err := f.core.Membership.IsActive(ctx, dm.ID, user)
		require.NoError(t, err)
		require.Equal(t, want, got, user)
	}

	require.NoError(t, f.core.Membership.Leave(ctx, dm.ID, "bob"))
	got, err := f.core.Membership.IsActive(ctx, dm.ID, "bob")
	require.NoError(t, err)
	require.False(t, got)
}
