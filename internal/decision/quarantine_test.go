package decision

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/eryxsegithub/TheStudioBot/internal/database"
	"github.com/eryxsegithub/TheStudioBot/internal/dispatcher"
)

func newTestQuarantine(t *testing.T) (*Quarantine, *fakeGuild, database.Store, *fakeAudit) {
	t.Helper()
	store, err := database.OpenJSON(filepath.Join(t.TempDir(), "guilds.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	g := newFakeGuild()
	g.addRole("A", 0)
	g.addRole("B", 0)
	g.setMember("u1", "A", "B")
	g.channels = []dispatcher.Channel{
		{ID: "general", Name: "general", Text: true},
		{ID: "voice", Name: "voice"},
	}

	audit := &fakeAudit{}
	q := NewQuarantine(store, g, audit, 0)
	q.now = func() time.Time { return testNow }
	return q, g, store, audit
}

func TestJailThenUnjail(t *testing.T) {
	q, g, store, audit := newTestQuarantine(t)
	ctx := context.Background()

	rec, err := q.Jail(ctx, "g1", "u1", 0, "rude")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, rec.Roles)
	assert.Equal(t, testNow.Add(time.Hour), rec.ReleaseAt)
	assert.Equal(t, []string{"Jail-1"}, g.memberRoles("u1"))

	assert.Equal(t, [2]int64{0, jailDeny}, g.overwrites["general/Jail-1"])
	assert.Equal(t, [2]int64{0, jailDeny}, g.overwrites["voice/Jail-1"])
	assert.Equal(t, [2]int64{jailAllow, 0}, g.overwrites["ch-jail/Jail-1"])

	settings, err := store.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Jail-1", settings.JailRoleID)
	require.Contains(t, settings.Jailed, "u1")
	assert.Equal(t, []string{"A", "B"}, settings.Jailed["u1"].Roles)

	// B is deleted while the member sits in jail.
	delete(g.roles, "B")

	restored, err := q.Unjail(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, restored)
	assert.Equal(t, []string{"A"}, g.memberRoles("u1"))

	_, err = q.Unjail(ctx, "g1", "u1")
	assert.ErrorIs(t, err, ErrNotQuarantined)
	assert.Equal(t, []string{"A"}, g.memberRoles("u1"))

	settings, _ = store.Get(ctx, "g1")
	assert.Empty(t, settings.Jailed)
	assert.Equal(t, []string{"jail", "unjail"}, audit.actions())
}

func TestJailReusesRoleAndSnapshot(t *testing.T) {
	q, g, _, _ := newTestQuarantine(t)
	ctx := context.Background()
	g.setMember("u2", "A")

	_, err := q.Jail(ctx, "g1", "u1", time.Minute, "")
	require.NoError(t, err)
	_, err = q.Jail(ctx, "g1", "u2", time.Minute, "")
	require.NoError(t, err)
	assert.Equal(t, 1, g.nextID)
	assert.Len(t, g.channels, 3)

	// Jailing again keeps the first snapshot and extends the release.
	rec, err := q.Jail(ctx, "g1", "u1", 2*time.Hour, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, rec.Roles)
	assert.Equal(t, testNow.Add(2*time.Hour), rec.ReleaseAt)
}

func TestJailRejectsNegativeDuration(t *testing.T) {
	q, g, _, _ := newTestQuarantine(t)
	_, err := q.Jail(context.Background(), "g1", "u1", -time.Second, "")
	assert.ErrorIs(t, err, ErrInvalidDuration)
	assert.Equal(t, 0, g.nextID)
}

func TestJailRollsBackWhenRolesCannotBeSet(t *testing.T) {
	q, g, store, _ := newTestQuarantine(t)
	g.deny["set_roles"] = true

	_, err := q.Jail(context.Background(), "g1", "u1", time.Minute, "")
	assert.ErrorIs(t, err, dispatcher.ErrPermissionDenied)

	settings, _ := store.Get(context.Background(), "g1")
	assert.Empty(t, settings.Jailed)
	assert.Equal(t, []string{"A", "B"}, g.memberRoles("u1"))
}

func TestUnjailSwallowsPermissionDenied(t *testing.T) {
	q, g, store, _ := newTestQuarantine(t)
	ctx := context.Background()

	_, err := q.Jail(ctx, "g1", "u1", time.Minute, "")
	require.NoError(t, err)

	g.deny["add_role"] = true
	restored, err := q.Unjail(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Empty(t, restored)

	settings, _ := store.Get(ctx, "g1")
	assert.Empty(t, settings.Jailed)
}

func TestUnjailKeepsRecordWhenLookupFails(t *testing.T) {
	q, g, store, _ := newTestQuarantine(t)
	ctx := context.Background()

	_, err := q.Jail(ctx, "g1", "u1", time.Minute, "")
	require.NoError(t, err)

	for _, op := range []string{"member", "roles"} {
		g.fail[op] = errors.New("gateway timeout")
		_, err = q.Unjail(ctx, "g1", "u1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotQuarantined)
		delete(g.fail, op)

		settings, _ := store.Get(ctx, "g1")
		require.Contains(t, settings.Jailed, "u1", "record survives a failed %s lookup", op)
		assert.Equal(t, []string{"A", "B"}, settings.Jailed["u1"].Roles)
	}

	restored, err := q.Unjail(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, restored)
	assert.Equal(t, []string{"A", "B"}, g.memberRoles("u1"))
}

func TestUnjailMemberWhoLeft(t *testing.T) {
	q, g, store, _ := newTestQuarantine(t)
	ctx := context.Background()

	_, err := q.Jail(ctx, "g1", "u1", time.Minute, "")
	require.NoError(t, err)
	g.mu.Lock()
	delete(g.members, "u1")
	g.mu.Unlock()

	restored, err := q.Unjail(ctx, "g1", "u1")
	require.NoError(t, err)
	assert.Empty(t, restored)
	settings, _ := store.Get(ctx, "g1")
	assert.Empty(t, settings.Jailed)
}

func TestSweepReleasesExpiredOnly(t *testing.T) {
	q, g, store, _ := newTestQuarantine(t)
	ctx := context.Background()
	g.setMember("u2", "B")

	_, err := q.Jail(ctx, "g1", "u1", time.Minute, "")
	require.NoError(t, err)
	_, err = q.Jail(ctx, "g1", "u2", 2*time.Hour, "")
	require.NoError(t, err)

	beats := 0
	q.OnSweep = func() { beats++ }

	assert.Equal(t, 0, q.Sweep(ctx, testNow.Add(30*time.Second)))
	assert.Equal(t, 1, q.Sweep(ctx, testNow.Add(10*time.Minute)))
	assert.Equal(t, 2, beats)

	assert.Equal(t, []string{"A", "B"}, g.memberRoles("u1"))
	assert.Equal(t, []string{"Jail-1"}, g.memberRoles("u2"))

	settings, _ := store.Get(ctx, "g1")
	assert.NotContains(t, settings.Jailed, "u1")
	assert.Contains(t, settings.Jailed, "u2")
}

func TestSweeperStops(t *testing.T) {
	q, _, _, _ := newTestQuarantine(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	q.StartSweeper(context.Background(), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	q.Stop()
}
