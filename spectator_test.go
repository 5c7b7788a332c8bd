package gohelix

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixio/gohelix/faketest"
)

func newTestSpectator(t *testing.T) (*Spectator, *faketest.Driver) {
	t.Helper()

	driver := faketest.New()
	s := NewSpectator("MYCLUSTER", "unused")
	s.conn = newConnectionWithDriver(driver)
	s.accessor = NewDataAccessor(s.conn)
	return s, driver
}

// startTestSpectator wires up watches and the dispatcher the way Connect
// would, without dialing a real coordination service.
func startTestSpectator(s *Spectator) {
	s.startDispatcher()
	s.startWatches()
	s.state = spectatorConnected
}

func TestSpectatorExternalViewChangeInvokesListenerWithMapping(t *testing.T) {
	t.Parallel()

	s, _ := newTestSpectator(t)

	ev := NewRecord("R")
	ev.SetMapField("R_0", "n1", "ONLINE")
	_, err := s.accessor.Create(s.keys.ExternalView("R"), ev)
	require.NoError(t, err)

	received := make(chan []*Record, 1)
	s.AddExternalViewChangeListener(func(views []*Record, _ *Context) {
		received <- views
	})

	startTestSpectator(s)

	select {
	case views := <-received:
		require.Len(t, views, 1)
		assert.Equal(t, "ONLINE", views[0].MapFields["R_0"]["n1"])
	case <-time.After(time.Second):
		t.Fatal("external view listener was never invoked")
	}
}

func TestSpectatorGetStateMapReflectsExternalView(t *testing.T) {
	t.Parallel()

	s, _ := newTestSpectator(t)

	ev := NewRecord("R")
	ev.SetMapField("R_0", "n1", "ONLINE")
	ev.SetMapField("R_0", "n2", "OFFLINE")
	_, err := s.accessor.Create(s.keys.ExternalView("R"), ev)
	require.NoError(t, err)

	s.AddExternalViewChangeListener(func([]*Record, *Context) {})
	startTestSpectator(s)

	require.Eventually(t, func() bool {
		return len(s.GetStateMap("R_0")) == 2
	}, time.Second, 5*time.Millisecond)

	states := s.GetStateMap("R_0")
	assert.Equal(t, "ONLINE", states["n1"])
	assert.Equal(t, "OFFLINE", states["n2"])

	assert.Empty(t, s.GetStateMap("R_1"), "unknown partition yields an empty map, not nil panic")
}

func TestSpectatorGetParticipantsFiltersByStateAndCachesParticipantConfig(t *testing.T) {
	t.Parallel()

	s, _ := newTestSpectator(t)

	n1Config := NewRecord("n1")
	n1Config.SetSimpleField("HELIX_HOST", "host1")
	n1Config.SetSimpleField("HELIX_PORT", "1234")
	_, err := s.accessor.Create(s.keys.ParticipantConfig("n1"), n1Config)
	require.NoError(t, err)

	n2Config := NewRecord("n2")
	n2Config.SetSimpleField("HELIX_HOST", "host2")
	n2Config.SetSimpleField("HELIX_PORT", "1234")
	_, err = s.accessor.Create(s.keys.ParticipantConfig("n2"), n2Config)
	require.NoError(t, err)

	ev := NewRecord("R")
	ev.SetMapField("R_0", "n1", "ONLINE")
	ev.SetMapField("R_0", "n2", "OFFLINE")
	ev.SetMapField("R_1", "n2", "ONLINE")
	_, err = s.accessor.Create(s.keys.ExternalView("R"), ev)
	require.NoError(t, err)

	s.AddExternalViewChangeListener(func([]*Record, *Context) {})
	s.AddInstanceConfigChangeListener(func([]*Record, *Context) {})
	startTestSpectator(s)

	require.Eventually(t, func() bool {
		return len(s.GetStateMap("R_1")) == 1
	}, time.Second, 5*time.Millisecond)

	online := s.GetParticipants("ONLINE")
	ids := make([]string, 0, len(online))
	for _, p := range online {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{"n1", "n2"}, ids, "n1 is online in R_0, n2 is online in R_1")

	onlineInR0 := s.GetParticipants("ONLINE", "R_0")
	require.Len(t, onlineInR0, 1)
	assert.Equal(t, "n1", onlineInR0[0].ID)

	assert.Empty(t, s.GetParticipants("DROPPED"))
}

func TestSpectatorReconnectsWatchesAfterSessionLoss(t *testing.T) {
	t.Parallel()

	s, _ := newTestSpectator(t)

	ev := NewRecord("R")
	ev.SetMapField("R_0", "n1", "ONLINE")
	_, err := s.accessor.Create(s.keys.ExternalView("R"), ev)
	require.NoError(t, err)

	s.AddExternalViewChangeListener(func([]*Record, *Context) {})
	startTestSpectator(s)

	require.Eventually(t, func() bool {
		return s.GetStateMap("R_0")["n1"] == "ONLINE"
	}, time.Second, 5*time.Millisecond)

	// A lost session means every existing watch goroutine is permanently
	// parked on a channel that will never fire again. Swap in a fresh
	// driver to stand in for the new post-reconnect session, the way a
	// real ZooKeeper session expiry hands the client a brand new session
	// with none of the old watches.
	s.onConnectionStateChange(StateLost)
	assert.True(t, s.isLost)

	driver2 := faketest.New()
	s.conn = newConnectionWithDriver(driver2)
	s.accessor = NewDataAccessor(s.conn)

	ev2 := NewRecord("R")
	ev2.SetMapField("R_0", "n1", "OFFLINE")
	_, err = s.accessor.Create(s.keys.ExternalView("R"), ev2)
	require.NoError(t, err)

	s.onConnectionStateChange(StateConnected)
	assert.False(t, s.isLost)

	require.Eventually(t, func() bool {
		return s.GetStateMap("R_0")["n1"] == "OFFLINE"
	}, time.Second, 5*time.Millisecond, "reinit must re-arm watches against the post-reconnect session instead of staying parked on the dead one")
}
