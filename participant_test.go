package gohelix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixio/gohelix/faketest"
)

func newTestParticipant(t *testing.T) (*Participant, *faketest.Driver) {
	t.Helper()

	driver := faketest.New()
	p := NewParticipant("MYCLUSTER", "localhost", "12913", "unused")
	p.conn = newConnectionWithDriver(driver)
	return p, driver
}

func TestParticipantAutoJoinCreatesConfigAndSubpathsWhenAllowed(t *testing.T) {
	t.Parallel()

	p, _ := newTestParticipant(t)

	clusterConfig := NewRecord("MYCLUSTER")
	clusterConfig.SetBooleanField("allowParticipantAutoJoin", true)
	require.NoError(t, p.conn.CreateRecordWithPath(p.keys.ClusterConfig().Path, clusterConfig))

	allowed, err := p.ensureParticipantConfig()
	require.NoError(t, err)
	assert.True(t, allowed)

	exists, err := p.conn.Exists(p.keys.ParticipantConfig(p.ParticipantID).Path)
	require.NoError(t, err)
	assert.True(t, exists)

	for _, path := range []string{
		p.keys.Instance(p.ParticipantID).Path,
		p.keys.CurrentStates(p.ParticipantID).Path,
		p.keys.Errors(p.ParticipantID).Path,
		p.keys.HealthReport(p.ParticipantID).Path,
		p.keys.Messages(p.ParticipantID).Path,
		p.keys.StatusUpdates(p.ParticipantID).Path,
	} {
		exists, err := p.conn.Exists(path)
		require.NoError(t, err)
		assert.True(t, exists, "expected %s to be created", path)
	}
}

func TestParticipantAutoJoinRefusedWhenConfigMissingAndNotAllowed(t *testing.T) {
	t.Parallel()

	p, _ := newTestParticipant(t)

	clusterConfig := NewRecord("MYCLUSTER")
	clusterConfig.SetBooleanField("allowParticipantAutoJoin", false)
	require.NoError(t, p.conn.CreateRecordWithPath(p.keys.ClusterConfig().Path, clusterConfig))

	allowed, err := p.ensureParticipantConfig()
	require.NoError(t, err)
	assert.False(t, allowed)

	exists, err := p.conn.Exists(p.keys.ParticipantConfig(p.ParticipantID).Path)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestParticipantAutoJoinRefusedWhenClusterConfigAbsent(t *testing.T) {
	t.Parallel()

	p, _ := newTestParticipant(t)

	allowed, err := p.ensureParticipantConfig()
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestParticipantExistingConfigSkipsAutoJoinCheck(t *testing.T) {
	t.Parallel()

	p, _ := newTestParticipant(t)

	existing := NewRecord(p.ParticipantID)
	existing.SetSimpleField("HELIX_HOST", p.Host)
	require.NoError(t, p.conn.CreateRecordWithPath(p.keys.ParticipantConfig(p.ParticipantID).Path, existing))

	allowed, err := p.ensureParticipantConfig()
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestParticipantCleanUpAbandonedSessionsRemovesOtherSessions(t *testing.T) {
	t.Parallel()

	p, _ := newTestParticipant(t)
	require.NoError(t, p.conn.CreateEmptyNode(p.keys.CurrentStates(p.ParticipantID).Path))

	staleSession := "stale-session-1"
	stalePath := p.keys.CurrentStates(p.ParticipantID).Path + "/" + staleSession
	require.NoError(t, p.conn.CreateEmptyNode(stalePath))
	require.NoError(t, p.conn.CreateEmptyNode(stalePath+"/R"))

	currentSession := p.conn.GetSessionID()
	currentPath := p.keys.CurrentStates(p.ParticipantID).Path + "/" + currentSession
	require.NoError(t, p.conn.CreateEmptyNode(currentPath))

	p.cleanUpAbandonedSessions()

	exists, err := p.conn.Exists(stalePath)
	require.NoError(t, err)
	assert.False(t, exists, "abandoned session subtree should be removed")

	exists, err = p.conn.Exists(currentPath)
	require.NoError(t, err)
	assert.True(t, exists, "current session subtree must survive cleanup")
}
