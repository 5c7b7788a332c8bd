package gohelix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixio/gohelix/faketest"
)

func newTestAccessor() (*DataAccessor, *faketest.Driver) {
	driver := faketest.New()
	conn := newConnectionWithDriver(driver)
	return NewDataAccessor(conn), driver
}

func TestAccessorCreateThenGet(t *testing.T) {
	t.Parallel()

	a, _ := newTestAccessor()
	key := PropertyKey{Path: "/c/INSTANCES/n1"}

	r := NewRecord("n1")
	r.SetSimpleField("HELIX_HOST", "localhost")

	_, err := a.Create(key, r)
	require.NoError(t, err)

	got, exists, err := a.Get(key)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "localhost", got.GetSimpleFieldOrDefault("HELIX_HOST", ""))
}

func TestAccessorCreateFallsThroughToSetWhenNodeExists(t *testing.T) {
	t.Parallel()

	a, _ := newTestAccessor()
	key := PropertyKey{Path: "/c/INSTANCES/n1"}

	first := NewRecord("n1")
	first.SetSimpleField("A", "1")
	_, err := a.Create(key, first)
	require.NoError(t, err)

	second := NewRecord("n1")
	second.SetSimpleField("A", "2")
	_, err = a.Create(key, second)
	require.NoError(t, err)

	got, exists, err := a.Get(key)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "2", got.GetSimpleFieldOrDefault("A", ""))
}

func TestAccessorGetAbsentNodeReturnsNotExists(t *testing.T) {
	t.Parallel()

	a, _ := newTestAccessor()
	r, exists, err := a.Get(PropertyKey{Path: "/nope"})
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Nil(t, r)
}

func TestAccessorGetChildrenOnMissingNodeIsEmpty(t *testing.T) {
	t.Parallel()

	a, _ := newTestAccessor()
	children, err := a.GetChildren(PropertyKey{Path: "/nope"})
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestAccessorUpdateCreatesWhenAbsent(t *testing.T) {
	t.Parallel()

	a, _ := newTestAccessor()
	key := PropertyKey{Path: "/c/INSTANCES/n1/MESSAGES/m1", MergeOnUpdate: true}

	err := a.Update(key, func(current *Record) *Record {
		delta := NewRecord("m1")
		delta.SetSimpleField("MSG_STATE", "NEW")
		return delta
	})
	require.NoError(t, err)

	got, exists, err := a.Get(key)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "NEW", got.GetSimpleFieldOrDefault("MSG_STATE", ""))
}

func TestAccessorUpdateMergesSubMapsAdditively(t *testing.T) {
	t.Parallel()

	a, _ := newTestAccessor()
	key := PropertyKey{Path: "/c/INSTANCES/n1/CURRENTSTATES/s1/R", MergeOnUpdate: true}

	require.NoError(t, a.Update(key, func(current *Record) *Record {
		delta := NewRecord("R")
		delta.SetMapField("R_0", "CURRENT_STATE", "ONLINE")
		return delta
	}))

	require.NoError(t, a.Update(key, func(current *Record) *Record {
		delta := NewRecord("R")
		delta.SetMapField("R_1", "CURRENT_STATE", "OFFLINE")
		return delta
	}))

	got, exists, err := a.Get(key)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "ONLINE", got.MapFields["R_0"]["CURRENT_STATE"])
	assert.Equal(t, "OFFLINE", got.MapFields["R_1"]["CURRENT_STATE"])
}

func TestAccessorUpdateIsIdempotentUnderRepeatedApplication(t *testing.T) {
	t.Parallel()

	a, _ := newTestAccessor()
	key := PropertyKey{Path: "/c/INSTANCES/n1/CURRENTSTATES/s1/R", MergeOnUpdate: true}

	apply := func() {
		require.NoError(t, a.Update(key, func(current *Record) *Record {
			delta := NewRecord("R")
			delta.SetSimpleField("STATE_MODEL_DEF", "OnlineOffline")
			delta.SetMapField("R_0", "CURRENT_STATE", "ONLINE")
			return delta
		}))
	}

	apply()
	first, _, err := a.Get(key)
	require.NoError(t, err)

	apply()
	second, _, err := a.Get(key)
	require.NoError(t, err)

	assert.Equal(t, first.SimpleFields, second.SimpleFields)
	assert.Equal(t, first.MapFields, second.MapFields)
}

func TestAccessorSubtractRemovesMapFieldEntry(t *testing.T) {
	t.Parallel()

	a, _ := newTestAccessor()
	key := PropertyKey{Path: "/c/INSTANCES/n1/CURRENTSTATES/s1/R", MergeOnUpdate: true}

	require.NoError(t, a.Update(key, func(current *Record) *Record {
		delta := NewRecord("R")
		delta.SetMapField("R_0", "CURRENT_STATE", "ONLINE")
		delta.SetMapField("R_1", "CURRENT_STATE", "ONLINE")
		return delta
	}))

	drop := NewRecord("R")
	drop.SetMapField("R_0", "CURRENT_STATE", "DROPPED")
	require.NoError(t, a.Subtract(key, drop))

	got, exists, err := a.Get(key)
	require.NoError(t, err)
	require.True(t, exists)
	_, stillPresent := got.MapFields["R_0"]
	assert.False(t, stillPresent)
	assert.Contains(t, got.MapFields, "R_1")
}

func TestAccessorUpdateRetriesOnBadVersion(t *testing.T) {
	t.Parallel()

	a, driver := newTestAccessor()
	key := PropertyKey{Path: "/c/INSTANCES/n1/CURRENTSTATES/s1/R", MergeOnUpdate: true}

	require.NoError(t, a.Update(key, func(current *Record) *Record {
		delta := NewRecord("R")
		delta.SetMapField("R_0", "CURRENT_STATE", "OFFLINE")
		return delta
	}))

	driver.FailNextSet = key.Path

	require.NoError(t, a.Update(key, func(current *Record) *Record {
		delta := NewRecord("R")
		delta.SetMapField("R_0", "CURRENT_STATE", "ONLINE")
		return delta
	}))

	got, exists, err := a.Get(key)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "ONLINE", got.MapFields["R_0"]["CURRENT_STATE"])
	assert.Empty(t, driver.FailNextSet)
}

func TestAccessorUpdateOnlyOnExistsFailsWhenAbsent(t *testing.T) {
	t.Parallel()

	a, _ := newTestAccessor()
	key := PropertyKey{Path: "/c/INSTANCES/n1/MESSAGES/m1", MergeOnUpdate: true, UpdateOnlyOnExists: true}

	err := a.Update(key, func(current *Record) *Record {
		return NewRecord("m1")
	})
	assert.ErrorIs(t, err, ErrNodeNotExist)
}

func TestAccessorRemoveMissingNodeIsNotAnError(t *testing.T) {
	t.Parallel()

	a, _ := newTestAccessor()
	require.NoError(t, a.Remove(PropertyKey{Path: "/nope"}))
}
