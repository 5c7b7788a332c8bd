package gohelix

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	t.Parallel()

	r := NewRecord("partition-0")
	r.SetSimpleField("STATE_MODEL_DEF", "OnlineOffline")
	r.SetMapField("partition-0", "CURRENT_STATE", "ONLINE")
	r.SetListField("PREFERENCE_LIST", []string{"host1_1234", "host2_1234"})

	data, err := r.Marshal()
	require.NoError(t, err)

	parsed, err := NewRecordFromBytes(data)
	require.NoError(t, err)

	if diff := cmp.Diff(r, parsed); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordMarshalAlwaysEmitsAllThreeSubMaps(t *testing.T) {
	t.Parallel()

	r := NewRecord("empty")
	data, err := r.Marshal()
	require.NoError(t, err)

	assert.Contains(t, string(data), `"simpleFields": {}`)
	assert.Contains(t, string(data), `"listFields": {}`)
	assert.Contains(t, string(data), `"mapFields": {}`)
}

func TestRecordParseToleratesMissingSubMaps(t *testing.T) {
	t.Parallel()

	r, err := NewRecordFromBytes([]byte(`{"id": "x", "simpleFields": {"A": "1"}}`))
	require.NoError(t, err)

	assert.Equal(t, "1", r.GetSimpleFieldOrDefault("A", ""))
	assert.NotNil(t, r.ListFields)
	assert.NotNil(t, r.MapFields)
}

func TestRecordParseRejectsMalformedBytes(t *testing.T) {
	t.Parallel()

	_, err := NewRecordFromBytes([]byte(`not json`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestRecordSerializationStableUnderKeyReordering(t *testing.T) {
	t.Parallel()

	a, err := NewRecordFromBytes([]byte(`{"id":"x","simpleFields":{"B":"2","A":"1"},"listFields":{},"mapFields":{}}`))
	require.NoError(t, err)

	b, err := NewRecordFromBytes([]byte(`{"id":"x","simpleFields":{"A":"1","B":"2"},"listFields":{},"mapFields":{}}`))
	require.NoError(t, err)

	da, err := a.Marshal()
	require.NoError(t, err)
	db, err := b.Marshal()
	require.NoError(t, err)

	assert.Equal(t, string(da), string(db))
}

func TestRecordIntAndBoolFields(t *testing.T) {
	t.Parallel()

	r := NewRecord("r")
	r.SetIntField("NUM_PARTITIONS", 32)
	assert.Equal(t, 32, r.GetIntField("NUM_PARTITIONS", -1))
	assert.Equal(t, -1, r.GetIntField("MISSING", -1))

	r.SetBooleanField("HELIX_ENABLED", true)
	assert.True(t, r.GetBooleanField("HELIX_ENABLED", false))
	assert.False(t, r.GetBooleanField("MISSING", false))
}

func TestRecordClone(t *testing.T) {
	t.Parallel()

	r := NewRecord("r")
	r.SetSimpleField("A", "1")
	r.SetMapField("P", "CURRENT_STATE", "ONLINE")

	clone := r.Clone()
	clone.SetSimpleField("A", "2")
	clone.SetMapField("P", "CURRENT_STATE", "OFFLINE")

	assert.Equal(t, "1", r.GetSimpleFieldOrDefault("A", ""))
	assert.Equal(t, "ONLINE", r.MapFields["P"]["CURRENT_STATE"])
}
