package gohelix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyBuilderPathsAndFlags(t *testing.T) {
	t.Parallel()

	kb := NewKeyBuilder("MYCLUSTER")

	cases := []struct {
		name               string
		key                PropertyKey
		wantPath           string
		wantEphemeral      bool
		wantSequential     bool
		wantMerge          bool
		wantUpdateOnExists bool
	}{
		{"ClusterConfig", kb.ClusterConfig(), "/MYCLUSTER/CONFIGS/CLUSTER/MYCLUSTER", false, false, false, false},
		{"ParticipantConfig", kb.ParticipantConfig("n1"), "/MYCLUSTER/CONFIGS/PARTICIPANT/n1", false, false, false, false},
		{"Instance", kb.Instance("n1"), "/MYCLUSTER/INSTANCES/n1", false, false, false, false},
		{"LiveInstance", kb.LiveInstance("n1"), "/MYCLUSTER/LIVEINSTANCES/n1", true, false, false, false},
		{"CurrentStates", kb.CurrentStates("n1"), "/MYCLUSTER/INSTANCES/n1/CURRENTSTATES", false, false, false, false},
		{"CurrentState", kb.CurrentState("n1", "s1", "R"), "/MYCLUSTER/INSTANCES/n1/CURRENTSTATES/s1/R", false, false, true, false},
		{"Messages", kb.Messages("n1"), "/MYCLUSTER/INSTANCES/n1/MESSAGES", false, false, false, false},
		{"Message", kb.Message("n1", "m1"), "/MYCLUSTER/INSTANCES/n1/MESSAGES/m1", false, false, true, true},
		{"Errors", kb.Errors("n1"), "/MYCLUSTER/INSTANCES/n1/ERRORS", false, false, true, false},
		{"Error", kb.Error("n1", "s1", "R", "R_0"), "/MYCLUSTER/INSTANCES/n1/ERRORS/s1/R/R_0", false, false, false, false},
		{"ExternalView", kb.ExternalView("R"), "/MYCLUSTER/EXTERNALVIEW/R", false, false, false, false},
		{"IdealState", kb.IdealState("R"), "/MYCLUSTER/IDEALSTATES/R", false, false, false, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.wantPath, c.key.Path)
			assert.Equal(t, c.wantEphemeral, c.key.Ephemeral)
			assert.Equal(t, c.wantSequential, c.key.Sequential)
			assert.Equal(t, c.wantMerge, c.key.MergeOnUpdate)
			assert.Equal(t, c.wantUpdateOnExists, c.key.UpdateOnlyOnExists)
		})
	}
}

func TestKeyBuilderIsPureAndStateless(t *testing.T) {
	t.Parallel()

	kb1 := NewKeyBuilder("C1")
	kb2 := NewKeyBuilder("C1")

	assert.Equal(t, kb1.Message("n1", "m1"), kb2.Message("n1", "m1"))
}
