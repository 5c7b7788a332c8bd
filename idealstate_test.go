package gohelix

import "testing"

func TestIdealState(t *testing.T) {
	t.Parallel()

	is := NewIdealState("resource")

	is.SetNumPartitions(32)
	if is.NumPartitions() != 32 {
		t.Error("failed to set/get NUM_PARTITIONS")
	}

	is.SetStateModelDefRef("MasterSlave")
	if is.StateModelDefRef() != "MasterSlave" {
		t.Error("failed to set/get STATE_MODEL_DEF_REF")
	}

	is.SetRebalanceMode("semi_auto")
	if v := is.record.GetSimpleFieldOrDefault("REBALANCE_MODE", ""); v != "SEMI_AUTO" {
		t.Errorf("failed to set/get REBALANCE_MODE, got %q", v)
	}

	is.SetReplicas(3)
	if v := is.record.GetIntField("REPLICAS", -1); v != 3 {
		t.Errorf("failed to set/get REPLICAS, got %d", v)
	}

	is.SetPreferenceList(PartitionName("resource", 0), []string{"host1_1234", "host2_1234"})
	if got := is.PreferenceList("resource_0"); len(got) != 2 || got[0] != "host1_1234" {
		t.Errorf("unexpected preference list: %v", got)
	}
}
