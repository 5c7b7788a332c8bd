package gohelix

import (
	"fmt"
	"strconv"
	"strings"
)

// IdealState describes the target assignment of a resource's partitions to
// instances and states, as the resource's owner wants them to end up. A
// client of this library does not compute it (that is the controller's job,
// out of scope here); Admin writes a trivial one so integration tests and
// small deployments that run their own static assignment have somewhere to
// read it from, and Spectator reads it back for its ideal-state listeners.
type IdealState struct {
	record Record
}

// NewIdealState constructs an empty ideal state identified by resource.
func NewIdealState(resource string) *IdealState {
	return &IdealState{record: *NewRecord(resource)}
}

// NewIdealStateFromRecord wraps an existing record.
func NewIdealStateFromRecord(r *Record) *IdealState {
	return &IdealState{record: *r}
}

func (is *IdealState) Record() *Record { return &is.record }

func (is *IdealState) SetNumPartitions(numPartitions int) {
	is.record.SetIntField("NUM_PARTITIONS", numPartitions)
}

func (is *IdealState) NumPartitions() int {
	return is.record.GetIntField("NUM_PARTITIONS", 0)
}

func (is *IdealState) SetStateModelDefRef(stateModel string) {
	is.record.SetSimpleField("STATE_MODEL_DEF_REF", stateModel)
}

func (is *IdealState) StateModelDefRef() string {
	return is.record.GetSimpleFieldOrDefault("STATE_MODEL_DEF_REF", "")
}

func (is *IdealState) SetRebalanceMode(rebalance string) {
	is.record.SetSimpleField("REBALANCE_MODE", strings.ToUpper(rebalance))
}

func (is *IdealState) SetReplicas(replicas int) {
	is.record.SetIntField("REPLICAS", replicas)
}

// SetPreferenceList sets the ordered list of instances preferred to hold
// partition, most-preferred first. The controller (out of scope) usually
// computes this; Admin lets a caller write a fixed assignment directly.
func (is *IdealState) SetPreferenceList(partition string, instances []string) {
	is.record.SetListField(partition, instances)
}

// PreferenceList returns the preferred instance order for partition.
func (is *IdealState) PreferenceList(partition string) []string {
	return is.record.ListFields[partition]
}

// PartitionName follows the source's <resource>_<index> naming convention.
func PartitionName(resource string, index int) string {
	return fmt.Sprintf("%s_%s", resource, strconv.Itoa(index))
}

// Save writes the ideal state to its canonical path.
func (is *IdealState) Save(conn *Connection, cluster string) error {
	keys := NewKeyBuilder(cluster)
	path := keys.IdealState(is.record.ID).Path
	return conn.CreateRecordWithPath(path, &is.record)
}
