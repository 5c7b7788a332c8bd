package gohelix

import "fmt"

// PropertyKey names a coordination-service path plus the write policy that
// governs it. The policy flags are intrinsic to the key kind and are never
// overridden by callers: which key a caller names determines create-vs-update
// and merge-vs-replace behavior, keeping update policy centralized instead of
// scattered across call sites.
type PropertyKey struct {
	Path string

	// Ephemeral binds the node's lifetime to the creating session.
	Ephemeral bool
	// Sequential asks the coordination service to append a monotone suffix.
	Sequential bool
	// MergeOnUpdate makes Accessor.Update merge sub-maps instead of replacing.
	MergeOnUpdate bool
	// UpdateOnlyOnExists makes Accessor.Update (and Set) refuse to create.
	UpdateOnlyOnExists bool
}

func propertyKey(path string, ephemeral, sequential, merge, existsOnly bool) PropertyKey {
	return PropertyKey{
		Path:               path,
		Ephemeral:          ephemeral,
		Sequential:         sequential,
		MergeOnUpdate:      merge,
		UpdateOnlyOnExists: existsOnly,
	}
}

// KeyBuilder is a pure, stateless function from semantic key kind plus
// identifiers to a PropertyKey, scoped to one cluster.
type KeyBuilder struct {
	ClusterID string
}

// NewKeyBuilder returns a KeyBuilder for the given cluster.
func NewKeyBuilder(clusterID string) KeyBuilder {
	return KeyBuilder{ClusterID: clusterID}
}

func (k KeyBuilder) Cluster() PropertyKey {
	return propertyKey(fmt.Sprintf("/%s", k.ClusterID), false, false, false, false)
}

func (k KeyBuilder) ClusterConfig() PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/CONFIGS/CLUSTER/%s", k.ClusterID, k.ClusterID), false, false, false, false)
}

func (k KeyBuilder) ParticipantConfigs() PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/CONFIGS/PARTICIPANT", k.ClusterID), false, false, false, false)
}

func (k KeyBuilder) ParticipantConfig(participantID string) PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/CONFIGS/PARTICIPANT/%s", k.ClusterID, participantID), false, false, false, false)
}

func (k KeyBuilder) ResourceConfig(resourceID string) PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/CONFIGS/RESOURCE/%s", k.ClusterID, resourceID), false, false, false, false)
}

func (k KeyBuilder) Instances() PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/INSTANCES", k.ClusterID), false, false, false, false)
}

func (k KeyBuilder) Instance(participantID string) PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/INSTANCES/%s", k.ClusterID, participantID), false, false, false, false)
}

func (k KeyBuilder) LiveInstances() PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/LIVEINSTANCES", k.ClusterID), false, false, false, false)
}

func (k KeyBuilder) LiveInstance(participantID string) PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/LIVEINSTANCES/%s", k.ClusterID, participantID), true, false, false, false)
}

func (k KeyBuilder) CurrentStates(participantID string) PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/INSTANCES/%s/CURRENTSTATES", k.ClusterID, participantID), false, false, false, false)
}

func (k KeyBuilder) CurrentStatesForSession(participantID, sessionID string) PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/INSTANCES/%s/CURRENTSTATES/%s", k.ClusterID, participantID, sessionID), false, false, false, false)
}

func (k KeyBuilder) CurrentState(participantID, sessionID, resourceID string) PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/INSTANCES/%s/CURRENTSTATES/%s/%s", k.ClusterID, participantID, sessionID, resourceID), false, false, true, false)
}

func (k KeyBuilder) Messages(participantID string) PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/INSTANCES/%s/MESSAGES", k.ClusterID, participantID), false, false, false, false)
}

func (k KeyBuilder) Message(participantID, messageID string) PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/INSTANCES/%s/MESSAGES/%s", k.ClusterID, participantID, messageID), false, false, true, true)
}

func (k KeyBuilder) Errors(participantID string) PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/INSTANCES/%s/ERRORS", k.ClusterID, participantID), false, false, true, false)
}

// Error names the per-partition error node:
// INSTANCES/<pid>/ERRORS/<sid>/<resource>/<partition>.
func (k KeyBuilder) Error(participantID, sessionID, resourceID, partitionID string) PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/INSTANCES/%s/ERRORS/%s/%s/%s", k.ClusterID, participantID, sessionID, resourceID, partitionID), false, false, false, false)
}

func (k KeyBuilder) HealthReport(participantID string) PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/INSTANCES/%s/HEALTHREPORT", k.ClusterID, participantID), false, false, true, false)
}

func (k KeyBuilder) StatusUpdates(participantID string) PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/INSTANCES/%s/STATUSUPDATES", k.ClusterID, participantID), false, false, false, false)
}

func (k KeyBuilder) ExternalViews() PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/EXTERNALVIEW", k.ClusterID), false, false, false, false)
}

func (k KeyBuilder) ExternalView(resourceID string) PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/EXTERNALVIEW/%s", k.ClusterID, resourceID), false, false, false, false)
}

func (k KeyBuilder) IdealStates() PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/IDEALSTATES", k.ClusterID), false, false, false, false)
}

func (k KeyBuilder) IdealState(resourceID string) PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/IDEALSTATES/%s", k.ClusterID, resourceID), false, false, false, false)
}

func (k KeyBuilder) StateModels() PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/STATEMODELDEFS", k.ClusterID), false, false, false, false)
}

func (k KeyBuilder) StateModel(name string) PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/STATEMODELDEFS/%s", k.ClusterID, name), false, false, false, false)
}

func (k KeyBuilder) PropertyStore() PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/PROPERTYSTORE", k.ClusterID), false, false, false, false)
}

func (k KeyBuilder) Controller() PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/CONTROLLER", k.ClusterID), false, false, false, false)
}

func (k KeyBuilder) ControllerErrors() PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/CONTROLLER/ERRORS", k.ClusterID), false, false, false, false)
}

func (k KeyBuilder) ControllerHistory() PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/CONTROLLER/HISTORY", k.ClusterID), false, false, false, false)
}

func (k KeyBuilder) ControllerMessages() PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/CONTROLLER/MESSAGES", k.ClusterID), false, false, false, false)
}

func (k KeyBuilder) ControllerMessage(messageID string) PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/CONTROLLER/MESSAGES/%s", k.ClusterID, messageID), false, false, false, false)
}

func (k KeyBuilder) ControllerStatusUpdates() PropertyKey {
	return propertyKey(fmt.Sprintf("/%s/CONTROLLER/STATUSUPDATES", k.ClusterID), false, false, false, false)
}
