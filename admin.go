package gohelix

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Admin performs the cluster-provisioning operations documented at
// http://helix.apache.org/0.7.0-incubating-docs/Quickstart.html. Nothing
// here runs as part of a connected Participant or Spectator; each call
// opens its own short-lived connection.
type Admin struct {
	ZkSvr string
}

func (adm Admin) connect() (*Connection, error) {
	conn := NewConnection(adm.ZkSvr)
	if err := conn.Connect(); err != nil {
		return nil, err
	}
	return conn, nil
}

// AddCluster creates the full znode layout for a new cluster: the root
// node plus PROPERTYSTORE, STATEMODELDEFS (pre-seeded with the bundled
// default schemata), INSTANCES, CONFIGS, IDEALSTATES, EXTERNALVIEW,
// LIVEINSTANCES and CONTROLLER.
func (adm Admin) AddCluster(cluster string) error {
	conn, err := adm.connect()
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	kb := NewKeyBuilder(cluster)
	root := kb.Cluster().Path

	if exists, err := conn.Exists(root); err != nil {
		return err
	} else if exists {
		return ErrNodeAlreadyExists
	}

	if err := conn.CreateEmptyNode(root); err != nil {
		return err
	}
	if err := conn.CreateEmptyNode(kb.PropertyStore().Path); err != nil {
		return err
	}

	stateModelDefs := kb.StateModels().Path
	if err := conn.CreateEmptyNode(stateModelDefs); err != nil {
		return err
	}
	for _, name := range []string{"LeaderStandby", "MasterSlave", "OnlineOffline", "STORAGE_DEFAULT_SM_SCHEMATA", "SchedulerTaskQueue", "Task"} {
		if err := conn.CreateRecordWithData(stateModelDefs+"/"+name, []byte(HelixDefaultNodes[name])); err != nil {
			return err
		}
	}

	if err := conn.CreateEmptyNode(kb.Instances().Path); err != nil {
		return err
	}

	configsPath := fmt.Sprintf("/%s/CONFIGS", cluster)
	if err := conn.CreateEmptyNode(configsPath); err != nil {
		return err
	}
	if err := conn.CreateEmptyNode(kb.ParticipantConfigs().Path); err != nil {
		return err
	}
	if err := conn.CreateEmptyNode(configsPath + "/RESOURCE"); err != nil {
		return err
	}
	if err := conn.CreateEmptyNode(configsPath + "/CLUSTER"); err != nil {
		return err
	}
	if err := conn.CreateRecordWithPath(kb.ClusterConfig().Path, NewRecord(cluster)); err != nil {
		return err
	}

	if err := conn.CreateEmptyNode(kb.IdealStates().Path); err != nil {
		return err
	}
	if err := conn.CreateEmptyNode(kb.ExternalViews().Path); err != nil {
		return err
	}
	if err := conn.CreateEmptyNode(kb.LiveInstances().Path); err != nil {
		return err
	}

	controller := kb.Controller().Path
	if err := conn.CreateEmptyNode(controller); err != nil {
		return err
	}
	for _, child := range []string{"ERRORS", "HISTORY", "MESSAGES", "STATUSUPDATES"} {
		if err := conn.CreateEmptyNode(controller + "/" + child); err != nil {
			return err
		}
	}

	return nil
}

// SetConfig sets configuration values for the given scope. Only the
// CLUSTER scope's allowParticipantAutoJoin is implemented; the others are
// accepted but are no-ops, matching the source's stated scope.
func (adm Admin) SetConfig(cluster, scope string, properties map[string]string) error {
	conn, err := adm.connect()
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	switch strings.ToUpper(scope) {
	case "CLUSTER":
		if allow, ok := properties["allowParticipantAutoJoin"]; ok {
			path := NewKeyBuilder(cluster).ClusterConfig().Path
			return conn.UpdateSimpleField(path, "allowParticipantAutoJoin", strconv.FormatBool(strings.EqualFold(allow, "true")))
		}
	}

	return nil
}


// GetConfig reads configuration values for the given scope. Only CLUSTER
// is implemented.
func (adm Admin) GetConfig(cluster, scope string, keys []string) (map[string]string, error) {
	conn, err := adm.connect()
	if err != nil {
		return nil, err
	}
	defer conn.Disconnect()

	result := make(map[string]string)

	if strings.ToUpper(scope) == "CLUSTER" {
		path := NewKeyBuilder(cluster).ClusterConfig().Path
		for _, k := range keys {
			v, err := conn.GetSimpleFieldValueByKey(path, k)
			if err != nil {
				return nil, err
			}
			result[k] = v
		}
	}

	return result, nil
}

// DropCluster removes a cluster's entire znode subtree.
func (adm Admin) DropCluster(cluster string) error {
	conn, err := adm.connect()
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	return conn.DeleteTree(NewKeyBuilder(cluster).Cluster().Path)
}

// AddNode registers a new participant, named host_port, with the cluster.
func (adm Admin) AddNode(cluster, node string) error {
	conn, err := adm.connect()
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	if ok, err := conn.IsClusterSetup(cluster); !ok || err != nil {
		if err != nil {
			return err
		}
		return ErrClusterNotSetup
	}

	keys := NewKeyBuilder(cluster)
	path := keys.ParticipantConfig(node).Path
	if exists, err := conn.Exists(path); err != nil {
		return err
	} else if exists {
		return ErrNodeAlreadyExists
	}

	parts := strings.SplitN(node, "_", 2)
	if len(parts) != 2 {
		return fmt.Errorf("node id %q is not in host_port form", node)
	}

	record := NewRecord(node)
	record.SetSimpleField("HELIX_HOST", parts[0])
	record.SetSimpleField("HELIX_PORT", parts[1])
	record.SetBooleanField("HELIX_ENABLED", true)

	if err := conn.CreateRecordWithPath(path, record); err != nil {
		return err
	}

	for _, p := range []string{
		keys.Instance(node).Path,
		keys.Messages(node).Path,
		keys.CurrentStates(node).Path,
		keys.Errors(node).Path,
		keys.StatusUpdates(node).Path,
	} {
		if err := conn.CreateEmptyNode(p); err != nil {
			return err
		}
	}

	return nil
}

// DropNode removes a participant's config and instance subtree.
func (adm Admin) DropNode(cluster, node string) error {
	conn, err := adm.connect()
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	keys := NewKeyBuilder(cluster)

	if exists, err := conn.Exists(keys.ParticipantConfig(node).Path); err != nil {
		return err
	} else if !exists {
		return ErrNodeNotExist
	}

	if exists, err := conn.Exists(keys.Instance(node).Path); err != nil {
		return err
	} else if !exists {
		return ErrInstanceNotExist
	}

	if err := conn.DeleteTree(keys.ParticipantConfig(node).Path); err != nil {
		return err
	}
	return conn.DeleteTree(keys.Instance(node).Path)
}

// AddResource creates a trivial single-preference-order ideal state for a
// new resource, assigning every partition to no instances (the caller, or
// a controller, grows the preference lists afterward via direct IdealState
// edits).
func (adm Admin) AddResource(cluster, resource string, partitions int, stateModel string) error {
	conn, err := adm.connect()
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	if ok, err := conn.IsClusterSetup(cluster); !ok || err != nil {
		if err != nil {
			return err
		}
		return ErrClusterNotSetup
	}

	keys := NewKeyBuilder(cluster)

	if exists, err := conn.Exists(keys.StateModel(stateModel).Path); err != nil {
		return err
	} else if !exists {
		return ErrStateModelDefNotExist
	}

	isPath := keys.IdealState(resource).Path
	if exists, err := conn.Exists(isPath); err != nil {
		return err
	} else if exists {
		return ErrResourceExists
	}

	is := NewIdealState(resource)
	is.SetNumPartitions(partitions)
	is.SetReplicas(0)
	is.SetRebalanceMode("SEMI_AUTO")
	is.SetStateModelDefRef(stateModel)
	is.record.SetBooleanField("HELIX_ENABLED", true)

	for i := 0; i < partitions; i++ {
		is.SetPreferenceList(PartitionName(resource, i), nil)
	}

	return is.Save(conn, cluster)
}

// DropResource removes a resource's ideal state and config.
func (adm Admin) DropResource(cluster, resource string) error {
	conn, err := adm.connect()
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	if ok, err := conn.IsClusterSetup(cluster); !ok || err != nil {
		if err != nil {
			return err
		}
		return ErrClusterNotSetup
	}

	keys := NewKeyBuilder(cluster)
	if err := conn.DeleteTree(keys.IdealState(resource).Path); err != nil {
		return err
	}
	return conn.DeleteTree(keys.ResourceConfig(resource).Path)
}

func (adm Admin) setResourceEnabled(cluster, resource string, enabled bool) error {
	conn, err := adm.connect()
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	if ok, err := conn.IsClusterSetup(cluster); !ok || err != nil {
		if err != nil {
			return err
		}
		return ErrClusterNotSetup
	}

	keys := NewKeyBuilder(cluster)
	isPath := keys.IdealState(resource).Path

	if exists, err := conn.Exists(isPath); err != nil {
		return err
	} else if !exists {
		return ErrResourceNotExists
	}

	return conn.UpdateSimpleField(isPath, "HELIX_ENABLED", strconv.FormatBool(enabled))
}

// EnableResource marks resource's ideal state enabled.
func (adm Admin) EnableResource(cluster, resource string) error {
	return adm.setResourceEnabled(cluster, resource, true)
}

// DisableResource marks resource's ideal state disabled.
func (adm Admin) DisableResource(cluster, resource string) error {
	return adm.setResourceEnabled(cluster, resource, false)
}

// ListClusterInfo renders the resources and instances registered in a
// cluster.
func (adm Admin) ListClusterInfo(cluster string) (string, error) {
	conn, err := adm.connect()
	if err != nil {
		return "", err
	}
	defer conn.Disconnect()

	if ok, err := conn.IsClusterSetup(cluster); !ok || err != nil {
		if err != nil {
			return "", err
		}
		return "", ErrClusterNotSetup
	}

	keys := NewKeyBuilder(cluster)

	resources, err := conn.Children(keys.IdealStates().Path)
	if err != nil {
		return "", err
	}

	instances, err := conn.Children(keys.Instances().Path)
	if err != nil {
		return "", err
	}

	var buffer bytes.Buffer
	buffer.WriteString("Existing resources in cluster " + cluster + ":\n")
	for _, r := range resources {
		buffer.WriteString("  " + r + "\n")
	}

	buffer.WriteString("\nInstances in cluster " + cluster + ":\n")
	for _, i := range instances {
		buffer.WriteString("  " + i + "\n")
	}
	return buffer.String(), nil
}

// ListClusters renders every Helix-managed cluster found at the
// coordination-service root.
func (adm Admin) ListClusters() (string, error) {
	conn, err := adm.connect()
	if err != nil {
		return "", err
	}
	defer conn.Disconnect()

	children, err := conn.Children("/")
	if err != nil {
		return "", err
	}

	var clusters []string
	for _, cluster := range children {
		if ok, err := conn.IsClusterSetup(cluster); ok && err == nil {
			clusters = append(clusters, cluster)
		}
	}

	var buffer bytes.Buffer
	buffer.WriteString("Existing clusters: \n")
	for _, cluster := range clusters {
		buffer.WriteString("  " + cluster + "\n")
	}
	return buffer.String(), nil
}

// ListResources renders the resources registered in a cluster.
func (adm Admin) ListResources(cluster string) (string, error) {
	conn, err := adm.connect()
	if err != nil {
		return "", err
	}
	defer conn.Disconnect()

	if ok, err := conn.IsClusterSetup(cluster); !ok || err != nil {
		if err != nil {
			return "", err
		}
		return "", ErrClusterNotSetup
	}

	resources, err := conn.Children(NewKeyBuilder(cluster).IdealStates().Path)
	if err != nil {
		return "", err
	}

	var buffer bytes.Buffer
	buffer.WriteString("Existing resources in cluster " + cluster + ":\n")
	for _, r := range resources {
		buffer.WriteString("  " + r + "\n")
	}
	return buffer.String(), nil
}

// ListInstances renders the instances registered in a cluster.
func (adm Admin) ListInstances(cluster string) (string, error) {
	conn, err := adm.connect()
	if err != nil {
		return "", err
	}
	defer conn.Disconnect()

	if ok, err := conn.IsClusterSetup(cluster); !ok || err != nil {
		if err != nil {
			return "", err
		}
		return "", ErrClusterNotSetup
	}

	instances, err := conn.Children(NewKeyBuilder(cluster).Instances().Path)
	if err != nil {
		return "", err
	}

	var buffer bytes.Buffer
	buffer.WriteString(fmt.Sprintf("Existing instances in cluster %s:\n", cluster))
	for _, r := range instances {
		buffer.WriteString("  " + r + "\n")
	}
	return buffer.String(), nil
}

// ListInstanceInfo renders one instance's participant config.
func (adm Admin) ListInstanceInfo(cluster, instance string) (string, error) {
	conn, err := adm.connect()
	if err != nil {
		return "", err
	}
	defer conn.Disconnect()

	if ok, err := conn.IsClusterSetup(cluster); !ok || err != nil {
		if err != nil {
			return "", err
		}
		return "", ErrClusterNotSetup
	}

	keys := NewKeyBuilder(cluster)
	path := keys.ParticipantConfig(instance).Path

	if exists, err := conn.Exists(path); err != nil {
		return "", err
	} else if !exists {
		return "", ErrNodeNotExist
	}

	record, _, err := conn.GetRecordFromPath(path)
	if err != nil {
		return "", err
	}
	return record.String(), nil
}

// DropInstance removes a participating instance's INSTANCES subtree.
func (adm Admin) DropInstance(cluster, instance string) error {
	conn, err := adm.connect()
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	return conn.DeleteTree(NewKeyBuilder(cluster).Instance(instance).Path)
}
