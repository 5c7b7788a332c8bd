package gohelix

import (
	"github.com/pkg/errors"
	"github.com/yichen/go-zookeeper/zk"
)

var (
	// ErrClusterNotSetup means the helix data structure at /<cluster> is
	// not correct or does not exist.
	ErrClusterNotSetup = errors.New("cluster not setup")

	// ErrNodeAlreadyExists means the coordination-service node exists when
	// it was not expected to.
	ErrNodeAlreadyExists = errors.New("node already exists in cluster")

	// ErrNodeNotExist means the coordination-service node does not exist
	// when it was expected to.
	ErrNodeNotExist = errors.New("node does not exist in config for cluster")

	// ErrInstanceNotExist means the instance of a cluster does not exist
	// when it was expected to.
	ErrInstanceNotExist = errors.New("instance does not exist in cluster")

	// ErrStateModelDefNotExist means the named state model definition is
	// not registered in the cluster.
	ErrStateModelDefNotExist = errors.New("state model not registered in cluster")

	// ErrResourceExists means the resource already exists and cannot be
	// added again.
	ErrResourceExists = errors.New("resource already exists in cluster")

	// ErrResourceNotExists means the resource does not exist and cannot be
	// removed or modified.
	ErrResourceNotExists = errors.New("resource does not exist in cluster")

	// ErrAutoJoinNotAllowed means a participant tried to join a cluster
	// whose ClusterConfig has allowParticipantAutoJoin=false and no
	// participant config was pre-created for it.
	ErrAutoJoinNotAllowed = errors.New("participant auto-join not allowed and no participant config exists")
)

// IsNoNode reports whether err is (or wraps) a coordination-service
// "node does not exist" error.
func IsNoNode(err error) bool {
	return errors.Cause(err) == zk.ErrNoNode
}

// IsNodeExists reports whether err is (or wraps) a coordination-service
// "node already exists" error.
func IsNodeExists(err error) bool {
	return errors.Cause(err) == zk.ErrNodeExists
}

// IsBadVersion reports whether err is (or wraps) a coordination-service
// optimistic-concurrency version conflict.
func IsBadVersion(err error) bool {
	return errors.Cause(err) == zk.ErrBadVersion
}
