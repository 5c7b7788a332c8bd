package gohelix

import (
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pkg/errors"
	"github.com/yichen/go-zookeeper/zk"
	"github.com/yichen/retry"
)

// ConnectionState mirrors the three states the coordination-service client
// contract promises to deliver to a connection-state listener.
type ConnectionState uint8

const (
	StateConnected ConnectionState = iota
	StateSuspended
	StateLost
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateSuspended:
		return "SUSPENDED"
	case StateLost:
		return "LOST"
	default:
		return "UNKNOWN"
	}
}

// ConnectionStateListener is notified whenever the underlying
// coordination-service session changes state.
type ConnectionStateListener func(state ConnectionState)

// zkDriver is the subset of *zk.Conn's surface Connection builds on. It
// exists so tests can substitute an in-memory fake for a live ZooKeeper
// ensemble; realDriver is the only production implementation.
type zkDriver interface {
	Exists(path string) (bool, *zk.Stat, error)
	Get(path string) ([]byte, *zk.Stat, error)
	GetW(path string) ([]byte, *zk.Stat, <-chan zk.Event, error)
	Set(path string, data []byte, version int32) (*zk.Stat, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Children(path string) ([]string, *zk.Stat, error)
	ChildrenW(path string) ([]string, *zk.Stat, <-chan zk.Event, error)
	Delete(path string, version int32) error
	Close()
	SessionID() int64
}

// realDriver adapts *zk.Conn (whose session id is a field, not a method) to
// zkDriver.
type realDriver struct {
	conn *zk.Conn
}

func (d realDriver) Exists(path string) (bool, *zk.Stat, error) { return d.conn.Exists(path) }
func (d realDriver) Get(path string) ([]byte, *zk.Stat, error)  { return d.conn.Get(path) }
func (d realDriver) GetW(path string) ([]byte, *zk.Stat, <-chan zk.Event, error) {
	return d.conn.GetW(path)
}
func (d realDriver) Set(path string, data []byte, version int32) (*zk.Stat, error) {
	return d.conn.Set(path, data, version)
}
func (d realDriver) Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error) {
	return d.conn.Create(path, data, flags, acl)
}
func (d realDriver) Children(path string) ([]string, *zk.Stat, error) { return d.conn.Children(path) }
func (d realDriver) ChildrenW(path string) ([]string, *zk.Stat, <-chan zk.Event, error) {
	return d.conn.ChildrenW(path)
}
func (d realDriver) Delete(path string, version int32) error { return d.conn.Delete(path, version) }
func (d realDriver) Close()                                  { d.conn.Close() }
func (d realDriver) SessionID() int64                        { return d.conn.SessionID }

var zkRetryOptions = retry.RetryOptions{
	"zookeeper",
	time.Millisecond * 10,
	time.Second * 1,
	1,
	0, // infinite retry
	false,
}

// Connection wraps the coordination-service client (zk.Conn) with the
// retrying, typed-Record surface the rest of gohelix builds on. It is the
// one place that speaks the raw zk API; everything above it speaks
// PropertyKey and Record.
type Connection struct {
	zkSvr       string
	zkConn      zkDriver
	isConnected bool

	mu             sync.RWMutex
	stateListeners []ConnectionStateListener

	log *log.Entry
}

// NewConnection creates a disconnected Connection for the given
// comma-separated coordination-service address list.
func NewConnection(zkSvr string) *Connection {
	return &Connection{
		zkSvr: zkSvr,
		log:   componentLogger("connection"),
	}
}

// newConnectionWithDriver wires a Connection directly to driver, skipping
// the dial to a live coordination service. Used by unit tests that
// substitute an in-memory fake for ZooKeeper.
func newConnectionWithDriver(driver zkDriver) *Connection {
	return &Connection{
		zkConn:      driver,
		isConnected: true,
		log:         componentLogger("connection"),
	}
}

// Connect dials the coordination service and starts the goroutine that
// translates its session-state events into ConnectionStateListener calls.
func (conn *Connection) Connect() error {
	zkServers := strings.Split(strings.TrimSpace(conn.zkSvr), ",")
	zkConn, events, err := zk.Connect(zkServers, 1*time.Minute)
	if err != nil {
		return errors.Wrap(err, "connect to coordination service")
	}

	if _, _, err := zkConn.Exists("/zookeeper"); err != nil {
		return errors.Wrap(err, "verify coordination service connectivity")
	}

	conn.isConnected = true
	conn.zkConn = realDriver{zkConn}

	go conn.watchSessionEvents(events)

	return nil
}

func (conn *Connection) watchSessionEvents(events <-chan zk.Event) {
	for evt := range events {
		var state ConnectionState
		switch evt.State {
		case zk.StateConnected, zk.StateHasSession:
			state = StateConnected
		case zk.StateExpired:
			state = StateLost
		case zk.StateDisconnected, zk.StateConnecting:
			state = StateSuspended
		default:
			continue
		}

		conn.log.WithField("state", state.String()).Debug("session state changed")

		conn.mu.RLock()
		listeners := make([]ConnectionStateListener, len(conn.stateListeners))
		copy(listeners, conn.stateListeners)
		conn.mu.RUnlock()

		for _, l := range listeners {
			l(state)
		}
	}
}

// AddStateListener registers fn to be called on every session state
// transition. Must be called before Connect to avoid missing the initial
// transition.
func (conn *Connection) AddStateListener(fn ConnectionStateListener) {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	conn.stateListeners = append(conn.stateListeners, fn)
}

func (conn *Connection) IsConnected() bool {
	if conn == nil || !conn.isConnected || conn.zkConn == nil {
		return false
	}

	_, _, err := conn.zkConn.Exists("/zookeeper")
	if err != nil {
		conn.isConnected = false
		return false
	}

	conn.isConnected = true
	return true
}

// GetSessionID returns the current coordination-service session id, as a
// string, matching the wire format used in SESSION_ID fields.
func (conn *Connection) GetSessionID() string {
	return strconv.FormatInt(conn.zkConn.SessionID(), 10)
}

func (conn *Connection) Disconnect() {
	conn.zkConn.Close()
	conn.isConnected = false
}

func (conn *Connection) CreateEmptyNode(path string) error {
	flags := int32(0)
	acl := zk.WorldACL(zk.PermAll)
	_, err := conn.Create(path, []byte(""), flags, acl)
	if err != nil && err != zk.ErrNodeExists {
		return err
	}
	return nil
}

func (conn *Connection) CreateRecordWithData(path string, data []byte) error {
	flags := int32(0)
	acl := zk.WorldACL(zk.PermAll)
	_, err := conn.Create(path, data, flags, acl)
	return err
}

func (conn *Connection) CreateRecordWithPath(p string, r *Record) error {
	if err := conn.ensurePath(path.Dir(p)); err != nil {
		return err
	}

	data, err := r.Marshal()
	if err != nil {
		return err
	}

	flags := int32(0)
	acl := zk.WorldACL(zk.PermAll)
	_, err = conn.Create(p, data, flags, acl)
	return err
}

func (conn *Connection) Exists(path string) (bool, error) {
	var result bool

	err := retry.RetryWithBackoff(zkRetryOptions, func() (retry.RetryStatus, error) {
		r, _, err := conn.zkConn.Exists(path)
		if err != nil {
			return retry.RetryContinue, nil
		}
		result = r
		return retry.RetryBreak, nil
	})

	return result, err
}

func (conn *Connection) ExistsAll(paths ...string) (bool, error) {
	for _, p := range paths {
		exists, err := conn.Exists(p)
		if err != nil || !exists {
			return exists, err
		}
	}

	return true, nil
}

// Get reads the raw bytes and version stamp at path.
func (conn *Connection) Get(path string) ([]byte, int32, error) {
	var data []byte
	var version int32

	err := retry.RetryWithBackoff(zkRetryOptions, func() (retry.RetryStatus, error) {
		d, s, err := conn.zkConn.Get(path)
		if err != nil {
			if err == zk.ErrNoNode {
				return retry.RetryBreak, err
			}
			return retry.RetryContinue, nil
		}
		data = d
		version = s.Version
		return retry.RetryBreak, nil
	})

	return data, version, err
}

func (conn *Connection) GetW(path string) ([]byte, int32, <-chan zk.Event, error) {
	var data []byte
	var version int32
	var events <-chan zk.Event

	err := retry.RetryWithBackoff(zkRetryOptions, func() (retry.RetryStatus, error) {
		d, s, evts, err := conn.zkConn.GetW(path)
		if err != nil {
			return retry.RetryContinue, nil
		}
		data = d
		version = s.Version
		events = evts
		return retry.RetryBreak, nil
	})

	return data, version, events, err
}

// Set unconditionally overwrites path with data, using version -1 ("any").
func (conn *Connection) Set(path string, data []byte) error {
	_, err := conn.zkConn.Set(path, data, -1)
	return err
}

// SetVersioned writes data only if the current version matches, the
// primitive the optimistic-concurrency update loop in accessor.go is built
// on.
func (conn *Connection) SetVersioned(path string, data []byte, version int32) error {
	_, err := conn.zkConn.Set(path, data, version)
	return err
}

func (conn *Connection) Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error) {
	return conn.zkConn.Create(path, data, flags, acl)
}

func (conn *Connection) Children(path string) ([]string, error) {
	var children []string

	err := retry.RetryWithBackoff(zkRetryOptions, func() (retry.RetryStatus, error) {
		c, _, err := conn.zkConn.Children(path)
		if err != nil {
			if err == zk.ErrNoNode {
				return retry.RetryBreak, err
			}
			return retry.RetryContinue, nil
		}
		children = c
		return retry.RetryBreak, nil
	})

	return children, err
}

func (conn *Connection) ChildrenW(path string) ([]string, <-chan zk.Event, error) {
	var children []string
	var eventChan <-chan zk.Event

	err := retry.RetryWithBackoff(zkRetryOptions, func() (retry.RetryStatus, error) {
		c, _, evts, err := conn.zkConn.ChildrenW(path)
		if err != nil {
			return retry.RetryContinue, nil
		}
		children = c
		eventChan = evts
		return retry.RetryBreak, nil
	})

	return children, eventChan, err
}

// UpdateMapField patches a single property of a single map-field entry at
// path, in a read-modify-write cycle. For bulk merge/subtract updates with
// optimistic-concurrency retry, see DataAccessor.Update.
func (conn *Connection) UpdateMapField(path string, key string, property string, value string) error {
	data, _, err := conn.Get(path)
	if err != nil {
		return err
	}

	node, err := NewRecordFromBytes(data)
	if err != nil {
		return err
	}

	node.SetMapField(key, property, value)

	data, err = node.Marshal()
	if err != nil {
		return err
	}

	return conn.Set(path, data)
}

func (conn *Connection) UpdateSimpleField(path string, key string, value string) error {
	data, _, err := conn.Get(path)
	if err != nil {
		return err
	}

	node, err := NewRecordFromBytes(data)
	if err != nil {
		return err
	}

	node.SetSimpleField(key, value)

	data, err = node.Marshal()
	if err != nil {
		return err
	}

	return conn.Set(path, data)
}

func (conn *Connection) GetSimpleFieldValueByKey(path string, key string) (string, error) {
	data, _, err := conn.Get(path)
	if err != nil {
		return "", err
	}

	node, err := NewRecordFromBytes(data)
	if err != nil {
		return "", err
	}

	v, _ := node.GetSimpleField(key)
	return v, nil
}

func (conn *Connection) GetSimpleFieldBool(path string, key string) (bool, error) {
	result, err := conn.GetSimpleFieldValueByKey(path, key)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(result, "true"), nil
}

func (conn *Connection) Delete(path string) error {
	err := conn.zkConn.Delete(path, -1)
	if err != nil && err != zk.ErrNoNode {
		return err
	}
	return nil
}

// DeleteTree recursively removes path and everything under it. A missing
// node is treated as success.
func (conn *Connection) DeleteTree(path string) error {
	exists, err := conn.Exists(path)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	children, err := conn.Children(path)
	if err != nil {
		return err
	}

	for _, c := range children {
		if err := conn.DeleteTree(path + "/" + c); err != nil {
			return err
		}
	}

	return conn.Delete(path)
}

func (conn *Connection) RemoveMapFieldKey(path string, key string) error {
	data, _, err := conn.Get(path)
	if err != nil {
		return err
	}

	node, err := NewRecordFromBytes(data)
	if err != nil {
		return err
	}

	node.RemoveMapField(key)

	data, err = node.Marshal()
	if err != nil {
		return err
	}

	return conn.Set(path, data)
}

// IsClusterSetup checks that the full set of top-level cluster znodes
// exist, the pre-flight check a Participant/Spectator runs before joining.
func (conn *Connection) IsClusterSetup(cluster string) (bool, error) {
	if !conn.IsConnected() {
		if err := conn.Connect(); err != nil {
			return false, err
		}
	}

	keys := NewKeyBuilder(cluster)

	return conn.ExistsAll(
		keys.Cluster().Path,
		keys.IdealStates().Path,
		keys.ParticipantConfigs().Path,
		keys.PropertyStore().Path,
		keys.LiveInstances().Path,
		keys.Instances().Path,
		keys.ExternalViews().Path,
		keys.StateModels().Path,
		keys.Controller().Path,
		keys.ControllerErrors().Path,
		keys.ControllerHistory().Path,
		keys.ControllerMessages().Path,
		keys.ControllerStatusUpdates().Path,
	)
}

func (conn *Connection) GetRecordFromPath(path string) (*Record, int32, error) {
	data, version, err := conn.Get(path)
	if err != nil {
		return nil, 0, err
	}
	r, err := NewRecordFromBytes(data)
	return r, version, err
}

func (conn *Connection) SetRecordForPath(path string, r *Record) error {
	exists, err := conn.Exists(path)
	if err != nil {
		return err
	}
	if !exists {
		if err := conn.ensurePath(path); err != nil {
			return err
		}
	}

	data, err := r.Marshal()
	if err != nil {
		return err
	}

	return conn.Set(path, data)
}

// ensurePath makes sure the specified path exists, creating any missing
// ancestors along the way.
func (conn *Connection) ensurePath(p string) error {
	if p == "/" || p == "." || p == "" {
		return nil
	}

	exists, err := conn.Exists(p)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := conn.ensurePath(path.Dir(p)); err != nil {
		return err
	}

	return conn.CreateEmptyNode(p)
}
