package gohelix

import (
	"path"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/yichen/go-zookeeper/zk"
)

var errNonMergeSubtract = errors.New("subtract requires a merge-on-update property key")

// DataAccessor is the sole path through which Participant, Spectator and
// Admin read and write coordination-service state. It understands
// PropertyKey's write policy (ephemeral/sequential/merge/exists-only) so
// callers never have to reason about znode mechanics directly. Grounded on
// pyhelix's accessor.DataAccessor, whose update() merge/subtract loop this
// mirrors field for field.
type DataAccessor struct {
	conn *Connection
	log  *log.Entry
}

// NewDataAccessor wraps an already-connected Connection.
func NewDataAccessor(conn *Connection) *DataAccessor {
	return &DataAccessor{
		conn: conn,
		log:  componentLogger("accessor"),
	}
}

// Create writes record at key's path for the first time, honoring key's
// ephemeral/sequential flags and auto-creating any missing ancestor nodes.
// If the node already exists, Create falls back to Set -- it never merges.
// Returns the node's final path (sequential nodes have a suffix appended by
// the coordination service).
func (a *DataAccessor) Create(key PropertyKey, record *Record) (string, error) {
	data, err := record.Marshal()
	if err != nil {
		return "", err
	}

	if err := a.conn.ensurePath(path.Dir(key.Path)); err != nil {
		return "", err
	}

	finalPath, err := a.conn.Create(key.Path, data, flagsFor(key), zk.WorldACL(zk.PermAll))
	if err == nil {
		return finalPath, nil
	}
	if IsNodeExists(err) {
		return key.Path, a.Set(key, record)
	}
	return "", err
}

func flagsFor(key PropertyKey) int32 {
	var flags int32
	if key.Ephemeral {
		flags |= zk.FlagEphemeral
	}
	if key.Sequential {
		flags |= zk.FlagSequence
	}
	return flags
}

// Set unconditionally replaces the record at key's path, creating it (and
// its ancestors) if absent -- unless key.UpdateOnlyOnExists is set, in which
// case a missing node fails with ErrNodeNotExist.
func (a *DataAccessor) Set(key PropertyKey, record *Record) error {
	exists, err := a.conn.Exists(key.Path)
	if err != nil {
		return err
	}

	data, err := record.Marshal()
	if err != nil {
		return err
	}

	if !exists {
		if key.UpdateOnlyOnExists {
			return ErrNodeNotExist
		}
		if err := a.conn.ensurePath(path.Dir(key.Path)); err != nil {
			return err
		}
		_, err := a.conn.Create(key.Path, data, flagsFor(key), zk.WorldACL(zk.PermAll))
		return err
	}

	return a.conn.Set(key.Path, data)
}

// Get reads and parses the record at key's path. Returns (nil, false, nil)
// if the node does not exist.
func (a *DataAccessor) Get(key PropertyKey) (*Record, bool, error) {
	data, _, err := a.conn.Get(key.Path)
	if err != nil {
		if IsNoNode(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	record, err := NewRecordFromBytes(data)
	if err != nil {
		return nil, true, err
	}
	return record, true, nil
}

// GetChildren lists the child names under key's path. Returns an empty
// slice, not an error, if the node does not exist.
func (a *DataAccessor) GetChildren(key PropertyKey) ([]string, error) {
	children, err := a.conn.Children(key.Path)
	if err != nil {
		if IsNoNode(err) {
			return nil, nil
		}
		return nil, err
	}
	return children, nil
}

// Exists reports whether key's path is present.
func (a *DataAccessor) Exists(key PropertyKey) (bool, error) {
	return a.conn.Exists(key.Path)
}

// Remove deletes the node at key's path. A missing node is not an error.
func (a *DataAccessor) Remove(key PropertyKey) error {
	return a.conn.Delete(key.Path)
}

// Update performs an optimistic read-modify-write against key's path.
// mutate is applied to the current record (or an empty one with id
// set to the final path segment, if the node doesn't yet exist) and the
// result is written back conditioned on the version last read. On a
// version conflict the whole cycle -- read, mutate, write -- retries.
//
// When key.MergeOnUpdate is set, mutate's return value is merged
// field-by-field into the existing record instead of replacing it
// wholesale: simpleFields/listFields entries are overwritten key-by-key,
// and each entry of mapFields is merged into (not replacing) the
// like-named existing map field. This is the behavior pyhelix's
// accessor.py calls merge_on_update.
func (a *DataAccessor) Update(key PropertyKey, mutate func(*Record) *Record) error {
	return a.update(key, mutate, false)
}

func (a *DataAccessor) update(key PropertyKey, mutate func(*Record) *Record, subtract bool) error {
	for {
		rawData, version, getErr := a.conn.Get(key.Path)
		exists := true
		if getErr != nil {
			if !IsNoNode(getErr) {
				return getErr
			}
			exists = false
		}

		var current *Record
		if exists {
			current, getErr = NewRecordFromBytes(rawData)
			if getErr != nil {
				return getErr
			}
		} else {
			if key.UpdateOnlyOnExists || subtract {
				return ErrNodeNotExist
			}
			current = NewRecord(lastSegment(key.Path))
		}

		delta := mutate(current.Clone())

		var toWrite *Record
		switch {
		case subtract:
			if !key.MergeOnUpdate {
				return errNonMergeSubtract
			}
			toWrite = current.Clone()
			subtractFrom(toWrite, delta)
		case key.MergeOnUpdate:
			toWrite = current.Clone()
			mergeInto(toWrite, delta)
		default:
			toWrite = delta
		}

		data, err := toWrite.Marshal()
		if err != nil {
			return err
		}

		if !exists {
			_, err := a.conn.Create(key.Path, data, flagsFor(key), zk.WorldACL(zk.PermAll))
			if err == nil {
				return nil
			}
			if IsNodeExists(err) {
				// Lost a create race; fall through to the versioned-write retry path.
				continue
			}
			return err
		}

		err = a.conn.SetVersioned(key.Path, data, version)
		if err == nil {
			return nil
		}
		if IsBadVersion(err) {
			accessorUpdateRetries.Inc()
			a.log.WithField("path", key.Path).Debug("update retry: bad version")
			continue
		}
		return err
	}
}

// Subtract removes the entries named in delta from the record at key's
// path: each simpleFields/listFields key named in delta is deleted from
// the current record, and each mapFields key named in delta is deleted
// wholesale -- the values in delta are ignored, only its keys matter. Used
// for DROPPED transitions, where the controller wants a partition's
// CURRENT_STATE entry removed rather than overwritten. Subtract requires a
// merge-on-update key and fails if the node doesn't exist.
func (a *DataAccessor) Subtract(key PropertyKey, delta *Record) error {
	return a.update(key, func(*Record) *Record { return delta }, true)
}

func subtractFrom(dst, delta *Record) {
	for k := range delta.SimpleFields {
		delete(dst.SimpleFields, k)
	}
	for k := range delta.ListFields {
		delete(dst.ListFields, k)
	}
	for k := range delta.MapFields {
		delete(dst.MapFields, k)
	}
}

// WatchChildren returns the current children of key's path plus a channel
// that fires once when the child set next changes.
func (a *DataAccessor) WatchChildren(key PropertyKey) ([]string, <-chan zk.Event, error) {
	children, events, err := a.conn.ChildrenW(key.Path)
	if err != nil {
		if IsNoNode(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return children, events, nil
}

// WatchProperty returns the current record at key's path plus a channel
// that fires once when it next changes.
func (a *DataAccessor) WatchProperty(key PropertyKey) (*Record, <-chan zk.Event, error) {
	data, _, events, err := a.conn.GetW(key.Path)
	if err != nil {
		if IsNoNode(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	record, err := NewRecordFromBytes(data)
	if err != nil {
		return nil, nil, err
	}
	return record, events, nil
}

func mergeInto(dst, src *Record) {
	dst.ID = src.ID
	for k, v := range src.SimpleFields {
		dst.SimpleFields[k] = v
	}
	for k, v := range src.ListFields {
		dst.ListFields[k] = v
	}
	for k, v := range src.MapFields {
		existing, ok := dst.MapFields[k]
		if !ok {
			existing = map[string]string{}
		}
		for ik, iv := range v {
			existing[ik] = iv
		}
		dst.MapFields[k] = existing
	}
}

func lastSegment(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
