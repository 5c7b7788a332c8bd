// Package faketest provides an in-memory stand-in for a ZooKeeper-compatible
// coordination service, structurally satisfying gohelix's internal zkDriver
// interface so DataAccessor, Executor and TransitionTask can be exercised in
// unit tests without a live ZooKeeper ensemble. Grounded on pyhelix's
// tests/mockclient.py, which plays the same role for the Python source this
// module was distilled from.
package faketest

import (
	"strconv"
	"strings"
	"sync"

	"github.com/yichen/go-zookeeper/zk"
)

type znode struct {
	data      []byte
	version   int32
	ephemeral bool
	children  map[string]bool
}

// Driver is an in-memory coordination-service fake. The zero value is not
// usable; construct with New.
type Driver struct {
	mu    sync.Mutex
	nodes map[string]*znode

	dataWatchers     map[string][]chan zk.Event
	childrenWatchers map[string][]chan zk.Event

	sessionID int64
	seq       int

	// FailNextSet, if non-zero, makes exactly one subsequent Set call on
	// the named path return zk.ErrBadVersion instead of succeeding, then
	// resets to "". Used to simulate the optimistic-update retry path.
	FailNextSet string
}

// New returns an empty Driver with just the root node present.
func New() *Driver {
	return &Driver{
		nodes:            map[string]*znode{"/": {children: map[string]bool{}}},
		dataWatchers:     map[string][]chan zk.Event{},
		childrenWatchers: map[string][]chan zk.Event{},
		sessionID:        1,
	}
}

func parent(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}

func base(path string) string {
	idx := strings.LastIndex(path, "/")
	return path[idx+1:]
}

func (d *Driver) Exists(path string) (bool, *zk.Stat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.nodes[path]
	if !ok {
		return false, nil, nil
	}
	return true, &zk.Stat{Version: n.version}, nil
}

func (d *Driver) Get(path string) ([]byte, *zk.Stat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.nodes[path]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}
	return n.data, &zk.Stat{Version: n.version}, nil
}

func (d *Driver) GetW(path string) ([]byte, *zk.Stat, <-chan zk.Event, error) {
	d.mu.Lock()
	n, ok := d.nodes[path]
	if !ok {
		d.mu.Unlock()
		return nil, nil, nil, zk.ErrNoNode
	}
	ch := make(chan zk.Event, 1)
	d.dataWatchers[path] = append(d.dataWatchers[path], ch)
	data, version := n.data, n.version
	d.mu.Unlock()

	return data, &zk.Stat{Version: version}, ch, nil
}

func (d *Driver) Set(path string, data []byte, version int32) (*zk.Stat, error) {
	d.mu.Lock()

	if d.FailNextSet == path {
		d.FailNextSet = ""
		d.mu.Unlock()
		return nil, zk.ErrBadVersion
	}

	n, ok := d.nodes[path]
	if !ok {
		d.mu.Unlock()
		return nil, zk.ErrNoNode
	}
	if version != -1 && version != n.version {
		d.mu.Unlock()
		return nil, zk.ErrBadVersion
	}

	n.data = data
	n.version++
	newVersion := n.version

	watchers := d.dataWatchers[path]
	delete(d.dataWatchers, path)
	d.mu.Unlock()

	fireAll(watchers)

	return &zk.Stat{Version: newVersion}, nil
}

func (d *Driver) Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error) {
	d.mu.Lock()

	finalPath := path
	sequential := flags&zk.FlagSequence != 0
	if sequential {
		d.seq++
		finalPath = path + strconv.Itoa(d.seq)
	}

	if _, ok := d.nodes[finalPath]; ok {
		d.mu.Unlock()
		return "", zk.ErrNodeExists
	}

	p := parent(finalPath)
	if p != "/" && p != finalPath {
		if _, ok := d.nodes[p]; !ok {
			d.mu.Unlock()
			return "", zk.ErrNoNode
		}
	}

	d.nodes[finalPath] = &znode{
		data:      data,
		ephemeral: flags&zk.FlagEphemeral != 0,
		children:  map[string]bool{},
	}
	if pnode, ok := d.nodes[p]; ok {
		pnode.children[base(finalPath)] = true
	}

	watchers := d.childrenWatchers[p]
	delete(d.childrenWatchers, p)
	d.mu.Unlock()

	fireAll(watchers)

	return finalPath, nil
}

func (d *Driver) Children(path string) ([]string, *zk.Stat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.nodes[path]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}

	out := make([]string, 0, len(n.children))
	for c := range n.children {
		out = append(out, c)
	}
	return out, &zk.Stat{Version: n.version}, nil
}

func (d *Driver) ChildrenW(path string) ([]string, *zk.Stat, <-chan zk.Event, error) {
	d.mu.Lock()
	n, ok := d.nodes[path]
	if !ok {
		d.mu.Unlock()
		return nil, nil, nil, zk.ErrNoNode
	}

	out := make([]string, 0, len(n.children))
	for c := range n.children {
		out = append(out, c)
	}

	ch := make(chan zk.Event, 1)
	d.childrenWatchers[path] = append(d.childrenWatchers[path], ch)
	version := n.version
	d.mu.Unlock()

	return out, &zk.Stat{Version: version}, ch, nil
}

func (d *Driver) Delete(path string, version int32) error {
	d.mu.Lock()

	n, ok := d.nodes[path]
	if !ok {
		d.mu.Unlock()
		return zk.ErrNoNode
	}
	if version != -1 && version != n.version {
		d.mu.Unlock()
		return zk.ErrBadVersion
	}

	delete(d.nodes, path)

	p := parent(path)
	if pnode, ok := d.nodes[p]; ok {
		delete(pnode.children, base(path))
	}

	dataWatchers := d.dataWatchers[path]
	delete(d.dataWatchers, path)
	childWatchers := d.childrenWatchers[p]
	delete(d.childrenWatchers, p)
	d.mu.Unlock()

	fireAll(dataWatchers)
	fireAll(childWatchers)

	return nil
}

func (d *Driver) Close() {}

func (d *Driver) SessionID() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionID
}

// SetSessionID lets a test pick a specific session id, matching it against
// TGT_SESSION_ID fields in seeded messages.
func (d *Driver) SetSessionID(id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessionID = id
}

func fireAll(chs []chan zk.Event) {
	for _, ch := range chs {
		ch <- zk.Event{}
		close(ch)
	}
}
