package gohelix

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/yichen/go-zookeeper/zk"

	"github.com/pkg/errors"
)

type ParticipantState uint8

// PreConnectCallback runs once, synchronously, before a Participant dials
// the coordination service.
type PreConnectCallback func()

const (
	PSDisconnected ParticipantState = iota
	PSConnected
	PSStarted
	PSStopped
)

// ErrNoStateModelsRegistered is returned by Connect when no state model
// factory has been registered yet.
var ErrNoStateModelsRegistered = errors.New("register at least one state model before connecting")

// Participant is a Helix cluster member: it holds a live-instance node for
// as long as it is connected, receives state-transition messages addressed
// to it, and reports the outcome of each transition back through its
// current-state subtree. It implements ParticipantInfo so its Executor and
// TransitionTasks can depend on the narrow identity interface instead of
// the whole struct.
type Participant struct {
	conn     *Connection
	accessor *DataAccessor
	executor *Executor

	zkConnStr     string
	clusterID     string
	Host          string
	Port          string
	ParticipantID string

	keys KeyBuilder

	mu               sync.Mutex
	pendingFactories map[string]StateModelFactory

	state     ParticipantState
	stop      chan struct{}
	cancelRun context.CancelFunc
	isLost    bool

	preConnectCallbacks []PreConnectCallback

	log *log.Entry
}

// NewParticipant builds a disconnected Participant identified by
// host_port within clusterID.
func NewParticipant(clusterID, host, port, zkConnStr string) *Participant {
	participantID := fmt.Sprintf("%s_%s", host, port)
	return &Participant{
		zkConnStr:        zkConnStr,
		clusterID:        clusterID,
		Host:             host,
		Port:             port,
		ParticipantID:    participantID,
		keys:             NewKeyBuilder(clusterID),
		pendingFactories: make(map[string]StateModelFactory),
		stop:             make(chan struct{}),
		log:              componentLogger("participant").WithField("participantId", participantID),
	}
}

// ClusterID implements ParticipantInfo.
func (p *Participant) ClusterID() string { return p.clusterID }

// ID implements ParticipantInfo, returning this participant's host_port
// identifier.
func (p *Participant) ID() string { return p.ParticipantID }

// SessionID implements ParticipantInfo. Empty until Connect succeeds.
func (p *Participant) SessionID() string {
	if p.conn == nil {
		return ""
	}
	return p.conn.GetSessionID()
}

// RegisterStateModel binds a state model definition name to the factory
// used to lazily build one StateModel per partition seen under that
// definition. Must be called before Connect.
func (p *Participant) RegisterStateModel(name string, factory StateModelFactory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingFactories[name] = factory
}

// AddPreConnectCallback registers a callback run, in registration order,
// immediately before Connect dials the coordination service.
func (p *Participant) AddPreConnectCallback(callback PreConnectCallback) {
	p.preConnectCallbacks = append(p.preConnectCallbacks, callback)
}

// Connect validates that at least one state model is registered, dials the
// coordination service, registers this participant's config if auto-join
// is allowed, cleans up abandoned current-state subtrees from prior
// sessions, starts the message-watch loop and creates this participant's
// ephemeral live-instance node.
func (p *Participant) Connect() error {
	p.mu.Lock()
	if len(p.pendingFactories) == 0 {
		p.mu.Unlock()
		return ErrNoStateModelsRegistered
	}
	p.mu.Unlock()

	for _, cb := range p.preConnectCallbacks {
		cb()
	}

	p.conn = NewConnection(p.zkConnStr)
	p.conn.AddStateListener(p.onConnectionStateChange)
	if err := p.conn.Connect(); err != nil {
		return errors.Wrap(err, "connect participant")
	}

	if ok, err := p.conn.IsClusterSetup(p.clusterID); !ok || err != nil {
		if err != nil {
			return errors.Wrap(err, "check cluster setup")
		}
		return ErrClusterNotSetup
	}

	if allowed, err := p.ensureParticipantConfig(); err != nil {
		p.conn.Disconnect()
		return errors.Wrap(err, "ensure participant config")
	} else if !allowed {
		p.conn.Disconnect()
		return ErrAutoJoinNotAllowed
	}

	p.accessor = NewDataAccessor(p.conn)
	p.executor = NewExecutor(p, p.accessor, DefaultParallelism)

	p.mu.Lock()
	for name, factory := range p.pendingFactories {
		p.executor.RegisterStateModelFactory(name, factory)
	}
	p.mu.Unlock()

	p.cleanUpAbandonedSessions()

	p.state = PSConnected
	p.loop()

	if err := p.createLiveInstance(); err != nil {
		return errors.Wrap(err, "create live instance")
	}

	return nil
}

// onConnectionStateChange reacts to session state transitions reported by
// the Connection. A LOST session means the ephemeral live-instance node
// and any watches are gone; on the first CONNECTED transition after it the
// participant re-arms its message watch, cleans up abandoned current-state
// subtrees and recreates the live instance, rejoining the cluster under the
// new session without requiring the caller to call Connect again.
func (p *Participant) onConnectionStateChange(state ConnectionState) {
	p.log.WithField("state", state.String()).Info("session state changed")

	switch state {
	case StateLost:
		p.log.Warn("session lost, live instance and watches are gone until reconnect")
		p.mu.Lock()
		p.isLost = true
		p.mu.Unlock()
	case StateConnected:
		p.mu.Lock()
		wasLost := p.isLost
		p.isLost = false
		p.mu.Unlock()
		if wasLost && (p.state == PSStarted || p.state == PSConnected) {
			if p.cancelRun != nil {
				p.cancelRun()
			}
			p.cleanUpAbandonedSessions()
			p.loop()
			if err := p.createLiveInstance(); err != nil {
				p.log.WithError(err).Error("failed to recreate live instance after reconnect")
			}
		}
	}
}

// cleanUpAbandonedSessions removes CURRENTSTATES subtrees left behind by
// sessions other than the current one. The coordination service does not
// clean these up on its own when a session expires, only the ephemeral
// nodes created directly within it, so without this a long-lived
// participant accumulates one abandoned current-state subtree per
// reconnect.
func (p *Participant) cleanUpAbandonedSessions() {
	currentStatesPath := p.keys.CurrentStates(p.ParticipantID).Path

	sessions, err := p.conn.Children(currentStatesPath)
	if err != nil {
		p.log.WithError(err).Warn("failed to list current-state sessions during cleanup")
		return
	}

	for _, sessionID := range sessions {
		if sessionID == p.conn.GetSessionID() {
			continue
		}
		if err := p.conn.DeleteTree(currentStatesPath + "/" + sessionID); err != nil {
			p.log.WithError(err).WithField("sessionId", sessionID).Warn("failed to remove abandoned current-state subtree")
		}
	}
}

// Disconnect stops the message loop, waits for in-flight transitions to
// finish, and closes the coordination-service session.
func (p *Participant) Disconnect() {
	if p.state == PSDisconnected {
		return
	}

	if p.state == PSStarted {
		close(p.stop)
		if p.cancelRun != nil {
			p.cancelRun()
		}
		if p.executor != nil {
			p.executor.Wait()
		}
		p.state = PSStopped
	}

	if p.conn != nil && p.conn.IsConnected() {
		p.conn.Disconnect()
	}

	p.state = PSDisconnected
}

func (p *Participant) autoJoinAllowed() (bool, error) {
	data, _, err := p.conn.Get(p.keys.ClusterConfig().Path)
	if err != nil {
		if IsNoNode(err) {
			return false, nil
		}
		return false, err
	}

	config, err := NewRecordFromBytes(data)
	if err != nil {
		return false, err
	}

	return config.GetBooleanField("allowParticipantAutoJoin", false), nil
}

func (p *Participant) ensureParticipantConfig() (bool, error) {
	key := p.keys.ParticipantConfig(p.ParticipantID)
	exists, err := p.conn.Exists(key.Path)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}

	allowed, err := p.autoJoinAllowed()
	if err != nil {
		return false, err
	}
	if !allowed {
		return false, nil
	}

	participant := NewRecord(p.ParticipantID)
	participant.SetSimpleField("HELIX_HOST", p.Host)
	participant.SetSimpleField("HELIX_PORT", p.Port)
	participant.SetBooleanField("HELIX_ENABLED", true)

	if err := p.conn.CreateRecordWithPath(key.Path, participant); err != nil {
		return false, err
	}

	for _, path := range []string{
		p.keys.Instance(p.ParticipantID).Path,
		p.keys.CurrentStates(p.ParticipantID).Path,
		p.keys.Errors(p.ParticipantID).Path,
		p.keys.HealthReport(p.ParticipantID).Path,
		p.keys.Messages(p.ParticipantID).Path,
		p.keys.StatusUpdates(p.ParticipantID).Path,
	} {
		if err := p.conn.CreateEmptyNode(path); err != nil {
			return false, err
		}
	}

	return true, nil
}

func (p *Participant) watchMessages(ctx context.Context) (<-chan []string, <-chan error) {
	snapshots := make(chan []string)
	errs := make(chan error, 1)
	path := p.keys.Messages(p.ParticipantID).Path

	go func() {
		for {
			snapshot, events, err := p.conn.ChildrenW(path)
			if err != nil {
				select {
				case errs <- err:
				case <-ctx.Done():
				}
				return
			}

			select {
			case snapshots <- snapshot:
			case <-ctx.Done():
				return
			}

			select {
			case evt := <-events:
				if evt.Err != nil {
					select {
					case errs <- evt.Err:
					case <-ctx.Done():
					}
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return snapshots, errs
}

// loop watches the participant's message subtree and hands every new
// message id to the executor. Duplicate deliveries of an unchanged message
// id are suppressed for a short window since the watch channel resends the
// full snapshot on every change, not just the delta. The seen map is only
// ever touched from this one goroutine, so no locking is needed around it.
func (p *Participant) loop() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancelRun = cancel

	messagesChan, errChan := p.watchMessages(ctx)
	seen := make(map[string]time.Time)

	p.state = PSStarted

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case ids := <-messagesChan:
				batch := make([]string, 0, len(ids))
				for _, id := range ids {
					if _, processed := seen[id]; processed {
						continue
					}
					batch = append(batch, id)
					seen[id] = time.Now()
				}
				if len(batch) > 0 {
					if err := p.executor.OnMessages(ctx, batch); err != nil {
						p.log.WithError(err).Error("failed to process message batch")
					}
				}
			case err := <-errChan:
				p.log.WithError(err).Error("message watch failed")
			case <-ticker.C:
				for id, t := range seen {
					if time.Since(t) > 10*time.Second {
						delete(seen, id)
					}
				}
			case <-p.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// createLiveInstance creates this participant's ephemeral live-instance
// node, retrying while the node from a just-expired prior session is still
// being cleaned up by the coordination service.
func (p *Participant) createLiveInstance() error {
	path := p.keys.LiveInstance(p.ParticipantID).Path
	node := NewLiveInstanceRecord(p.ParticipantID, p.Host, p.conn.GetSessionID())
	data, err := node.Marshal()
	if err != nil {
		return err
	}

	flags := int32(zk.FlagEphemeral)
	acl := zk.WorldACL(zk.PermAll)

	const maxRetries = 15
	_, err = p.conn.Create(path, data, flags, acl)
	for retries := 0; retries < maxRetries && err == zk.ErrNodeExists; retries++ {
		time.Sleep(1 * time.Second)
		_, err = p.conn.Create(path, data, flags, acl)
	}

	return err
}
