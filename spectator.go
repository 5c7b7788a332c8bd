package gohelix

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"

	"github.com/pkg/errors"
)

type spectatorState uint8

const (
	spectatorDisconnected spectatorState = iota
	spectatorConnected
)

type changeType uint8

const (
	externalViewChanged changeType = iota
	liveInstanceChanged
	currentStateChanged
	idealStateChanged
	instanceConfigChanged
	controllerMessagesChanged
	instanceMessagesChanged
)

type changeNotification struct {
	changeType changeType
	changeData string
}

// receivedMessagesCacheSize bounds the LRU cache in which Spectator records
// the message ids it has seen, across all watched instances. The cache is
// not consulted when notifying listeners: every watch firing is delivered.
const receivedMessagesCacheSize = 4096

// Spectator is a Helix role that never takes part in state transitions: it
// only reads cluster data and reports changes to registered listeners.
// Grounded on pyhelix's Spectator/SpectatorConnection pair, collapsed into
// one type the way the source repo already does.
type Spectator struct {
	conn     *Connection
	accessor *DataAccessor

	ClusterID string
	zkConnStr string

	mu sync.RWMutex

	externalViewListeners         []ExternalViewChangeListener
	liveInstanceChangeListeners   []LiveInstanceChangeListener
	currentStateChangeListeners   map[string][]CurrentStateChangeListener
	idealStateChangeListeners     []IdealStateChangeListener
	instanceConfigChangeListeners []InstanceConfigChangeListener
	controllerMessageListeners    []ControllerMessageListener
	messageListeners              map[string][]MessageListener

	stop chan struct{}

	keys KeyBuilder

	externalViewResourceMap map[string]bool
	idealStateResourceMap   map[string]bool
	instanceConfigMap       map[string]bool

	changeNotificationChan chan changeNotification
	instanceMessageChannel chan string

	receivedMessages *lru.Cache

	stopCurrentStateWatch map[string]chan struct{}

	// participantConfigs caches pid -> participant_config Record, populated
	// as watchInstanceConfigForParticipant discovers and refreshes each
	// participant, mirroring pyhelix's SpectatorConnection._participants.
	participantConfigs map[string]*Record

	// externalViewMapping caches partition -> {participant -> state},
	// merged across every tracked resource's external view, mirroring
	// pyhelix's Spectator._mapping. Backs GetStateMap/GetParticipants.
	externalViewMapping map[string]map[string]string

	context *Context

	state  spectatorState
	isLost bool

	log *log.Entry
}

// NewSpectator builds a disconnected Spectator for clusterID.
func NewSpectator(clusterID, zkConnStr string) *Spectator {
	cache, err := lru.New(receivedMessagesCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which never happens here.
		panic(err)
	}

	return &Spectator{
		ClusterID:                   clusterID,
		zkConnStr:                   zkConnStr,
		currentStateChangeListeners: map[string][]CurrentStateChangeListener{},
		messageListeners:            map[string][]MessageListener{},
		keys:                        NewKeyBuilder(clusterID),
		stop:                        make(chan struct{}),
		externalViewResourceMap:     map[string]bool{},
		idealStateResourceMap:       map[string]bool{},
		instanceConfigMap:           map[string]bool{},
		changeNotificationChan:      make(chan changeNotification, 100),
		instanceMessageChannel:      make(chan string, 100),
		receivedMessages:            cache,
		stopCurrentStateWatch:       map[string]chan struct{}{},
		participantConfigs:          map[string]*Record{},
		externalViewMapping:         map[string]map[string]string{},
		state:                       spectatorDisconnected,
		log:                         componentLogger("spectator").WithField("cluster", clusterID),
	}
}

// Connect dials the coordination service and starts watching every
// resource kind that already has at least one registered listener.
func (s *Spectator) Connect() error {
	if s.conn != nil && s.conn.IsConnected() {
		return nil
	}

	s.conn = NewConnection(s.zkConnStr)
	s.conn.AddStateListener(s.onConnectionStateChange)
	if err := s.conn.Connect(); err != nil {
		return errors.Wrap(err, "connect spectator")
	}

	if ok, err := s.conn.IsClusterSetup(s.ClusterID); !ok || err != nil {
		if err != nil {
			return errors.Wrap(err, "check cluster setup")
		}
		return ErrClusterNotSetup
	}

	s.accessor = NewDataAccessor(s.conn)

	s.startDispatcher()
	s.startWatches()
	s.state = spectatorConnected
	return nil
}

// onConnectionStateChange reacts to session state transitions reported by
// the Connection, reinitializing watches on recovery the same way
// Participant.onConnectionStateChange reruns its own init after a lost
// session: every watch goroutine in this file returns on its first error,
// so a session loss otherwise leaves the spectator permanently dark.
func (s *Spectator) onConnectionStateChange(state ConnectionState) {
	s.log.WithField("state", state.String()).Info("session state changed")

	switch state {
	case StateLost:
		s.log.Warn("session lost, watches are gone until reconnect")
		s.mu.Lock()
		s.isLost = true
		s.mu.Unlock()
	case StateConnected:
		s.mu.Lock()
		wasLost := s.isLost
		s.isLost = false
		s.mu.Unlock()
		if wasLost && s.state == spectatorConnected {
			s.reinit()
		}
	}
}

// reinit re-arms every watch after a session loss invalidated them all. The
// per-kind resource maps are cleared first so startWatches treats every
// resource as newly discovered instead of skipping ones it already believes
// are being watched by goroutines that in fact already returned.
func (s *Spectator) reinit() {
	s.mu.Lock()
	s.externalViewResourceMap = map[string]bool{}
	s.idealStateResourceMap = map[string]bool{}
	s.instanceConfigMap = map[string]bool{}
	s.stopCurrentStateWatch = map[string]chan struct{}{}
	s.mu.Unlock()

	s.startWatches()
}

// Disconnect stops all watches and closes the coordination-service
// session.
func (s *Spectator) Disconnect() {
	if s.state == spectatorDisconnected {
		return
	}

	close(s.stop)
	for s.state != spectatorDisconnected {
		time.Sleep(100 * time.Millisecond)
	}

	if s.conn != nil && s.conn.IsConnected() {
		s.conn.Disconnect()
	}
}

// IsConnected reports whether the spectator's event loop is running.
func (s *Spectator) IsConnected() bool {
	return s.state == spectatorConnected
}

// SetContext sets the context value handed to every listener invocation.
func (s *Spectator) SetContext(context *Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.context = context
}

func (s *Spectator) AddExternalViewChangeListener(listener ExternalViewChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.externalViewListeners = append(s.externalViewListeners, listener)
}

func (s *Spectator) AddLiveInstanceChangeListener(listener LiveInstanceChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveInstanceChangeListeners = append(s.liveInstanceChangeListeners, listener)
}

func (s *Spectator) AddCurrentStateChangeListener(instance string, listener CurrentStateChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentStateChangeListeners[instance] = append(s.currentStateChangeListeners[instance], listener)

	if len(s.currentStateChangeListeners[instance]) == 1 && s.IsConnected() {
		s.watchCurrentStateForInstance(instance)
	}
}

func (s *Spectator) AddMessageListener(instance string, listener MessageListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messageListeners[instance] = append(s.messageListeners[instance], listener)

	if len(s.messageListeners[instance]) == 1 && s.IsConnected() {
		s.watchInstanceMessages(instance)
	}
}

func (s *Spectator) AddIdealStateChangeListener(listener IdealStateChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idealStateChangeListeners = append(s.idealStateChangeListeners, listener)
}

func (s *Spectator) AddInstanceConfigChangeListener(listener InstanceConfigChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instanceConfigChangeListeners = append(s.instanceConfigChangeListeners, listener)
}

func (s *Spectator) AddControllerMessageListener(listener ControllerMessageListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controllerMessageListeners = append(s.controllerMessageListeners, listener)
}

// GetControllerMessages retrieves the current controller message queue.
func (s *Spectator) GetControllerMessages() []*Record {
	var result []*Record

	ids, err := s.accessor.GetChildren(s.keys.ControllerMessages())
	if err != nil {
		s.log.WithError(err).Warn("failed to list controller messages")
		return result
	}

	for _, id := range ids {
		record, exists, err := s.accessor.Get(s.keys.ControllerMessage(id))
		if err == nil && exists {
			result = append(result, record)
		}
	}

	return result
}

// GetInstanceMessages retrieves the messages currently queued for an
// instance.
func (s *Spectator) GetInstanceMessages(instance string) []*Record {
	var result []*Record

	ids, err := s.accessor.GetChildren(s.keys.Messages(instance))
	if err != nil {
		s.log.WithError(err).Warn("failed to list instance messages")
		return result
	}

	for _, id := range ids {
		record, exists, err := s.accessor.Get(s.keys.Message(instance, id))
		if err == nil && exists {
			result = append(result, record)
		}
	}

	return result
}

// GetLiveInstances retrieves a copy of the current live instances.
func (s *Spectator) GetLiveInstances() []*Record {
	var result []*Record

	instances, err := s.accessor.GetChildren(s.keys.LiveInstances())
	if err != nil {
		s.log.WithError(err).Warn("failed to list live instances")
		return result
	}

	for _, id := range instances {
		record, exists, err := s.accessor.Get(s.keys.LiveInstance(id))
		if err != nil || !exists {
			continue
		}
		result = append(result, record)
	}

	return result
}

// GetExternalView retrieves a copy of every resource's external view,
// which is the derived, per-partition state map an external reader is
// meant to consult instead of reading CURRENTSTATES directly.
func (s *Spectator) GetExternalView() []*Record {
	var result []*Record

	s.mu.RLock()
	defer s.mu.RUnlock()

	for resource, active := range s.externalViewResourceMap {
		if !active {
			continue
		}
		record, exists, err := s.accessor.Get(s.keys.ExternalView(resource))
		if err == nil && exists {
			result = append(result, record)
		}
	}

	return result
}

// rebuildExternalViewMapping recomputes the partition -> {participant ->
// state} mapping GetStateMap/GetParticipants serve, merging every tracked
// resource's external view the way pyhelix's Spectator._ev_watcher
// replaces its own _mapping wholesale on each external view change.
func (s *Spectator) rebuildExternalViewMapping(views []*Record) {
	mapping := make(map[string]map[string]string, len(views))
	for _, view := range views {
		for partition, states := range view.MapFields {
			mapping[partition] = states
		}
	}

	s.mu.Lock()
	s.externalViewMapping = mapping
	s.mu.Unlock()
}

// GetStateMap returns the participant-id to state mapping reported for a
// partition by the most recently observed external view, or an empty map
// if the partition is not currently known. Mirrors pyhelix's
// Spectator.get_state_map.
func (s *Spectator) GetStateMap(partitionID string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states, ok := s.externalViewMapping[partitionID]
	if !ok {
		return map[string]string{}
	}

	result := make(map[string]string, len(states))
	for participantID, state := range states {
		result[participantID] = state
	}
	return result
}

// GetParticipants returns the cached participant_config Records of every
// participant currently reported to be in state. With no partitionID it is
// unioned across every partition in the external view mapping; with one or
// more partitionIDs it is restricted to those partitions. Mirrors
// pyhelix's Spectator.get_participants.
func (s *Spectator) GetParticipants(state string, partitionID ...string) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	partitions := partitionID
	if len(partitions) == 0 {
		partitions = make([]string, 0, len(s.externalViewMapping))
		for partition := range s.externalViewMapping {
			partitions = append(partitions, partition)
		}
	}

	seen := map[string]bool{}
	var result []*Record
	for _, partition := range partitions {
		for participantID, s2 := range s.externalViewMapping[partition] {
			if s2 != state || seen[participantID] {
				continue
			}
			seen[participantID] = true
			if cfg, ok := s.participantConfigs[participantID]; ok {
				result = append(result, cfg)
			}
		}
	}
	return result
}

// GetIdealState retrieves a copy of every resource's ideal state.
func (s *Spectator) GetIdealState() []*Record {
	var result []*Record

	s.mu.RLock()
	defer s.mu.RUnlock()

	for resource, active := range s.idealStateResourceMap {
		if !active {
			continue
		}
		record, exists, err := s.accessor.Get(s.keys.IdealState(resource))
		if err == nil && exists {
			result = append(result, record)
		}
	}

	return result
}

// GetCurrentState retrieves a copy of the current state of every resource
// an instance holds a partition of.
func (s *Spectator) GetCurrentState(instance string) []*Record {
	var result []*Record

	sessions, err := s.accessor.GetChildren(s.keys.CurrentStates(instance))
	if err != nil || len(sessions) == 0 {
		if err != nil {
			s.log.WithError(err).Warn("failed to list instance current-state sessions")
		}
		return result
	}
	session := sessions[0]

	resources, err := s.accessor.GetChildren(s.keys.CurrentStatesForSession(instance, session))
	if err != nil {
		s.log.WithError(err).Warn("failed to list instance resources")
		return result
	}

	for _, resource := range resources {
		record, exists, err := s.accessor.Get(s.keys.CurrentState(instance, session, resource))
		if err == nil && exists {
			result = append(result, record)
		}
	}

	return result
}

// GetInstanceConfigs retrieves a copy of every participant's config.
func (s *Spectator) GetInstanceConfigs() []*Record {
	var result []*Record

	ids, err := s.accessor.GetChildren(s.keys.ParticipantConfigs())
	if err != nil {
		s.log.WithError(err).Warn("failed to list participant configs")
		return result
	}

	for _, id := range ids {
		record, exists, err := s.accessor.Get(s.keys.ParticipantConfig(id))
		if err == nil && exists {
			result = append(result, record)
		}
	}

	return result
}

func (s *Spectator) watchCurrentStates() {
	s.mu.RLock()
	instances := make([]string, 0, len(s.currentStateChangeListeners))
	for k := range s.currentStateChangeListeners {
		instances = append(instances, k)
	}
	s.mu.RUnlock()

	for _, instance := range instances {
		s.watchCurrentStateForInstance(instance)
	}
}

func (s *Spectator) watchCurrentStateForInstance(instance string) {
	sessions, err := s.accessor.GetChildren(s.keys.CurrentStates(instance))
	if err != nil {
		s.log.WithError(err).WithField("instance", instance).Warn("failed to list current-state sessions")
		return
	}
	if len(sessions) == 0 {
		return
	}

	// An instance has exactly one live session's worth of current state at
	// a time; stale sessions are cleaned up by the participant itself.
	session := sessions[0]

	resources, err := s.accessor.GetChildren(s.keys.CurrentStatesForSession(instance, session))
	if err != nil {
		s.log.WithError(err).WithField("instance", instance).Warn("failed to list current-state resources")
		return
	}

	for _, resource := range resources {
		s.watchCurrentStateOfInstanceForResource(instance, resource, session)
	}
}

func (s *Spectator) watchCurrentStateOfInstanceForResource(instance, resource, sessionID string) {
	watchPath := s.keys.CurrentState(instance, sessionID, resource).Path

	s.mu.Lock()
	if _, ok := s.stopCurrentStateWatch[watchPath]; !ok {
		s.stopCurrentStateWatch[watchPath] = make(chan struct{})
	}
	stopCh := s.stopCurrentStateWatch[watchPath]
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if ok, err := s.conn.Exists(watchPath); !ok || err != nil {
				close(stopCh)
				return
			}
		}
	}()

	go func() {
		for {
			_, _, events, err := s.conn.GetW(watchPath)
			if err != nil {
				s.log.WithError(err).WithField("path", watchPath).Warn("current-state watch failed")
				return
			}

			select {
			case <-events:
				s.changeNotificationChan <- changeNotification{currentStateChanged, instance}
			case <-stopCh:
				s.mu.Lock()
				delete(s.stopCurrentStateWatch, watchPath)
				s.mu.Unlock()
				return
			}
		}
	}()
}

func (s *Spectator) watchLiveInstances() {
	go func() {
		for {
			_, events, err := s.conn.ChildrenW(s.keys.LiveInstances().Path)
			if err != nil {
				s.log.WithError(err).Warn("live instance watch failed")
				return
			}

			s.changeNotificationChan <- changeNotification{liveInstanceChanged, ""}

			evt := <-events
			if evt.Err != nil {
				s.log.WithError(evt.Err).Warn("live instance watch event error")
				return
			}
		}
	}()
}

func (s *Spectator) watchInstanceConfig() {
	go func() {
		for {
			configs, events, err := s.conn.ChildrenW(s.keys.ParticipantConfigs().Path)
			if err != nil {
				s.log.WithError(err).Warn("instance config watch failed")
				return
			}

			s.mu.Lock()
			var added []string
			for _, k := range configs {
				if _, ok := s.instanceConfigMap[k]; !ok {
					added = append(added, k)
				}
			}
			for k := range s.instanceConfigMap {
				s.instanceConfigMap[k] = false
			}
			for _, k := range configs {
				s.instanceConfigMap[k] = true
			}
			s.mu.Unlock()

			// refreshParticipantConfig takes s.mu itself, so new participants
			// are watched only after the lock is released.
			for _, k := range added {
				s.watchInstanceConfigForParticipant(k)
			}

			s.changeNotificationChan <- changeNotification{instanceConfigChanged, ""}

			evt := <-events
			if evt.Err != nil {
				s.log.WithError(evt.Err).Warn("instance config watch event error")
				return
			}
		}
	}()
}

func (s *Spectator) watchInstanceConfigForParticipant(instance string) {
	s.refreshParticipantConfig(instance)

	go func() {
		for {
			_, _, events, err := s.conn.GetW(s.keys.ParticipantConfig(instance).Path)
			if err != nil {
				s.log.WithError(err).WithField("instance", instance).Warn("participant config watch failed")
				return
			}
			<-events
			s.refreshParticipantConfig(instance)
			s.changeNotificationChan <- changeNotification{instanceConfigChanged, instance}
		}
	}()
}

// refreshParticipantConfig re-reads one participant's config into
// participantConfigs, mirroring pyhelix's _pc_watcher caching every
// participant config it is told about by name.
func (s *Spectator) refreshParticipantConfig(instance string) {
	record, exists, err := s.accessor.Get(s.keys.ParticipantConfig(instance))
	if err != nil || !exists {
		return
	}

	s.mu.Lock()
	s.participantConfigs[instance] = record
	s.mu.Unlock()
}

func (s *Spectator) watchIdealState() {
	go func() {
		for {
			resources, events, err := s.conn.ChildrenW(s.keys.IdealStates().Path)
			if err != nil {
				s.log.WithError(err).Warn("ideal state watch failed")
				return
			}

			s.mu.Lock()
			for _, k := range resources {
				if _, ok := s.idealStateResourceMap[k]; !ok {
					s.watchIdealStateResource(k)
				}
			}
			for k := range s.idealStateResourceMap {
				s.idealStateResourceMap[k] = false
			}
			for _, k := range resources {
				s.idealStateResourceMap[k] = true
			}
			s.mu.Unlock()

			s.changeNotificationChan <- changeNotification{idealStateChanged, ""}

			evt := <-events
			if evt.Err != nil {
				s.log.WithError(evt.Err).Warn("ideal state watch event error")
				return
			}
		}
	}()
}

func (s *Spectator) watchIdealStateResource(resource string) {
	go func() {
		for {
			_, _, events, err := s.conn.GetW(s.keys.IdealState(resource).Path)
			if err != nil {
				s.log.WithError(err).WithField("resource", resource).Warn("ideal state resource watch failed")
				return
			}
			<-events
			s.changeNotificationChan <- changeNotification{idealStateChanged, resource}
		}
	}()
}

func (s *Spectator) watchExternalView() {
	go func() {
		for {
			resources, events, err := s.conn.ChildrenW(s.keys.ExternalViews().Path)
			if err != nil {
				s.log.WithError(err).Warn("external view watch failed")
				return
			}

			s.mu.Lock()
			for _, k := range resources {
				if _, ok := s.externalViewResourceMap[k]; !ok {
					s.watchExternalViewResource(k)
				}
			}
			for k := range s.externalViewResourceMap {
				s.externalViewResourceMap[k] = false
			}
			for _, k := range resources {
				s.externalViewResourceMap[k] = true
			}
			s.mu.Unlock()

			s.changeNotificationChan <- changeNotification{externalViewChanged, ""}

			evt := <-events
			if evt.Err != nil {
				s.log.WithError(evt.Err).Warn("external view watch event error")
				return
			}
		}
	}()
}

func (s *Spectator) watchExternalViewResource(resource string) {
	go func() {
		for {
			_, _, events, err := s.conn.GetW(s.keys.ExternalView(resource).Path)
			if err != nil {
				s.log.WithError(err).WithField("resource", resource).Warn("external view resource watch failed")
				return
			}
			<-events
			s.changeNotificationChan <- changeNotification{externalViewChanged, resource}
		}
	}()
}

// watchControllerMessages only watches the message-list membership, not
// the content of individual messages.
func (s *Spectator) watchControllerMessages() {
	go func() {
		for {
			_, events, err := s.conn.ChildrenW(s.keys.ControllerMessages().Path)
			if err != nil {
				s.log.WithError(err).Warn("controller message watch failed")
				return
			}

			s.changeNotificationChan <- changeNotification{controllerMessagesChanged, ""}

			evt := <-events
			if evt.Err != nil {
				s.log.WithError(evt.Err).Warn("controller message watch event error")
				return
			}
		}
	}()
}

func (s *Spectator) watchInstanceMessages(instance string) {
	go func() {
		for {
			messages, events, err := s.conn.ChildrenW(s.keys.Messages(instance).Path)
			if err != nil {
				s.log.WithError(err).WithField("instance", instance).Warn("instance message watch failed")
				return
			}

			for _, m := range messages {
				if !s.receivedMessages.Contains(m) {
					s.receivedMessages.Add(m, nil)
				}
			}

			s.changeNotificationChan <- changeNotification{instanceMessagesChanged, instance}

			evt := <-events
			if evt.Err != nil {
				s.log.WithError(evt.Err).WithField("instance", instance).Warn("instance message watch event error")
				return
			}
		}
	}()
}

// startWatches starts a watch goroutine for every resource kind with at
// least one registered listener. Called once from Connect and again from
// reinit after a session loss, since every watch goroutine here returns
// (rather than retries) on its first error.
func (s *Spectator) startWatches() {
	s.mu.RLock()
	hasEV := len(s.externalViewListeners) > 0
	hasLI := len(s.liveInstanceChangeListeners) > 0
	hasCS := len(s.currentStateChangeListeners) > 0
	hasIS := len(s.idealStateChangeListeners) > 0
	hasCM := len(s.controllerMessageListeners) > 0
	hasIC := len(s.instanceConfigChangeListeners) > 0
	messageInstances := make([]string, 0, len(s.messageListeners))
	for instance := range s.messageListeners {
		messageInstances = append(messageInstances, instance)
	}
	s.mu.RUnlock()

	if hasEV {
		s.watchExternalView()
	}
	if hasLI {
		s.watchLiveInstances()
	}
	if hasCS {
		s.watchCurrentStates()
	}
	if hasIS {
		s.watchIdealState()
	}
	if hasCM {
		s.watchControllerMessages()
	}
	if hasIC {
		s.watchInstanceConfig()
	}
	for _, instance := range messageInstances {
		s.watchInstanceMessages(instance)
	}
}

// startDispatcher starts the single goroutine that drains
// changeNotificationChan for the lifetime of the connection. Unlike
// startWatches, this must run exactly once per Connect -- it is not
// restarted by reinit, since the channel and s.stop are not recreated on
// reconnect.
func (s *Spectator) startDispatcher() {
	go func() {
		for {
			select {
			case <-s.stop:
				s.state = spectatorDisconnected
				return
			case chg := <-s.changeNotificationChan:
				s.handleChangeNotification(chg)
			}
		}
	}()
}

func (s *Spectator) handleChangeNotification(chg changeNotification) {
	s.mu.RLock()
	context := s.context
	s.mu.RUnlock()

	switch chg.changeType {
	case externalViewChanged:
		ev := s.GetExternalView()
		s.rebuildExternalViewMapping(ev)
		if context != nil {
			context.Set("trigger", chg.changeData)
		}
		s.mu.RLock()
		listeners := append([]ExternalViewChangeListener{}, s.externalViewListeners...)
		s.mu.RUnlock()
		for _, listener := range listeners {
			go listener(ev, context)
		}

	case liveInstanceChanged:
		li := s.GetLiveInstances()
		s.mu.RLock()
		listeners := append([]LiveInstanceChangeListener{}, s.liveInstanceChangeListeners...)
		s.mu.RUnlock()
		for _, listener := range listeners {
			go listener(li, context)
		}

	case idealStateChanged:
		is := s.GetIdealState()
		s.mu.RLock()
		listeners := append([]IdealStateChangeListener{}, s.idealStateChangeListeners...)
		s.mu.RUnlock()
		for _, listener := range listeners {
			go listener(is, context)
		}

	case currentStateChanged:
		instance := chg.changeData
		cs := s.GetCurrentState(instance)
		s.mu.RLock()
		listeners := append([]CurrentStateChangeListener{}, s.currentStateChangeListeners[instance]...)
		s.mu.RUnlock()
		for _, listener := range listeners {
			go listener(instance, cs, context)
		}

	case instanceConfigChanged:
		ic := s.GetInstanceConfigs()
		s.mu.RLock()
		listeners := append([]InstanceConfigChangeListener{}, s.instanceConfigChangeListeners...)
		s.mu.RUnlock()
		for _, listener := range listeners {
			go listener(ic, context)
		}

	case controllerMessagesChanged:
		cm := s.GetControllerMessages()
		s.mu.RLock()
		listeners := append([]ControllerMessageListener{}, s.controllerMessageListeners...)
		s.mu.RUnlock()
		for _, listener := range listeners {
			go listener(cm, context)
		}

	case instanceMessagesChanged:
		instance := chg.changeData
		messages := s.GetInstanceMessages(instance)
		s.mu.RLock()
		listeners := append([]MessageListener{}, s.messageListeners[instance]...)
		s.mu.RUnlock()
		for _, listener := range listeners {
			go listener(instance, messages, context)
		}
	}
}
