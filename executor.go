package gohelix

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Executor turns incoming message ids into running TransitionTasks. Its
// OnMessages pipeline mirrors the source's HelixExecutor.on_message filter
// chain: malformed and irrelevant messages are dropped before anything is
// scheduled, and every message in the batch is marked READ (so a second
// delivery is a no-op) before any of the batch's tasks are submitted to the
// worker pool, matching spec.md's requirement that a whole notification
// batch be acknowledged, in order, before any of it runs concurrently.
type Executor struct {
	participant ParticipantInfo
	accessor    *DataAccessor
	keys        KeyBuilder
	pool        *workerPool

	mu         sync.RWMutex
	registries map[string]*stateModelRegistry

	log *log.Entry
}

// NewExecutor builds an Executor bound to one participant's identity and
// accessor, running up to parallelism transitions concurrently.
func NewExecutor(participant ParticipantInfo, accessor *DataAccessor, parallelism int64) *Executor {
	return &Executor{
		participant: participant,
		accessor:    accessor,
		keys:        NewKeyBuilder(participant.ClusterID()),
		pool:        newWorkerPool(parallelism),
		registries:  make(map[string]*stateModelRegistry),
		log:         componentLogger("executor"),
	}
}

// RegisterStateModelFactory binds a state model definition name (as it
// appears in a message's STATE_MODEL_DEF field) to the factory used to
// lazily build a StateModel the first time a partition under that
// definition is seen.
func (e *Executor) RegisterStateModelFactory(stateModelDef string, factory StateModelFactory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registries[stateModelDef] = newStateModelRegistry(factory)
}

func (e *Executor) registryFor(stateModelDef string) *stateModelRegistry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registries[stateModelDef]
}

// Wait blocks until every transition task submitted so far has completed.
func (e *Executor) Wait() {
	e.pool.Wait()
}

// OnMessage processes a single message id: the degenerate one-message case
// of OnMessages.
func (e *Executor) OnMessage(ctx context.Context, messageID string) error {
	return e.OnMessages(ctx, []string{messageID})
}

// OnMessages is the per-notification entry point, mirroring spec.md's
// on_message(messages): every id in messageIDs is fetched, filtered and
// (if it survives) acknowledged, in order -- and only once every id in the
// batch has been acknowledged are the surviving messages' TransitionTasks
// submitted to the worker pool. This two-pass structure is what guarantees
// a duplicate delivery later in the same batch (or a concurrent watch
// refire) sees MSG_STATE already flipped to READ before any task for an
// earlier message in the batch has had a chance to run.
func (e *Executor) OnMessages(ctx context.Context, messageIDs []string) error {
	tasks := make([]*TransitionTask, 0, len(messageIDs))

	for _, messageID := range messageIDs {
		task, err := e.prepareAndAck(messageID)
		if err != nil {
			e.log.WithError(err).WithField("messageId", messageID).Error("failed to prepare message")
			continue
		}
		if task != nil {
			tasks = append(tasks, task)
		}
	}

	var firstErr error
	for _, task := range tasks {
		t := task
		if err := e.pool.Submit(ctx, func() {
			if err := t.Run(); err != nil {
				messagesProcessed.WithLabelValues("handler_error").Inc()
			} else {
				messagesProcessed.WithLabelValues("ok").Inc()
			}
		}); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// prepareAndAck runs one message through the filter chain and, if it
// survives, marks it READ. It returns a non-nil task only for messages that
// should be submitted to the worker pool; a nil task with a nil error means
// the message was correctly rejected, ignored or skipped.
func (e *Executor) prepareAndAck(messageID string) (*TransitionTask, error) {
	participantID := e.participant.ID()
	key := e.keys.Message(participantID, messageID)

	message, exists, err := e.accessor.Get(key)
	if err != nil {
		return nil, err
	}
	if !exists {
		// Already consumed by a prior delivery of the same child-watch event.
		return nil, nil
	}

	msgType, ok := message.GetSimpleField("MSG_TYPE")
	if !ok {
		e.log.WithField("messageId", messageID).Warn("rejecting message with no MSG_TYPE")
		messagesProcessed.WithLabelValues("rejected_no_type").Inc()
		return nil, e.accessor.Remove(key)
	}
	msgType = strings.ToUpper(msgType)

	if msgType == "NO_OP" {
		messagesProcessed.WithLabelValues("no_op").Inc()
		return nil, e.accessor.Remove(key)
	}

	if msgType != "STATE_TRANSITION" {
		messagesProcessed.WithLabelValues("ignored_type").Inc()
		return nil, nil
	}

	tgtSessionID := message.GetSimpleFieldOrDefault("TGT_SESSION_ID", "")
	if tgtSessionID != "*" && tgtSessionID != e.participant.SessionID() {
		e.log.WithFields(log.Fields{
			"messageId":  messageID,
			"tgtSession": tgtSessionID,
			"ourSession": e.participant.SessionID(),
		}).Debug("removing stale-session message")
		messagesProcessed.WithLabelValues("stale_session").Inc()
		return nil, e.accessor.Remove(key)
	}

	msgState := message.GetSimpleFieldOrDefault("MSG_STATE", "")
	if !strings.EqualFold(msgState, "NEW") {
		messagesProcessed.WithLabelValues("not_new").Inc()
		return nil, nil
	}

	resourceName, _ := message.GetSimpleField("RESOURCE_NAME")
	partitionName, _ := message.GetSimpleField("PARTITION_NAME")
	stateModelDef, _ := message.GetSimpleField("STATE_MODEL_DEF")

	registry := e.registryFor(stateModelDef)
	if registry == nil {
		e.log.WithField("stateModelDef", stateModelDef).Error("no factory registered for state model def")
		messagesProcessed.WithLabelValues("no_factory").Inc()
		return nil, nil
	}

	model := registry.getOrCreate(resourceName, partitionName)

	readAt := time.Now().UTC().Format(time.RFC3339Nano)
	if err := e.accessor.Update(key, func(current *Record) *Record {
		delta := NewRecord(messageID)
		delta.SetSimpleField("MSG_STATE", "READ")
		delta.SetSimpleField("READ_TIMESTAMP", readAt)
		delta.SetSimpleField("EXE_SESSION_ID", e.participant.SessionID())
		return delta
	}); err != nil {
		if IsNoNode(err) || err == ErrNodeNotExist {
			// Raced with another watch cycle that already consumed it.
			return nil, nil
		}
		return nil, err
	}

	task := NewTransitionTask(e.participant, e.accessor, resourceName, partitionName, stateModelDef, model, message, messageID)
	return task, nil
}
