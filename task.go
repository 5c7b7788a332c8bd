package gohelix

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ParticipantInfo is the narrow slice of Participant that a TransitionTask
// needs. Depending on this instead of *Participant breaks the cyclic
// Participant -> Executor -> TransitionTask -> Participant reference the
// source's object graph has, and makes the task testable without a live
// Participant.
type ParticipantInfo interface {
	ClusterID() string
	ID() string
	SessionID() string
}

// TransitionTask runs one state-transition message to completion: resolve
// the handler, invoke it, record the outcome as the partition's current
// state (or subtract it on DROPPED), record an error node if the handler
// failed, update the in-memory StateModel, and finally remove the message.
// These five steps always run in this order even when the handler itself
// fails -- a failed transition still needs to be reflected in
// current-state/errors and have its message consumed, or the executor
// would redeliver it forever.
type TransitionTask struct {
	participant   ParticipantInfo
	accessor      *DataAccessor
	keys          KeyBuilder
	resourceName  string
	partitionName string
	stateModelDef string
	model         *StateModel
	message       *Record
	messageID     string

	log *log.Entry
}

// NewTransitionTask builds a task for one message against one partition's
// StateModel.
func NewTransitionTask(
	participant ParticipantInfo,
	accessor *DataAccessor,
	resourceName, partitionName, stateModelDef string,
	model *StateModel,
	message *Record,
	messageID string,
) *TransitionTask {
	return &TransitionTask{
		participant:   participant,
		accessor:      accessor,
		keys:          NewKeyBuilder(participant.ClusterID()),
		resourceName:  resourceName,
		partitionName: partitionName,
		stateModelDef: stateModelDef,
		model:         model,
		message:       message,
		messageID:     messageID,
		log: componentLogger("task").WithFields(log.Fields{
			"resource":  resourceName,
			"partition": partitionName,
			"messageId": messageID,
		}),
	}
}

// Run executes the task. The returned error is the handler's error, if
// any; Run always completes all five steps regardless.
func (t *TransitionTask) Run() error {
	correlationID := uuid.New().String()
	started := time.Now()

	fromState := t.message.GetSimpleFieldOrDefault("FROM_STATE", DefaultInitialState)
	toState := t.message.GetSimpleFieldOrDefault("TO_STATE", "")

	handlerErr := t.invokeHandler(fromState, toState)

	finalState := toState
	if handlerErr != nil {
		finalState = "ERROR"
	}

	if err := t.updateCurrentState(finalState, handlerErr); err != nil {
		t.log.WithError(err).Error("failed to update current state")
	}

	if handlerErr != nil {
		if err := t.recordError(fromState, toState, handlerErr); err != nil {
			t.log.WithError(err).Error("failed to record transition error")
		}
	}

	if finalState == "DROPPED" {
		t.model.DropPartition(t.partitionName)
	} else {
		t.model.SetCurrentState(t.partitionName, finalState)
	}

	if err := t.accessor.Remove(t.keys.Message(t.participant.ID(), t.messageID)); err != nil {
		t.log.WithError(err).Error("failed to remove message")
	}

	transitionDuration.WithLabelValues(t.stateModelDef).Observe(time.Since(started).Seconds())
	t.log.WithFields(log.Fields{
		"correlationId": correlationID,
		"from":          fromState,
		"to":            toState,
		"final":         finalState,
	}).Debug("transition task complete")

	return handlerErr
}

func (t *TransitionTask) invokeHandler(fromState, toState string) (err error) {
	handler, resolveErr := t.model.HandlerFor(fromState, toState)
	if resolveErr != nil {
		return resolveErr
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transition handler panicked: %v", r)
		}
	}()

	return handler(t.message)
}

func (t *TransitionTask) updateCurrentState(finalState string, handlerErr error) error {
	key := t.keys.CurrentState(t.participant.ID(), t.participant.SessionID(), t.resourceName)

	if finalState == "DROPPED" {
		delta := NewRecord(t.resourceName)
		delta.SetMapField(t.partitionName, "CURRENT_STATE", finalState)
		return t.accessor.Subtract(key, delta)
	}

	return t.accessor.Update(key, func(current *Record) *Record {
		delta := NewRecord(t.resourceName)
		delta.SetSimpleField("STATE_MODEL_DEF", t.stateModelDef)
		delta.SetSimpleField("SESSION_ID", t.participant.SessionID())
		delta.SetMapField(t.partitionName, "CURRENT_STATE", finalState)
		if finalState == "ERROR" && handlerErr != nil {
			delta.SetMapField(t.partitionName, "INFO", handlerErr.Error())
		}
		return delta
	})
}

func (t *TransitionTask) recordError(fromState, toState string, handlerErr error) error {
	key := t.keys.Error(t.participant.ID(), t.participant.SessionID(), t.resourceName, t.partitionName)

	record := NewRecord(t.partitionName)
	record.SetSimpleField("FROM_STATE", fromState)
	record.SetSimpleField("TO_STATE", toState)
	record.SetSimpleField("ERROR", handlerErr.Error())
	record.SetSimpleField("TIMESTAMP", time.Now().UTC().Format(time.RFC3339Nano))

	return t.accessor.Set(key, record)
}
