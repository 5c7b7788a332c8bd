package gohelix

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateModelHandlerResolutionIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	var invoked int
	sm := NewStateModel([]Transition{
		{FromState: "OFFLINE", ToState: "ONLINE", Handler: func(*Record) error {
			invoked++
			return nil
		}},
	})

	h1, err := sm.HandlerFor("oFfLiNe", "OnLINE")
	require.NoError(t, err)
	h2, err := sm.HandlerFor("OFFLINE", "ONLINE")
	require.NoError(t, err)

	require.NoError(t, h1(NewRecord("m")))
	require.NoError(t, h2(NewRecord("m")))
	assert.Equal(t, 2, invoked)
}

func TestStateModelFallsBackToDefaultHandler(t *testing.T) {
	t.Parallel()

	var fallbackInvoked bool
	sm := NewStateModel(nil).WithFallback(func(*Record) error {
		fallbackInvoked = true
		return nil
	})

	h, err := sm.HandlerFor("OFFLINE", "ONLINE")
	require.NoError(t, err)
	require.NoError(t, h(NewRecord("m")))
	assert.True(t, fallbackInvoked)
}

func TestStateModelNoHandlerAndNoFallbackIsError(t *testing.T) {
	t.Parallel()

	sm := NewStateModel(nil)
	_, err := sm.HandlerFor("OFFLINE", "ONLINE")
	assert.Error(t, err)
}

func TestStateModelCurrentStateDefaultsToOffline(t *testing.T) {
	t.Parallel()

	sm := NewStateModel(nil)
	assert.Equal(t, DefaultInitialState, sm.CurrentState("R_0"))

	sm.SetCurrentState("R_0", "ONLINE")
	assert.Equal(t, "ONLINE", sm.CurrentState("R_0"))

	sm.DropPartition("R_0")
	assert.Equal(t, DefaultInitialState, sm.CurrentState("R_0"))
}

func TestStateModelRegistryDeduplicatesConcurrentCreation(t *testing.T) {
	t.Parallel()

	var created int
	var mu sync.Mutex

	factory := func(resourceName string) *StateModel {
		mu.Lock()
		created++
		mu.Unlock()
		return NewStateModel(nil)
	}

	registry := newStateModelRegistry(factory)

	var wg sync.WaitGroup
	models := make([]*StateModel, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			models[i] = registry.getOrCreate("R", "R_0")
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, created)
	for _, m := range models {
		assert.Same(t, models[0], m)
	}
}
