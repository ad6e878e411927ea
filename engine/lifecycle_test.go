package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/flowstream/core"
)

func TestToLifecycle(t *testing.T) {
	le, ok := ToLifecycle(core.NewFlowStartedEvent("f1", nil))
	require.True(t, ok)
	assert.Equal(t, LifecycleFlowStart, le.Phase)
	assert.Equal(t, "f1", le.FlowID)

	le, ok = ToLifecycle(core.NewFlowCompletedEvent("f1", "done", nil))
	require.True(t, ok)
	assert.Equal(t, LifecycleFlowEnd, le.Phase)
	assert.Equal(t, "done", le.Data[core.KeyAnswer])

	le, ok = ToLifecycle(core.NewFlowFailedEvent("f1", errors.New("boom")))
	require.True(t, ok)
	assert.Equal(t, LifecycleFlowError, le.Phase)
	assert.Equal(t, "boom", le.Error)

	_, ok = ToLifecycle(core.NewTokenEvent("x", 1))
	assert.False(t, ok)
}

func TestManager_ObserversReceiveFlowEvents(t *testing.T) {
	var phases []LifecyclePhase
	m := NewManager(func(o *Options) {
		o.Observers = []LifecycleObserver{
			LifecycleObserverFunc(func(LifecycleEvent) error { return errors.New("ignored") }),
			LifecycleObserverFunc(func(ev LifecycleEvent) error {
				phases = append(phases, ev.Phase)
				return nil
			}),
		}
	})

	m.EmitEvent(core.NewFlowStartedEvent("f", nil))
	m.EmitEvent(core.NewTokenEvent("x", 1))
	m.EmitEvent(core.NewFlowCompletedEvent("f", "a", nil))

	assert.Equal(t, []LifecyclePhase{LifecycleFlowStart, LifecycleFlowEnd}, phases)
	assert.EqualValues(t, 2, m.Stats().ObserverFailures)
}

func TestLoggingObserver(t *testing.T) {
	log := &recordingLogger{}
	m := NewManager()
	m.AddObserver(NewLoggingObserver(log))

	m.EmitEvent(core.NewFlowFailedEvent("f", errors.New("x")))

	// LoggingObserver logs at error level, never warn.
	assert.Empty(t, log.messages())
	assert.NotPanics(t, func() { _ = NewLoggingObserver(nil).OnLifecycle(LifecycleEvent{}) })
}
