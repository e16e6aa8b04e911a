package meterbus_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndrewDonelson/meterbus"
)

// fakeModule is a minimal Hookable source for tests, standing in for a
// framework adapter.
type fakeModule struct {
	cb          meterbus.HookFunc
	detached    bool
	registerErr error
}

func (f *fakeModule) RegisterHook(fn meterbus.HookFunc) (func(), error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.cb = fn
	return func() {
		f.detached = true
		f.cb = nil
	}, nil
}

// fire simulates the source reaching its lifecycle point.
func (f *fakeModule) fire(input, output any) {
	if f.cb != nil {
		f.cb(f, input, output)
	}
}

func hookedProbe(t *testing.T) (*meterbus.Probe, *fakeSink) {
	t.Helper()
	sink := newFakeSink("p.in", "p.out")
	probe, err := meterbus.NewProbe("p", meterbus.ProbeOptions{Sink: sink})
	require.NoError(t, err)
	return probe, sink
}

func TestProbe_HookForwardsOutput(t *testing.T) {
	probe, sink := hookedProbe(t)
	mod := &fakeModule{}

	require.NoError(t, probe.Hook(mod, meterbus.HookConfig{Output: "out"}))
	mod.fire("ignored", 42)

	assert.Equal(t, 42, sink.updates["p.out"])
	_, sawInput := sink.updates["p.in"]
	assert.False(t, sawInput)
}

func TestProbe_HookForwardsBoth(t *testing.T) {
	probe, sink := hookedProbe(t)
	mod := &fakeModule{}

	require.NoError(t, probe.Hook(mod, meterbus.HookConfig{Input: "in", Output: "out"}))
	mod.fire(1, 2)

	assert.Equal(t, 1, sink.updates["p.in"])
	assert.Equal(t, 2, sink.updates["p.out"])
}

func TestProbe_HookAppliesPreprocessing(t *testing.T) {
	probe, sink := hookedProbe(t)
	mod := &fakeModule{}
	double := func(v any) any { return v.(int) * 2 }

	require.NoError(t, probe.Hook(mod, meterbus.HookConfig{
		Output:        "out",
		Preprocessing: []meterbus.Preprocessor{double},
	}))
	mod.fire(nil, 21)

	assert.Equal(t, 42, sink.updates["p.out"])
}

func TestProbe_HookValidation(t *testing.T) {
	probe, _ := hookedProbe(t)
	mod := &fakeModule{}

	err := probe.Hook(mod, meterbus.HookConfig{})
	assert.ErrorIs(t, err, meterbus.ErrHookNoNames)

	err = probe.Hook(mod, meterbus.HookConfig{Output: "out", Mode: "backward"})
	assert.ErrorIs(t, err, meterbus.ErrHookMode)
}

func TestProbe_DoubleHookFails(t *testing.T) {
	probe, _ := hookedProbe(t)
	mod := &fakeModule{}

	require.NoError(t, probe.Hook(mod, meterbus.HookConfig{Output: "out"}))
	err := probe.Hook(mod, meterbus.HookConfig{Output: "out"})
	assert.ErrorIs(t, err, meterbus.ErrAlreadyHooked)
}

func TestProbe_Unhook(t *testing.T) {
	probe, sink := hookedProbe(t)
	mod := &fakeModule{}

	require.NoError(t, probe.Hook(mod, meterbus.HookConfig{Output: "out"}))
	require.NoError(t, probe.Unhook(mod))
	assert.True(t, mod.detached)

	mod.fire(nil, 1)
	assert.Empty(t, sink.updates)

	// unhooking an unhooked source is an error
	assert.ErrorIs(t, probe.Unhook(mod), meterbus.ErrNotHooked)
}

func TestProbe_HookRegisterFailureAllowsRetry(t *testing.T) {
	probe, _ := hookedProbe(t)
	boom := errors.New("register failed")
	mod := &fakeModule{registerErr: boom}

	err := probe.Hook(mod, meterbus.HookConfig{Output: "out"})
	assert.ErrorIs(t, err, boom)

	mod.registerErr = nil
	assert.NoError(t, probe.Hook(mod, meterbus.HookConfig{Output: "out"}))
}

func TestProbe_HookRoutesIntoHub(t *testing.T) {
	reg := meterbus.NewRegistry(meterbus.HubConfig{})
	hub := reg.Hub()
	m := newMeter(t, "m", identityMetric, []string{"model.activation"}, meterbus.MeterOptions{})
	hub.ConnectMeter(m)

	probe, err := reg.GetProbe("model")
	require.NoError(t, err)

	mod := &fakeModule{}
	require.NoError(t, probe.Hook(mod, meterbus.HookConfig{Output: "activation"}))

	hub.SetBatch(0)
	mod.fire(nil, 3.25)

	results, err := m.Results()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3.25, results[0].Result)
}
