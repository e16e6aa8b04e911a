package meterbus_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndrewDonelson/meterbus"
)

// fakeSink records updates and reports a fixed measuring set.
type fakeSink struct {
	mu        sync.Mutex
	measuring map[string]bool
	updates   map[string]any
}

func newFakeSink(measuring ...string) *fakeSink {
	s := &fakeSink{measuring: make(map[string]bool), updates: make(map[string]any)}
	for _, name := range measuring {
		s.measuring[name] = true
	}
	return s
}

func (s *fakeSink) IsMeasuring(variable string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.measuring[variable]
}

func (s *fakeSink) Update(variable string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates[variable] = value
	return nil
}

func TestNewProbe_NameValidation(t *testing.T) {
	for _, name := range []string{"", "model", "attack_probe", "p2"} {
		_, err := meterbus.NewProbe(name, meterbus.ProbeOptions{})
		assert.NoError(t, err, "name %q", name)
	}
	for _, name := range []string{"bad-name", "9x", "a.b", "has space"} {
		_, err := meterbus.NewProbe(name, meterbus.ProbeOptions{})
		assert.ErrorIs(t, err, meterbus.ErrInvalidName, "name %q", name)
	}
}

func TestProbe_PrefixesNames(t *testing.T) {
	sink := newFakeSink("model.x_post")
	probe, err := meterbus.NewProbe("model", meterbus.ProbeOptions{Sink: sink})
	require.NoError(t, err)

	require.NoError(t, probe.Update(map[string]any{"x_post": 1.5}))
	assert.Equal(t, 1.5, sink.updates["model.x_post"])
}

func TestProbe_EmptyNameNoPrefix(t *testing.T) {
	sink := newFakeSink("x")
	probe, err := meterbus.NewProbe("", meterbus.ProbeOptions{Sink: sink})
	require.NoError(t, err)

	require.NoError(t, probe.Update(map[string]any{"x": 2}))
	assert.Equal(t, 2, sink.updates["x"])
}

func TestProbe_PreprocessingInOrder(t *testing.T) {
	sink := newFakeSink("p.x")
	probe, err := meterbus.NewProbe("p", meterbus.ProbeOptions{Sink: sink})
	require.NoError(t, err)

	double := func(v any) any { return v.(int) * 2 }
	addOne := func(v any) any { return v.(int) + 1 }
	require.NoError(t, probe.Update(map[string]any{"x": 3}, double, addOne))

	// (3*2)+1, not (3+1)*2
	assert.Equal(t, 7, sink.updates["p.x"])
}

func TestProbe_SkipsPreprocessingWhenNotMeasuring(t *testing.T) {
	sink := newFakeSink() // nothing measuring
	probe, err := meterbus.NewProbe("p", meterbus.ProbeOptions{Sink: sink})
	require.NoError(t, err)

	calls := 0
	counting := func(v any) any { calls++; return v }
	require.NoError(t, probe.Update(map[string]any{"x": 1}, counting))

	assert.Zero(t, calls, "preprocessing must not run for unobserved values")
	assert.Empty(t, sink.updates)
}

func TestProbe_NoSinkWarnsOnce(t *testing.T) {
	logger := &captureLogger{}
	probe, err := meterbus.NewProbe("p", meterbus.ProbeOptions{Logger: logger})
	require.NoError(t, err)

	require.NoError(t, probe.Update(map[string]any{"x": 1}))
	require.NoError(t, probe.Update(map[string]any{"x": 2}))
	assert.Equal(t, 1, logger.warnCount())
}

func TestProbe_SetSink(t *testing.T) {
	probe, err := meterbus.NewProbe("p", meterbus.ProbeOptions{})
	require.NoError(t, err)

	sink := newFakeSink("p.x")
	probe.SetSink(sink)
	require.NoError(t, probe.Update(map[string]any{"x": 9}))
	assert.Equal(t, 9, sink.updates["p.x"])
	assert.Equal(t, "p", probe.Name())
}
