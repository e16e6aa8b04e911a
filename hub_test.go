package meterbus_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndrewDonelson/meterbus"
)

func TestHub_Defaults(t *testing.T) {
	hub := meterbus.NewHub(meterbus.HubConfig{})
	assert.Equal(t, "global", hub.Name())
	assert.Equal(t, -1, hub.Batch())
	assert.Equal(t, "", hub.Stage())
}

func TestHub_StageAndBatch(t *testing.T) {
	hub := meterbus.NewHub(meterbus.HubConfig{Name: "run"})
	assert.Equal(t, "run", hub.Name())

	hub.SetStage("benign")
	assert.Equal(t, "benign", hub.Stage())

	hub.SetBatch(5)
	assert.Equal(t, 5, hub.Batch())
	hub.IncrementBatch()
	assert.Equal(t, 6, hub.Batch())
}

func TestHub_IsMeasuring(t *testing.T) {
	hub := meterbus.NewHub(meterbus.HubConfig{})
	m := newMeter(t, "m", identityMetric, []string{"model.x[benign]"}, meterbus.MeterOptions{})
	hub.ConnectMeter(m)

	assert.False(t, hub.IsMeasuring("model.x"), "wrong stage")
	hub.SetStage("benign")
	assert.True(t, hub.IsMeasuring("model.x"))
	assert.False(t, hub.IsMeasuring("model.y"))
}

func TestHub_UpdateNoSubscribers(t *testing.T) {
	hub := meterbus.NewHub(meterbus.HubConfig{})
	err := hub.Update("model.x", 1)
	assert.ErrorIs(t, err, meterbus.ErrNoSubscribers)
}

func TestHub_UpdateTagsCurrentBatch(t *testing.T) {
	hub := meterbus.NewHub(meterbus.HubConfig{})
	m := newMeter(t, "m", identityMetric, []string{"model.x"}, meterbus.MeterOptions{})
	hub.ConnectMeter(m)

	hub.SetBatch(7)
	require.NoError(t, hub.Update("model.x", "v"))

	results, err := m.Results()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 7, results[0].Batch)
}

func TestHub_DuplicateConnectSingleDelivery(t *testing.T) {
	hub := meterbus.NewHub(meterbus.HubConfig{})
	m := newMeter(t, "m", identityMetric, []string{"model.x"}, meterbus.MeterOptions{})
	hub.ConnectMeter(m)
	hub.ConnectMeter(m)
	require.Len(t, hub.Meters(), 1)

	hub.SetBatch(0)
	require.NoError(t, hub.Update("model.x", 1))
	results, err := m.Results()
	require.NoError(t, err)
	assert.Len(t, results, 1, "duplicate connect must not duplicate delivery")
}

func TestHub_DisconnectMeter(t *testing.T) {
	hub := meterbus.NewHub(meterbus.HubConfig{})
	m := newMeter(t, "m", identityMetric, []string{"model.x"}, meterbus.MeterOptions{})
	hub.ConnectMeter(m)
	require.True(t, hub.IsMeasuring("model.x"))

	hub.DisconnectMeter(m)
	assert.False(t, hub.IsMeasuring("model.x"))
	assert.Empty(t, hub.Meters())
	assert.ErrorIs(t, hub.Update("model.x", 1), meterbus.ErrNoSubscribers)

	// disconnecting again is a no-op
	hub.DisconnectMeter(m)
}

func TestHub_WriterFanOutIsSymmetric(t *testing.T) {
	hub := meterbus.NewHub(meterbus.HubConfig{})

	early := &memWriter{}
	hub.AddWriter(early)

	m := newMeter(t, "m", identityMetric, []string{"model.x"}, meterbus.MeterOptions{})
	hub.ConnectMeter(m)

	late := &memWriter{}
	hub.AddWriter(late)

	hub.SetBatch(0)
	require.NoError(t, hub.Update("model.x", 1))

	assert.Len(t, early.all(), 1, "writer added before the meter")
	assert.Len(t, late.all(), 1, "writer added after the meter")
}

func TestHub_DuplicateWriterWarns(t *testing.T) {
	logger := &captureLogger{}
	hub := meterbus.NewHub(meterbus.HubConfig{Logger: logger})
	m := newMeter(t, "m", identityMetric, []string{"model.x"}, meterbus.MeterOptions{})
	hub.ConnectMeter(m)

	sink := &memWriter{}
	hub.AddWriter(sink)
	hub.AddWriter(sink)
	assert.Equal(t, 1, logger.warnCount())

	hub.SetBatch(0)
	require.NoError(t, hub.Update("model.x", 1))
	assert.Len(t, sink.all(), 1)
}

func TestHub_CloseIdempotent(t *testing.T) {
	hub := meterbus.NewHub(meterbus.HubConfig{})
	sink := &memWriter{}
	hub.AddWriter(sink)

	finalCalls := 0
	final := func([]meterbus.Record, map[string]any) (any, error) {
		finalCalls++
		return finalCalls, nil
	}
	m := newMeter(t, "m", identityMetric, []string{"model.x"}, meterbus.MeterOptions{Final: final})
	hub.ConnectMeter(m)

	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close())

	assert.Equal(t, 1, sink.closes, "writer closed exactly once")
	assert.Equal(t, 1, finalCalls, "finalizer invoked exactly once")
}

func TestHub_CloseSurvivesFinalizerFailure(t *testing.T) {
	hub := meterbus.NewHub(meterbus.HubConfig{})
	sink := &memWriter{}
	hub.AddWriter(sink)

	boom := errors.New("finalizer exploded")
	bad := newMeter(t, "bad", identityMetric, []string{"a.x"},
		meterbus.MeterOptions{Final: func([]meterbus.Record, map[string]any) (any, error) {
			return nil, boom
		}})
	hub.ConnectMeter(bad)

	err := hub.Close()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, sink.closes, "writers still closed after finalizer failure")
}

func TestHub_MetricErrorSurfacesThroughUpdate(t *testing.T) {
	boom := errors.New("metric exploded")
	metric := func([]any, map[string]any) (any, error) { return nil, boom }
	hub := meterbus.NewHub(meterbus.HubConfig{})
	m := newMeter(t, "m", metric, []string{"model.x"}, meterbus.MeterOptions{})
	hub.ConnectMeter(m)

	hub.SetBatch(0)
	assert.ErrorIs(t, hub.Update("model.x", 1), boom)
}
