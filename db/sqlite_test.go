package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) {
	require.NoError(t, InitDB(filepath.Join(t.TempDir(), "test.db")))
	t.Cleanup(func() { _ = Close() })
}

func TestNotInitialized(t *testing.T) {
	require.NoError(t, Close())
	assert.False(t, Enabled())
	assert.ErrorIs(t, SaveTrainingLog(TrainingLog{}), ErrNotInitialized)
	_, err := LoadTrainingLog(10)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, SavePrediction(PredictionRecord{Selection: "odor=n"}), ErrNotInitialized)
	_, err = QueryPredictions(10)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInitDBFailureLeavesDisabled(t *testing.T) {
	require.NoError(t, Close())
	// a directory cannot hold the schema
	assert.Error(t, InitDB(t.TempDir()))
	assert.False(t, Enabled())
	assert.ErrorIs(t, SaveTrainingLog(TrainingLog{}), ErrNotInitialized)
}

func TestTrainingLog(t *testing.T) {
	openTestDB(t)
	assert.True(t, Enabled())

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, SaveTrainingLog(TrainingLog{ModelName: "decision_tree", Samples: 10, TrainedAt: older}))
	require.NoError(t, SaveTrainingLog(TrainingLog{
		ModelName:     "neural_network",
		Samples:       8124,
		DroppedRows:   1,
		Iterations:    2000,
		TrainingError: 0.004,
		Accuracy:      0.99,
		Duration:      1500 * time.Millisecond,
		TrainedAt:     older.Add(time.Hour),
	}))

	logs, err := LoadTrainingLog(10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "neural_network", logs[0].ModelName)
	assert.Equal(t, 8124, logs[0].Samples)
	assert.Equal(t, 1, logs[0].DroppedRows)
	assert.Equal(t, 1500*time.Millisecond, logs[0].Duration)
	assert.InDelta(t, 0.004, logs[0].TrainingError, 1e-12)
	assert.True(t, logs[0].TrainedAt.Equal(older.Add(time.Hour)))
	assert.Equal(t, "decision_tree", logs[1].ModelName)

	logs, err = LoadTrainingLog(1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestPredictions(t *testing.T) {
	openTestDB(t)
	assert.Error(t, SavePrediction(PredictionRecord{}))

	require.NoError(t, SavePrediction(PredictionRecord{
		Selection: "odor=f",
		Edible:    0.02,
		Poisonous: 0.98,
		Verdict:   "Likely poisonous!",
	}))
	records, err := QueryPredictions(5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "odor=f", records[0].Selection)
	assert.Equal(t, "Likely poisonous!", records[0].Verdict)
	assert.False(t, records[0].CreatedAt.IsZero())
}
