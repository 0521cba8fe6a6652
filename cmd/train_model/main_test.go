package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mushroomnet/dataset"
	"mushroomnet/db"
	"mushroomnet/ml"
)

func writeDataset(t *testing.T, path string, n int) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		selection := dataset.DefaultSelection()
		class := "e"
		if i%2 == 1 {
			class = "p"
			selection["odor"] = "f"
		}
		fields := []string{class}
		for _, column := range dataset.FeatureColumns() {
			fields = append(fields, selection[column])
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteByte('\n')
	}
	b.WriteString("e,x\n")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
}

func testConfig(t *testing.T) trainConfig {
	dir := t.TempDir()
	data := filepath.Join(dir, "agaricus-lepiota.data")
	writeDataset(t, data, 40)
	opts := ml.DefaultTrainOptions()
	opts.Log = false
	return trainConfig{
		Data:      data,
		ModelType: ml.ModelDecisionTree,
		TestRatio: 0.25,
		DBPath:    filepath.Join(dir, "train.db"),
		Options:   opts,
	}
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, &out))

	assert.Contains(t, out.String(), "model=decision_tree")
	assert.Contains(t, out.String(), "test_samples=10 skipped=0 dropped_rows=1")
	assert.Contains(t, out.String(), "accuracy=1.00")

	require.NoError(t, db.InitDB(cfg.DBPath))
	defer db.Close()
	logs, err := db.LoadTrainingLog(10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, ml.ModelDecisionTree, logs[0].ModelName)
	assert.Equal(t, 1.0, logs[0].Accuracy)
}

func TestRunNeuralNetworkWithProgress(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBPath = ""
	cfg.ModelType = ml.ModelNeuralNetwork
	cfg.Options.Iterations = 20
	cfg.Options.Log = true
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, &out))
	assert.Contains(t, out.String(), "Training neural_network")
	assert.Contains(t, out.String(), "model=neural_network")
}

func TestRunErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.ModelType = "svm"
	assert.Error(t, run(context.Background(), cfg, &bytes.Buffer{}))

	cfg = testConfig(t)
	cfg.Data = filepath.Join(t.TempDir(), "missing.data")
	assert.Error(t, run(context.Background(), cfg, &bytes.Buffer{}))
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchRetrains(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBPath = ""
	cfg.Watch = true

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, out) }()

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "model=") == 1
	}, 5*time.Second, 20*time.Millisecond)
	// give the watcher time to register before touching the file
	time.Sleep(100 * time.Millisecond)
	writeDataset(t, cfg.Data, 60)

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "model=") >= 2
	}, 5*time.Second, 20*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
