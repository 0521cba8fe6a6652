package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mushroomnet/dataset"
	"mushroomnet/ml"
)

func rowFor(class string, selection dataset.Selection) dataset.Row {
	row := make(dataset.Row, len(dataset.Columns))
	for i, column := range dataset.Columns {
		if column == dataset.LabelColumn {
			row[i] = class
		} else {
			row[i] = selection[column]
		}
	}
	return row
}

func testRows() []dataset.Row {
	edible := dataset.DefaultSelection()
	poisonous := dataset.DefaultSelection()
	poisonous["odor"] = "f"
	return []dataset.Row{rowFor("e", edible), rowFor("p", poisonous)}
}

func staticLoader(rows []dataset.Row, dropped int) Loader {
	return func(context.Context) ([]dataset.Row, int, error) {
		return rows, dropped, nil
	}
}

// odorModel answers poisonous whenever odor is encoded as 1.
type odorModel struct {
	calls *int
	mu    *sync.Mutex
	pair  bool
	empty bool
}

func (m odorModel) Predict(input map[string]float64) ml.RawOutput {
	m.mu.Lock()
	*m.calls++
	m.mu.Unlock()
	if m.empty {
		return nil
	}
	p := 0.05
	if input["odor"] == 1 {
		p = 0.95
	}
	if m.pair {
		return ml.PairOutput{1 - p, p}
	}
	return ml.NamedOutput{ml.LabelEdible: 1 - p, ml.LabelPoisonous: p}
}

type stubTrainer struct {
	model   odorModel
	err     error
	release chan struct{}
	samples int
}

func newStubTrainer() *stubTrainer {
	return &stubTrainer{model: odorModel{calls: new(int), mu: &sync.Mutex{}}}
}

func (t *stubTrainer) Name() string { return "stub" }

func (t *stubTrainer) Train(ctx context.Context, samples []ml.Sample, _ *ml.ValueTables, opts ml.TrainOptions) (ml.Model, ml.TrainStats, error) {
	if t.release != nil {
		<-t.release
	}
	t.samples = len(samples)
	if opts.Progress != nil {
		opts.Progress(ml.Progress{Iteration: 10, Error: 0.2})
	}
	if t.err != nil {
		return nil, ml.TrainStats{}, t.err
	}
	return t.model, ml.TrainStats{Iterations: 10, Error: 0.01}, nil
}

func (t *stubTrainer) calls() int {
	t.model.mu.Lock()
	defer t.model.mu.Unlock()
	return *t.model.calls
}

func newSession(t *testing.T, cacheSize int) *Session {
	s, err := New(dataset.DefaultSelection(), Options{Train: ml.DefaultTrainOptions(), CacheSize: cacheSize})
	require.NoError(t, err)
	return s
}

func waitDone(t *testing.T, s *Session) {
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not settle")
	}
}

func TestNewSessionIsIdle(t *testing.T) {
	s := newSession(t, 0)
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, StatusIdle, s.Status())
	assert.Equal(t, dataset.DefaultSelection(), s.Selection())
	assert.Equal(t, OutcomePending, s.Result().Outcome)
	assert.Nil(t, s.Training())
}

func TestStartTrains(t *testing.T) {
	s := newSession(t, 0)
	trainer := newStubTrainer()
	require.NoError(t, s.Start(context.Background(), staticLoader(testRows(), 3), trainer))
	waitDone(t, s)

	assert.Equal(t, Trained, s.State())
	assert.Equal(t, StatusTrained, s.Status())
	assert.Equal(t, 2, trainer.samples)

	result := s.Result()
	require.Equal(t, OutcomePredicted, result.Outcome)
	assert.False(t, result.Prediction.IsPoisonous())

	training := s.Training()
	require.NotNil(t, training)
	assert.Equal(t, "stub", training.Model)
	assert.Equal(t, 2, training.Samples)
	assert.Equal(t, 3, training.DroppedRows)
	assert.Equal(t, 10, training.Iterations)

	assert.True(t, s.Known("odor", "f"))
	assert.False(t, s.Known("odor", "p"))
	assert.False(t, s.Known("class", "e"))
}

func TestStartTwice(t *testing.T) {
	s := newSession(t, 0)
	require.NoError(t, s.Start(context.Background(), staticLoader(testRows(), 0), newStubTrainer()))
	assert.ErrorIs(t, s.Start(context.Background(), staticLoader(testRows(), 0), newStubTrainer()), ErrAlreadyStarted)
	waitDone(t, s)
	assert.ErrorIs(t, s.Start(context.Background(), staticLoader(testRows(), 0), newStubTrainer()), ErrAlreadyStarted)
}

func TestLoadFailure(t *testing.T) {
	loadErr := errors.New("connection refused")
	s := newSession(t, 0)
	require.NoError(t, s.Start(context.Background(), func(context.Context) ([]dataset.Row, int, error) {
		return nil, 0, loadErr
	}, newStubTrainer()))
	waitDone(t, s)

	assert.Equal(t, LoadFailed, s.State())
	assert.Equal(t, StatusLoadFailed, s.Status())
	assert.ErrorIs(t, s.LoadErr(), loadErr)
	assert.Equal(t, OutcomeUnavailable, s.Result().Outcome)

	result, err := s.Select("odor", "f")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnavailable, result.Outcome)
	assert.Equal(t, "f", s.Selection()["odor"])
}

func TestEmptyDatasetFails(t *testing.T) {
	s := newSession(t, 0)
	require.NoError(t, s.Start(context.Background(), staticLoader(nil, 5), newStubTrainer()))
	waitDone(t, s)
	assert.Equal(t, LoadFailed, s.State())
	assert.ErrorIs(t, s.LoadErr(), ml.ErrEmptyDataset)
}

func TestTrainingFailure(t *testing.T) {
	s := newSession(t, 0)
	trainer := newStubTrainer()
	trainer.err = errors.New("diverged")
	require.NoError(t, s.Start(context.Background(), staticLoader(testRows(), 0), trainer))
	waitDone(t, s)
	assert.Equal(t, LoadFailed, s.State())
	assert.ErrorIs(t, s.LoadErr(), trainer.err)
}

func TestSelectWhileLoading(t *testing.T) {
	s := newSession(t, 0)
	trainer := newStubTrainer()
	trainer.release = make(chan struct{})
	require.NoError(t, s.Start(context.Background(), staticLoader(testRows(), 0), trainer))
	assert.Equal(t, Loading, s.State())
	assert.Equal(t, StatusLoading, s.Status())

	result, err := s.Select("odor", "f")
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, result.Outcome)
	assert.Zero(t, trainer.calls())

	close(trainer.release)
	waitDone(t, s)
	result = s.Result()
	require.Equal(t, OutcomePredicted, result.Outcome)
	assert.True(t, result.Prediction.IsPoisonous())
}

func TestSelectRecomputes(t *testing.T) {
	s := newSession(t, 0)
	trainer := newStubTrainer()
	require.NoError(t, s.Start(context.Background(), staticLoader(testRows(), 0), trainer))
	waitDone(t, s)

	result, err := s.Select("odor", "f")
	require.NoError(t, err)
	require.Equal(t, OutcomePredicted, result.Outcome)
	assert.Equal(t, "Likely poisonous!", result.Prediction.Verdict())

	result, err = s.Select("odor", "n")
	require.NoError(t, err)
	assert.Equal(t, "Likely edible!", result.Prediction.Verdict())
	assert.Equal(t, 3, trainer.calls())
}

func TestSelectUnknownFeature(t *testing.T) {
	s := newSession(t, 0)
	before := s.Selection()
	_, err := s.Select("colour", "n")
	var unknown *UnknownFeatureError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "colour", unknown.Column)

	_, err = s.Select(dataset.LabelColumn, "e")
	assert.Error(t, err)
	assert.Equal(t, before, s.Selection())
}

func TestSelectUnknownCode(t *testing.T) {
	s := newSession(t, 0)
	require.NoError(t, s.Start(context.Background(), staticLoader(testRows(), 0), newStubTrainer()))
	waitDone(t, s)

	result, err := s.Select("odor", "p")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalidSelection, result.Outcome)
	assert.Nil(t, result.Prediction)
	var unknown *ml.UnknownCategoryError
	require.ErrorAs(t, result.Err, &unknown)
	assert.Equal(t, "odor", unknown.Column)
}

func TestUnrecognizedOutput(t *testing.T) {
	s := newSession(t, 0)
	trainer := newStubTrainer()
	trainer.model.empty = true
	require.NoError(t, s.Start(context.Background(), staticLoader(testRows(), 0), trainer))
	waitDone(t, s)
	assert.Equal(t, Trained, s.State())
	assert.Equal(t, OutcomeUnrecognized, s.Result().Outcome)
}

func TestPairOutput(t *testing.T) {
	s := newSession(t, 0)
	trainer := newStubTrainer()
	trainer.model.pair = true
	require.NoError(t, s.Start(context.Background(), staticLoader(testRows(), 0), trainer))
	waitDone(t, s)
	result := s.Result()
	require.Equal(t, OutcomePredicted, result.Outcome)
	assert.InDelta(t, 0.95, result.Prediction.Edible, 1e-9)
	assert.InDelta(t, 0.05, result.Prediction.Poisonous, 1e-9)
}

func TestSelectResultCarriesItsSelection(t *testing.T) {
	s := newSession(t, 0)
	require.NoError(t, s.Start(context.Background(), staticLoader(testRows(), 0), newStubTrainer()))
	waitDone(t, s)

	foul, err := s.Select("odor", "f")
	require.NoError(t, err)
	_, err = s.Select("odor", "n")
	require.NoError(t, err)

	assert.Equal(t, "f", foul.Selection["odor"])
	assert.Equal(t, "n", s.Selection()["odor"])
	assert.Nil(t, s.Result().Selection)
}

func TestCache(t *testing.T) {
	s := newSession(t, 8)
	trainer := newStubTrainer()
	require.NoError(t, s.Start(context.Background(), staticLoader(testRows(), 0), trainer))
	waitDone(t, s)
	first := s.Result()

	_, err := s.Select("odor", "f")
	require.NoError(t, err)
	again, err := s.Select("odor", "n")
	require.NoError(t, err)
	assert.Equal(t, first.Prediction, again.Prediction)
	assert.Equal(t, 2, trainer.calls())
}

func TestEvents(t *testing.T) {
	s := newSession(t, 0)
	var (
		mu     sync.Mutex
		events []Event
	)
	s.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})
	require.NoError(t, s.Start(context.Background(), staticLoader(testRows(), 0), newStubTrainer()))
	waitDone(t, s)
	_, err := s.Select("odor", "f")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	var types []EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []EventType{EventStatus, EventProgress, EventStatus, EventPrediction, EventPrediction}, types)
	assert.Equal(t, StatusLoading, events[0].Status)
	assert.Equal(t, 10, events[1].Progress.Iteration)
	assert.Equal(t, StatusTrained, events[2].Status)
	assert.Equal(t, "f", events[4].Selection["odor"])
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "trained", Trained.String())
	assert.Equal(t, "load_failed", LoadFailed.String())

	var state State
	require.NoError(t, state.UnmarshalText([]byte("trained")))
	assert.Equal(t, Trained, state)
	assert.Error(t, state.UnmarshalText([]byte("ready")))
}

type nilTrainer struct{}

func (nilTrainer) Name() string { return "nil" }

func (nilTrainer) Train(context.Context, []ml.Sample, *ml.ValueTables, ml.TrainOptions) (ml.Model, ml.TrainStats, error) {
	return nil, ml.TrainStats{}, nil
}

func TestTrainerWithoutModel(t *testing.T) {
	s := newSession(t, 0)
	require.NoError(t, s.Start(context.Background(), staticLoader(testRows(), 0), nilTrainer{}))
	waitDone(t, s)
	assert.Equal(t, LoadFailed, s.State())
	assert.ErrorIs(t, s.LoadErr(), ml.ErrNotTrained)
}
