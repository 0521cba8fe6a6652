// Package session holds the lifecycle of one trained model and the user's
// current attribute selection.
//
// A Session starts Idle, moves to Loading when Start is called and settles in
// Trained or LoadFailed. Both settled states are terminal. The model is
// assigned exactly once, on entering Trained, and is read-only afterwards.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"mushroomnet/dataset"
	"mushroomnet/ml"
)

// State is the lifecycle position of a Session.
type State int

const (
	Idle State = iota
	Loading
	Trained
	LoadFailed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Trained:
		return "trained"
	case LoadFailed:
		return "load_failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{Idle, Loading, Trained, LoadFailed} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

const (
	StatusIdle       = ""
	StatusLoading    = "Loading and training..."
	StatusTrained    = "Model trained."
	StatusLoadFailed = "Failed to load dataset."
)

// Outcome classifies the current prediction result.
type Outcome string

const (
	OutcomePending          Outcome = "pending"
	OutcomeUnavailable      Outcome = "unavailable"
	OutcomePredicted        Outcome = "predicted"
	OutcomeUnrecognized     Outcome = "unrecognized"
	OutcomeInvalidSelection Outcome = "invalid_selection"
)

var ErrAlreadyStarted = errors.New("session already started")

// UnknownFeatureError is returned when a selection names a column that is
// not a feature.
type UnknownFeatureError struct {
	Column string
}

func (e *UnknownFeatureError) Error() string {
	return fmt.Sprintf("unknown feature %q", e.Column)
}

// Result is the prediction state shown to the user. Selection is only set on
// results returned by Select and holds the selection the outcome was computed for.
type Result struct {
	Outcome    Outcome           `json:"outcome"`
	Prediction *ml.Prediction    `json:"prediction,omitempty"`
	Selection  dataset.Selection `json:"-"`
	Err        error             `json:"-"`
}

// Loader fetches and parses the training rows. dropped counts rows that had
// the wrong number of fields.
type Loader func(ctx context.Context) (rows []dataset.Row, dropped int, err error)

// Training summarizes a completed load.
type Training struct {
	Model       string        `json:"model"`
	Samples     int           `json:"samples"`
	DroppedRows int           `json:"dropped_rows"`
	Iterations  int           `json:"iterations"`
	Error       float64       `json:"error"`
	Duration    time.Duration `json:"duration"`
	TrainedAt   time.Time     `json:"trained_at"`
}

// Options tune a Session.
type Options struct {
	Train     ml.TrainOptions
	CacheSize int
	Logger    *zap.Logger
}

// Session is safe for concurrent use.
type Session struct {
	mu        sync.RWMutex
	state     State
	status    string
	selection dataset.Selection
	model     ml.Model
	tables    *ml.ValueTables
	training  *Training
	loadErr   error
	result    Result
	listeners []Listener
	done      chan struct{}

	opts   Options
	cache  *lru.Cache[string, ml.Prediction]
	logger *zap.Logger
}

// New returns an Idle session holding a copy of defaults as its selection.
func New(defaults dataset.Selection, opts Options) (*Session, error) {
	s := &Session{
		state:     Idle,
		status:    StatusIdle,
		selection: defaults.Clone(),
		result:    Result{Outcome: OutcomePending},
		done:      make(chan struct{}),
		opts:      opts,
		logger:    opts.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, ml.Prediction](opts.CacheSize)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	return s, nil
}

// Start moves the session to Loading and trains in the background. The
// session settles in Trained or LoadFailed; Done is closed when it does.
func (s *Session) Start(ctx context.Context, loader Loader, trainer ml.Trainer) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = Loading
	s.status = StatusLoading
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners, Event{Type: EventStatus, State: Loading, Status: StatusLoading})
	go s.load(ctx, loader, trainer)
	return nil
}

// Done is closed once the session leaves Loading.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) load(ctx context.Context, loader Loader, trainer ml.Trainer) {
	started := time.Now()
	model, tables, training, err := s.train(ctx, loader, trainer)
	if err != nil {
		s.logger.Error("failed to load dataset", zap.Error(err))
		s.fail(err)
		return
	}
	training.Duration = time.Since(started)
	training.TrainedAt = time.Now()
	s.logger.Info("model trained",
		zap.String("model", training.Model),
		zap.Int("samples", training.Samples),
		zap.Int("dropped_rows", training.DroppedRows),
		zap.Int("iterations", training.Iterations),
		zap.Float64("error", training.Error),
		zap.Duration("duration", training.Duration))
	s.complete(model, tables, training)
}

func (s *Session) train(ctx context.Context, loader Loader, trainer ml.Trainer) (ml.Model, *ml.ValueTables, *Training, error) {
	rows, dropped, err := loader(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	tables, err := ml.BuildValueTables(rows, dataset.Columns)
	if err != nil {
		return nil, nil, nil, err
	}
	samples, err := ml.EncodeSamples(rows, tables)
	if err != nil {
		return nil, nil, nil, err
	}

	opts := s.opts.Train
	progress := opts.Progress
	opts.Progress = func(p ml.Progress) {
		s.logger.Debug("training progress", zap.Int("iteration", p.Iteration), zap.Float64("error", p.Error))
		s.emit(Event{Type: EventProgress, State: Loading, Progress: &p})
		if progress != nil {
			progress(p)
		}
	}
	model, stats, err := trainer.Train(ctx, samples, tables, opts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error training %s: %w", trainer.Name(), err)
	}
	if model == nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", trainer.Name(), ml.ErrNotTrained)
	}
	return model, tables, &Training{
		Model:       trainer.Name(),
		Samples:     len(samples),
		DroppedRows: dropped,
		Iterations:  stats.Iterations,
		Error:       stats.Error,
	}, nil
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.state = LoadFailed
	s.status = StatusLoadFailed
	s.loadErr = err
	s.result = Result{Outcome: OutcomeUnavailable}
	listeners := s.snapshotListeners()
	s.mu.Unlock()
	close(s.done)

	notify(listeners, Event{Type: EventStatus, State: LoadFailed, Status: StatusLoadFailed})
	notify(listeners, Event{Type: EventPrediction, State: LoadFailed, Result: &Result{Outcome: OutcomeUnavailable}})
}

func (s *Session) complete(model ml.Model, tables *ml.ValueTables, training *Training) {
	s.mu.Lock()
	s.state = Trained
	s.status = StatusTrained
	s.model = model
	s.tables = tables
	s.training = training
	s.result = s.predictLocked()
	result := s.result
	selection := s.selection.Clone()
	listeners := s.snapshotListeners()
	s.mu.Unlock()
	close(s.done)

	notify(listeners, Event{Type: EventStatus, State: Trained, Status: StatusTrained})
	notify(listeners, Event{Type: EventPrediction, State: Trained, Selection: selection, Result: &result})
}

// Select replaces the code for one feature column. When the model is trained
// the prediction is recomputed before Select returns.
func (s *Session) Select(column, code string) (Result, error) {
	if !isFeature(column) {
		return s.Result(), &UnknownFeatureError{Column: column}
	}

	s.mu.Lock()
	next := s.selection.Clone()
	next[column] = code
	s.selection = next
	if s.state == Trained {
		s.result = s.predictLocked()
	}
	result := s.result
	state := s.state
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	notify(listeners, Event{Type: EventPrediction, State: state, Selection: next.Clone(), Result: &result})
	result.Selection = next.Clone()
	return result, nil
}

// predictLocked runs inference for the current selection. s.mu must be held.
func (s *Session) predictLocked() Result {
	key := s.selection.Key()
	if s.cache != nil {
		if prediction, ok := s.cache.Get(key); ok {
			return Result{Outcome: OutcomePredicted, Prediction: &prediction}
		}
	}
	vector, err := ml.EncodeQuery(s.selection, s.tables)
	if err != nil {
		s.logger.Warn("invalid selection", zap.String("selection", key), zap.Error(err))
		return Result{Outcome: OutcomeInvalidSelection, Err: err}
	}
	prediction, ok := ml.RunInference(s.model, vector)
	if !ok {
		s.logger.Warn("unrecognized model output", zap.String("selection", key))
		return Result{Outcome: OutcomeUnrecognized}
	}
	if s.cache != nil {
		s.cache.Add(key, prediction)
	}
	return Result{Outcome: OutcomePredicted, Prediction: &prediction}
}

// Result returns the outcome for the current selection.
func (s *Session) Result() Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Selection returns a copy of the current selection.
func (s *Session) Selection() dataset.Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection.Clone()
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Status returns the user-facing status message.
func (s *Session) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LoadErr returns the error that moved the session to LoadFailed.
func (s *Session) LoadErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

// Training returns the summary of the completed load, or nil before Trained.
func (s *Session) Training() *Training {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.training == nil {
		return nil
	}
	t := *s.training
	return &t
}

// Known reports whether code was seen for column during training. Before
// training every code is reported unknown.
func (s *Session) Known(column, code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tables == nil {
		return false
	}
	table, ok := s.tables.Column(column)
	if !ok {
		return false
	}
	_, ok = table.Lookup(code)
	return ok
}

func isFeature(column string) bool {
	if column == dataset.LabelColumn {
		return false
	}
	for _, c := range dataset.Columns {
		if c == column {
			return true
		}
	}
	return false
}
