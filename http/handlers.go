package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"mushroomnet/dataset"
	"mushroomnet/db"
	"mushroomnet/logging"
	"mushroomnet/ml"
	"mushroomnet/monitoring"
	"mushroomnet/session"
)

var (
	currentSession *session.Session
	monitor        *monitoring.RealtimeMonitor
)

// SetSession installs the session served by the handlers.
func SetSession(s *session.Session) {
	currentSession = s
}

// SetMonitor installs the websocket monitor behind /api/ws.
func SetMonitor(m *monitoring.RealtimeMonitor) {
	monitor = m
}

// RegisterHandlers adds the JSON API routes to mux.
func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("GET /api/status", withSession(handleStatus))
	mux.HandleFunc("GET /api/features", withSession(handleFeatures))
	mux.HandleFunc("GET /api/selection", withSession(handleSelection))
	mux.HandleFunc("PUT /api/selection/{feature}", withSession(handleSelect))
	mux.HandleFunc("GET /api/prediction", withSession(handlePrediction))
	mux.HandleFunc("GET /api/training", withSession(handleTraining))
	mux.HandleFunc("GET /api/predictions", handlePredictions)
	mux.HandleFunc("GET /api/ws", handleWebSocket)
}

// withSession answers 503 until SetSession has been called.
func withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if currentSession == nil {
			respondError(w, http.StatusServiceUnavailable, "session not initialized")
			return
		}
		next(w, r)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	State    session.State     `json:"state"`
	Status   string            `json:"status"`
	Training *session.Training `json:"training,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func handleStatus(w http.ResponseWriter, r *http.Request) {
	response := statusResponse{
		State:    currentSession.State(),
		Status:   currentSession.Status(),
		Training: currentSession.Training(),
	}
	if err := currentSession.LoadErr(); err != nil {
		response.Error = err.Error()
	}
	respondJSON(w, http.StatusOK, response)
}

type optionView struct {
	Label    string `json:"label"`
	Value    string `json:"value"`
	Known    bool   `json:"known"`
	Selected bool   `json:"selected"`
}

type featureView struct {
	Name     string       `json:"name"`
	Title    string       `json:"title"`
	Selected string       `json:"selected"`
	Options  []optionView `json:"options"`
}

// featureViews describes every selector. Known is only meaningful once the
// model is trained.
func featureViews(s *session.Session) []featureView {
	selection := s.Selection()
	features := make([]featureView, 0, len(dataset.Columns)-1)
	for _, column := range dataset.FeatureColumns() {
		view := featureView{Name: column, Title: dataset.Title(column), Selected: selection[column]}
		for _, option := range dataset.Options[column] {
			view.Options = append(view.Options, optionView{
				Label:    option.Label,
				Value:    option.Value,
				Known:    s.Known(column, option.Value),
				Selected: option.Value == selection[column],
			})
		}
		features = append(features, view)
	}
	return features
}

func handleFeatures(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, featureViews(currentSession))
}

func handleSelection(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, currentSession.Selection())
}

type percentages struct {
	Edible    int `json:"edible"`
	Poisonous int `json:"poisonous"`
}

type predictionResponse struct {
	State      session.State   `json:"state"`
	Outcome    session.Outcome `json:"outcome"`
	Prediction *ml.Prediction  `json:"prediction,omitempty"`
	Percent    *percentages    `json:"percent,omitempty"`
	Verdict    string          `json:"verdict,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func newPredictionResponse(state session.State, result session.Result) predictionResponse {
	response := predictionResponse{State: state, Outcome: result.Outcome}
	if result.Prediction != nil {
		p := *result.Prediction
		response.Prediction = &p
		response.Percent = &percentages{Edible: ml.Percent(p.Edible), Poisonous: ml.Percent(p.Poisonous)}
		response.Verdict = p.Verdict()
	}
	if result.Err != nil {
		response.Error = result.Err.Error()
	}
	return response
}

func handlePrediction(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newPredictionResponse(currentSession.State(), currentSession.Result()))
}

type selectRequest struct {
	Value string `json:"value"`
}

func handleSelect(w http.ResponseWriter, r *http.Request) {
	feature := r.PathValue("feature")
	options, ok := dataset.Options[feature]
	if !ok {
		respondError(w, http.StatusNotFound, "unknown feature "+feature)
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Value == "" {
		respondError(w, http.StatusBadRequest, "value is required")
		return
	}
	if !hasOption(options, req.Value) {
		respondError(w, http.StatusUnprocessableEntity, "unknown value "+strconv.Quote(req.Value)+" for "+feature)
		return
	}

	result, err := currentSession.Select(feature, req.Value)
	var unknown *session.UnknownFeatureError
	if errors.As(err, &unknown) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if result.Outcome == session.OutcomePredicted {
		recordPrediction(result.Selection, *result.Prediction)
	}

	status := http.StatusOK
	if result.Outcome == session.OutcomeInvalidSelection {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, newPredictionResponse(currentSession.State(), result))
}

func recordPrediction(selection dataset.Selection, p ml.Prediction) {
	if !db.Enabled() {
		return
	}
	err := db.SavePrediction(db.PredictionRecord{
		Selection: selection.Key(),
		Edible:    p.Edible,
		Poisonous: p.Poisonous,
		Verdict:   p.Verdict(),
	})
	if err != nil {
		logging.Logger().Warn("failed to record prediction", zap.Error(err))
	}
}

func hasOption(options []dataset.Option, value string) bool {
	for _, option := range options {
		if option.Value == value {
			return true
		}
	}
	return false
}

func handleTraining(w http.ResponseWriter, r *http.Request) {
	history := []db.TrainingLog{}
	if db.Enabled() {
		logs, err := db.LoadTrainingLog(queryLimit(r, 20))
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		history = logs
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"current": currentSession.Training(),
		"history": history,
	})
}

func handlePredictions(w http.ResponseWriter, r *http.Request) {
	if !db.Enabled() {
		respondJSON(w, http.StatusOK, []db.PredictionRecord{})
		return
	}
	records, err := db.QueryPredictions(queryLimit(r, 50))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if monitor == nil {
		respondError(w, http.StatusServiceUnavailable, "realtime monitor not running")
		return
	}
	monitor.Hub().HandleWebSocket(w, r)
}

func queryLimit(r *http.Request, fallback int) int {
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		return l
	}
	return fallback
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
