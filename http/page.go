package http

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"go.uber.org/zap"

	"mushroomnet/logging"
	"mushroomnet/session"
)

//go:embed templates/index.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type pageData struct {
	Status     string
	Trained    bool
	Features   []featureView
	Prediction predictionResponse
}

// RegisterPage adds the selector page and its static assets to mux.
func RegisterPage(mux *http.ServeMux) {
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	mux.HandleFunc("GET /{$}", withSession(handleIndex))
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	state := currentSession.State()
	data := pageData{
		Status:     currentSession.Status(),
		Trained:    state == session.Trained,
		Features:   featureViews(currentSession),
		Prediction: newPredictionResponse(state, currentSession.Result()),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		logging.Logger().Error("failed to render page", zap.Error(err))
	}
}
