package delivery

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/Vovarama1992/go-utils/logger"
	json "github.com/goccy/go-json"
)

//go:embed templates/page.html
var templatesFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templatesFS, "templates/page.html"))

type pageData struct {
	View
	Initial template.JS
}

// GET /
// Каждая загрузка страницы получает свою сессию.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	v := buildView(s.Snapshot())

	initial, err := json.Marshal(v)
	if err != nil {
		h.log.Log(logger.LogEntry{Level: "error", Message: "marshal view", Error: err, Service: serviceName})
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, pageData{View: v, Initial: template.JS(initial)}); err != nil {
		h.log.Log(logger.LogEntry{Level: "error", Message: "render page", Error: err, Service: serviceName})
	}
}
