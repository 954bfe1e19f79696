package httpapp

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/psptunes/psptunes/internal/downloader"
	"github.com/psptunes/psptunes/internal/logger"
	"github.com/psptunes/psptunes/internal/songapi"
	"github.com/psptunes/psptunes/internal/worker"
	"github.com/psptunes/psptunes/internal/ytdlp"
	"github.com/psptunes/psptunes/web"
)

type Handler struct {
	Songs      songapi.Provider
	Downloader *downloader.Downloader
	Pool       *worker.Pool
	Player     *ytdlp.Client
	Log        *logger.Logger
}

func NewHandler(songs songapi.Provider, dl *downloader.Downloader, pool *worker.Pool, player *ytdlp.Client, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		Songs:      songs,
		Downloader: dl,
		Pool:       pool,
		Player:     player,
		Log:        log.WithComponent("http"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.IndexPage)
	r.Get("/search", h.SearchPage)
	r.Get("/download/{id}", h.DownloadPage)
	r.Get("/download/{id}/ready", h.DownloadReadyPage)
	r.Get("/download/{id}/file", h.DownloadFile)
	r.Get("/player/{id}", h.PlayerPage)
}

func (h *Handler) RenderPage(w http.ResponseWriter, pageTmpl string, data interface{}) {
	tmpl, err := template.ParseFS(web.Files, "templates/base.html", "templates/"+pageTmpl)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		http.Error(w, err.Error(), 500)
	}
}

// RenderError shows the shared error page. Keeps the browser on a friendly
// page instead of a bare 500.
func (h *Handler) RenderError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	h.RenderPage(w, "error.html", map[string]interface{}{
		"Message": message,
	})
}
