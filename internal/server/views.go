package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"reboot-miniapp/internal/bridge"
	"reboot-miniapp/internal/form"
	"reboot-miniapp/internal/models"
	"reboot-miniapp/internal/screens"
	"reboot-miniapp/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"bootstrap", "loading", "register", "profile", "events", "gallery", "ticket", "closed"}

var funcs = template.FuncMap{
	"selected": func(value, current string) bool { return value == current },
}

var views = parseViews()

func parseViews() map[string]*template.Template {
	out := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		out[name] = template.Must(template.New("layout.html").Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/partials.html",
			"templates/"+name+".html",
		))
	}
	return out
}

// page is the data every view gets.
type page struct {
	Title         string
	Nav           string
	Bridge        bridgeView
	Notifications []screens.Notification
	// Redirect is followed after RedirectAfterMs, once notifications showed.
	Redirect        string
	RedirectAfterMs int64
	Data            any
}

// bridgeView is what the page replays on window.Telegram.WebApp.
type bridgeView struct {
	Host      bool
	Lifecycle bridge.Lifecycle
	Button    bridge.ButtonState
}

func bridgeState(h bridge.Handle) bridgeView {
	return bridgeView{Host: h.IsHost(), Lifecycle: h.Lifecycle(), Button: h.MainButton().State()}
}

type bootstrapView struct {
	Next string
}

type formView struct {
	Action       string
	Schema       string
	Values       form.Input
	Errors       map[string]string
	Control      screens.SubmitControl
	Experience   []form.Option
	Referral     []form.Option
	Registered   bool
	WithReferral bool
}

type eventsView struct {
	Items      []screens.EventItem
	Registered bool
}

type galleryView struct {
	Items     []models.Memory
	HasMore   bool
	MoreLabel string
	Loaded    bool
}

type ticketView struct {
	Reference string
	Result    screens.Verification
}

func (h *handlers) render(w http.ResponseWriter, status int, name string, p page) {
	t, ok := views[name]
	if !ok {
		h.log.Errorw("unknown view", "view", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		h.log.Errorw("render view", "view", name, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// screenPage fills the session-wide parts of a page: bridge replay and
// queued notifications.
func screenPage(s *session.Session, title, nav string, data any, extra ...screens.Notification) page {
	notes := s.TakeFlashes()
	notes = append(notes, extra...)
	return page{
		Title:         title,
		Nav:           nav,
		Bridge:        bridgeState(s.Identity().Handle()),
		Notifications: notes,
		Data:          data,
	}
}
