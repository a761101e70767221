// Package server serves the mini app screens to the Telegram WebApp host.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"reboot-miniapp/internal/config"
	"reboot-miniapp/internal/gate"
	"reboot-miniapp/internal/screens"
	"reboot-miniapp/internal/session"
)

// Backend is the part of the registration API the screens use.
type Backend interface {
	screens.Registrar
	screens.ProfileAPI
	screens.EventsAPI
	screens.GalleryAPI
	screens.TicketAPI
}

type Deps struct {
	API      Backend
	Sessions *session.Store
	// Notifier is optional.
	Notifier screens.Notifier
	Log      *zap.SugaredLogger
}

type handlers struct {
	cfg      config.Config
	api      Backend
	sessions *session.Store
	gate     *gate.Gate
	notifier screens.Notifier
	log      *zap.SugaredLogger
}

func New(cfg config.Config, deps Deps) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           Router(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func Router(cfg config.Config, deps Deps) http.Handler {
	log := deps.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	h := &handlers{
		cfg:      cfg,
		api:      deps.API,
		sessions: deps.Sessions,
		gate:     gate.New(deps.API, cfg.GateTimeout, log),
		notifier: deps.Notifier,
		log:      log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware(log))
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", bridgeHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/launch", h.launch)

	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)
		r.Get("/", h.landing)
		r.Post("/register", h.register)
		r.Post("/validate/{schema}/{field}", h.validateField)
		r.Get("/profile", h.profile)
		r.Post("/profile", h.updateProfile)
		r.Get("/events", h.events)
		r.Post("/events/{id}/signup", h.signup)
		r.Get("/gallery", h.gallery)
		r.Post("/gallery/more", h.galleryMore)
		r.Get("/ticket", h.ticket)
		r.Get("/ticket/{reference}", h.ticket)
		r.Post("/close", h.close)
	})

	return r
}
