// Package router assembles the chi route tree.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lumohealth/intake-ai-platform/internal/api/handlers"
	httpmiddleware "github.com/lumohealth/intake-ai-platform/internal/http/middleware"
	"github.com/lumohealth/intake-ai-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger               *logging.Logger
	PatientsHandler      *handlers.PatientsHandler
	ChatHandler          *handlers.ChatHandler
	ConsultationsHandler *handlers.ConsultationsHandler
	KnowledgeHandler     *handlers.KnowledgeHandler
	CopilotHandler       *handlers.CopilotHandler
	DoctorAuthSecret     string
	MetricsHandler       http.Handler
	CORSAllowedOrigins   []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (patient chat, payment links, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		public.Route("/patient", func(r chi.Router) {
			r.Get("/pay/{token}", cfg.ConsultationsHandler.Pay)
			r.Route("/{patientID}", func(r chi.Router) {
				r.Get("/messages", cfg.ChatHandler.History)
				r.Post("/messages", cfg.ChatHandler.PostMessage)
			})
		})
	})

	// Doctor console routes (protected by JWT)
	r.Route("/doctor", func(doctor chi.Router) {
		doctor.Use(httpmiddleware.DoctorJWT(cfg.DoctorAuthSecret))

		doctor.Route("/patients", func(r chi.Router) {
			r.Get("/", cfg.PatientsHandler.List)
			r.Post("/", cfg.PatientsHandler.Create)
			r.Get("/chats", cfg.PatientsHandler.ChatList)
			r.Route("/{patientID}", func(r chi.Router) {
				r.Get("/", cfg.PatientsHandler.Get)
				r.Put("/", cfg.PatientsHandler.Update)
				r.Delete("/", cfg.PatientsHandler.Delete)
				r.Post("/import", cfg.PatientsHandler.Import)
				r.Get("/memories", cfg.PatientsHandler.Memories)
				r.Post("/messages", cfg.ChatHandler.SendStaffMessage)
				r.Get("/messages/{messageID}/analysis", cfg.ChatHandler.Analysis)
				r.Get("/copilot", cfg.CopilotHandler.Suggest)
				r.Post("/consultations", cfg.ConsultationsHandler.Request)
			})
		})

		doctor.Route("/consultations", func(r chi.Router) {
			r.Get("/", cfg.ConsultationsHandler.PaidList)
			r.Post("/{consultationID}/end", cfg.ConsultationsHandler.End)
		})

		doctor.Route("/knowledge", func(r chi.Router) {
			r.Get("/", cfg.KnowledgeHandler.List)
			r.Post("/", cfg.KnowledgeHandler.Create)
			r.Post("/import", cfg.KnowledgeHandler.Import)
			r.Put("/{entryID}", cfg.KnowledgeHandler.Update)
			r.Delete("/{entryID}", cfg.KnowledgeHandler.Delete)
		})
	})

	return r
}
