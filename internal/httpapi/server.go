// Package httpapi — REST API приюта поверх chi.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/auth"
	"github.com/vladislavdragonenkov/straycare/internal/metrics"
	"github.com/vladislavdragonenkov/straycare/internal/service/donation"
	"github.com/vladislavdragonenkov/straycare/internal/service/shelter"
	"github.com/vladislavdragonenkov/straycare/internal/service/volunteer"
)

// Dependencies — сервисы, которые обслуживает API.
type Dependencies struct {
	Volunteers     *volunteer.Service
	Donations      *donation.Reconciler
	Shelter        *shelter.Service
	Auth           *auth.Service
	Metrics        *metrics.ShelterMetrics
	Logger         *log.Entry
	AllowedOrigins []string
}

// Server содержит обработчики API.
type Server struct {
	volunteers     *volunteer.Service
	donations      *donation.Reconciler
	shelter        *shelter.Service
	auth           *auth.Service
	metrics        *metrics.ShelterMetrics
	logger         *log.Entry
	allowedOrigins []string
}

// NewServer создаёт Server.
func NewServer(deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Server{
		volunteers:     deps.Volunteers,
		donations:      deps.Donations,
		shelter:        deps.Shelter,
		auth:           deps.Auth,
		metrics:        deps.Metrics,
		logger:         logger,
		allowedOrigins: deps.AllowedOrigins,
	}
}

// Routes возвращает http.Handler со всеми маршрутами /api.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.accessLog, middleware.Recoverer, s.cors)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.login)
			r.Group(func(r chi.Router) {
				r.Use(s.authenticate, s.requireAdmin)
				r.Post("/register", s.register)
				r.Get("/dashboard", s.authDashboard)
			})
		})

		r.Route("/animals", func(r chi.Router) {
			r.Get("/", s.listAnimals)
			r.Get("/{id}", s.getAnimal)
			r.Post("/{id}/adopt", s.submitAdoption)
			r.Group(func(r chi.Router) {
				r.Use(s.authenticate)
				r.Post("/", s.createAnimal)
				r.Put("/{id}", s.updateAnimal)
				r.Delete("/{id}", s.deleteAnimal)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/adoptions", s.listAdoptions)
			r.Patch("/adoptions/{id}", s.updateAdoptionStatus)
			r.Get("/donations", s.listDonations)
			r.Get("/dashboard", s.dashboard)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Post("/", s.submitReport)
			r.Get("/", s.listReports)
			r.Group(func(r chi.Router) {
				r.Use(s.authenticate, s.requireAdmin)
				r.Put("/{id}/status", s.updateReportStatus)
				r.Delete("/{id}", s.deleteReport)
			})
		})

		r.Route("/volunteers", func(r chi.Router) {
			r.Post("/", s.registerVolunteer)
			r.Group(func(r chi.Router) {
				r.Use(s.authenticate)
				r.Get("/", s.listVolunteers)
				r.Get("/latest", s.latestVolunteers)
				r.With(s.requireAdmin).Put("/{id}/status", s.updateVolunteerStatus)
			})
		})

		r.Post("/orders", s.createOrder)
		r.With(s.optionalAuth).Post("/orders/{orderID}/capture", s.captureOrder)
	})

	return r
}
