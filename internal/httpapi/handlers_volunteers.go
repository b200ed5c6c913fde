package httpapi

import (
	"net/http"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
	"github.com/vladislavdragonenkov/straycare/internal/service/volunteer"
)

func (s *Server) registerVolunteer(w http.ResponseWriter, r *http.Request) {
	var app volunteer.Application
	if err := decodeJSON(w, r, &app); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	id, err := s.volunteers.Register(r.Context(), app)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id, Message: "Volunteer application submitted successfully"})
}

func (s *Server) listVolunteers(w http.ResponseWriter, r *http.Request) {
	vs, err := s.volunteers.List(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newVolunteerViews(vs))
}

func (s *Server) latestVolunteers(w http.ResponseWriter, r *http.Request) {
	vs, err := s.volunteers.ListLatest(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newVolunteerViews(vs))
}

func (s *Server) updateVolunteerStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if err := s.volunteers.UpdateStatus(r.Context(), id, domain.VolunteerStatus(req.Status)); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Volunteer status updated successfully"})
}
