package httpapi

import (
	"net/http"

	"github.com/vladislavdragonenkov/straycare/internal/auth"
)

type loginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	token, principal, err := s.auth.Login(r.Context(), creds)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Role: principal.Role})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var reg auth.Registration
	if err := decodeJSON(w, r, &reg); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	id, err := s.auth.Register(r.Context(), reg)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id, Message: "Admin registered successfully"})
}

func (s *Server) authDashboard(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r.Context())
	writeJSON(w, http.StatusOK, messageResponse{Message: "Welcome, " + principal.Username})
}
