package httpapi

import (
	"net/http"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
	"github.com/vladislavdragonenkov/straycare/internal/service/shelter"
)

func (s *Server) listAnimals(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	animals, err := s.shelter.ListAnimals(r.Context(), limit)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newAnimalViews(animals))
}

func (s *Server) getAnimal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	animal, err := s.shelter.GetAnimal(r.Context(), id)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newAnimalView(animal))
}

func (s *Server) createAnimal(w http.ResponseWriter, r *http.Request) {
	var in shelter.AnimalInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	id, err := s.shelter.CreateAnimal(r.Context(), in)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id, Message: "Animal created successfully"})
}

func (s *Server) updateAnimal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	var patch shelter.AnimalPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if err := s.shelter.UpdateAnimal(r.Context(), id, patch); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Animal updated successfully"})
}

func (s *Server) deleteAnimal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if err := s.shelter.DeleteAnimal(r.Context(), id); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Animal deleted successfully"})
}

func (s *Server) submitAdoption(w http.ResponseWriter, r *http.Request) {
	animalID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	var in shelter.AdoptionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	in.AnimalID = animalID
	id, err := s.shelter.SubmitAdoption(r.Context(), in)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id, Message: "Adoption form submitted!"})
}

func (s *Server) listAdoptions(w http.ResponseWriter, r *http.Request) {
	adoptions, err := s.shelter.ListAdoptions(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newAdoptionViews(adoptions))
}

func (s *Server) updateAdoptionStatus(w http.ResponseWriter, r *http.Request) {
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
	if err := s.shelter.UpdateAdoptionStatus(r.Context(), id, domain.AdoptionStatus(req.Status)); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Adoption status updated"})
}

func (s *Server) submitReport(w http.ResponseWriter, r *http.Request) {
	var in shelter.ReportInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	id, err := s.shelter.SubmitReport(r.Context(), in)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id, Message: "Report submitted successfully!"})
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.shelter.ListReports(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newReportViews(reports))
}

func (s *Server) updateReportStatus(w http.ResponseWriter, r *http.Request) {
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
	if err := s.shelter.UpdateReportStatus(r.Context(), id, domain.ReportStatus(req.Status)); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Report status updated successfully"})
}

func (s *Server) deleteReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if err := s.shelter.DeleteReport(r.Context(), id); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Report deleted successfully"})
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.shelter.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newDashboardView(stats))
}
