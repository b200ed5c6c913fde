package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

const maxBodyBytes = 1 << 20

type messageResponse struct {
	Message string `json:"message"`
}

type createdResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON читает тело запроса в dst. Ошибки формата возвращаются как ValidationError.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return nil
	}

	verr := domain.NewValidationError("Invalid request body")
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		verr.Add("body", "is required")
	case errors.As(err, &maxErr):
		verr.Add("body", "is too large")
	default:
		verr.Add("body", "must be valid JSON")
	}
	return verr
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		verr := domain.NewValidationError("Invalid identifier")
		verr.Add(name, "must be a positive integer")
		return 0, verr
	}
	return id, nil
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		verr := domain.NewValidationError("Invalid query")
		verr.Add("limit", "must be a non-negative integer")
		return 0, verr
	}
	return limit, nil
}
