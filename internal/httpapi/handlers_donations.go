package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
	"github.com/vladislavdragonenkov/straycare/internal/service/donation"
)

// orderRequest принимает корзину как `items`; `cart` остался от прежней версии клиента.
type orderRequest struct {
	Items []domain.DonationItem `json:"items"`
	Cart  []domain.DonationItem `json:"cart"`
}

func (req orderRequest) donationItems() []domain.DonationItem {
	if len(req.Items) > 0 {
		return req.Items
	}
	return req.Cart
}

// mergePayload добавляет поля к ответу провайдера, сохраняя его содержимое.
func mergePayload(payload json.RawMessage, extra map[string]any) (map[string]json.RawMessage, error) {
	merged := map[string]json.RawMessage{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &merged); err != nil {
			return nil, fmt.Errorf("decode provider payload: %w", err)
		}
	}
	for key, value := range extra {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		merged[key] = raw
	}
	return merged, nil
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	res, err := s.donations.CreateOrder(r.Context(), req.donationItems())
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	body, err := mergePayload(res.Payload, map[string]any{
		"externalOrderId": res.ExternalOrderID,
		"DonationId":      res.ExternalOrderID,
		"total":           res.Total.StringFixed(2),
	})
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) captureOrder(w http.ResponseWriter, r *http.Request) {
	var adminID *int64
	if principal, ok := principalFrom(r.Context()); ok && principal.IsAdmin() && principal.AdminID > 0 {
		id := principal.AdminID
		adminID = &id
	}

	res, err := s.donations.CaptureOrder(r.Context(), chi.URLParam(r, "orderID"), adminID)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	body, err := mergePayload(res.Payload, map[string]any{
		"TransactionId":  res.CaptureID,
		"reconciliation": res.Outcome,
	})
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) listDonations(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if limit == 0 {
		limit = donation.RecentLimit
	}
	donations, err := s.donations.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newDonationViews(donations))
}
