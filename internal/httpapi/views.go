package httpapi

import (
	"encoding/json"
	"time"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

type volunteerView struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Location     string    `json:"location"`
	Availability string    `json:"availability"`
	Experience   string    `json:"experience"`
	Reason       string    `json:"reason"`
	Status       string    `json:"status"`
	Skills       []string  `json:"skills"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newVolunteerViews(vs []domain.Volunteer) []volunteerView {
	out := make([]volunteerView, 0, len(vs))
	for _, v := range vs {
		skills := v.Skills
		if skills == nil {
			skills = []string{}
		}
		out = append(out, volunteerView{
			ID:           v.ID,
			Name:         v.Name,
			Email:        v.Email,
			Phone:        v.Phone,
			Location:     v.Location,
			Availability: v.Availability,
			Experience:   v.Experience,
			Reason:       v.Reason,
			Status:       string(v.Status),
			Skills:       skills,
			CreatedAt:    v.CreatedAt,
			UpdatedAt:    v.UpdatedAt,
		})
	}
	return out
}

type donationView struct {
	ID              int64      `json:"id"`
	Amount          string     `json:"amount"`
	Currency        string     `json:"currency"`
	ExternalOrderID string     `json:"external_order_id"`
	CaptureID       string     `json:"capture_id,omitempty"`
	Status          string     `json:"status"`
	AdminID         *int64     `json:"admin_id"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at"`
}

func newDonationViews(ds []domain.Donation) []donationView {
	out := make([]donationView, 0, len(ds))
	for _, d := range ds {
		out = append(out, donationView{
			ID:              d.ID,
			Amount:          d.Amount.StringFixed(2),
			Currency:        d.Currency,
			ExternalOrderID: d.ExternalOrderID,
			CaptureID:       d.CaptureID,
			Status:          string(d.Status),
			AdminID:         d.AdminID,
			CreatedAt:       d.CreatedAt,
			CompletedAt:     d.CompletedAt,
		})
	}
	return out
}

type animalView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Breed       string    `json:"breed"`
	Age         int       `json:"age"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newAnimalView(a domain.Animal) animalView {
	return animalView{
		ID:          a.ID,
		Name:        a.Name,
		Breed:       a.Breed,
		Age:         a.Age,
		Description: a.Description,
		ImageURL:    a.ImageURL,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func newAnimalViews(as []domain.Animal) []animalView {
	out := make([]animalView, 0, len(as))
	for _, a := range as {
		out = append(out, newAnimalView(a))
	}
	return out
}

type adoptionView struct {
	ID           int64     `json:"id"`
	AnimalID     int64     `json:"animal_id"`
	AnimalName   string    `json:"animal_name"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Address      string    `json:"address"`
	HasPets      bool      `json:"has_pets"`
	ExistingPets string    `json:"existing_pets"`
	HomeType     string    `json:"home_type"`
	HasYard      bool      `json:"has_yard"`
	WorkSchedule string    `json:"work_schedule"`
	Experience   string    `json:"experience"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func newAdoptionViews(as []domain.AdoptionRequest) []adoptionView {
	out := make([]adoptionView, 0, len(as))
	for _, a := range as {
		out = append(out, adoptionView{
			ID:           a.ID,
			AnimalID:     a.AnimalID,
			AnimalName:   a.AnimalName,
			Name:         a.Name,
			Email:        a.Email,
			Phone:        a.Phone,
			Address:      a.Address,
			HasPets:      a.HasPets,
			ExistingPets: a.ExistingPets,
			HomeType:     a.HomeType,
			HasYard:      a.HasYard,
			WorkSchedule: a.WorkSchedule,
			Experience:   a.Experience,
			Status:       string(a.Status),
			CreatedAt:    a.CreatedAt,
		})
	}
	return out
}

type reportView struct {
	ID          int64           `json:"id"`
	Location    string          `json:"location"`
	Details     string          `json:"details"`
	Coordinates json.RawMessage `json:"coordinates"`
	Images      []string        `json:"images"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newReportViews(rs []domain.Report) []reportView {
	out := make([]reportView, 0, len(rs))
	for _, r := range rs {
		coords := r.Coordinates
		if len(coords) == 0 {
			coords = json.RawMessage("null")
		}
		images := r.Images
		if images == nil {
			images = []string{}
		}
		out = append(out, reportView{
			ID:          r.ID,
			Location:    r.Location,
			Details:     r.Details,
			Coordinates: coords,
			Images:      images,
			Status:      string(r.Status),
			CreatedAt:   r.CreatedAt,
		})
	}
	return out
}

type dashboardView struct {
	TotalAnimals    int64          `json:"total_animals"`
	RecentAnimals   []animalView   `json:"recent_animals"`
	RecentDonations []donationView `json:"recent_donations"`
	TotalDonations  string         `json:"total_donations"`
	CompletedCount  int64          `json:"completed_donations"`
	PendingCount    int64          `json:"pending_donations"`
}

func newDashboardView(stats domain.ShelterStats) dashboardView {
	return dashboardView{
		TotalAnimals:    stats.TotalAnimals,
		RecentAnimals:   newAnimalViews(stats.RecentAnimals),
		RecentDonations: newDonationViews(stats.RecentDonations),
		TotalDonations:  stats.Donations.CompletedTotal.StringFixed(2),
		CompletedCount:  stats.Donations.CompletedCount,
		PendingCount:    stats.Donations.PendingCount,
	}
}
