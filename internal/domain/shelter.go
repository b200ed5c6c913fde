package domain

import (
	"encoding/json"
	"time"
)

// Таблицы приюта.
const (
	TableAdmins    = "admins"
	TableAnimals   = "animals"
	TableAdoptions = "adoption_requests"
	TableReports   = "reports"
)

// Роли субъектов.
const (
	RoleAdmin = "admin"
)

// Admin — учётная запись администратора. PasswordHash хранит только bcrypt-хеш.
type Admin struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type Animal struct {
	ID          int64
	Name        string
	Breed       string
	Age         int
	Description string
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type AdoptionStatus string

const (
	AdoptionStatusPending  AdoptionStatus = "pending"
	AdoptionStatusApproved AdoptionStatus = "approved"
	AdoptionStatusRejected AdoptionStatus = "rejected"
)

// Valid проверяет, что статус входит в допустимый набор.
func (s AdoptionStatus) Valid() bool {
	switch s {
	case AdoptionStatusPending, AdoptionStatusApproved, AdoptionStatusRejected:
		return true
	}
	return false
}

type AdoptionRequest struct {
	ID           int64
	AnimalID     int64
	AnimalName   string
	Name         string
	Email        string
	Phone        string
	Address      string
	HasPets      bool
	ExistingPets string
	HomeType     string
	HasYard      bool
	WorkSchedule string
	Experience   string
	Status       AdoptionStatus
	CreatedAt    time.Time
}

type ReportStatus string

const (
	ReportStatusPending    ReportStatus = "pending"
	ReportStatusInProgress ReportStatus = "in_progress"
	ReportStatusResolved   ReportStatus = "resolved"
)

// Valid проверяет, что статус входит в допустимый набор.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusPending, ReportStatusInProgress, ReportStatusResolved:
		return true
	}
	return false
}

// Report — сообщение о бездомном животном с координатами и фото.
type Report struct {
	ID          int64
	Location    string
	Details     string
	Coordinates json.RawMessage
	Images      []string
	Status      ReportStatus
	CreatedAt   time.Time
}

// ShelterStats собирается для панели администратора.
type ShelterStats struct {
	TotalAnimals    int64
	RecentAnimals   []Animal
	RecentDonations []Donation
	Donations       DonationSummary
}
