package domain

import "time"

// Имена таблиц агрегата волонтёра.
const (
	TableVolunteers      = "volunteers"
	TableVolunteerSkills = "volunteer_skills"
)

// VolunteerStatus описывает состояние заявки волонтёра.
type VolunteerStatus string

const (
	// VolunteerStatusPending ожидает рассмотрения.
	VolunteerStatusPending VolunteerStatus = "pending"
	// VolunteerStatusApproved одобрен администратором.
	VolunteerStatusApproved VolunteerStatus = "approved"
	// VolunteerStatusRejected отклонён.
	VolunteerStatusRejected VolunteerStatus = "rejected"
)

// Valid проверяет, что статус входит в допустимый набор.
func (s VolunteerStatus) Valid() bool {
	switch s {
	case VolunteerStatusPending, VolunteerStatusApproved, VolunteerStatusRejected:
		return true
	}
	return false
}

// Volunteer — заявка волонтёра вместе с навыками.
type Volunteer struct {
	ID           int64
	Name         string
	Email        string
	Phone        string
	Location     string
	Availability string
	Experience   string
	Reason       string
	Status       VolunteerStatus
	Skills       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Skill не изменяется после создания.
type Skill struct {
	ID          int64
	VolunteerID int64
	Label       string
}
