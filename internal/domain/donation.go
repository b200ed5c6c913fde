package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const TableDonations = "donations"

// DefaultCurrency — валюта онлайн-пожертвований.
const DefaultCurrency = "USD"

// DonationStatus описывает состояние пожертвования.
type DonationStatus string

const (
	// DonationStatusPending — заказ создан у провайдера, деньги ещё не списаны.
	DonationStatusPending DonationStatus = "pending"
	// DonationStatusCompleted — провайдер подтвердил capture.
	DonationStatusCompleted DonationStatus = "completed"
)

// Donation — локальная запись о пожертвовании, связанная с заказом провайдера.
type Donation struct {
	ID              int64
	Amount          decimal.Decimal
	Currency        string
	ExternalOrderID string
	CaptureID       string
	Status          DonationStatus
	AdminID         *int64
	CreatedAt       time.Time
	CompletedAt     *time.Time
}

// DonationItem описывает одну позицию корзины.
type DonationItem struct {
	Amount decimal.Decimal `json:"amount"`
}

// DonationSummary считается для панели администратора.
type DonationSummary struct {
	CompletedTotal decimal.Decimal
	CompletedCount int64
	PendingCount   int64
}

// CaptureOutcome — результат сверки capture с локальной записью.
type CaptureOutcome string

const (
	// CaptureTransitioned — запись переведена из pending в completed.
	CaptureTransitioned CaptureOutcome = "transitioned"
	// CaptureAlreadyCompleted — запись уже была completed, повтор ничего не меняет.
	CaptureAlreadyCompleted CaptureOutcome = "already_completed"
	// CaptureUnmatched — локальной записи с таким идентификатором нет.
	CaptureUnmatched CaptureOutcome = "unmatched"
	// CaptureNotCompleted — провайдер не подтвердил списание.
	CaptureNotCompleted CaptureOutcome = "not_completed"
)

// SumDonationItems складывает суммы позиций и округляет до двух знаков.
func SumDonationItems(items []DonationItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	return total.Round(2)
}
