// Package shelter обслуживает каталог животных, заявки на усыновление,
// сообщения о бездомных животных и сводку для панели администратора.
package shelter

import (
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

// Repositories перечисляет источники чтения сервиса.
type Repositories struct {
	Animals   domain.AnimalRepository
	Adoptions domain.AdoptionRepository
	Reports   domain.ReportRepository
	Donations domain.DonationRepository
}

// Service — операции приюта. Запись идёт через Transactor, чтение через репозитории.
type Service struct {
	tx        domain.Transactor
	animals   domain.AnimalRepository
	adoptions domain.AdoptionRepository
	reports   domain.ReportRepository
	donations domain.DonationRepository
	logger    *log.Entry
	now       func() time.Time
}

// NewService создаёт сервис приюта.
func NewService(tx domain.Transactor, repos Repositories, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "shelter-service")
	}
	return &Service{
		tx:        tx,
		animals:   repos.Animals,
		adoptions: repos.Adoptions,
		reports:   repos.Reports,
		donations: repos.Donations,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func invalidStatus(allowed ...string) error {
	verr := domain.NewValidationError("invalid status")
	verr.Add("status", "must be one of: "+strings.Join(allowed, " "))
	return verr
}
