package shelter

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

// AdoptionInput — анкета на усыновление. AnimalID берётся из пути запроса.
type AdoptionInput struct {
	AnimalID     int64  `json:"-"`
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required"`
	Address      string `json:"address"`
	HasPets      bool   `json:"has_pets"`
	ExistingPets string `json:"existing_pets"`
	HomeType     string `json:"home_type"`
	HasYard      bool   `json:"has_yard"`
	WorkSchedule string `json:"work_schedule"`
	Experience   string `json:"experience"`
}

// SubmitAdoption сохраняет анкету со статусом pending.
func (s *Service) SubmitAdoption(ctx context.Context, in AdoptionInput) (int64, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)

	if err := domain.ValidateStruct(in, "invalid adoption request"); err != nil {
		return 0, err
	}

	var id int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		exists, err := tx.Count(ctx, domain.TableAnimals, domain.Fields{"id": in.AnimalID})
		if err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrAnimalNotFound
		}

		id, err = tx.Insert(ctx, domain.TableAdoptions, domain.Fields{
			"animal_id":     in.AnimalID,
			"name":          in.Name,
			"email":         in.Email,
			"phone":         in.Phone,
			"address":       strings.TrimSpace(in.Address),
			"has_pets":      in.HasPets,
			"existing_pets": strings.TrimSpace(in.ExistingPets),
			"home_type":     strings.TrimSpace(in.HomeType),
			"has_yard":      in.HasYard,
			"work_schedule": strings.TrimSpace(in.WorkSchedule),
			"experience":    strings.TrimSpace(in.Experience),
			"status":        string(domain.AdoptionStatusPending),
		})
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(log.Fields{"adoption_id": id, "animal_id": in.AnimalID}).Info("adoption request submitted")
	return id, nil
}

// ListAdoptions возвращает заявки, новые первыми.
func (s *Service) ListAdoptions(ctx context.Context) ([]domain.AdoptionRequest, error) {
	return s.adoptions.ListAdoptions(ctx)
}

// UpdateAdoptionStatus меняет статус заявки.
func (s *Service) UpdateAdoptionStatus(ctx context.Context, id int64, status domain.AdoptionStatus) error {
	if !status.Valid() {
		return invalidStatus(string(domain.AdoptionStatusPending), string(domain.AdoptionStatusApproved), string(domain.AdoptionStatusRejected))
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		n, err := tx.Update(ctx, domain.TableAdoptions, domain.Fields{"id": id}, domain.Patch{"status": string(status)})
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrAdoptionNotFound
		}
		return nil
	})
}
