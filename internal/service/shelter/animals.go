package shelter

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

type AnimalInput struct {
	Name        string `json:"name" validate:"required"`
	Breed       string `json:"breed" validate:"required"`
	Age         *int   `json:"age" validate:"required,gte=0"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url" validate:"required"`
}

// AnimalPatch — частичное обновление; nil-поля не меняются.
type AnimalPatch struct {
	Name        *string `json:"name"`
	Breed       *string `json:"breed"`
	Age         *int    `json:"age"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url"`
}

func (p AnimalPatch) toPatch() (domain.Patch, error) {
	verr := domain.NewValidationError("invalid animal update")
	for field, value := range map[string]*string{"name": p.Name, "breed": p.Breed, "image_url": p.ImageURL} {
		if value != nil && strings.TrimSpace(*value) == "" {
			verr.Add(field, "must not be empty")
		}
	}
	if p.Age != nil && *p.Age < 0 {
		verr.Add("age", "must be at least 0")
	}
	if verr.HasProblems() {
		return nil, verr
	}

	return domain.Patch{}.
		SetString("name", p.Name).
		SetString("breed", p.Breed).
		SetInt("age", p.Age).
		SetString("description", p.Description).
		SetString("image_url", p.ImageURL), nil
}

// ListAnimals возвращает животных, новые первыми; при limit <= 0 без ограничения.
func (s *Service) ListAnimals(ctx context.Context, limit int) ([]domain.Animal, error) {
	return s.animals.ListAnimals(ctx, limit)
}

// GetAnimal возвращает животное по id.
func (s *Service) GetAnimal(ctx context.Context, id int64) (domain.Animal, error) {
	return s.animals.GetAnimal(ctx, id)
}

// CreateAnimal добавляет животное в каталог.
func (s *Service) CreateAnimal(ctx context.Context, in AnimalInput) (int64, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Breed = strings.TrimSpace(in.Breed)
	in.Description = strings.TrimSpace(in.Description)
	in.ImageURL = strings.TrimSpace(in.ImageURL)

	if err := domain.ValidateStruct(in, "invalid animal"); err != nil {
		return 0, err
	}

	var id int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		id, err = tx.Insert(ctx, domain.TableAnimals, domain.Fields{
			"name":        in.Name,
			"breed":       in.Breed,
			"age":         *in.Age,
			"description": in.Description,
			"image_url":   in.ImageURL,
		})
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(log.Fields{"animal_id": id, "name": in.Name}).Info("animal created")
	return id, nil
}

// UpdateAnimal применяет частичное обновление.
func (s *Service) UpdateAnimal(ctx context.Context, id int64, in AnimalPatch) error {
	patch, err := in.toPatch()
	if err != nil {
		return err
	}
	if patch.Empty() {
		return domain.ErrEmptyPatch
	}
	patch.Set("updated_at", s.now())

	return s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		n, err := tx.Update(ctx, domain.TableAnimals, domain.Fields{"id": id}, patch)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrAnimalNotFound
		}
		return nil
	})
}

// DeleteAnimal удаляет животное; заявки на усыновление удаляются каскадно.
func (s *Service) DeleteAnimal(ctx context.Context, id int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		n, err := tx.Delete(ctx, domain.TableAnimals, domain.Fields{"id": id})
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrAnimalNotFound
		}
		s.logger.WithField("animal_id", id).Info("animal deleted")
		return nil
	})
}
