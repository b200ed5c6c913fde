// Package volunteer обслуживает заявки волонтёров.
package volunteer

import (
	"context"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
	"github.com/vladislavdragonenkov/straycare/internal/service/aggregate"
)

// LatestLimit — сколько заявок показывает панель администратора.
const LatestLimit = 5

var requiredFields = []string{"name", "email", "phone", "location", "availability", "reason"}

// Application приходит из формы волонтёра.
type Application struct {
	Name         string   `json:"name" validate:"required"`
	Email        string   `json:"email" validate:"required,email"`
	Phone        string   `json:"phone" validate:"required"`
	Location     string   `json:"location" validate:"required"`
	Availability string   `json:"availability" validate:"required"`
	Experience   string   `json:"experience"`
	Reason       string   `json:"reason" validate:"required"`
	Skills       []string `json:"skills"`
}

func (a *Application) normalize() {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = strings.TrimSpace(a.Email)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Location = strings.TrimSpace(a.Location)
	a.Availability = strings.TrimSpace(a.Availability)
	a.Experience = strings.TrimSpace(a.Experience)
	a.Reason = strings.TrimSpace(a.Reason)
	if a.Skills != nil {
		skills := make([]string, len(a.Skills))
		for i, s := range a.Skills {
			skills[i] = strings.TrimSpace(s)
		}
		a.Skills = skills
	}
}

// Service управляет заявками волонтёров.
type Service struct {
	tx     domain.Transactor
	repo   domain.VolunteerRepository
	writer *aggregate.Writer
	logger *log.Entry
	now    func() time.Time
}

// NewService создаёт сервис волонтёров.
func NewService(tx domain.Transactor, repo domain.VolunteerRepository, writer *aggregate.Writer, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "volunteer-service")
	}
	if writer == nil {
		writer = aggregate.NewWriter(tx)
	}
	return &Service{
		tx:     tx,
		repo:   repo,
		writer: writer,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register создаёт заявку вместе с навыками как один агрегат.
func (s *Service) Register(ctx context.Context, app Application) (int64, error) {
	app.normalize()

	plan := aggregate.Plan{
		Name: "volunteer",
		Parent: domain.Record{
			Table: domain.TableVolunteers,
			Fields: domain.Fields{
				"name":         app.Name,
				"email":        app.Email,
				"phone":        app.Phone,
				"location":     app.Location,
				"availability": app.Availability,
				"experience":   app.Experience,
				"reason":       app.Reason,
				"status":       string(domain.VolunteerStatusPending),
			},
			Required: requiredFields,
		},
		ForeignKey: "volunteer_id",
		ChildPath:  "skills",
		Problems:   domain.NewValidationError("invalid volunteer application"),
	}
	for _, skill := range app.Skills {
		plan.Children = append(plan.Children, domain.Record{
			Table:    domain.TableVolunteerSkills,
			Fields:   domain.Fields{"label": skill},
			Required: []string{"label"},
		})
	}

	if err := domain.MergeValidation(plan.Problems, domain.ValidateStruct(app, "")); err != nil {
		return 0, err
	}

	id, err := s.writer.Create(ctx, plan)
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(log.Fields{
		"volunteer_id": id,
		"skills":       len(app.Skills),
	}).Info("volunteer application registered")
	return id, nil
}

// List возвращает все заявки, новые первыми.
func (s *Service) List(ctx context.Context) ([]domain.Volunteer, error) {
	return s.repo.ListVolunteers(ctx)
}

// ListLatest возвращает последние заявки с навыками.
func (s *Service) ListLatest(ctx context.Context) ([]domain.Volunteer, error) {
	return s.repo.LatestVolunteers(ctx, LatestLimit)
}

// Get возвращает заявку по id.
func (s *Service) Get(ctx context.Context, id int64) (domain.Volunteer, error) {
	return s.repo.GetVolunteer(ctx, id)
}

// UpdateStatus меняет статус заявки.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status domain.VolunteerStatus) error {
	if !status.Valid() {
		verr := domain.NewValidationError("invalid status")
		verr.Add("status", "must be one of: pending approved rejected")
		return verr
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		n, err := tx.Update(ctx, domain.TableVolunteers,
			domain.Fields{"id": id},
			domain.Patch{"status": string(status), "updated_at": s.now()},
		)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrVolunteerNotFound
		}
		s.logger.WithFields(log.Fields{"volunteer_id": id, "status": status}).Info("volunteer status updated")
		return nil
	})
}

// Delete удаляет заявку; навыки удаляются каскадно.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		n, err := tx.Delete(ctx, domain.TableVolunteers, domain.Fields{"id": id})
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrVolunteerNotFound
		}
		return nil
	})
}
