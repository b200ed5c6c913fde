package shelter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

// ReportInput — сообщение о бездомном животном.
type ReportInput struct {
	Location    string          `json:"location" validate:"required"`
	Details     string          `json:"details" validate:"required"`
	Coordinates json.RawMessage `json:"coordinates"`
	Images      []string        `json:"images"`
}

// SubmitReport сохраняет сообщение со статусом pending.
// Координаты и список изображений хранятся как JSON.
func (s *Service) SubmitReport(ctx context.Context, in ReportInput) (int64, error) {
	in.Location = strings.TrimSpace(in.Location)
	in.Details = strings.TrimSpace(in.Details)

	problems := domain.NewValidationError("invalid report")
	if err := domain.MergeValidation(problems, domain.ValidateStruct(in, "")); err != nil {
		return 0, err
	}

	var coordinates any
	if raw := strings.TrimSpace(string(in.Coordinates)); raw != "" && raw != "null" {
		if !json.Valid([]byte(raw)) {
			problems.Add("coordinates", "must be valid JSON")
		}
		coordinates = raw
	}
	images := []string{}
	for i, img := range in.Images {
		img = strings.TrimSpace(img)
		if img == "" {
			problems.Add(fmt.Sprintf("images[%d]", i), "must not be empty")
			continue
		}
		images = append(images, img)
	}
	if problems.HasProblems() {
		return 0, problems
	}

	encoded, err := json.Marshal(images)
	if err != nil {
		return 0, fmt.Errorf("encode report images: %w", err)
	}

	var id int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		id, err = tx.Insert(ctx, domain.TableReports, domain.Fields{
			"location":    in.Location,
			"details":     in.Details,
			"coordinates": coordinates,
			"images":      string(encoded),
			"status":      string(domain.ReportStatusPending),
		})
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.WithFields(log.Fields{"report_id": id, "images": len(images)}).Info("report submitted")
	return id, nil
}

// ListReports возвращает сообщения, новые первыми.
func (s *Service) ListReports(ctx context.Context) ([]domain.Report, error) {
	return s.reports.ListReports(ctx)
}

// UpdateReportStatus меняет статус сообщения.
func (s *Service) UpdateReportStatus(ctx context.Context, id int64, status domain.ReportStatus) error {
	if !status.Valid() {
		return invalidStatus(string(domain.ReportStatusPending), string(domain.ReportStatusInProgress), string(domain.ReportStatusResolved))
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		n, err := tx.Update(ctx, domain.TableReports, domain.Fields{"id": id}, domain.Patch{"status": string(status)})
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrReportNotFound
		}
		return nil
	})
}

// DeleteReport удаляет сообщение.
func (s *Service) DeleteReport(ctx context.Context, id int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		n, err := tx.Delete(ctx, domain.TableReports, domain.Fields{"id": id})
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrReportNotFound
		}
		return nil
	})
}
