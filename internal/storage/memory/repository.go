package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

// Repository реализует все read-репозитории поверх Store.
// Чтение видит только зафиксированные транзакции.
type Repository struct {
	store *Store
}

// NewRepository создаёт read-репозиторий для store.
func NewRepository(store *Store) *Repository {
	return &Repository{store: store}
}

// snapshot возвращает строки таблицы от новых к старым.
func (r *Repository) snapshot(ctx context.Context, table string) ([]domain.Fields, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("read "+table, err)
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rows := r.store.rows(table)
	result := make([]domain.Fields, len(rows))
	copy(result, rows)
	sort.SliceStable(result, func(i, j int) bool {
		ti, tj := asTime(result[i]["created_at"]), asTime(result[j]["created_at"])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return asInt64(result[i]["id"]) > asInt64(result[j]["id"])
	})
	return result, nil
}

func limitRows(rows []domain.Fields, limit int) []domain.Fields {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

func (r *Repository) ListVolunteers(ctx context.Context) ([]domain.Volunteer, error) {
	return r.volunteers(ctx, 0)
}

func (r *Repository) LatestVolunteers(ctx context.Context, limit int) ([]domain.Volunteer, error) {
	if limit <= 0 {
		limit = 5
	}
	return r.volunteers(ctx, limit)
}

func (r *Repository) GetVolunteer(ctx context.Context, id int64) (domain.Volunteer, error) {
	all, err := r.volunteers(ctx, 0)
	if err != nil {
		return domain.Volunteer{}, err
	}
	for _, v := range all {
		if v.ID == id {
			return v, nil
		}
	}
	return domain.Volunteer{}, domain.ErrVolunteerNotFound
}

func (r *Repository) volunteers(ctx context.Context, limit int) ([]domain.Volunteer, error) {
	rows, err := r.snapshot(ctx, domain.TableVolunteers)
	if err != nil {
		return nil, err
	}
	skillRows, err := r.snapshot(ctx, domain.TableVolunteerSkills)
	if err != nil {
		return nil, err
	}

	// Навыки в порядке вставки, как ORDER BY s.id.
	sort.Slice(skillRows, func(i, j int) bool { return asInt64(skillRows[i]["id"]) < asInt64(skillRows[j]["id"]) })
	skills := make(map[int64][]string)
	for _, s := range skillRows {
		owner := asInt64(s["volunteer_id"])
		skills[owner] = append(skills[owner], asString(s["label"]))
	}

	rows = limitRows(rows, limit)
	result := make([]domain.Volunteer, 0, len(rows))
	for _, row := range rows {
		id := asInt64(row["id"])
		v := domain.Volunteer{
			ID:           id,
			Name:         asString(row["name"]),
			Email:        asString(row["email"]),
			Phone:        asString(row["phone"]),
			Location:     asString(row["location"]),
			Availability: asString(row["availability"]),
			Experience:   asString(row["experience"]),
			Reason:       asString(row["reason"]),
			Status:       domain.VolunteerStatus(asString(row["status"])),
			Skills:       skills[id],
			CreatedAt:    asTime(row["created_at"]),
			UpdatedAt:    asTime(row["updated_at"]),
		}
		if v.Skills == nil {
			v.Skills = []string{}
		}
		result = append(result, v)
	}
	return result, nil
}

func toDonation(row domain.Fields) domain.Donation {
	return domain.Donation{
		ID:              asInt64(row["id"]),
		Amount:          asDecimal(row["amount"]),
		Currency:        asString(row["currency"]),
		ExternalOrderID: asString(row["external_order_id"]),
		CaptureID:       asString(row["capture_id"]),
		Status:          domain.DonationStatus(asString(row["status"])),
		AdminID:         asInt64Ptr(row["admin_id"]),
		CreatedAt:       asTime(row["created_at"]),
		CompletedAt:     asTimePtr(row["completed_at"]),
	}
}

func (r *Repository) GetDonationByExternalID(ctx context.Context, externalOrderID string) (domain.Donation, error) {
	rows, err := r.snapshot(ctx, domain.TableDonations)
	if err != nil {
		return domain.Donation{}, err
	}
	for _, row := range rows {
		if asString(row["external_order_id"]) == externalOrderID {
			return toDonation(row), nil
		}
	}
	return domain.Donation{}, domain.ErrDonationNotFound
}

func (r *Repository) ListRecentDonations(ctx context.Context, limit int) ([]domain.Donation, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.snapshot(ctx, domain.TableDonations)
	if err != nil {
		return nil, err
	}
	rows = limitRows(rows, limit)
	result := make([]domain.Donation, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDonation(row))
	}
	return result, nil
}

func (r *Repository) DonationSummary(ctx context.Context) (domain.DonationSummary, error) {
	rows, err := r.snapshot(ctx, domain.TableDonations)
	if err != nil {
		return domain.DonationSummary{}, err
	}
	summary := domain.DonationSummary{CompletedTotal: decimal.Zero}
	for _, row := range rows {
		switch domain.DonationStatus(asString(row["status"])) {
		case domain.DonationStatusCompleted:
			summary.CompletedTotal = summary.CompletedTotal.Add(asDecimal(row["amount"]))
			summary.CompletedCount++
		case domain.DonationStatusPending:
			summary.PendingCount++
		}
	}
	return summary, nil
}

func (r *Repository) FindAdminByUsername(ctx context.Context, username string) (domain.Admin, error) {
	rows, err := r.snapshot(ctx, domain.TableAdmins)
	if err != nil {
		return domain.Admin{}, err
	}
	for _, row := range rows {
		if asString(row["username"]) != username {
			continue
		}
		return domain.Admin{
			ID:           asInt64(row["id"]),
			Username:     asString(row["username"]),
			Email:        asString(row["email"]),
			PasswordHash: asString(row["password_hash"]),
			Role:         asString(row["role"]),
			CreatedAt:    asTime(row["created_at"]),
		}, nil
	}
	return domain.Admin{}, domain.ErrAdminNotFound
}

func toAnimal(row domain.Fields) domain.Animal {
	return domain.Animal{
		ID:          asInt64(row["id"]),
		Name:        asString(row["name"]),
		Breed:       asString(row["breed"]),
		Age:         int(asInt64(row["age"])),
		Description: asString(row["description"]),
		ImageURL:    asString(row["image_url"]),
		CreatedAt:   asTime(row["created_at"]),
		UpdatedAt:   asTime(row["updated_at"]),
	}
}

func (r *Repository) ListAnimals(ctx context.Context, limit int) ([]domain.Animal, error) {
	rows, err := r.snapshot(ctx, domain.TableAnimals)
	if err != nil {
		return nil, err
	}
	rows = limitRows(rows, limit)
	result := make([]domain.Animal, 0, len(rows))
	for _, row := range rows {
		result = append(result, toAnimal(row))
	}
	return result, nil
}

func (r *Repository) GetAnimal(ctx context.Context, id int64) (domain.Animal, error) {
	rows, err := r.snapshot(ctx, domain.TableAnimals)
	if err != nil {
		return domain.Animal{}, err
	}
	for _, row := range rows {
		if asInt64(row["id"]) == id {
			return toAnimal(row), nil
		}
	}
	return domain.Animal{}, domain.ErrAnimalNotFound
}

func (r *Repository) CountAnimals(ctx context.Context) (int64, error) {
	rows, err := r.snapshot(ctx, domain.TableAnimals)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (r *Repository) ListAdoptions(ctx context.Context) ([]domain.AdoptionRequest, error) {
	rows, err := r.snapshot(ctx, domain.TableAdoptions)
	if err != nil {
		return nil, err
	}
	animals, err := r.snapshot(ctx, domain.TableAnimals)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(animals))
	for _, a := range animals {
		names[asInt64(a["id"])] = asString(a["name"])
	}

	result := make([]domain.AdoptionRequest, 0, len(rows))
	for _, row := range rows {
		animalID := asInt64(row["animal_id"])
		result = append(result, domain.AdoptionRequest{
			ID:           asInt64(row["id"]),
			AnimalID:     animalID,
			AnimalName:   names[animalID],
			Name:         asString(row["name"]),
			Email:        asString(row["email"]),
			Phone:        asString(row["phone"]),
			Address:      asString(row["address"]),
			HasPets:      asBool(row["has_pets"]),
			ExistingPets: asString(row["existing_pets"]),
			HomeType:     asString(row["home_type"]),
			HasYard:      asBool(row["has_yard"]),
			WorkSchedule: asString(row["work_schedule"]),
			Experience:   asString(row["experience"]),
			Status:       domain.AdoptionStatus(asString(row["status"])),
			CreatedAt:    asTime(row["created_at"]),
		})
	}
	return result, nil
}

func (r *Repository) ListReports(ctx context.Context) ([]domain.Report, error) {
	rows, err := r.snapshot(ctx, domain.TableReports)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Report, 0, len(rows))
	for _, row := range rows {
		rep := domain.Report{
			ID:        asInt64(row["id"]),
			Location:  asString(row["location"]),
			Details:   asString(row["details"]),
			Images:    []string{},
			Status:    domain.ReportStatus(asString(row["status"])),
			CreatedAt: asTime(row["created_at"]),
		}
		if coords := asString(row["coordinates"]); coords != "" {
			rep.Coordinates = json.RawMessage(coords)
		}
		if images := strings.TrimSpace(asString(row["images"])); images != "" {
			if err := json.Unmarshal([]byte(images), &rep.Images); err != nil {
				return nil, domain.NewStorageError("list reports", fmt.Errorf("decode report images: %w", err))
			}
		}
		result = append(result, rep)
	}
	return result, nil
}

var (
	_ domain.VolunteerRepository = (*Repository)(nil)
	_ domain.DonationRepository  = (*Repository)(nil)
	_ domain.AdminRepository     = (*Repository)(nil)
	_ domain.AnimalRepository    = (*Repository)(nil)
	_ domain.AdoptionRepository  = (*Repository)(nil)
	_ domain.ReportRepository    = (*Repository)(nil)
)
