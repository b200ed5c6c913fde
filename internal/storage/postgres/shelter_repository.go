package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

// ShelterRepository обслуживает чтение администраторов, животных, заявок и сообщений.
type ShelterRepository struct {
	db *sql.DB
}

// NewShelterRepository создаёт PostgreSQL-реализацию репозиториев приюта.
func NewShelterRepository(store *Store) *ShelterRepository {
	return &ShelterRepository{db: store.DB()}
}

func (r *ShelterRepository) FindAdminByUsername(ctx context.Context, username string) (domain.Admin, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var a domain.Admin
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, role, created_at
		FROM admins
		WHERE username = $1
	`, username).Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Admin{}, domain.ErrAdminNotFound
	}
	if err != nil {
		return domain.Admin{}, domain.NewStorageError("find admin", err)
	}
	return a, nil
}

const animalColumns = `id, name, breed, age, description, image_url, created_at, updated_at`

func scanAnimal(row rowScanner) (domain.Animal, error) {
	var a domain.Animal
	err := row.Scan(&a.ID, &a.Name, &a.Breed, &a.Age, &a.Description, &a.ImageURL, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *ShelterRepository) ListAnimals(ctx context.Context, limit int) ([]domain.Animal, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `SELECT ` + animalColumns + ` FROM animals ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewStorageError("list animals", err)
	}
	defer rows.Close()

	result := []domain.Animal{}
	for rows.Next() {
		a, err := scanAnimal(rows)
		if err != nil {
			return nil, domain.NewStorageError("list animals", fmt.Errorf("scan animal: %w", err))
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list animals", err)
	}
	return result, nil
}

func (r *ShelterRepository) GetAnimal(ctx context.Context, id int64) (domain.Animal, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	a, err := scanAnimal(r.db.QueryRowContext(ctx, `SELECT `+animalColumns+` FROM animals WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Animal{}, domain.ErrAnimalNotFound
	}
	if err != nil {
		return domain.Animal{}, domain.NewStorageError("get animal", err)
	}
	return a, nil
}

func (r *ShelterRepository) CountAnimals(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM animals`).Scan(&n); err != nil {
		return 0, domain.NewStorageError("count animals", err)
	}
	return n, nil
}

func (r *ShelterRepository) ListAdoptions(ctx context.Context) ([]domain.AdoptionRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.animal_id, a.name, r.name, r.email, r.phone, r.address,
		       r.has_pets, r.existing_pets, r.home_type, r.has_yard,
		       r.work_schedule, r.experience, r.status, r.created_at
		FROM adoption_requests r
		JOIN animals a ON a.id = r.animal_id
		ORDER BY r.created_at DESC, r.id DESC
	`)
	if err != nil {
		return nil, domain.NewStorageError("list adoptions", err)
	}
	defer rows.Close()

	result := []domain.AdoptionRequest{}
	for rows.Next() {
		var (
			req    domain.AdoptionRequest
			status string
		)
		if err := rows.Scan(
			&req.ID, &req.AnimalID, &req.AnimalName, &req.Name, &req.Email, &req.Phone, &req.Address,
			&req.HasPets, &req.ExistingPets, &req.HomeType, &req.HasYard,
			&req.WorkSchedule, &req.Experience, &status, &req.CreatedAt,
		); err != nil {
			return nil, domain.NewStorageError("list adoptions", fmt.Errorf("scan adoption: %w", err))
		}
		req.Status = domain.AdoptionStatus(status)
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list adoptions", err)
	}
	return result, nil
}

func (r *ShelterRepository) ListReports(ctx context.Context) ([]domain.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, location, details, coordinates, images, status, created_at
		FROM reports
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, domain.NewStorageError("list reports", err)
	}
	defer rows.Close()

	result := []domain.Report{}
	for rows.Next() {
		var (
			rep         domain.Report
			coordinates []byte
			images      []byte
			status      string
		)
		if err := rows.Scan(&rep.ID, &rep.Location, &rep.Details, &coordinates, &images, &status, &rep.CreatedAt); err != nil {
			return nil, domain.NewStorageError("list reports", fmt.Errorf("scan report: %w", err))
		}
		if len(coordinates) > 0 {
			rep.Coordinates = json.RawMessage(coordinates)
		}
		rep.Images = []string{}
		if len(images) > 0 {
			if err := json.Unmarshal(images, &rep.Images); err != nil {
				return nil, domain.NewStorageError("list reports", fmt.Errorf("decode report images: %w", err))
			}
		}
		rep.Status = domain.ReportStatus(status)
		result = append(result, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list reports", err)
	}
	return result, nil
}

var (
	_ domain.AdminRepository    = (*ShelterRepository)(nil)
	_ domain.AnimalRepository   = (*ShelterRepository)(nil)
	_ domain.AdoptionRepository = (*ShelterRepository)(nil)
	_ domain.ReportRepository   = (*ShelterRepository)(nil)
)
