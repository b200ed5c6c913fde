package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

// skillSeparator разделяет навыки в string_agg; в тексте навыков не встречается.
const skillSeparator = "\x1f"

type volunteerRepository struct {
	db *sql.DB
}

// NewVolunteerRepository создаёт PostgreSQL-реализацию VolunteerRepository.
func NewVolunteerRepository(store *Store) domain.VolunteerRepository {
	return &volunteerRepository{db: store.DB()}
}

const volunteerColumns = `
	v.id, v.name, v.email, v.phone, v.location, v.availability,
	v.experience, v.reason, v.status, v.created_at, v.updated_at,
	COALESCE(string_agg(s.label, E'\x1f' ORDER BY s.id), '')`

func (r *volunteerRepository) ListVolunteers(ctx context.Context) ([]domain.Volunteer, error) {
	return r.query(ctx, "list volunteers", `
		SELECT `+volunteerColumns+`
		FROM volunteers v
		LEFT JOIN volunteer_skills s ON s.volunteer_id = v.id
		GROUP BY v.id
		ORDER BY v.created_at DESC, v.id DESC
	`)
}

func (r *volunteerRepository) LatestVolunteers(ctx context.Context, limit int) ([]domain.Volunteer, error) {
	if limit <= 0 {
		limit = 5
	}
	return r.query(ctx, "latest volunteers", `
		SELECT `+volunteerColumns+`
		FROM volunteers v
		LEFT JOIN volunteer_skills s ON s.volunteer_id = v.id
		GROUP BY v.id
		ORDER BY v.created_at DESC, v.id DESC
		LIMIT $1
	`, limit)
}

func (r *volunteerRepository) GetVolunteer(ctx context.Context, id int64) (domain.Volunteer, error) {
	items, err := r.query(ctx, "get volunteer", `
		SELECT `+volunteerColumns+`
		FROM volunteers v
		LEFT JOIN volunteer_skills s ON s.volunteer_id = v.id
		WHERE v.id = $1
		GROUP BY v.id
	`, id)
	if err != nil {
		return domain.Volunteer{}, err
	}
	if len(items) == 0 {
		return domain.Volunteer{}, domain.ErrVolunteerNotFound
	}
	return items[0], nil
}

func (r *volunteerRepository) query(ctx context.Context, op, query string, args ...any) ([]domain.Volunteer, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewStorageError(op, err)
	}
	defer rows.Close()

	result := []domain.Volunteer{}
	for rows.Next() {
		var (
			v      domain.Volunteer
			status string
			skills string
		)
		if err := rows.Scan(
			&v.ID, &v.Name, &v.Email, &v.Phone, &v.Location, &v.Availability,
			&v.Experience, &v.Reason, &status, &v.CreatedAt, &v.UpdatedAt, &skills,
		); err != nil {
			return nil, domain.NewStorageError(op, fmt.Errorf("scan volunteer: %w", err))
		}
		v.Status = domain.VolunteerStatus(status)
		v.Skills = splitSkills(skills)
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError(op, fmt.Errorf("iterate volunteers: %w", err))
	}
	return result, nil
}

func splitSkills(joined string) []string {
	if joined == "" {
		return []string{}
	}
	return strings.Split(joined, skillSeparator)
}

var _ domain.VolunteerRepository = (*volunteerRepository)(nil)
