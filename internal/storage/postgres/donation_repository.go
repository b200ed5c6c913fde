package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

type donationRepository struct {
	db *sql.DB
}

// NewDonationRepository создаёт PostgreSQL-реализацию DonationRepository.
func NewDonationRepository(store *Store) domain.DonationRepository {
	return &donationRepository{db: store.DB()}
}

const donationColumns = `id, amount, currency, external_order_id, capture_id, status, admin_id, created_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonation(row rowScanner) (domain.Donation, error) {
	var (
		d           domain.Donation
		captureID   sql.NullString
		status      string
		adminID     sql.NullInt64
		completedAt sql.NullTime
	)
	if err := row.Scan(
		&d.ID, &d.Amount, &d.Currency, &d.ExternalOrderID, &captureID,
		&status, &adminID, &d.CreatedAt, &completedAt,
	); err != nil {
		return domain.Donation{}, err
	}
	d.CaptureID = captureID.String
	d.Status = domain.DonationStatus(status)
	if adminID.Valid {
		id := adminID.Int64
		d.AdminID = &id
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		d.CompletedAt = &t
	}
	d.CreatedAt = d.CreatedAt.UTC()
	return d, nil
}

func (r *donationRepository) GetDonationByExternalID(ctx context.Context, externalOrderID string) (domain.Donation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	d, err := scanDonation(r.db.QueryRowContext(ctx, `
		SELECT `+donationColumns+`
		FROM donations
		WHERE external_order_id = $1
	`, externalOrderID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Donation{}, domain.ErrDonationNotFound
	}
	if err != nil {
		return domain.Donation{}, domain.NewStorageError("get donation", err)
	}
	return d, nil
}

func (r *donationRepository) ListRecentDonations(ctx context.Context, limit int) ([]domain.Donation, error) {
	if limit <= 0 {
		limit = 10
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+donationColumns+`
		FROM donations
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, domain.NewStorageError("list donations", err)
	}
	defer rows.Close()

	result := make([]domain.Donation, 0, limit)
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, domain.NewStorageError("list donations", fmt.Errorf("scan donation: %w", err))
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list donations", err)
	}
	return result, nil
}

func (r *donationRepository) DonationSummary(ctx context.Context) (domain.DonationSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var summary domain.DonationSummary
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'pending')
		FROM donations
	`).Scan(&summary.CompletedTotal, &summary.CompletedCount, &summary.PendingCount)
	if err != nil {
		return domain.DonationSummary{}, domain.NewStorageError("donation summary", err)
	}
	return summary, nil
}

var _ domain.DonationRepository = (*donationRepository)(nil)
