package shelter

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

// Размеры списков на панели администратора.
const (
	DashboardAnimals   = 5
	DashboardDonations = 10
)

// Dashboard собирает сводку: число животных, последние поступления
// и агрегаты по пожертвованиям. Чтения выполняются параллельно.
func (s *Service) Dashboard(ctx context.Context) (domain.ShelterStats, error) {
	var stats domain.ShelterStats

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.animals.CountAnimals(ctx)
		stats.TotalAnimals = n
		return err
	})
	g.Go(func() error {
		animals, err := s.animals.ListAnimals(ctx, DashboardAnimals)
		stats.RecentAnimals = animals
		return err
	})
	g.Go(func() error {
		donations, err := s.donations.ListRecentDonations(ctx, DashboardDonations)
		stats.RecentDonations = donations
		return err
	})
	g.Go(func() error {
		summary, err := s.donations.DonationSummary(ctx)
		stats.Donations = summary
		return err
	})

	if err := g.Wait(); err != nil {
		return domain.ShelterStats{}, err
	}
	return stats, nil
}
