package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

func volunteerFields(name string) domain.Fields {
	return domain.Fields{
		"name":         name,
		"email":        name + "@example.com",
		"phone":        "+389 70 000 000",
		"location":     "Skopje",
		"availability": "weekends",
		"reason":       "love dogs",
	}
}

func countTable(t *testing.T, store *Store, table string) int64 {
	t.Helper()
	var n int64
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		var err error
		n, err = tx.Count(ctx, table, nil)
		return err
	})
	require.NoError(t, err)
	return n
}

func TestStore_InsertAppliesDefaults(t *testing.T) {
	store := NewStore()
	repo := NewRepository(store)
	ctx := context.Background()

	var id int64
	err := store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		id, err = tx.Insert(ctx, domain.TableVolunteers, volunteerFields("ana"))
		return err
	})
	require.NoError(t, err)

	v, err := repo.GetVolunteer(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.VolunteerStatusPending, v.Status)
	require.Empty(t, v.Experience)
	require.Empty(t, v.Skills)
	require.False(t, v.CreatedAt.IsZero())
}

func TestStore_BatchFailureRollsBackWholeTransaction(t *testing.T) {
	for failAt := 0; failAt < 3; failAt++ {
		t.Run(fmt.Sprintf("fail at child %d", failAt), func(t *testing.T) {
			store := NewStore()
			injected := errors.New("disk full")
			store.SetFault(func(op Operation) error {
				if op.Kind == OpInsert && op.Table == domain.TableVolunteerSkills && op.Index == failAt {
					return injected
				}
				return nil
			})

			err := store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
				id, err := tx.Insert(ctx, domain.TableVolunteers, volunteerFields("ana"))
				if err != nil {
					return err
				}
				return tx.InsertBatch(ctx, domain.TableVolunteerSkills, []domain.Fields{
					{"volunteer_id": id, "label": "walking"},
					{"volunteer_id": id, "label": "feeding"},
					{"volunteer_id": id, "label": "driving"},
				})
			})

			var serr *domain.StorageError
			require.ErrorAs(t, err, &serr)
			require.ErrorIs(t, err, injected)

			store.SetFault(nil)
			require.Zero(t, countTable(t, store, domain.TableVolunteers))
			require.Zero(t, countTable(t, store, domain.TableVolunteerSkills))
		})
	}
}

func TestStore_PanicInsideTxRollsBackAndRepanics(t *testing.T) {
	store := NewStore()

	func() {
		defer func() {
			require.Equal(t, "boom", recover())
		}()
		_ = store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
			id, err := tx.Insert(ctx, domain.TableVolunteers, volunteerFields("ana"))
			require.NoError(t, err)
			require.NoError(t, tx.InsertBatch(ctx, domain.TableVolunteerSkills, []domain.Fields{
				{"volunteer_id": id, "label": "walking"},
			}))
			require.NoError(t, tx.Enqueue(ctx, domain.OutboxMessage{ID: "m-1"}))
			panic("boom")
		})
	}()

	require.Zero(t, countTable(t, store, domain.TableVolunteers))
	require.Zero(t, countTable(t, store, domain.TableVolunteerSkills))
	require.Empty(t, store.Outbox().Pending())

	_, err := NewRepository(store).ListVolunteers(context.Background())
	require.NoError(t, err, "store must stay usable after a panicking transaction")
}

func TestStore_RollbackFailureIsLoggedAndOriginalErrorReturned(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	store := NewStore().WithLogger(log.NewEntry(logger))
	store.SetFault(func(op Operation) error {
		if op.Kind == OpRollback {
			return errors.New("connection reset")
		}
		return nil
	})

	original := errors.New("validation exploded")
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.Insert(ctx, domain.TableVolunteers, volunteerFields("ana")); err != nil {
			return err
		}
		return original
	})
	require.Same(t, original, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, log.ErrorLevel, entry.Level)
	require.Equal(t, "transaction rollback failed", entry.Message)
	require.Equal(t, original.Error(), entry.Data["cause"])

	store.SetFault(nil)
	require.Zero(t, countTable(t, store, domain.TableVolunteers))
}

func TestStore_CommitFaultRollsBack(t *testing.T) {
	store := NewStore()
	store.SetFault(func(op Operation) error {
		if op.Kind == OpCommit {
			return errors.New("commit lost")
		}
		return nil
	})

	err := store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Insert(ctx, domain.TableVolunteers, volunteerFields("ana"))
		return err
	})
	var serr *domain.StorageError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, "commit transaction", serr.Op)

	store.SetFault(nil)
	require.Zero(t, countTable(t, store, domain.TableVolunteers))
}

func TestStore_ConcurrentWritersAreIsolated(t *testing.T) {
	store := NewStore()
	failing := errors.New("forced failure")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
				id, err := tx.Insert(ctx, domain.TableVolunteers, volunteerFields(fmt.Sprintf("writer%d", i)))
				if err != nil {
					return err
				}
				if err := tx.InsertBatch(ctx, domain.TableVolunteerSkills, []domain.Fields{{"volunteer_id": id, "label": "walking"}}); err != nil {
					return err
				}
				if i%2 == 1 {
					return failing
				}
				return nil
			})
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 4, countTable(t, store, domain.TableVolunteers))
	require.EqualValues(t, 4, countTable(t, store, domain.TableVolunteerSkills))

	all, err := NewRepository(store).ListVolunteers(context.Background())
	require.NoError(t, err)
	for _, v := range all {
		require.Equal(t, []string{"walking"}, v.Skills, "volunteer %d", v.ID)
	}
}

func TestStore_UniqueAndCheckConstraints(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	insertDonation := func(orderID string, amount decimal.Decimal) error {
		return store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			_, err := tx.Insert(ctx, domain.TableDonations, domain.Fields{
				"amount":            amount,
				"external_order_id": orderID,
			})
			return err
		})
	}

	require.NoError(t, insertDonation("ORDER-1", decimal.RequireFromString("10.00")))
	require.ErrorIs(t, insertDonation("ORDER-1", decimal.RequireFromString("5.00")), domain.ErrDuplicate)
	require.Error(t, insertDonation("ORDER-2", decimal.Zero))

	err := store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Insert(ctx, domain.TableVolunteerSkills, domain.Fields{"volunteer_id": int64(99), "label": "walking"})
		return err
	})
	require.Error(t, err, "missing parent must violate the foreign key")

	err = store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Update(ctx, domain.TableDonations, domain.Fields{"external_order_id": "ORDER-1"}, domain.Patch{"status": "refunded"})
		return err
	})
	require.Error(t, err)

	d, err := NewRepository(store).GetDonationByExternalID(ctx, "ORDER-1")
	require.NoError(t, err)
	require.Equal(t, domain.DonationStatusPending, d.Status)
	require.Equal(t, domain.DefaultCurrency, d.Currency)
	require.Nil(t, d.AdminID)
	require.Nil(t, d.CompletedAt)
}

func TestStore_UpdateMatchesAndCounts(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.Insert(ctx, domain.TableDonations, domain.Fields{"amount": decimal.NewFromInt(5), "external_order_id": "A"}); err != nil {
			return err
		}
		_, err := tx.Insert(ctx, domain.TableDonations, domain.Fields{"amount": decimal.NewFromInt(7), "external_order_id": "B"})
		return err
	})
	require.NoError(t, err)

	var first, second int64
	err = store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		match := domain.Fields{"external_order_id": "A", "status": domain.DonationStatusPending}
		patch := domain.Patch{"status": domain.DonationStatusCompleted, "capture_id": "CAP-A"}
		var err error
		if first, err = tx.Update(ctx, domain.TableDonations, match, patch); err != nil {
			return err
		}
		second, err = tx.Update(ctx, domain.TableDonations, match, patch)
		return err
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, first)
	require.EqualValues(t, 0, second)

	summary, err := NewRepository(store).DonationSummary(ctx)
	require.NoError(t, err)
	require.True(t, summary.CompletedTotal.Equal(decimal.NewFromInt(5)))
	require.EqualValues(t, 1, summary.CompletedCount)
	require.EqualValues(t, 1, summary.PendingCount)

	err = store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Update(ctx, domain.TableDonations, domain.Fields{"external_order_id": "A"}, domain.Patch{})
		return err
	})
	require.ErrorIs(t, err, domain.ErrEmptyPatch)
}

func TestStore_DeleteCascadesToChildren(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var keep, drop int64
	err := store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		if keep, err = tx.Insert(ctx, domain.TableVolunteers, volunteerFields("keep")); err != nil {
			return err
		}
		if drop, err = tx.Insert(ctx, domain.TableVolunteers, volunteerFields("drop")); err != nil {
			return err
		}
		return tx.InsertBatch(ctx, domain.TableVolunteerSkills, []domain.Fields{
			{"volunteer_id": keep, "label": "walking"},
			{"volunteer_id": drop, "label": "feeding"},
			{"volunteer_id": drop, "label": "driving"},
		})
	})
	require.NoError(t, err)

	var removed int64
	err = store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		removed, err = tx.Delete(ctx, domain.TableVolunteers, domain.Fields{"id": drop})
		return err
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
	require.EqualValues(t, 1, countTable(t, store, domain.TableVolunteerSkills))

	err = store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Delete(ctx, domain.TableVolunteers, nil)
		return err
	})
	require.Error(t, err, "unconditional delete must be refused")
}

func TestRepository_ListsNewestFirstWithLimit(t *testing.T) {
	store := NewStore()
	repo := NewRepository(store)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		err := store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
			_, err := tx.Insert(ctx, domain.TableVolunteers, volunteerFields(fmt.Sprintf("v%d", i)))
			return err
		})
		require.NoError(t, err)
	}

	latest, err := repo.LatestVolunteers(ctx, 0)
	require.NoError(t, err)
	require.Len(t, latest, 5)
	require.Equal(t, "v6", latest[0].Name)

	_, err = repo.GetVolunteer(ctx, 404)
	require.ErrorIs(t, err, domain.ErrVolunteerNotFound)
}

func TestRepository_AdoptionsAndReports(t *testing.T) {
	store := NewStore()
	repo := NewRepository(store)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		animalID, err := tx.Insert(ctx, domain.TableAnimals, domain.Fields{"name": "Rex", "breed": "mixed", "age": 3, "image_url": "rex.jpg"})
		if err != nil {
			return err
		}
		if _, err := tx.Insert(ctx, domain.TableAdoptions, domain.Fields{
			"animal_id": animalID, "name": "Ana", "email": "ana@example.com", "phone": "123", "has_yard": true,
		}); err != nil {
			return err
		}
		_, err = tx.Insert(ctx, domain.TableReports, domain.Fields{
			"location": "Park", "details": "injured dog",
			"coordinates": `{"lat":41.99,"lng":21.43}`, "images": `["a.jpg","b.jpg"]`,
		})
		return err
	})
	require.NoError(t, err)

	adoptions, err := repo.ListAdoptions(ctx)
	require.NoError(t, err)
	require.Len(t, adoptions, 1)
	require.Equal(t, "Rex", adoptions[0].AnimalName)
	require.True(t, adoptions[0].HasYard)
	require.Equal(t, domain.AdoptionStatusPending, adoptions[0].Status)

	reports, err := repo.ListReports(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, []string{"a.jpg", "b.jpg"}, reports[0].Images)
	require.JSONEq(t, `{"lat":41.99,"lng":21.43}`, string(reports[0].Coordinates))

	total, err := repo.CountAnimals(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}
