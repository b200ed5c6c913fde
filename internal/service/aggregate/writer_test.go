package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
	"github.com/vladislavdragonenkov/straycare/internal/storage/memory"
)

var volunteerRequired = []string{"name", "email", "phone", "location", "availability", "reason"}

func volunteerPlan(name string, skills ...string) Plan {
	plan := Plan{
		Name: "volunteer",
		Parent: domain.Record{
			Table: domain.TableVolunteers,
			Fields: domain.Fields{
				"name":         name,
				"email":        name + "@example.com",
				"phone":        "+389 70 000 000",
				"location":     "Skopje",
				"availability": "weekends",
				"reason":       "love dogs",
			},
			Required: volunteerRequired,
		},
		ForeignKey: "volunteer_id",
		ChildPath:  "skills",
	}
	for _, s := range skills {
		plan.Children = append(plan.Children, domain.Record{
			Table:    domain.TableVolunteerSkills,
			Fields:   domain.Fields{"label": s},
			Required: []string{"label"},
		})
	}
	return plan
}

func count(t *testing.T, store *memory.Store, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, store.WithinTx(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		var err error
		n, err = tx.Count(ctx, table, nil)
		return err
	}))
	return n
}

type countingTransactor struct {
	calls int
}

func (c *countingTransactor) WithinTx(context.Context, func(context.Context, domain.Tx) error) error {
	c.calls++
	return nil
}

func TestWriter_CreatesParentWithChildren(t *testing.T) {
	store := memory.NewStore()
	writer := NewWriter(store)

	id, err := writer.Create(context.Background(), volunteerPlan("ana", "walking", "feeding"))
	require.NoError(t, err)
	require.NotZero(t, id)

	v, err := memory.NewRepository(store).GetVolunteer(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"walking", "feeding"}, v.Skills)
	assert.Equal(t, domain.VolunteerStatusPending, v.Status)
}

func TestWriter_EmptyChildListIsValid(t *testing.T) {
	store := memory.NewStore()

	id, err := NewWriter(store).Create(context.Background(), volunteerPlan("ana"))
	require.NoError(t, err)

	v, err := memory.NewRepository(store).GetVolunteer(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, v.Skills)
	assert.Zero(t, count(t, store, domain.TableVolunteerSkills))
}

func TestWriter_ValidationEnumeratesEveryProblemBeforeStorage(t *testing.T) {
	plan := volunteerPlan("ana", "walking", "  ", "driving", "")
	delete(plan.Parent.Fields, "email")
	plan.Parent.Fields["location"] = ""

	tx := &countingTransactor{}
	_, err := NewWriter(tx).Create(context.Background(), plan)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"email", "location", "skills[1].label", "skills[3].label"}, verr.FieldNames())
	assert.Zero(t, tx.calls, "storage must not be touched on validation failure")
}

func TestWriter_MergesCallerProblems(t *testing.T) {
	plan := volunteerPlan("ana")
	delete(plan.Parent.Fields, "phone")
	plan.Problems = domain.NewValidationError("invalid volunteer application")
	plan.Problems.Add("email", "must be a valid email")

	_, err := NewWriter(memory.NewStore()).Create(context.Background(), plan)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "invalid volunteer application", verr.Message)
	assert.Equal(t, []string{"email", "phone"}, verr.FieldNames())
}

func TestWriter_FaultOnNthChildLeavesNoOrphan(t *testing.T) {
	skills := []string{"walking", "feeding", "driving", "grooming"}
	for n := range skills {
		t.Run(fmt.Sprintf("child %d", n), func(t *testing.T) {
			store := memory.NewStore()
			store.SetFault(func(op memory.Operation) error {
				if op.Kind == memory.OpInsert && op.Table == domain.TableVolunteerSkills && op.Index == n {
					return errors.New("connection lost")
				}
				return nil
			})

			id, err := NewWriter(store).Create(context.Background(), volunteerPlan("ana", skills...))
			require.Error(t, err)
			assert.Zero(t, id)

			var serr *domain.StorageError
			assert.ErrorAs(t, err, &serr)

			store.SetFault(nil)
			assert.Zero(t, count(t, store, domain.TableVolunteers))
			assert.Zero(t, count(t, store, domain.TableVolunteerSkills))
		})
	}
}

func TestWriter_RollbackFailureDoesNotMaskOriginalError(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	store := memory.NewStore().WithLogger(log.NewEntry(logger))
	insertErr := errors.New("constraint exploded")
	store.SetFault(func(op memory.Operation) error {
		switch {
		case op.Kind == memory.OpInsert && op.Table == domain.TableVolunteerSkills:
			return insertErr
		case op.Kind == memory.OpRollback:
			return errors.New("rollback lost")
		}
		return nil
	})

	_, err := NewWriter(store).Create(context.Background(), volunteerPlan("ana", "walking"))
	require.ErrorIs(t, err, insertErr)

	var found bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "transaction rollback failed" {
			found = true
		}
	}
	assert.True(t, found, "rollback failure must be logged")
}

func TestWriter_ReinvokeAfterFailureCreatesIndependentAggregate(t *testing.T) {
	store := memory.NewStore()
	fail := true
	store.SetFault(func(op memory.Operation) error {
		if fail && op.Kind == memory.OpInsert && op.Table == domain.TableVolunteerSkills {
			return errors.New("transient")
		}
		return nil
	})
	writer := NewWriter(store)

	_, err := writer.Create(context.Background(), volunteerPlan("ana", "walking"))
	require.Error(t, err)

	fail = false
	first, err := writer.Create(context.Background(), volunteerPlan("ana", "walking"))
	require.NoError(t, err)
	second, err := writer.Create(context.Background(), volunteerPlan("ana", "walking"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.EqualValues(t, 2, count(t, store, domain.TableVolunteers))
	assert.EqualValues(t, 2, count(t, store, domain.TableVolunteerSkills))
}

func TestWriter_ConcurrentWritesDoNotInterfere(t *testing.T) {
	store := memory.NewStore()
	writer := NewWriter(store)

	var (
		wg        sync.WaitGroup
		okID      int64
		okErr     error
		rejectErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		okID, okErr = writer.Create(context.Background(), volunteerPlan("ana", "walking", "feeding"))
	}()
	go func() {
		defer wg.Done()
		plan := volunteerPlan("bob", "driving")
		delete(plan.Parent.Fields, "reason")
		_, rejectErr = writer.Create(context.Background(), plan)
	}()
	wg.Wait()

	require.NoError(t, okErr)
	var verr *domain.ValidationError
	require.ErrorAs(t, rejectErr, &verr)

	v, err := memory.NewRepository(store).GetVolunteer(context.Background(), okID)
	require.NoError(t, err)
	assert.Equal(t, "ana", v.Name)
	assert.Equal(t, []string{"walking", "feeding"}, v.Skills)
	assert.EqualValues(t, 1, count(t, store, domain.TableVolunteers))
}

func TestWriter_RejectsMalformedPlan(t *testing.T) {
	plan := volunteerPlan("ana", "walking")
	plan.ForeignKey = ""

	_, err := NewWriter(&countingTransactor{}).Create(context.Background(), plan)
	require.ErrorIs(t, err, errInvalidPlan)
}
