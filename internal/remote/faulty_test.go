package remote

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/starford/talentflow/internal/apperr"
	"github.com/starford/talentflow/internal/faults"
	"github.com/starford/talentflow/internal/models"
	"github.com/starford/talentflow/internal/testutil"
)

func TestWithFaultsFailedWriteNeverReachesStore(t *testing.T) {
	db := testutil.TestDB(t)
	testutil.Seed(t, db, 3)
	ctx := context.Background()

	inj := faults.New(faults.Policy{Rates: map[string]float64{OpReorderJob: 1}}, rand.NewPCG(1, 2))
	s := WithFaults(db, inj)

	if err := s.ReorderJob(ctx, 3, 1); !errors.Is(err, apperr.ErrTransient) {
		t.Fatalf("reorder err = %v, want transient", err)
	}
	j, _ := db.GetJob(ctx, 3)
	if j.Order != 3 {
		t.Errorf("order = %d after failed reorder", j.Order)
	}

	title := "Still writable"
	if err := s.UpdateJob(ctx, 3, models.JobPatch{Title: &title}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if page, err := s.ListJobs(ctx, models.JobQuery{Page: 1, PageSize: 10}); err != nil || page.TotalCount != 3 {
		t.Errorf("reads pass through: %+v, %v", page, err)
	}
}

func TestWithFaultsDelayHonoursContext(t *testing.T) {
	db := testutil.TestDB(t)
	inj := faults.New(faults.Policy{LatencyMin: time.Minute, LatencyMax: time.Minute}, rand.NewPCG(1, 2))
	s := WithFaults(db, inj)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.GetJob(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestWithFaultsNilInjector(t *testing.T) {
	db := testutil.TestDB(t)
	if WithFaults(db, nil) != Store(db) {
		t.Error("nil injector should return the store unchanged")
	}
}
