package repository_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedsters/marketplace-core/internal/entity"
	"github.com/speedsters/marketplace-core/internal/repository"
	"github.com/speedsters/marketplace-core/internal/store"
)

func TestVestingRepository_SaveGet(t *testing.T) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	repo := repository.NewVestingRepository(s)

	_, err = repo.Get("missing")
	require.ErrorIs(t, err, repository.ErrScheduleNotFound)

	schedule := entity.VestingSchedule{
		ID:          "schedule-1",
		Authority:   entity.DeriveAddress("test-party", "operator"),
		Beneficiary: entity.DeriveAddress("test-party", "beneficiary"),
		TotalAmount: 5_000,
		StartAt:     100,
		CliffAt:     150,
		EndAt:       200,
		CreatedAt:   90,
	}
	require.NoError(t, s.Update(func(tx *store.Tx) error {
		return repo.Save(tx, schedule)
	}))

	fetched, err := repo.Get("schedule-1")
	require.NoError(t, err)
	assert.Equal(t, schedule, fetched)
}

func TestVestingRepository_ListPaging(t *testing.T) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	repo := repository.NewVestingRepository(s)

	for i := 0; i < 5; i++ {
		schedule := entity.VestingSchedule{
			ID:          fmt.Sprintf("schedule-%d", i),
			TotalAmount: uint64(i + 1),
		}
		require.NoError(t, s.Update(func(tx *store.Tx) error {
			return repo.Save(tx, schedule)
		}))
	}

	seen := make(map[string]bool)
	cursor := ""
	for {
		schedules, next, err := repo.List(cursor, 2)
		require.NoError(t, err)
		for _, schedule := range schedules {
			require.False(t, seen[schedule.ID])
			seen[schedule.ID] = true
		}
		if next == "" {
			break
		}
		cursor = next
	}

	assert.Len(t, seen, 5)
}
