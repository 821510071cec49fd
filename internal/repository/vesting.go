package repository

import (
	"encoding/json"
	"errors"

	"github.com/speedsters/marketplace-core/internal/entity"
	"github.com/speedsters/marketplace-core/internal/store"
)

var ErrScheduleNotFound = errors.New("vesting schedule not found")

const vestingPrefix = "vesting:"

type VestingRepository interface {
	Get(scheduleID string) (entity.VestingSchedule, error)
	GetTx(tx *store.Tx, scheduleID string) (entity.VestingSchedule, error)
	Save(tx *store.Tx, schedule entity.VestingSchedule) error
	List(cursor string, limit int) ([]entity.VestingSchedule, string, error)
}

type vestingRepository struct {
	store *store.Store
}

func NewVestingRepository(s *store.Store) VestingRepository {
	return vestingRepository{s}
}

func vestingKey(scheduleID string) []byte {
	return []byte(vestingPrefix + string(entity.VestingAddress(scheduleID)))
}

func (r vestingRepository) Get(scheduleID string) (entity.VestingSchedule, error) {
	value, err := r.store.Get(vestingKey(scheduleID))
	return decodeSchedule(value, err)
}

func (r vestingRepository) GetTx(tx *store.Tx, scheduleID string) (entity.VestingSchedule, error) {
	value, err := tx.Get(vestingKey(scheduleID))
	return decodeSchedule(value, err)
}

func (r vestingRepository) Save(tx *store.Tx, schedule entity.VestingSchedule) error {
	value, err := json.Marshal(schedule)
	if err != nil {
		return err
	}

	return tx.Set(vestingKey(schedule.ID), value)
}

// List pages through schedules in key order, same cursor contract as the
// listing repository.
func (r vestingRepository) List(cursor string, limit int) ([]entity.VestingSchedule, string, error) {
	schedules := make([]entity.VestingSchedule, 0)
	next := ""
	lastKey := ""

	err := r.store.IteratePrefix([]byte(vestingPrefix), func(key, value []byte) (bool, error) {
		if cursor != "" && string(key) <= cursor {
			return true, nil
		}
		if len(schedules) == limit {
			next = lastKey
			return false, nil
		}

		var schedule entity.VestingSchedule
		if err := json.Unmarshal(value, &schedule); err != nil {
			return false, err
		}

		schedules = append(schedules, schedule)
		lastKey = string(key)

		return true, nil
	})
	if err != nil {
		return nil, "", err
	}

	return schedules, next, nil
}

func decodeSchedule(value []byte, err error) (entity.VestingSchedule, error) {
	if errors.Is(err, store.ErrKeyNotFound) {
		return entity.VestingSchedule{}, ErrScheduleNotFound
	}
	if err != nil {
		return entity.VestingSchedule{}, err
	}

	var schedule entity.VestingSchedule
	err = json.Unmarshal(value, &schedule)

	return schedule, err
}
