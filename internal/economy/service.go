package economy

import (
	"errors"
	"fmt"
	"math/bits"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/speedsters/marketplace-core/internal/entity"
	"github.com/speedsters/marketplace-core/internal/event"
	"github.com/speedsters/marketplace-core/internal/ledger"
	"github.com/speedsters/marketplace-core/internal/repository"
	"github.com/speedsters/marketplace-core/internal/store"
)

type Service interface {
	CreateVestingSchedule(authority, beneficiary entity.Address, totalAmount uint64, startAt, cliffAt, endAt int64) (entity.VestingSchedule, error)
	Release(beneficiary entity.Address, scheduleID string) (uint64, entity.VestingSchedule, error)
	Schedule(scheduleID string) (entity.VestingSchedule, error)
	Schedules(cursor string, limit int) ([]entity.VestingSchedule, string, error)

	Stake(owner entity.Address, amount uint64) (entity.StakePosition, error)
	Unstake(owner entity.Address, amount uint64) (entity.StakePosition, error)
	Position(owner entity.Address) (entity.StakePosition, error)
}

type service struct {
	store       *store.Store
	ledger      *ledger.Ledger
	vestingRepo repository.VestingRepository
	stakeRepo   repository.StakeRepository
	events      *event.Manager
}

func NewService(
	s *store.Store,
	l *ledger.Ledger,
	vestingRepo repository.VestingRepository,
	stakeRepo repository.StakeRepository,
	events *event.Manager,
) Service {
	return service{s, l, vestingRepo, stakeRepo, events}
}

// CreateVestingSchedule locks totalAmount of the authority's funds in a fresh
// vesting vault and records the payout window, in one commit.
func (s service) CreateVestingSchedule(authority, beneficiary entity.Address, totalAmount uint64, startAt, cliffAt, endAt int64) (entity.VestingSchedule, error) {
	if totalAmount == 0 {
		return entity.VestingSchedule{}, fmt.Errorf("%w: totalAmount must be positive", ErrInvalidAmount)
	}
	if startAt >= endAt || cliffAt < startAt || cliffAt > endAt {
		return entity.VestingSchedule{}, fmt.Errorf("%w: start %d, cliff %d, end %d", ErrInvalidSchedule, startAt, cliffAt, endAt)
	}
	if err := beneficiary.Validate(); err != nil {
		return entity.VestingSchedule{}, err
	}

	var schedule entity.VestingSchedule

	err := s.store.Update(func(tx *store.Tx) error {
		id := uuid.NewString()

		if err := s.ledger.Transfer(tx, authority, entity.VestingVaultAddress(id), totalAmount); err != nil {
			return err
		}

		schedule = entity.VestingSchedule{
			ID:          id,
			Authority:   authority,
			Beneficiary: beneficiary,
			TotalAmount: totalAmount,
			StartAt:     startAt,
			CliffAt:     cliffAt,
			EndAt:       endAt,
			CreatedAt:   time.Now().Unix(),
		}

		return s.vestingRepo.Save(tx, schedule)
	})
	if err != nil {
		return entity.VestingSchedule{}, err
	}

	s.events.EmitEvent(event.VestingCreatedEvent, schedule)
	zap.L().With(
		zap.String("schedule", schedule.ID),
		zap.String("beneficiary", beneficiary.String()),
		zap.Uint64("totalAmount", totalAmount),
	).Info("Vesting schedule created")

	return schedule, nil
}

// Release pays the beneficiary everything vested so far that has not already
// been released. Only the beneficiary can claim.
func (s service) Release(beneficiary entity.Address, scheduleID string) (uint64, entity.VestingSchedule, error) {
	var (
		schedule entity.VestingSchedule
		released uint64
	)

	err := s.store.Update(func(tx *store.Tx) error {
		current, err := s.vestingRepo.GetTx(tx, scheduleID)
		if err != nil {
			return err
		}
		if current.Beneficiary != beneficiary {
			return fmt.Errorf("%w: %s is not the beneficiary of schedule %s", ErrUnauthorized, beneficiary, scheduleID)
		}

		vested := VestedAmount(time.Now().Unix(), current.StartAt, current.CliffAt, current.EndAt, current.TotalAmount)
		if vested <= current.ReleasedAmount {
			return fmt.Errorf("%w: schedule %s", ErrNothingVested, scheduleID)
		}
		released = vested - current.ReleasedAmount

		if err := s.ledger.Transfer(tx, entity.VestingVaultAddress(scheduleID), beneficiary, released); err != nil {
			return err
		}

		current.ReleasedAmount = vested
		schedule = current

		return s.vestingRepo.Save(tx, schedule)
	})
	if err != nil {
		return 0, entity.VestingSchedule{}, err
	}

	s.events.EmitEvent(event.VestingReleasedEvent, schedule)
	zap.L().With(
		zap.String("schedule", scheduleID),
		zap.Uint64("released", released),
	).Info("Vested funds released")

	return released, schedule, nil
}

func (s service) Schedule(scheduleID string) (entity.VestingSchedule, error) {
	return s.vestingRepo.Get(scheduleID)
}

func (s service) Schedules(cursor string, limit int) ([]entity.VestingSchedule, string, error) {
	return s.vestingRepo.List(cursor, limit)
}

// Stake moves amount into the staking vault and grows the owner's position,
// in one commit.
func (s service) Stake(owner entity.Address, amount uint64) (entity.StakePosition, error) {
	if amount == 0 {
		return entity.StakePosition{}, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}

	var position entity.StakePosition

	err := s.store.Update(func(tx *store.Tx) error {
		if err := s.ledger.Transfer(tx, owner, entity.StakingVaultAddress(), amount); err != nil {
			return err
		}

		current, err := s.stakeRepo.GetTx(tx, owner)
		if errors.Is(err, repository.ErrStakeNotFound) {
			current = entity.StakePosition{Owner: owner}
		} else if err != nil {
			return err
		}

		current.Balance += amount
		current.LastStakedAt = time.Now().Unix()
		position = current

		return s.stakeRepo.Save(tx, position)
	})
	if err != nil {
		return entity.StakePosition{}, err
	}

	s.events.EmitEvent(event.StakeChangedEvent, position)
	zap.L().With(zap.String("owner", owner.String()), zap.Uint64("amount", amount)).Info("Funds staked")

	return position, nil
}

// Unstake returns amount from the staking vault to the owner. A position
// drained to zero is removed.
func (s service) Unstake(owner entity.Address, amount uint64) (entity.StakePosition, error) {
	if amount == 0 {
		return entity.StakePosition{}, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}

	var position entity.StakePosition

	err := s.store.Update(func(tx *store.Tx) error {
		current, err := s.stakeRepo.GetTx(tx, owner)
		if errors.Is(err, repository.ErrStakeNotFound) || (err == nil && current.Balance < amount) {
			return fmt.Errorf("%w: %s has %d staked, needs %d", ErrInsufficientStake, owner, current.Balance, amount)
		}
		if err != nil {
			return err
		}

		if err := s.ledger.Transfer(tx, entity.StakingVaultAddress(), owner, amount); err != nil {
			return err
		}

		current.Balance -= amount
		position = current

		if current.Balance == 0 {
			return s.stakeRepo.Delete(tx, owner)
		}

		return s.stakeRepo.Save(tx, position)
	})
	if err != nil {
		return entity.StakePosition{}, err
	}

	s.events.EmitEvent(event.StakeChangedEvent, position)
	zap.L().With(zap.String("owner", owner.String()), zap.Uint64("amount", amount)).Info("Funds unstaked")

	return position, nil
}

func (s service) Position(owner entity.Address) (entity.StakePosition, error) {
	return s.stakeRepo.Get(owner)
}

// VestedAmount is the linear payout curve: zero before the cliff, everything
// from endAt on, floor(total * elapsed / duration) in between. The product
// can exceed 64 bits; elapsed is strictly below duration in the linear
// branch, so the high word stays below the divisor and the 128-bit division
// cannot trap.
func VestedAmount(nowTs, startAt, cliffAt, endAt int64, total uint64) uint64 {
	if nowTs < cliffAt {
		return 0
	}
	if nowTs >= endAt {
		return total
	}

	elapsed := uint64(nowTs - startAt)
	duration := uint64(endAt - startAt)

	hi, lo := bits.Mul64(total, elapsed)
	vested, _ := bits.Div64(hi, lo, duration)

	return vested
}
