package economy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedsters/marketplace-core/internal/economy"
	"github.com/speedsters/marketplace-core/internal/entity"
	"github.com/speedsters/marketplace-core/internal/event"
	"github.com/speedsters/marketplace-core/internal/ledger"
	"github.com/speedsters/marketplace-core/internal/repository"
	"github.com/speedsters/marketplace-core/internal/store"
)

type fixture struct {
	store   *store.Store
	ledger  *ledger.Ledger
	service economy.Service

	operator    entity.Address
	beneficiary entity.Address
}

func setup(t *testing.T) *fixture {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	l := ledger.New(s)
	service := economy.NewService(
		s,
		l,
		repository.NewVestingRepository(s),
		repository.NewStakeRepository(s),
		event.NewManager(),
	)

	return &fixture{
		store:       s,
		ledger:      l,
		service:     service,
		operator:    entity.DeriveAddress("test-party", "operator"),
		beneficiary: entity.DeriveAddress("test-party", "beneficiary"),
	}
}

func TestVestedAmount(t *testing.T) {
	cases := []struct {
		name     string
		now      int64
		start    int64
		cliff    int64
		end      int64
		total    uint64
		expected uint64
	}{
		{"before cliff", 99, 0, 100, 200, 1000, 0},
		{"at cliff", 100, 0, 100, 200, 1000, 500},
		{"midway", 150, 0, 100, 200, 1000, 750},
		{"at end", 200, 0, 100, 200, 1000, 1000},
		{"past end", 500, 0, 100, 200, 1000, 1000},
		{"rounds down", 1, 0, 0, 3, 1000, 333},
		{"no cliff start", 0, 0, 0, 100, 1000, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, economy.VestedAmount(tc.now, tc.start, tc.cliff, tc.end, tc.total))
		})
	}
}

func TestCreateVestingSchedule(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.ledger.Credit(f.operator, 10_000))

	now := time.Now().Unix()
	schedule, err := f.service.CreateVestingSchedule(f.operator, f.beneficiary, 6_000, now, now+100, now+200)
	require.NoError(t, err)
	assert.NotEmpty(t, schedule.ID)
	assert.Equal(t, f.operator, schedule.Authority)
	assert.Equal(t, f.beneficiary, schedule.Beneficiary)
	assert.Equal(t, uint64(6_000), schedule.TotalAmount)
	assert.Equal(t, uint64(0), schedule.ReleasedAmount)
	assert.Equal(t, uint64(6_000), schedule.Remaining())

	operatorBalance, _ := f.ledger.Balance(f.operator)
	vaultBalance, _ := f.ledger.Balance(entity.VestingVaultAddress(schedule.ID))
	assert.Equal(t, uint64(4_000), operatorBalance)
	assert.Equal(t, uint64(6_000), vaultBalance)

	fetched, err := f.service.Schedule(schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule, fetched)
}

func TestCreateVestingSchedule_InvalidWindow(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.ledger.Credit(f.operator, 10_000))
	now := time.Now().Unix()

	// end before start
	_, err := f.service.CreateVestingSchedule(f.operator, f.beneficiary, 100, now, now, now-1)
	require.ErrorIs(t, err, economy.ErrInvalidSchedule)

	// cliff outside the window
	_, err = f.service.CreateVestingSchedule(f.operator, f.beneficiary, 100, now, now-10, now+100)
	require.ErrorIs(t, err, economy.ErrInvalidSchedule)

	_, err = f.service.CreateVestingSchedule(f.operator, f.beneficiary, 0, now, now, now+100)
	require.ErrorIs(t, err, economy.ErrInvalidAmount)
}

func TestCreateVestingSchedule_InsufficientFunds(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.ledger.Credit(f.operator, 50))
	now := time.Now().Unix()

	_, err := f.service.CreateVestingSchedule(f.operator, f.beneficiary, 100, now, now, now+100)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	// nothing committed
	schedules, _, err := f.service.Schedules("", 10)
	require.NoError(t, err)
	assert.Empty(t, schedules)

	balance, _ := f.ledger.Balance(f.operator)
	assert.Equal(t, uint64(50), balance)
}

func TestRelease_FullyVested(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.ledger.Credit(f.operator, 6_000))

	now := time.Now().Unix()
	schedule, err := f.service.CreateVestingSchedule(f.operator, f.beneficiary, 6_000, now-300, now-200, now-100)
	require.NoError(t, err)

	released, updated, err := f.service.Release(f.beneficiary, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(6_000), released)
	assert.Equal(t, uint64(6_000), updated.ReleasedAmount)
	assert.Equal(t, uint64(0), updated.Remaining())

	beneficiaryBalance, _ := f.ledger.Balance(f.beneficiary)
	vaultBalance, _ := f.ledger.Balance(entity.VestingVaultAddress(schedule.ID))
	assert.Equal(t, uint64(6_000), beneficiaryBalance)
	assert.Equal(t, uint64(0), vaultBalance)

	// everything already claimed
	_, _, err = f.service.Release(f.beneficiary, schedule.ID)
	require.ErrorIs(t, err, economy.ErrNothingVested)
}

func TestRelease_BeforeCliff(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.ledger.Credit(f.operator, 6_000))

	now := time.Now().Unix()
	schedule, err := f.service.CreateVestingSchedule(f.operator, f.beneficiary, 6_000, now-100, now+100, now+200)
	require.NoError(t, err)

	_, _, err = f.service.Release(f.beneficiary, schedule.ID)
	require.ErrorIs(t, err, economy.ErrNothingVested)

	vaultBalance, _ := f.ledger.Balance(entity.VestingVaultAddress(schedule.ID))
	assert.Equal(t, uint64(6_000), vaultBalance)
}

func TestRelease_NotBeneficiary(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.ledger.Credit(f.operator, 6_000))

	now := time.Now().Unix()
	schedule, err := f.service.CreateVestingSchedule(f.operator, f.beneficiary, 6_000, now-300, now-200, now-100)
	require.NoError(t, err)

	_, _, err = f.service.Release(f.operator, schedule.ID)
	require.ErrorIs(t, err, economy.ErrUnauthorized)
}

func TestRelease_UnknownSchedule(t *testing.T) {
	f := setup(t)

	_, _, err := f.service.Release(f.beneficiary, "no-such-schedule")
	require.ErrorIs(t, err, repository.ErrScheduleNotFound)
}

func TestStakeAndUnstake(t *testing.T) {
	f := setup(t)
	staker := entity.DeriveAddress("test-party", "staker")
	require.NoError(t, f.ledger.Credit(staker, 1_000))

	position, err := f.service.Stake(staker, 600)
	require.NoError(t, err)
	assert.Equal(t, staker, position.Owner)
	assert.Equal(t, uint64(600), position.Balance)
	assert.NotZero(t, position.LastStakedAt)

	position, err = f.service.Stake(staker, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(700), position.Balance)

	stakerBalance, _ := f.ledger.Balance(staker)
	vaultBalance, _ := f.ledger.Balance(entity.StakingVaultAddress())
	assert.Equal(t, uint64(300), stakerBalance)
	assert.Equal(t, uint64(700), vaultBalance)

	position, err = f.service.Unstake(staker, 250)
	require.NoError(t, err)
	assert.Equal(t, uint64(450), position.Balance)

	stakerBalance, _ = f.ledger.Balance(staker)
	assert.Equal(t, uint64(550), stakerBalance)
}

func TestUnstake_MoreThanStaked(t *testing.T) {
	f := setup(t)
	staker := entity.DeriveAddress("test-party", "staker")
	require.NoError(t, f.ledger.Credit(staker, 1_000))

	_, err := f.service.Stake(staker, 200)
	require.NoError(t, err)

	_, err = f.service.Unstake(staker, 201)
	require.ErrorIs(t, err, economy.ErrInsufficientStake)

	position, err := f.service.Position(staker)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), position.Balance)
}

func TestUnstake_NoPosition(t *testing.T) {
	f := setup(t)
	staker := entity.DeriveAddress("test-party", "staker")

	_, err := f.service.Unstake(staker, 1)
	require.ErrorIs(t, err, economy.ErrInsufficientStake)
}

func TestUnstake_DrainedPositionRemoved(t *testing.T) {
	f := setup(t)
	staker := entity.DeriveAddress("test-party", "staker")
	require.NoError(t, f.ledger.Credit(staker, 500))

	_, err := f.service.Stake(staker, 500)
	require.NoError(t, err)

	position, err := f.service.Unstake(staker, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), position.Balance)

	_, err = f.service.Position(staker)
	require.ErrorIs(t, err, repository.ErrStakeNotFound)

	stakerBalance, _ := f.ledger.Balance(staker)
	assert.Equal(t, uint64(500), stakerBalance)
}

func TestStake_ZeroAmount(t *testing.T) {
	f := setup(t)
	staker := entity.DeriveAddress("test-party", "staker")

	_, err := f.service.Stake(staker, 0)
	require.ErrorIs(t, err, economy.ErrInvalidAmount)

	_, err = f.service.Unstake(staker, 0)
	require.ErrorIs(t, err, economy.ErrInvalidAmount)
}
