package di

import (
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sarulabs/di/v2"
	"go.uber.org/zap"

	"github.com/speedsters/marketplace-core/internal/api"
	"github.com/speedsters/marketplace-core/internal/config"
	"github.com/speedsters/marketplace-core/internal/economy"
	"github.com/speedsters/marketplace-core/internal/event"
	"github.com/speedsters/marketplace-core/internal/ledger"
	"github.com/speedsters/marketplace-core/internal/marketplace"
	"github.com/speedsters/marketplace-core/internal/repository"
	"github.com/speedsters/marketplace-core/internal/store"
)

var Definitions = []di.Def{
	{
		Name: "store",
		Build: func(ctn di.Container) (interface{}, error) {
			s, err := store.Open(config.Get().DataDir)
			if err != nil {
				zap.L().With(zap.Error(err)).Fatal("Failed to open store")
			}

			return s, nil
		},
		Close: func(obj interface{}) error {
			return obj.(*store.Store).Close()
		},
	},
	{
		Name: "ledger",
		Build: func(ctn di.Container) (interface{}, error) {
			return ledger.New(ctn.Get("store").(*store.Store)), nil
		},
	},
	{
		Name: "cache",
		Build: func(ctn di.Container) (interface{}, error) {
			cfg := config.Get()
			return cache.New(
				time.Duration(cfg.CacheExpirationMinutes)*time.Minute,
				time.Duration(cfg.CacheCleanupMinutes)*time.Minute,
			), nil
		},
	},
	{
		Name: "events",
		Build: func(ctn di.Container) (interface{}, error) {
			return event.NewManager(), nil
		},
	},
	{
		Name: "registry.repo",
		Build: func(ctn di.Container) (interface{}, error) {
			return repository.NewRegistryRepository(ctn.Get("store").(*store.Store)), nil
		},
	},
	{
		Name: "listing.repo",
		Build: func(ctn di.Container) (interface{}, error) {
			return repository.NewListingRepository(ctn.Get("store").(*store.Store)), nil
		},
	},
	{
		Name: "vault.repo",
		Build: func(ctn di.Container) (interface{}, error) {
			return repository.NewVaultRepository(ctn.Get("store").(*store.Store)), nil
		},
	},
	{
		Name: "receipt.repo",
		Build: func(ctn di.Container) (interface{}, error) {
			return repository.NewReceiptRepository(ctn.Get("store").(*store.Store)), nil
		},
	},
	{
		Name: "vesting.repo",
		Build: func(ctn di.Container) (interface{}, error) {
			return repository.NewVestingRepository(ctn.Get("store").(*store.Store)), nil
		},
	},
	{
		Name: "stake.repo",
		Build: func(ctn di.Container) (interface{}, error) {
			return repository.NewStakeRepository(ctn.Get("store").(*store.Store)), nil
		},
	},
	{
		Name: "marketplace",
		Build: func(ctn di.Container) (interface{}, error) {
			return marketplace.NewService(
				ctn.Get("store").(*store.Store),
				ctn.Get("ledger").(*ledger.Ledger),
				ctn.Get("registry.repo").(repository.RegistryRepository),
				ctn.Get("listing.repo").(repository.ListingRepository),
				ctn.Get("vault.repo").(repository.VaultRepository),
				ctn.Get("receipt.repo").(repository.ReceiptRepository),
				ctn.Get("events").(*event.Manager),
			), nil
		},
	},
	{
		Name: "economy",
		Build: func(ctn di.Container) (interface{}, error) {
			return economy.NewService(
				ctn.Get("store").(*store.Store),
				ctn.Get("ledger").(*ledger.Ledger),
				ctn.Get("vesting.repo").(repository.VestingRepository),
				ctn.Get("stake.repo").(repository.StakeRepository),
				ctn.Get("events").(*event.Manager),
			), nil
		},
	},
	{
		Name: "api",
		Build: func(ctn di.Container) (interface{}, error) {
			return api.NewServer(
				ctn.Get("marketplace").(marketplace.Service),
				ctn.Get("economy").(economy.Service),
				ctn.Get("ledger").(*ledger.Ledger),
				ctn.Get("cache").(*cache.Cache),
				ctn.Get("events").(*event.Manager),
				config.Get().DevMode,
			), nil
		},
	},
}

func NewContainer() (di.Container, error) {
	builder, err := di.NewBuilder()
	if err != nil {
		return nil, err
	}

	if err := builder.Add(Definitions...); err != nil {
		return nil, err
	}

	return builder.Build(), nil
}
