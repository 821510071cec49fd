package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/speedsters/marketplace-core/internal/config"
	"github.com/speedsters/marketplace-core/internal/config/di"
	"github.com/speedsters/marketplace-core/internal/economy"
	"github.com/speedsters/marketplace-core/internal/entity"
	"github.com/speedsters/marketplace-core/internal/ledger"
	"github.com/speedsters/marketplace-core/internal/marketplace"
	"github.com/speedsters/marketplace-core/pkg/keys"
)

var (
	marketplaceService marketplace.Service
	economyService     economy.Service
	ledgerService      *ledger.Ledger
)

func main() {
	config.Init("cli")

	container, err := di.NewContainer()
	if err != nil {
		zap.L().With(zap.Error(err)).Fatal("Failed to build container")
	}
	defer container.Delete()

	marketplaceService = container.Get("marketplace").(marketplace.Service)
	economyService = container.Get("economy").(economy.Service)
	ledgerService = container.Get("ledger").(*ledger.Ledger)

	app := &cli.App{
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Initialize the marketplace registry",
				Action: initRegistry,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "authority", Required: true, Usage: "Operator address"},
					&cli.UintFlag{Name: "fee", Required: true, Usage: "Fee in basis points"},
				},
			},
			{
				Name:   "fee",
				Usage:  "Update the marketplace fee",
				Action: updateFee,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "caller", Required: true, Usage: "Registry authority address"},
					&cli.UintFlag{Name: "fee", Required: true, Usage: "Fee in basis points"},
				},
			},
			{
				Name:   "show",
				Usage:  "Show the marketplace registry",
				Action: showRegistry,
			},
			{
				Name:   "listings",
				Usage:  "Enumerate active listings",
				Action: showListings,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "cursor", Value: "", Usage: "Page cursor"},
					&cli.IntFlag{Name: "limit", Value: 25, Usage: "Page size"},
				},
			},
			{
				Name:   "receipts",
				Usage:  "Enumerate sale receipts",
				Action: showReceipts,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "cursor", Value: "", Usage: "Page cursor"},
					&cli.IntFlag{Name: "limit", Value: 25, Usage: "Page size"},
				},
			},
			{
				Name:   "vestings",
				Usage:  "Enumerate vesting schedules",
				Action: showVestings,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "cursor", Value: "", Usage: "Page cursor"},
					&cli.IntFlag{Name: "limit", Value: 25, Usage: "Page size"},
				},
			},
			{
				Name:   "stake-balance",
				Usage:  "Show a party's staked balance",
				Action: showStake,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "address", Required: true, Usage: "Staker address"},
				},
			},
			{
				Name:   "keygen",
				Usage:  "Generate a keypair and print its address",
				Action: keygen,
			},
			{
				Name:   "issue",
				Usage:  "Issue an asset to an owner (dev mode only)",
				Action: issueAsset,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "asset", Required: true, Usage: "Asset address"},
					&cli.StringFlag{Name: "owner", Required: true, Usage: "Owner address"},
				},
			},
			{
				Name:   "credit",
				Usage:  "Credit native units to an address (dev mode only)",
				Action: creditBalance,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "address", Required: true, Usage: "Address to credit"},
					&cli.Uint64Flag{Name: "amount", Required: true, Usage: "Amount in native units"},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		zap.L().With(zap.Error(err)).Fatal("Command failed")
	}
}

func initRegistry(c *cli.Context) error {
	registry, err := marketplaceService.Initialize(entity.Address(c.String("authority")), uint32(c.Uint("fee")))
	if err != nil {
		return err
	}

	return printJSON(registry)
}

func updateFee(c *cli.Context) error {
	registry, err := marketplaceService.UpdateFee(entity.Address(c.String("caller")), uint32(c.Uint("fee")))
	if err != nil {
		return err
	}

	return printJSON(registry)
}

func showRegistry(c *cli.Context) error {
	registry, err := marketplaceService.Registry()
	if err != nil {
		return err
	}

	return printJSON(registry)
}

func showListings(c *cli.Context) error {
	listings, cursor, err := marketplaceService.ActiveListings(c.String("cursor"), c.Int("limit"))
	if err != nil {
		return err
	}

	return printJSON(map[string]interface{}{"listings": listings, "cursor": cursor})
}

func showReceipts(c *cli.Context) error {
	receipts, cursor, err := marketplaceService.Receipts(c.String("cursor"), c.Int("limit"))
	if err != nil {
		return err
	}

	return printJSON(map[string]interface{}{"receipts": receipts, "cursor": cursor})
}

func showVestings(c *cli.Context) error {
	schedules, cursor, err := economyService.Schedules(c.String("cursor"), c.Int("limit"))
	if err != nil {
		return err
	}

	return printJSON(map[string]interface{}{"schedules": schedules, "cursor": cursor})
}

func showStake(c *cli.Context) error {
	position, err := economyService.Position(entity.Address(c.String("address")))
	if err != nil {
		return err
	}

	return printJSON(position)
}

func keygen(c *cli.Context) error {
	kp, err := keys.Generate()
	if err != nil {
		return err
	}

	return printJSON(map[string]string{
		"address":   kp.Address(),
		"publicKey": kp.PublicKey(),
		"seed":      kp.Seed(),
	})
}

func issueAsset(c *cli.Context) error {
	if !config.Get().DevMode {
		return fmt.Errorf("issue requires DEV_MODE=true")
	}

	assetID := entity.Address(c.String("asset"))
	owner := entity.Address(c.String("owner"))
	if err := ledgerService.Issue(assetID, owner); err != nil {
		return err
	}

	return printJSON(map[string]interface{}{"assetId": assetID, "owner": owner})
}

func creditBalance(c *cli.Context) error {
	if !config.Get().DevMode {
		return fmt.Errorf("credit requires DEV_MODE=true")
	}

	addr := entity.Address(c.String("address"))
	if err := ledgerService.Credit(addr, c.Uint64("amount")); err != nil {
		return err
	}

	balance, err := ledgerService.Balance(addr)
	if err != nil {
		return err
	}

	return printJSON(map[string]interface{}{"address": addr, "balance": balance})
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(out))

	return nil
}
