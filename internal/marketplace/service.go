package marketplace

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
	Initialize(authority entity.Address, feeBps uint32) (entity.Registry, error)
	UpdateFee(caller entity.Address, feeBps uint32) (entity.Registry, error)
	Registry() (entity.Registry, error)

	List(seller, assetID entity.Address, price uint64) (entity.Listing, error)
	Cancel(seller, assetID entity.Address) error
	Buy(buyer, assetID entity.Address) (entity.SaleReceipt, error)

	Listing(assetID entity.Address) (entity.Listing, error)
	ActiveListings(cursor string, limit int) ([]entity.Listing, string, error)
	Receipts(cursor string, limit int) ([]entity.SaleReceipt, string, error)
}

type service struct {
	store        *store.Store
	ledger       *ledger.Ledger
	registryRepo repository.RegistryRepository
	listingRepo  repository.ListingRepository
	vaultRepo    repository.VaultRepository
	receiptRepo  repository.ReceiptRepository
	events       *event.Manager
}

func NewService(
	s *store.Store,
	l *ledger.Ledger,
	registryRepo repository.RegistryRepository,
	listingRepo repository.ListingRepository,
	vaultRepo repository.VaultRepository,
	receiptRepo repository.ReceiptRepository,
	events *event.Manager,
) Service {
	return service{s, l, registryRepo, listingRepo, vaultRepo, receiptRepo, events}
}

func (s service) Initialize(authority entity.Address, feeBps uint32) (entity.Registry, error) {
	if feeBps > entity.MaxFeeBps {
		return entity.Registry{}, fmt.Errorf("%w: %d bps", ErrInvalidFee, feeBps)
	}
	if err := authority.Validate(); err != nil {
		return entity.Registry{}, err
	}

	var registry entity.Registry

	err := s.store.Update(func(tx *store.Tx) error {
		if _, err := s.registryRepo.GetTx(tx); err == nil {
			return fmt.Errorf("%w: registry at %s", ErrAlreadyInitialized, entity.RegistryAddress())
		} else if !errors.Is(err, repository.ErrRegistryNotFound) {
			return err
		}

		registry = entity.Registry{
			Authority: authority,
			FeeBps:    feeBps,
			UpdatedAt: time.Now().Unix(),
		}

		return s.registryRepo.Save(tx, registry)
	})
	if err != nil {
		return entity.Registry{}, err
	}

	s.events.EmitEvent(event.RegistryUpdatedEvent, registry)
	zap.L().With(zap.String("authority", authority.String()), zap.Uint32("feeBps", feeBps)).Info("Marketplace initialized")

	return registry, nil
}

func (s service) UpdateFee(caller entity.Address, feeBps uint32) (entity.Registry, error) {
	if feeBps > entity.MaxFeeBps {
		return entity.Registry{}, fmt.Errorf("%w: %d bps", ErrInvalidFee, feeBps)
	}

	var registry entity.Registry

	err := s.store.Update(func(tx *store.Tx) error {
		current, err := s.registryRepo.GetTx(tx)
		if err != nil {
			return err
		}
		if current.Authority != caller {
			return fmt.Errorf("%w: %s is not the registry authority", ErrUnauthorized, caller)
		}

		registry = current
		registry.FeeBps = feeBps
		registry.UpdatedAt = time.Now().Unix()

		return s.registryRepo.Save(tx, registry)
	})
	if err != nil {
		return entity.Registry{}, err
	}

	s.events.EmitEvent(event.RegistryUpdatedEvent, registry)
	zap.L().With(zap.Uint32("feeBps", feeBps)).Info("Marketplace fee updated")

	return registry, nil
}

func (s service) Registry() (entity.Registry, error) {
	return s.registryRepo.Get()
}

// List moves the single unit of assetID into escrow and opens a Listing, in
// one commit. The seller must hold the unit at call time.
func (s service) List(seller, assetID entity.Address, price uint64) (entity.Listing, error) {
	if price == 0 {
		return entity.Listing{}, fmt.Errorf("%w: asset %s", ErrInvalidPrice, assetID)
	}

	var listing entity.Listing

	err := s.store.Update(func(tx *store.Tx) error {
		if _, err := s.listingRepo.GetTx(tx, assetID); err == nil {
			return fmt.Errorf("%w: asset %s", ErrAlreadyListed, assetID)
		} else if !errors.Is(err, repository.ErrListingNotFound) {
			return err
		}

		owner, err := s.ledger.OwnerTx(tx, assetID)
		if err != nil {
			return err
		}
		if owner != seller {
			return fmt.Errorf("%w: %s does not hold asset %s", ErrUnauthorized, seller, assetID)
		}

		vaultAddr := entity.VaultAddress(assetID)
		if err := s.ledger.MoveAsset(tx, assetID, seller, vaultAddr); err != nil {
			return err
		}

		now := time.Now().Unix()
		listing = entity.Listing{
			Seller:    seller,
			AssetID:   assetID,
			Price:     price,
			IsActive:  true,
			CreatedAt: now,
		}
		if err := s.listingRepo.Save(tx, listing); err != nil {
			return err
		}

		return s.vaultRepo.Save(tx, entity.Vault{
			Address:   vaultAddr,
			AssetID:   assetID,
			Listing:   entity.ListingAddress(assetID),
			CreatedAt: now,
		})
	})
	if err != nil {
		return entity.Listing{}, err
	}

	s.events.EmitEvent(event.ListingCreatedEvent, listing)
	zap.L().With(
		zap.String("asset", assetID.String()),
		zap.String("seller", seller.String()),
		zap.Uint64("price", price),
	).Info("Asset listed")

	return listing, nil
}

// Cancel returns the escrowed unit to the seller and closes the Listing and
// its vault, in one commit.
func (s service) Cancel(seller, assetID entity.Address) error {
	err := s.store.Update(func(tx *store.Tx) error {
		listing, err := s.listingRepo.GetTx(tx, assetID)
		if errors.Is(err, repository.ErrListingNotFound) {
			return fmt.Errorf("%w: asset %s", ErrNotActive, assetID)
		}
		if err != nil {
			return err
		}
		if listing.Seller != seller {
			return fmt.Errorf("%w: %s is not the seller of asset %s", ErrUnauthorized, seller, assetID)
		}

		if err := s.ledger.MoveAsset(tx, assetID, entity.VaultAddress(assetID), seller); err != nil {
			return err
		}
		if err := s.listingRepo.Delete(tx, assetID); err != nil {
			return err
		}

		return s.vaultRepo.Delete(tx, assetID)
	})
	if err != nil {
		return err
	}

	s.events.EmitEvent(event.ListingCancelledEvent, assetID)
	zap.L().With(zap.String("asset", assetID.String()), zap.String("seller", seller.String())).Info("Listing cancelled")

	return nil
}

// Buy settles a sale: pays the operator fee and the seller out of the buyer's
// balance, releases the escrowed unit to the buyer and closes the Listing and
// vault. All of it commits together or not at all.
func (s service) Buy(buyer, assetID entity.Address) (entity.SaleReceipt, error) {
	var receipt entity.SaleReceipt

	err := s.store.Update(func(tx *store.Tx) error {
		listing, err := s.listingRepo.GetTx(tx, assetID)
		if errors.Is(err, repository.ErrListingNotFound) {
			return fmt.Errorf("%w: asset %s", ErrNotActive, assetID)
		}
		if err != nil {
			return err
		}
		if !listing.IsActive {
			return fmt.Errorf("%w: asset %s", ErrNotActive, assetID)
		}

		registry, err := s.registryRepo.GetTx(tx)
		if err != nil {
			return err
		}

		balance, err := s.ledger.BalanceTx(tx, buyer)
		if err != nil {
			return err
		}
		if balance < listing.Price {
			return fmt.Errorf("%w: buyer %s has %d, needs %d", ErrInsufficientFunds, buyer, balance, listing.Price)
		}

		fee := feeAmount(listing.Price, registry.FeeBps)
		proceeds := listing.Price - fee

		if err := s.ledger.Transfer(tx, buyer, registry.Authority, fee); err != nil {
			return err
		}
		if err := s.ledger.Transfer(tx, buyer, listing.Seller, proceeds); err != nil {
			return err
		}
		if err := s.ledger.MoveAsset(tx, assetID, entity.VaultAddress(assetID), buyer); err != nil {
			return err
		}

		if err := s.listingRepo.Delete(tx, assetID); err != nil {
			return err
		}
		if err := s.vaultRepo.Delete(tx, assetID); err != nil {
			return err
		}

		receipt = entity.SaleReceipt{
			ID:             uuid.NewString(),
			AssetID:        assetID,
			Seller:         listing.Seller,
			Buyer:          buyer,
			Price:          listing.Price,
			Fee:            fee,
			SellerProceeds: proceeds,
			SoldAt:         time.Now().Unix(),
		}

		return s.receiptRepo.Save(tx, receipt)
	})
	if err != nil {
		return entity.SaleReceipt{}, err
	}

	s.events.EmitEvent(event.ListingSoldEvent, receipt)
	zap.L().With(
		zap.String("asset", assetID.String()),
		zap.String("buyer", buyer.String()),
		zap.Uint64("price", receipt.Price),
		zap.Uint64("fee", receipt.Fee),
	).Info("Asset sold")

	return receipt, nil
}

func (s service) Listing(assetID entity.Address) (entity.Listing, error) {
	return s.listingRepo.Get(assetID)
}

func (s service) ActiveListings(cursor string, limit int) ([]entity.Listing, string, error) {
	return s.listingRepo.Active(cursor, limit)
}

func (s service) Receipts(cursor string, limit int) ([]entity.SaleReceipt, string, error) {
	return s.receiptRepo.List(cursor, limit)
}

// feeAmount is floor(price * feeBps / 10000). The intermediate product can
// exceed 64 bits; with feeBps capped at 10000 the high word stays below the
// divisor, so the 128-bit division cannot trap. The truncation remainder is
// left in the seller's proceeds.
func feeAmount(price uint64, feeBps uint32) uint64 {
	hi, lo := bits.Mul64(price, uint64(feeBps))
	fee, _ := bits.Div64(hi, lo, 10000)
	return fee
}
