package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/speedsters/marketplace-core/internal/entity"
	"github.com/speedsters/marketplace-core/internal/store"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceOverflow   = errors.New("balance overflow")
	ErrAssetNotFound     = errors.New("asset not found")
	ErrAssetExists       = errors.New("asset already issued")
	ErrNotAssetOwner     = errors.New("not the asset owner")
)

// Ledger tracks native currency balances and single-unit asset custody. All
// mutations take a *store.Tx so they commit atomically with whatever record
// changes the caller stages in the same transaction.
type Ledger struct {
	store *store.Store
}

func New(s *store.Store) *Ledger {
	return &Ledger{store: s}
}

func balanceKey(addr entity.Address) []byte {
	return []byte("balance:" + string(addr))
}

func assetKey(assetID entity.Address) []byte {
	return []byte("asset:" + string(assetID))
}

func encodeAmount(amount uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, amount)
	return buf
}

func decodeAmount(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, errors.New("invalid balance encoding")
	}
	return binary.BigEndian.Uint64(b), nil
}

func (l *Ledger) Balance(addr entity.Address) (uint64, error) {
	value, err := l.store.Get(balanceKey(addr))
	if errors.Is(err, store.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return decodeAmount(value)
}

func (l *Ledger) BalanceTx(tx *store.Tx, addr entity.Address) (uint64, error) {
	value, err := tx.Get(balanceKey(addr))
	if errors.Is(err, store.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return decodeAmount(value)
}

// Credit mints native units into addr. This is the environment's faucet; the
// marketplace core never calls it.
func (l *Ledger) Credit(addr entity.Address, amount uint64) error {
	return l.store.Update(func(tx *store.Tx) error {
		balance, err := l.BalanceTx(tx, addr)
		if err != nil {
			return err
		}
		if amount > math.MaxUint64-balance {
			return fmt.Errorf("%w: %s holds %d, cannot add %d", ErrBalanceOverflow, addr, balance, amount)
		}

		return tx.Set(balanceKey(addr), encodeAmount(balance+amount))
	})
}

// Transfer moves native units between addresses inside tx. Overdrafts fail
// with ErrInsufficientFunds and stage nothing.
func (l *Ledger) Transfer(tx *store.Tx, from, to entity.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}

	fromBalance, err := l.BalanceTx(tx, from)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, from, fromBalance, amount)
	}

	// A self-transfer must not double-apply.
	if from == to {
		return nil
	}

	toBalance, err := l.BalanceTx(tx, to)
	if err != nil {
		return err
	}
	if amount > math.MaxUint64-toBalance {
		return fmt.Errorf("%w: %s holds %d, cannot add %d", ErrBalanceOverflow, to, toBalance, amount)
	}

	if err := tx.Set(balanceKey(from), encodeAmount(fromBalance-amount)); err != nil {
		return err
	}

	return tx.Set(balanceKey(to), encodeAmount(toBalance+amount))
}

// Issue creates the single unit of assetID under owner's custody. This is the
// environment's mint primitive, exposed only to dev/admin surfaces.
func (l *Ledger) Issue(assetID, owner entity.Address) error {
	return l.store.Update(func(tx *store.Tx) error {
		exists, err := tx.Has(assetKey(assetID))
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrAssetExists, assetID)
		}

		return tx.Set(assetKey(assetID), []byte(owner))
	})
}

func (l *Ledger) Owner(assetID entity.Address) (entity.Address, error) {
	value, err := l.store.Get(assetKey(assetID))
	if errors.Is(err, store.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", ErrAssetNotFound, assetID)
	}
	if err != nil {
		return "", err
	}

	return entity.Address(value), nil
}

func (l *Ledger) OwnerTx(tx *store.Tx, assetID entity.Address) (entity.Address, error) {
	value, err := tx.Get(assetKey(assetID))
	if errors.Is(err, store.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", ErrAssetNotFound, assetID)
	}
	if err != nil {
		return "", err
	}

	return entity.Address(value), nil
}

// MoveAsset reassigns custody of the single unit of assetID inside tx. The
// unit can only move from its current owner.
func (l *Ledger) MoveAsset(tx *store.Tx, assetID, from, to entity.Address) error {
	owner, err := l.OwnerTx(tx, assetID)
	if err != nil {
		return err
	}
	if owner != from {
		return fmt.Errorf("%w: %s is held by %s", ErrNotAssetOwner, assetID, owner)
	}

	return tx.Set(assetKey(assetID), []byte(to))
}
