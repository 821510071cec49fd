package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const AddressLength = 20

var ErrInvalidAddress = errors.New("invalid address")

// Address identifies a party or a derived storage location. It is the
// lowercase hex encoding of 20 bytes, 0x prefixed.
type Address string

const (
	marketplaceSeed  = "marketplace"
	listingSeed      = "listing"
	escrowSeed       = "escrow"
	vestingSeed      = "vesting"
	vestingVaultSeed = "vesting-vault"
	stakingVaultSeed = "staking-vault"
)

func NewAddress(raw []byte) Address {
	sum := sha256.Sum256(raw)
	return Address("0x" + hex.EncodeToString(sum[:AddressLength]))
}

// DeriveAddress computes a deterministic address from namespace seeds.
// The same seeds always yield the same address, so callers can locate
// records without a lookup table.
func DeriveAddress(seeds ...string) Address {
	h := sha256.New()
	for _, seed := range seeds {
		h.Write([]byte(seed))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	return Address("0x" + hex.EncodeToString(sum[:AddressLength]))
}

func RegistryAddress() Address {
	return DeriveAddress(marketplaceSeed)
}

func ListingAddress(assetID Address) Address {
	return DeriveAddress(listingSeed, string(assetID))
}

// VaultAddress is the custody authority for an asset's escrow. It is a pure
// function of the asset id, so no party holds its key.
func VaultAddress(assetID Address) Address {
	return DeriveAddress(escrowSeed, string(assetID))
}

func VestingAddress(scheduleID string) Address {
	return DeriveAddress(vestingSeed, scheduleID)
}

// VestingVaultAddress holds a schedule's unreleased funds. Like the escrow
// vault, it is a pure function of the schedule id and no party holds its key.
func VestingVaultAddress(scheduleID string) Address {
	return DeriveAddress(vestingVaultSeed, scheduleID)
}

// StakingVaultAddress is the single custody account for all staked funds.
func StakingVaultAddress() Address {
	return DeriveAddress(stakingVaultSeed)
}

func (a Address) Validate() error {
	if len(a) != 2+AddressLength*2 || !strings.HasPrefix(string(a), "0x") {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, a)
	}
	if _, err := hex.DecodeString(string(a[2:])); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, a)
	}
	return nil
}

func (a Address) String() string {
	return string(a)
}
