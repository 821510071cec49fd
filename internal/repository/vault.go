package repository

import (
	"encoding/json"
	"errors"

	"github.com/speedsters/marketplace-core/internal/entity"
	"github.com/speedsters/marketplace-core/internal/store"
)

var ErrVaultNotFound = errors.New("vault not found")

type VaultRepository interface {
	Get(assetID entity.Address) (entity.Vault, error)
	GetTx(tx *store.Tx, assetID entity.Address) (entity.Vault, error)
	Save(tx *store.Tx, vault entity.Vault) error
	Delete(tx *store.Tx, assetID entity.Address) error
}

type vaultRepository struct {
	store *store.Store
}

func NewVaultRepository(s *store.Store) VaultRepository {
	return vaultRepository{s}
}

func vaultKey(assetID entity.Address) []byte {
	return []byte("vault:" + string(entity.VaultAddress(assetID)))
}

func (r vaultRepository) Get(assetID entity.Address) (entity.Vault, error) {
	value, err := r.store.Get(vaultKey(assetID))
	return decodeVault(value, err)
}

func (r vaultRepository) GetTx(tx *store.Tx, assetID entity.Address) (entity.Vault, error) {
	value, err := tx.Get(vaultKey(assetID))
	return decodeVault(value, err)
}

func (r vaultRepository) Save(tx *store.Tx, vault entity.Vault) error {
	value, err := json.Marshal(vault)
	if err != nil {
		return err
	}

	return tx.Set(vaultKey(vault.AssetID), value)
}

func (r vaultRepository) Delete(tx *store.Tx, assetID entity.Address) error {
	return tx.Delete(vaultKey(assetID))
}

func decodeVault(value []byte, err error) (entity.Vault, error) {
	if errors.Is(err, store.ErrKeyNotFound) {
		return entity.Vault{}, ErrVaultNotFound
	}
	if err != nil {
		return entity.Vault{}, err
	}

	var vault entity.Vault
	err = json.Unmarshal(value, &vault)

	return vault, err
}
