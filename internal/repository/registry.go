package repository

import (
	"encoding/json"
	"errors"

	"github.com/speedsters/marketplace-core/internal/entity"
	"github.com/speedsters/marketplace-core/internal/store"
)

var ErrRegistryNotFound = errors.New("registry not found")

type RegistryRepository interface {
	Get() (entity.Registry, error)
	GetTx(tx *store.Tx) (entity.Registry, error)
	Save(tx *store.Tx, registry entity.Registry) error
}

type registryRepository struct {
	store *store.Store
}

func NewRegistryRepository(s *store.Store) RegistryRepository {
	return registryRepository{s}
}

func registryKey() []byte {
	return []byte("registry:" + string(entity.RegistryAddress()))
}

func (r registryRepository) Get() (entity.Registry, error) {
	value, err := r.store.Get(registryKey())
	return decodeRegistry(value, err)
}

func (r registryRepository) GetTx(tx *store.Tx) (entity.Registry, error) {
	value, err := tx.Get(registryKey())
	return decodeRegistry(value, err)
}

func (r registryRepository) Save(tx *store.Tx, registry entity.Registry) error {
	value, err := json.Marshal(registry)
	if err != nil {
		return err
	}

	return tx.Set(registryKey(), value)
}

func decodeRegistry(value []byte, err error) (entity.Registry, error) {
	if errors.Is(err, store.ErrKeyNotFound) {
		return entity.Registry{}, ErrRegistryNotFound
	}
	if err != nil {
		return entity.Registry{}, err
	}

	var registry entity.Registry
	err = json.Unmarshal(value, &registry)

	return registry, err
}
