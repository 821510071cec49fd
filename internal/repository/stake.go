package repository

import (
	"encoding/json"
	"errors"

	"github.com/speedsters/marketplace-core/internal/entity"
	"github.com/speedsters/marketplace-core/internal/store"
)

var ErrStakeNotFound = errors.New("stake position not found")

const stakePrefix = "stake:"

type StakeRepository interface {
	Get(owner entity.Address) (entity.StakePosition, error)
	GetTx(tx *store.Tx, owner entity.Address) (entity.StakePosition, error)
	Save(tx *store.Tx, position entity.StakePosition) error
	Delete(tx *store.Tx, owner entity.Address) error
}

type stakeRepository struct {
	store *store.Store
}

func NewStakeRepository(s *store.Store) StakeRepository {
	return stakeRepository{s}
}

func stakeKey(owner entity.Address) []byte {
	return []byte(stakePrefix + string(owner))
}

func (r stakeRepository) Get(owner entity.Address) (entity.StakePosition, error) {
	value, err := r.store.Get(stakeKey(owner))
	return decodePosition(value, err)
}

func (r stakeRepository) GetTx(tx *store.Tx, owner entity.Address) (entity.StakePosition, error) {
	value, err := tx.Get(stakeKey(owner))
	return decodePosition(value, err)
}

func (r stakeRepository) Save(tx *store.Tx, position entity.StakePosition) error {
	value, err := json.Marshal(position)
	if err != nil {
		return err
	}

	return tx.Set(stakeKey(position.Owner), value)
}

func (r stakeRepository) Delete(tx *store.Tx, owner entity.Address) error {
	return tx.Delete(stakeKey(owner))
}

func decodePosition(value []byte, err error) (entity.StakePosition, error) {
	if errors.Is(err, store.ErrKeyNotFound) {
		return entity.StakePosition{}, ErrStakeNotFound
	}
	if err != nil {
		return entity.StakePosition{}, err
	}

	var position entity.StakePosition
	err = json.Unmarshal(value, &position)

	return position, err
}
