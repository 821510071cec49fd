package repository

import (
	"encoding/json"
	"errors"

	"github.com/speedsters/marketplace-core/internal/entity"
	"github.com/speedsters/marketplace-core/internal/store"
)

var ErrListingNotFound = errors.New("listing not found")

const listingPrefix = "listing:"

type ListingRepository interface {
	Get(assetID entity.Address) (entity.Listing, error)
	GetTx(tx *store.Tx, assetID entity.Address) (entity.Listing, error)
	Save(tx *store.Tx, listing entity.Listing) error
	Delete(tx *store.Tx, assetID entity.Address) error
	Active(cursor string, limit int) ([]entity.Listing, string, error)
}

type listingRepository struct {
	store *store.Store
}

func NewListingRepository(s *store.Store) ListingRepository {
	return listingRepository{s}
}

// Listings are keyed by the asset's derived listing address, so any caller
// can locate one from the asset id alone.
func listingKey(assetID entity.Address) []byte {
	return []byte(listingPrefix + string(entity.ListingAddress(assetID)))
}

func (r listingRepository) Get(assetID entity.Address) (entity.Listing, error) {
	value, err := r.store.Get(listingKey(assetID))
	return decodeListing(value, err)
}

func (r listingRepository) GetTx(tx *store.Tx, assetID entity.Address) (entity.Listing, error) {
	value, err := tx.Get(listingKey(assetID))
	return decodeListing(value, err)
}

func (r listingRepository) Save(tx *store.Tx, listing entity.Listing) error {
	value, err := json.Marshal(listing)
	if err != nil {
		return err
	}

	return tx.Set(listingKey(listing.AssetID), value)
}

func (r listingRepository) Delete(tx *store.Tx, assetID entity.Address) error {
	return tx.Delete(listingKey(assetID))
}

// Active pages through listings in key order. cursor is the value returned
// by the previous page ("" for the first page); the returned cursor is ""
// once the final page has been served.
func (r listingRepository) Active(cursor string, limit int) ([]entity.Listing, string, error) {
	listings := make([]entity.Listing, 0)
	next := ""
	lastKey := ""

	err := r.store.IteratePrefix([]byte(listingPrefix), func(key, value []byte) (bool, error) {
		if cursor != "" && string(key) <= cursor {
			return true, nil
		}
		if len(listings) == limit {
			next = lastKey
			return false, nil
		}

		var listing entity.Listing
		if err := json.Unmarshal(value, &listing); err != nil {
			return false, err
		}

		listings = append(listings, listing)
		lastKey = string(key)

		return true, nil
	})
	if err != nil {
		return nil, "", err
	}

	return listings, next, nil
}

func decodeListing(value []byte, err error) (entity.Listing, error) {
	if errors.Is(err, store.ErrKeyNotFound) {
		return entity.Listing{}, ErrListingNotFound
	}
	if err != nil {
		return entity.Listing{}, err
	}

	var listing entity.Listing
	err = json.Unmarshal(value, &listing)

	return listing, err
}
