package repository_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedsters/marketplace-core/internal/entity"
	"github.com/speedsters/marketplace-core/internal/repository"
	"github.com/speedsters/marketplace-core/internal/store"
)

func setup(t *testing.T) (*store.Store, repository.ListingRepository) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	return s, repository.NewListingRepository(s)
}

func saveListing(t *testing.T, s *store.Store, repo repository.ListingRepository, name string, price uint64) entity.Listing {
	listing := entity.Listing{
		Seller:   entity.DeriveAddress("test-party", "seller"),
		AssetID:  entity.DeriveAddress("test-asset", name),
		Price:    price,
		IsActive: true,
	}

	require.NoError(t, s.Update(func(tx *store.Tx) error {
		return repo.Save(tx, listing)
	}))

	return listing
}

func TestListingRepository_SaveGetDelete(t *testing.T) {
	s, repo := setup(t)

	listing := saveListing(t, s, repo, "speedster-1", 500)

	fetched, err := repo.Get(listing.AssetID)
	require.NoError(t, err)
	assert.Equal(t, listing, fetched)

	_, err = repo.Get(entity.DeriveAddress("test-asset", "other"))
	assert.ErrorIs(t, err, repository.ErrListingNotFound)

	require.NoError(t, s.Update(func(tx *store.Tx) error {
		return repo.Delete(tx, listing.AssetID)
	}))

	_, err = repo.Get(listing.AssetID)
	assert.ErrorIs(t, err, repository.ErrListingNotFound)
}

func TestListingRepository_ActivePaging(t *testing.T) {
	s, repo := setup(t)

	saved := make(map[entity.Address]uint64)
	for i, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		listing := saveListing(t, s, repo, name, uint64(100+i))
		saved[listing.AssetID] = listing.Price
	}

	collected := make(map[entity.Address]uint64)
	cursor := ""
	for {
		page, next, err := repo.Active(cursor, 3)
		require.NoError(t, err)
		require.LessOrEqual(t, len(page), 3)
		for _, listing := range page {
			_, seen := collected[listing.AssetID]
			require.False(t, seen)
			collected[listing.AssetID] = listing.Price
		}
		if next == "" {
			break
		}
		cursor = next
	}

	assert.Equal(t, saved, collected)
}

func TestListingRepository_ActiveEmpty(t *testing.T) {
	_, repo := setup(t)

	page, next, err := repo.Active("", 10)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Empty(t, next)
}
